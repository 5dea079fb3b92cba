// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xmidt-org/arrange"
	"github.com/xmidt-org/candlelight"
	"github.com/xmidt-org/httpaux"
	"github.com/xmidt-org/httpaux/recovery"
	"github.com/xmidt-org/touchstone/touchhttp"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/airlift-media/airlift/identity"
	"github.com/airlift-media/airlift/listings"
	"github.com/airlift-media/airlift/publish"
	"github.com/airlift-media/airlift/registry"
)

// ServerConfig describes one listening endpoint. An empty address disables
// the server.
type ServerConfig struct {
	Address string
}

// ServersConfig collects the engine's listening endpoints.
type ServersConfig struct {
	// Primary serves the local control API the app layer talks to.
	Primary ServerConfig

	// Health serves the liveness endpoint.
	Health ServerConfig

	// Metrics serves the prometheus scrape endpoint.
	Metrics ServerConfig
}

func provideServers() fx.Option {
	return fx.Options(
		fx.Provide(
			arrange.UnmarshalKey("servers", ServersConfig{}),
			fx.Annotated{
				Name: "servers.primary.metrics",
				Target: touchhttp.ServerBundle{}.NewInstrumenter(
					touchhttp.ServerLabel, "primary",
				),
			},
			fx.Annotated{
				Name: "servers.health.metrics",
				Target: touchhttp.ServerBundle{}.NewInstrumenter(
					touchhttp.ServerLabel, "health",
				),
			},
		),
		fx.Invoke(
			BuildPrimaryRoutes,
			BuildHealthRoutes,
			BuildMetricsRoutes,
		),
	)
}

type RoutesIn struct {
	fx.In
	Servers   ServersConfig
	Identity  identity.Identity
	Metrics   touchhttp.ServerInstrumenter `name:"servers.primary.metrics"`
	Tracing   candlelight.Tracing
	Listings  *listings.Service
	Pipeline  *publish.Pipeline
	Profiles  *registry.Registry
	Logger    *zap.Logger
	Lifecycle fx.Lifecycle
}

// BuildPrimaryRoutes wires the local control API the app layer drives the
// engine through.
func BuildPrimaryRoutes(in RoutesIn) {
	if in.Servers.Primary.Address == "" {
		return
	}

	router := mux.NewRouter()
	options := []otelmux.Option{
		otelmux.WithTracerProvider(in.Tracing.TracerProvider()),
		otelmux.WithPropagators(in.Tracing.Propagator()),
	}
	router.Use(otelmux.Middleware(applicationName, options...))

	api := router.PathPrefix("/" + apiBase).Subrouter()
	api.Handle("/status", handleStatus(in.Pipeline, in.Profiles, in.Identity, in.Logger)).Methods(http.MethodGet)
	api.Handle("/channels", handleChannels(in.Listings, in.Logger)).Methods(http.MethodGet)
	api.Handle("/channels/{id}/content", handleContent(in.Listings, in.Logger)).Methods(http.MethodGet)
	api.Handle("/channels/{id}/content/{recordId}/visibility",
		handleVisibility(in.Listings, in.Pipeline, in.Identity.Owner, in.Logger)).Methods(http.MethodPut)
	api.Handle("/publish", handlePublish(in.Pipeline, in.Identity.Owner, in.Logger)).Methods(http.MethodPost)
	api.Handle("/tickets", handleTickets(in.Pipeline, in.Logger)).Methods(http.MethodGet)
	api.Handle("/tickets", handlePruneTickets(in.Pipeline, in.Logger)).Methods(http.MethodDelete)
	api.Handle("/tickets/{id}", handleTicket(in.Pipeline, in.Logger)).Methods(http.MethodGet)
	api.Handle("/tickets/{id}", handleCancelTicket(in.Pipeline)).Methods(http.MethodDelete)
	api.Handle("/profiles", handleProfiles(in.Profiles, in.Logger)).Methods(http.MethodGet)
	api.Handle("/profiles", handleAddProfile(in.Profiles, in.Logger)).Methods(http.MethodPost)
	api.Handle("/profiles/{id}", handleRemoveProfile(in.Profiles)).Methods(http.MethodDelete)
	api.Handle("/profiles/{id}/select", handleSelectProfile(in.Profiles)).Methods(http.MethodPut)

	chain := alice.New(
		recovery.Middleware(recovery.WithStatusCode(http.StatusInternalServerError)),
		candlelight.EchoFirstTraceNodeInfo(in.Tracing, false),
	)
	startServer(in.Lifecycle, in.Logger, "primary", in.Servers.Primary.Address,
		in.Metrics.Then(chain.Then(router)))
}

type HealthRoutesIn struct {
	fx.In
	Servers   ServersConfig
	Metrics   touchhttp.ServerInstrumenter `name:"servers.health.metrics"`
	Logger    *zap.Logger
	Lifecycle fx.Lifecycle
}

func BuildHealthRoutes(in HealthRoutesIn) {
	if in.Servers.Health.Address == "" {
		return
	}
	router := mux.NewRouter()
	router.Handle("/health", httpaux.ConstantHandler{
		StatusCode: http.StatusOK,
	}).Methods(http.MethodGet)
	startServer(in.Lifecycle, in.Logger, "health", in.Servers.Health.Address,
		in.Metrics.Then(router))
}

type MetricsRoutesIn struct {
	fx.In
	Servers   ServersConfig
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger
	Lifecycle fx.Lifecycle
}

func BuildMetricsRoutes(in MetricsRoutesIn) {
	if in.Servers.Metrics.Address == "" {
		return
	}
	router := mux.NewRouter()
	router.Handle("/metrics",
		promhttp.HandlerFor(in.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	startServer(in.Lifecycle, in.Logger, "metrics", in.Servers.Metrics.Address, router)
}

func startServer(lc fx.Lifecycle, logger *zap.Logger, name, address string, handler http.Handler) {
	server := &http.Server{
		Addr:    address,
		Handler: handler,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			listener, err := net.Listen("tcp", address)
			if err != nil {
				return err
			}
			logger.Info("server started",
				zap.String("server", name), zap.String("address", address))
			go func() {
				err := server.Serve(listener)
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server exited",
						zap.String("server", name), zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
