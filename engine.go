// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"time"

	"github.com/xmidt-org/arrange"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/airlift-media/airlift/backend"
	"github.com/airlift-media/airlift/cache"
	"github.com/airlift-media/airlift/identity"
	"github.com/airlift-media/airlift/listings"
	"github.com/airlift-media/airlift/publish"
	"github.com/airlift-media/airlift/registry"
	"github.com/airlift-media/airlift/store"
	"github.com/airlift-media/airlift/store/badgerdb"
	"github.com/airlift-media/airlift/watch"
)

// EngineConfig holds the engine-wide settings that belong to no single
// component.
type EngineConfig struct {
	// Claims is the provider claims map the host app hands over once a
	// session is established. When present it is resolved into the acting
	// identity and Owner is ignored.
	Claims map[string]interface{}

	// OwnerClaimKey and EmailClaimKey override the claim keys the resolver
	// reads, for providers that use nonstandard names. (Optional)
	OwnerClaimKey string
	EmailClaimKey string

	// Owner pins the acting identity directly, for setups with no
	// provider claims.
	Owner string

	// CacheTTL is the freshness window for cached listings.
	CacheTTL time.Duration

	// DefaultDestinationURL seeds the protected default connection profile.
	DefaultDestinationURL string
}

var errNoOwnerIdentity = errors.New("no owner identity configured; set engine.claims or engine.owner")

// PublishSettings are the publish pipeline knobs read from configuration.
type PublishSettings struct {
	PollInterval     time.Duration
	PollMaxAttempts  int
	AttachRetries    int
	AttachRetryDelay time.Duration
}

func provideEngine() fx.Option {
	return fx.Options(
		fx.Provide(
			arrange.UnmarshalKey("engine", EngineConfig{}),
			arrange.UnmarshalKey("publish", PublishSettings{}),
			arrange.UnmarshalKey("store", badgerdb.Config{}),
			arrange.UnmarshalKey("backend", backend.ClientConfig{}),
			provideStore,
			provideBackend,
			provideIdentity,
			provideFetcher,
			provideCache,
			provideListings,
			provideRegistry,
			providePipeline,
		),
		fx.Invoke(resumePendingTickets),
	)
}

func provideStore(config badgerdb.Config, logger *zap.Logger, lc fx.Lifecycle) (store.S, error) {
	config.Logger = logger
	s, err := badgerdb.Open(config)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return s.Close()
		},
	})
	return s, nil
}

func provideBackend(config backend.ClientConfig, logger *zap.Logger) (*backend.Client, error) {
	config.Logger = logger
	return backend.NewClient(config, nil)
}

// provideIdentity resolves the identity every backend call runs on behalf
// of, either out of the provider claims the host app handed over or from
// the pinned engine.owner setting.
func provideIdentity(config EngineConfig) (identity.Identity, error) {
	if len(config.Claims) > 0 {
		resolver := identity.Resolver{
			OwnerClaimKey: config.OwnerClaimKey,
			EmailClaimKey: config.EmailClaimKey,
		}
		return resolver.FromClaims(config.Claims)
	}
	if config.Owner == "" {
		return identity.Identity{}, errNoOwnerIdentity
	}
	return identity.Identity{Owner: config.Owner}, nil
}

func provideFetcher(id identity.Identity, client *backend.Client) (*listings.Fetcher, error) {
	return listings.NewFetcher(client, id.Owner)
}

type cacheIn struct {
	fx.In
	Engine   EngineConfig
	Store    store.S
	Fetcher  *listings.Fetcher
	Logger   *zap.Logger
	Measures cache.Measures
}

func provideCache(in cacheIn) (*cache.Tiered, error) {
	return cache.New(cache.Config{
		TTL:      in.Engine.CacheTTL,
		Refresh:  in.Fetcher.Fetch,
		Durable:  in.Store,
		Logger:   in.Logger,
		Measures: &in.Measures,
	})
}

func provideListings(fetcher *listings.Fetcher, tiered *cache.Tiered, logger *zap.Logger) (*listings.Service, error) {
	return listings.New(listings.Config{
		Fetcher: fetcher,
		Cache:   tiered,
		Logger:  logger,
	})
}

func provideRegistry(config EngineConfig, s store.S, logger *zap.Logger) (*registry.Registry, error) {
	return registry.New(registry.Config{
		Store:                 s,
		DefaultDestinationURL: config.DefaultDestinationURL,
		Logger:                logger,
	})
}

type pipelineIn struct {
	fx.In
	Settings      PublishSettings
	Backend       *backend.Client
	Cache         *cache.Tiered
	Store         store.S
	Logger        *zap.Logger
	Measures      publish.Measures
	WatchMeasures watch.Measures
	LC            fx.Lifecycle
}

func providePipeline(in pipelineIn) (*publish.Pipeline, error) {
	pipeline, err := publish.New(publish.Config{
		Backend:          in.Backend,
		Cache:            in.Cache,
		Tickets:          in.Store,
		Logger:           in.Logger,
		PollInterval:     in.Settings.PollInterval,
		PollMaxAttempts:  in.Settings.PollMaxAttempts,
		AttachRetries:    in.Settings.AttachRetries,
		AttachRetryDelay: in.Settings.AttachRetryDelay,
		Measures:         &in.Measures,
		WatchMeasures:    &in.WatchMeasures,
	})
	if err != nil {
		return nil, err
	}
	in.LC.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pipeline.Shutdown()
			return nil
		},
	})
	return pipeline, nil
}

// resumePendingTickets picks up reconciliations interrupted by the last
// shutdown.
func resumePendingTickets(pipeline *publish.Pipeline, logger *zap.Logger) error {
	restored, err := pipeline.Restore()
	if err != nil {
		return err
	}
	for _, ticket := range restored {
		if ticket.State.Terminal() {
			continue
		}
		if err := pipeline.Resume(ticket.UploadID); err != nil {
			logger.Warn("could not resume ticket",
				zap.String("uploadId", ticket.UploadID), zap.Error(err))
		}
	}
	if len(restored) > 0 {
		logger.Info("resumed pending tickets", zap.Int("count", len(restored)))
	}
	return nil
}
