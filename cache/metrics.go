// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

// Names
const (
	LookupCounter  = "cache_lookups_total"
	RefreshCounter = "cache_refreshes_total"
)

// Labels
const (
	FreshnessLabel = "freshness"
	OutcomeLabel   = "outcome"
)

// Label Values
const (
	SuccessOutcome = "success"
	FailureOutcome = "failure"
)

// ProvideMetrics returns the metrics relevant to this package.
func ProvideMetrics() fx.Option {
	return fx.Options(
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: LookupCounter,
				Help: "Counter for cache lookups, labeled by the freshness of the answer.",
			},
			FreshnessLabel,
		),
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: RefreshCounter,
				Help: "Counter for background stale-entry refreshes and their outcomes.",
			},
			OutcomeLabel,
		),
	)
}

type Measures struct {
	fx.In
	Lookups   *prometheus.CounterVec `name:"cache_lookups_total"`
	Refreshes *prometheus.CounterVec `name:"cache_refreshes_total"`
}

func (m *Measures) countLookup(freshness Freshness) {
	if m == nil || m.Lookups == nil {
		return
	}
	m.Lookups.With(prometheus.Labels{FreshnessLabel: freshness.String()}).Add(1)
}

func (m *Measures) countRefresh(success bool) {
	if m == nil || m.Refreshes == nil {
		return
	}
	outcome := SuccessOutcome
	if !success {
		outcome = FailureOutcome
	}
	m.Refreshes.With(prometheus.Labels{OutcomeLabel: outcome}).Add(1)
}
