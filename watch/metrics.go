// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

package watch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

// Names
const (
	CheckCounter = "watch_checks_total"
)

// Labels
const (
	OutcomeLabel = "outcome"
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
				Name: CheckCounter,
				Help: "Counter for the number of poll checks (and their success/failure outcomes) against the backend.",
			},
			OutcomeLabel,
		),
	)
}

type Measures struct {
	fx.In
	Checks *prometheus.CounterVec `name:"watch_checks_total"`
}

func (m *Measures) countCheck(outcome string) {
	if m == nil || m.Checks == nil {
		return
	}
	m.Checks.With(prometheus.Labels{OutcomeLabel: outcome}).Add(1)
}
