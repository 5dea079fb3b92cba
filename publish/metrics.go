// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

// Names
const (
	TicketCounter = "publish_tickets_total"
)

// Labels
const (
	OutcomeLabel = "outcome"
)

// ProvideMetrics returns the metrics relevant to this package.
func ProvideMetrics() fx.Option {
	return fx.Options(
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: TicketCounter,
				Help: "Counter for publish tickets reaching a terminal state, labeled by outcome.",
			},
			OutcomeLabel,
		),
	)
}

type Measures struct {
	fx.In
	Tickets *prometheus.CounterVec `name:"publish_tickets_total"`
}

func (m *Measures) countOutcome(state State) {
	if m == nil || m.Tickets == nil {
		return
	}
	m.Tickets.With(prometheus.Labels{OutcomeLabel: state.String()}).Add(1)
}
