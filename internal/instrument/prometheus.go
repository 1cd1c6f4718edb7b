// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

// Package instrument collects gateway selection metrics.
package instrument

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/katzenpost/bootstrap/client/gateway"
	"github.com/katzenpost/bootstrap/core/topology"
)

const namespace = "katzenpost_bootstrap"

// Metrics implements gateway.Observer on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	attempts        *prometheus.CounterVec
	attemptTimeouts prometheus.Counter
	attemptDuration prometheus.Histogram
	selections      *prometheus.CounterVec
}

// New returns Metrics registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_attempts_total",
				Help:      "Number of gateway registration attempts by result",
			},
			[]string{"result"},
		),
		attemptTimeouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_attempt_timeouts_total",
				Help:      "Number of gateway registration attempts that ran out of time",
			},
		),
		attemptDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_attempt_duration_seconds",
				Help:      "Duration of gateway registration attempts",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 1.5, 2.5},
			},
		),
		selections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_selections_total",
				Help:      "Number of gateway selections by outcome",
			},
			[]string{"outcome"},
		),
	}
	m.registry.MustRegister(m.attempts, m.attemptTimeouts, m.attemptDuration, m.selections)
	return m
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// OnAttempt implements gateway.Observer.
func (m *Metrics) OnAttempt(_ *topology.GatewayDescriptor, elapsed time.Duration, err error) {
	m.attemptDuration.Observe(elapsed.Seconds())
	m.attempts.WithLabelValues(attemptResult(err)).Inc()
	if errors.Is(err, context.DeadlineExceeded) {
		m.attemptTimeouts.Inc()
	}
}

// Selection records the outcome of a Select or Resolve call.
func (m *Metrics) Selection(err error) {
	m.selections.WithLabelValues(selectionOutcome(err)).Inc()
}

// WriteTextfile writes the metrics in the node exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func attemptResult(err error) string {
	if err == nil {
		return "ok"
	}
	var hsErr *gateway.HandshakeError
	if !errors.As(err, &hsErr) {
		return "error"
	}
	switch hsErr.Kind {
	case gateway.InvalidIdentity:
		return "invalid_identity"
	case gateway.ConnectFailure:
		return "connect_error"
	case gateway.RegisterFailure:
		return "register_error"
	case gateway.CloseFailure:
		return "close_error"
	default:
		return "error"
	}
}

func selectionOutcome(err error) string {
	var fetchErr *gateway.FetchError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &fetchErr):
		return "fetch_error"
	case errors.Is(err, gateway.ErrNoGatewayAvailable):
		return "no_gateway"
	case errors.Is(err, gateway.ErrGatewayNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
