// Package observe provides the OpenTelemetry metrics for the subtitle
// daemon, bridged to a Prometheus scrape endpoint via [InitProvider].
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for all undertone metrics.
const meterName = "undertone"

// Metrics holds the metric instruments for the recognition lifecycle.
// All fields are safe for concurrent use; the OTel types handle their
// own synchronisation.
type Metrics struct {
	// EngineRestarts counts scheduled engine restarts.
	EngineRestarts metric.Int64Counter

	// EngineErrors counts recognition errors by code.
	EngineErrors metric.Int64Counter

	// EngineActive tracks whether a recognition run is live (0 or 1).
	EngineActive metric.Int64UpDownCounter

	// TranscriptFinals counts final transcript segments received.
	TranscriptFinals metric.Int64Counter
}

// NewMetrics creates the instruments on the given provider. Tests should
// pass a provider backed by a ManualReader to inspect recorded values.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.EngineRestarts, err = m.Int64Counter("undertone.engine.restarts",
		metric.WithDescription("Recognition engine restarts scheduled."),
	); err != nil {
		return nil, err
	}
	if met.EngineErrors, err = m.Int64Counter("undertone.engine.errors",
		metric.WithDescription("Recognition errors by code."),
	); err != nil {
		return nil, err
	}
	if met.EngineActive, err = m.Int64UpDownCounter("undertone.engine.active",
		metric.WithDescription("Live recognition runs."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptFinals, err = m.Int64Counter("undertone.transcript.finals",
		metric.WithDescription("Final transcript segments received."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// RestartScheduled records one scheduled restart.
func (m *Metrics) RestartScheduled(ctx context.Context) {
	m.EngineRestarts.Add(ctx, 1)
}

// EngineError records one recognition error with its code.
func (m *Metrics) EngineError(ctx context.Context, code string) {
	m.EngineErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}

// EngineUp marks a recognition run as live.
func (m *Metrics) EngineUp(ctx context.Context) {
	m.EngineActive.Add(ctx, 1)
}

// EngineDown marks a recognition run as finished.
func (m *Metrics) EngineDown(ctx context.Context) {
	m.EngineActive.Add(ctx, -1)
}

// FinalSegments records n final transcript segments.
func (m *Metrics) FinalSegments(ctx context.Context, n int64) {
	m.TranscriptFinals.Add(ctx, n)
}
