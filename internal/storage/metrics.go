package storage

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/ventura/internal/telemetry"
)

// RegisterPoolMetrics registers observable gauges for connection pool health.
// Call after telemetry.Init so the gauges bind to the configured provider.
func (db *DB) RegisterPoolMetrics() {
	meter := telemetry.Meter("ventura/storage")

	_, _ = meter.Int64ObservableGauge("ventura.db.pool.total_conns",
		metric.WithDescription("Connections currently open in the pool"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(db.pool.Stat().TotalConns()))
			return nil
		}),
	)

	_, _ = meter.Int64ObservableGauge("ventura.db.pool.acquired_conns",
		metric.WithDescription("Connections currently checked out of the pool"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(db.pool.Stat().AcquiredConns()))
			return nil
		}),
	)

	_, _ = meter.Int64ObservableGauge("ventura.db.pool.idle_conns",
		metric.WithDescription("Idle connections held by the pool"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(db.pool.Stat().IdleConns()))
			return nil
		}),
	)
}
