package metrics

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DatabaseMetrics covers the record store: per-query latency and failures
// for the schools, users and sessions tables plus connection pool state.
type DatabaseMetrics struct {
	poolConnections metric.Int64ObservableGauge
	poolWaits       metric.Int64ObservableCounter
	queryDuration   metric.Float64Histogram
	queryErrors     metric.Int64Counter
}

func NewDatabaseMetrics(meter metric.Meter) (*DatabaseMetrics, error) {
	dm := &DatabaseMetrics{}

	var err error

	dm.poolConnections, err = meter.Int64ObservableGauge(
		"db.pool.connections",
		metric.WithDescription("Database connections by state (idle, in_use, max_open)"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}

	dm.poolWaits, err = meter.Int64ObservableCounter(
		"db.pool.waits",
		metric.WithDescription("Times a query waited for a free connection"),
		metric.WithUnit("{wait}"),
	)
	if err != nil {
		return nil, err
	}

	// Buckets: 1ms .. 5s
	dm.queryDuration, err = meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Record store query duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0),
	)
	if err != nil {
		return nil, err
	}

	dm.queryErrors, err = meter.Int64Counter(
		"db.query.errors",
		metric.WithDescription("Record store queries that failed"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return dm, nil
}

// RegisterDB reports the pool stats of db on every collection.
func (dm *DatabaseMetrics) RegisterDB(db *sql.DB, meter metric.Meter) error {
	if dm == nil || dm.poolConnections == nil || db == nil {
		return nil
	}

	idle := metric.WithAttributes(attribute.String("state", "idle"))
	inUse := metric.WithAttributes(attribute.String("state", "in_use"))
	maxOpen := metric.WithAttributes(attribute.String("state", "max_open"))

	_, err := meter.RegisterCallback(
		func(_ context.Context, observer metric.Observer) error {
			stats := db.Stats()
			observer.ObserveInt64(dm.poolConnections, int64(stats.Idle), idle)
			observer.ObserveInt64(dm.poolConnections, int64(stats.InUse), inUse)
			observer.ObserveInt64(dm.poolConnections, int64(stats.MaxOpenConnections), maxOpen)
			observer.ObserveInt64(dm.poolWaits, stats.WaitCount)
			return nil
		},
		dm.poolConnections,
		dm.poolWaits,
	)
	return err
}

// RecordQuery records one repository call. A missing row is an outcome, not
// a failure, so sql.ErrNoRows is not counted as an error.
func (dm *DatabaseMetrics) RecordQuery(ctx context.Context, operation, table string, duration time.Duration, err error) {
	if dm == nil || dm.queryDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("table", table),
	)

	dm.queryDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		dm.queryErrors.Add(ctx, 1, attrs)
	}
}
