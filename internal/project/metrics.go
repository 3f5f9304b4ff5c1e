package project

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("projectd.project")

var (
	graphUpdates     metric.Int64Counter
	structureChanges metric.Int64Counter
	graphDuration    metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		graphUpdates, err = meter.Int64Counter(
			"project_graph_updates_total",
			metric.WithDescription("Total number of project graph updates"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		structureChanges, err = meter.Int64Counter(
			"project_structure_changes_total",
			metric.WithDescription("Graph updates that changed the project file set"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		graphDuration, err = meter.Float64Histogram(
			"project_graph_update_duration_seconds",
			metric.WithDescription("Duration of project graph updates"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordGraphUpdate records one UpdateGraph call.
func recordGraphUpdate(kind Kind, duration time.Duration, changed bool) {
	if err := initMetrics(); err != nil {
		return
	}

	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("kind", kind.String()))

	graphUpdates.Add(ctx, 1, attrs)
	graphDuration.Record(ctx, duration.Seconds(), attrs)
	if changed {
		structureChanges.Add(ctx, 1, attrs)
	}
}
