package monitoring

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/texlate/texlate/pkg/logger"
	"github.com/texlate/texlate/pkg/version"
)

// initBuildInfo registers the build info and uptime gauges on meter.
func initBuildInfo(ctx context.Context, meter metric.Meter) {
	log := logger.FromContext(ctx)
	info := version.Get()
	start := time.Now()
	buildInfo, err := meter.Int64ObservableGauge(
		"texlate_build_info",
		metric.WithDescription("Build information (value=1)"),
	)
	if err != nil {
		log.Error("Failed to create build info gauge", "error", err)
		return
	}
	uptime, err := meter.Float64ObservableGauge(
		"texlate_uptime_seconds",
		metric.WithDescription("Service uptime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		log.Error("Failed to create uptime gauge", "error", err)
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("version", info.Version),
		attribute.String("commit_hash", info.CommitHash),
		attribute.String("go_version", info.GoVersion),
	)
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(buildInfo, 1, attrs)
		o.ObserveFloat64(uptime, time.Since(start).Seconds())
		return nil
	}, buildInfo, uptime)
	if err != nil {
		log.Error("Failed to register build info callback", "error", err)
	}
}
