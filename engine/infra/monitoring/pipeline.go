package monitoring

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/texlate/texlate/engine/core"
	"github.com/texlate/texlate/engine/document"
	"github.com/texlate/texlate/engine/infra/monitoring/metrics"
	"github.com/texlate/texlate/engine/job"
	"github.com/texlate/texlate/pkg/logger"
)

// PipelineMetrics records job, slot and build events. It satisfies the
// observer interfaces of the job runner and the slot manager.
type PipelineMetrics struct {
	meter          metric.Meter
	jobsTotal      metric.Int64Counter
	jobDuration    metric.Float64Histogram
	slotWait       metric.Float64Histogram
	slotOverruns   metric.Int64Counter
	slotsHeld      metric.Int64UpDownCounter
	chunksTotal    metric.Int64Counter
	compileAttempt metric.Int64Counter
}

func newPipelineMetrics(ctx context.Context, meter metric.Meter) *PipelineMetrics {
	log := logger.FromContext(ctx)
	p := &PipelineMetrics{meter: meter}
	var err error
	if p.jobsTotal, err = meter.Int64Counter(
		"texlate_jobs_total",
		metric.WithDescription("Finished translation jobs by outcome"),
	); err != nil {
		log.Error("Failed to create jobs counter", "error", err)
	}
	if p.jobDuration, err = meter.Float64Histogram(
		"texlate_job_duration_seconds",
		metric.WithDescription("Wall time of translation jobs, slot wait included"),
		metric.WithExplicitBucketBoundaries(metrics.JobDurationBuckets...),
	); err != nil {
		log.Error("Failed to create job duration histogram", "error", err)
	}
	if p.slotWait, err = meter.Float64Histogram(
		"texlate_slot_wait_seconds",
		metric.WithDescription("Time jobs spent waiting for a slot"),
		metric.WithExplicitBucketBoundaries(metrics.SlotWaitBuckets...),
	); err != nil {
		log.Error("Failed to create slot wait histogram", "error", err)
	}
	if p.slotOverruns, err = meter.Int64Counter(
		"texlate_slot_overruns_total",
		metric.WithDescription("Admissions backed out after losing the counter race"),
	); err != nil {
		log.Error("Failed to create slot overrun counter", "error", err)
	}
	if p.slotsHeld, err = meter.Int64UpDownCounter(
		"texlate_slots_held",
		metric.WithDescription("Slots held by jobs of this process"),
	); err != nil {
		log.Error("Failed to create slots held counter", "error", err)
	}
	if p.chunksTotal, err = meter.Int64Counter(
		"texlate_chunks_total",
		metric.WithDescription("Chunks processed by kind"),
	); err != nil {
		log.Error("Failed to create chunks counter", "error", err)
	}
	if p.compileAttempt, err = meter.Int64Counter(
		"texlate_compile_attempts_total",
		metric.WithDescription("Build attempts by result"),
	); err != nil {
		log.Error("Failed to create compile attempts counter", "error", err)
	}
	return p
}

// ObserveSharedSlots exports the shared counter as a gauge read at scrape
// time.
func (p *PipelineMetrics) ObserveSharedSlots(read func(ctx context.Context) (int64, error)) error {
	gauge, err := p.meter.Int64ObservableGauge(
		"texlate_slots_in_use",
		metric.WithDescription("Value of the shared slot counter"),
	)
	if err != nil {
		return err
	}
	_, err = p.meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		n, err := read(ctx)
		if err != nil {
			return err
		}
		o.ObserveInt64(gauge, n)
		return nil
	}, gauge)
	return err
}

func (p *PipelineMetrics) JobFinished(ctx context.Context, outcome job.State, kind core.Kind, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("outcome", string(outcome)),
		attribute.String("kind", string(kind)),
	)
	if p.jobsTotal != nil {
		p.jobsTotal.Add(ctx, 1, attrs)
	}
	if p.jobDuration != nil {
		p.jobDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("outcome", string(outcome))))
	}
}

func (p *PipelineMetrics) ChunkTranslated(ctx context.Context, kind document.ChunkKind) {
	if p.chunksTotal != nil {
		p.chunksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind.String())))
	}
}

func (p *PipelineMetrics) SlotAcquired(ctx context.Context, waited time.Duration) {
	if p.slotWait != nil {
		p.slotWait.Record(ctx, waited.Seconds())
	}
	if p.slotsHeld != nil {
		p.slotsHeld.Add(ctx, 1)
	}
}

func (p *PipelineMetrics) SlotOverrun(ctx context.Context) {
	if p.slotOverruns != nil {
		p.slotOverruns.Add(ctx, 1)
	}
}

func (p *PipelineMetrics) SlotReleased(ctx context.Context) {
	if p.slotsHeld != nil {
		p.slotsHeld.Add(ctx, -1)
	}
}

// CompileAttempt has the shape of compile.AttemptObserver.
func (p *PipelineMetrics) CompileAttempt(ctx context.Context, _ int, err error) {
	if p.compileAttempt == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	p.compileAttempt.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
