package spanz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zoobzio/clockz"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zoobzio/spanz/internal/logging"
)

// BatchOption configures a BatchSpanProcessor.
type BatchOption func(*batchOptions)

type batchOptions struct {
	clock      clockz.Clock
	logger     *zap.Logger
	registerer prometheus.Registerer
	name       string
	overrides  []func(*BatchConfig)
}

// WithMaxQueueSize bounds the number of queued spans.
func WithMaxQueueSize(n int) BatchOption {
	return func(o *batchOptions) {
		o.overrides = append(o.overrides, func(c *BatchConfig) { c.MaxQueueSize = n })
	}
}

// WithScheduleDelay sets the interval between timer-driven exports.
func WithScheduleDelay(d time.Duration) BatchOption {
	return func(o *batchOptions) {
		o.overrides = append(o.overrides, func(c *BatchConfig) { c.ScheduleDelay = d })
	}
}

// WithMaxExportBatchSize bounds the number of spans per export call.
func WithMaxExportBatchSize(n int) BatchOption {
	return func(o *batchOptions) {
		o.overrides = append(o.overrides, func(c *BatchConfig) { c.MaxExportBatchSize = n })
	}
}

// WithExportTimeout bounds each export call.
func WithExportTimeout(d time.Duration) BatchOption {
	return func(o *batchOptions) {
		o.overrides = append(o.overrides, func(c *BatchConfig) { c.ExportTimeout = d })
	}
}

// WithBatchConfig replaces every setting at once.
func WithBatchConfig(cfg BatchConfig) BatchOption {
	return func(o *batchOptions) {
		o.overrides = append(o.overrides, func(c *BatchConfig) { *c = cfg })
	}
}

// WithBatchClock injects the clock driving schedule and export timers.
func WithBatchClock(clock clockz.Clock) BatchOption {
	return func(o *batchOptions) { o.clock = clock }
}

// WithBatchLogger sets the logger for export failures.
func WithBatchLogger(logger *zap.Logger) BatchOption {
	return func(o *batchOptions) { o.logger = logger }
}

// WithMetricsRegisterer registers the processor's Prometheus collectors on reg.
func WithMetricsRegisterer(reg prometheus.Registerer) BatchOption {
	return func(o *batchOptions) { o.registerer = reg }
}

// WithProcessorName sets the "processor" label on metrics and logs. Defaults to
// "batch". Processors registering on the same registerer under the same name
// share one set of series.
func WithProcessorName(name string) BatchOption {
	return func(o *batchOptions) { o.name = name }
}

// BatchSpanProcessor buffers sampled spans and exports them in batches on a
// timer, when a full batch accumulates, or when the queue fills.
// Safe for concurrent use.
//
//nolint:govet // Field order optimized for functionality over memory
type BatchSpanProcessor struct {
	exporter SpanExporter
	queue    *spanQueue
	clock    clockz.Clock
	logger   *zap.Logger
	metrics  *processorMetrics
	flushCh  chan struct{}
	config   BatchConfig
	running  atomic.Bool
	// stopMu orders OnEnd and ForceFlush (readers) against the final
	// drain in shutdown (writer).
	stopMu  sync.RWMutex
	stopped bool
}

// NewBatchSpanProcessor creates a processor exporting through exporter.
// Settings come from the defaults, then OTEL_BSP_* variables, then options.
func NewBatchSpanProcessor(exporter SpanExporter, opts ...BatchOption) *BatchSpanProcessor {
	o := batchOptions{
		clock: clockz.RealClock,
		name:  "batch",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewDefault().Logger
	}

	cfg, err := LoadBatchConfig()
	if err != nil {
		o.logger.Warn("invalid batch processor environment, using defaults", zap.Error(err))
	}
	for _, override := range o.overrides {
		override(&cfg)
	}
	if normalized := cfg.normalize(); normalized != cfg {
		o.logger.Warn("batch processor config corrected",
			zap.Int("max_queue_size", normalized.MaxQueueSize),
			zap.Int("max_export_batch_size", normalized.MaxExportBatchSize),
			zap.Duration("schedule_delay", normalized.ScheduleDelay),
			zap.Duration("export_timeout", normalized.ExportTimeout),
		)
		cfg = normalized
	}

	return &BatchSpanProcessor{
		exporter: exporter,
		queue:    newSpanQueue(cfg.MaxQueueSize),
		clock:    o.clock,
		logger:   o.logger.With(zap.String("processor", o.name)),
		metrics:  newProcessorMetrics(o.registerer, o.name, o.logger),
		flushCh:  make(chan struct{}, 1),
		config:   cfg,
	}
}

// Config returns the effective configuration.
func (p *BatchSpanProcessor) Config() BatchConfig {
	return p.config
}

// OnStart does nothing; batching only concerns ended spans.
func (*BatchSpanProcessor) OnStart(context.Context, Span) {}

// OnEnd enqueues sampled spans. Unsampled spans are discarded here.
// Reaching a multiple of the batch size or a full queue wakes the export loop.
func (p *BatchSpanProcessor) OnEnd(span FinishedSpan) {
	if !span.IsSampled() {
		return
	}
	p.stopMu.RLock()
	defer p.stopMu.RUnlock()
	if p.stopped {
		return
	}

	size, ok := p.queue.push(span)
	if !ok {
		p.metrics.droppedSpans.Inc()
		p.logger.Debug("batch queue full, dropping span",
			zap.String("trace_id", span.SpanContext.TraceID().String()),
			zap.String("span_id", span.SpanContext.SpanID().String()),
		)
		return
	}
	p.metrics.queueSize.Set(float64(size))

	if size%p.config.MaxExportBatchSize == 0 || size == p.config.MaxQueueSize {
		p.signal()
	}
}

// signal wakes Run without blocking; one pending wake-up is enough.
func (p *BatchSpanProcessor) signal() {
	select {
	case p.flushCh <- struct{}{}:
	default:
	}
}

// Run waits for the schedule delay, an eager signal or cancellation.
// On cancellation it flushes the queue and then always shuts the exporter down.
func (p *BatchSpanProcessor) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return errors.New("spanz: batch processor already running")
	}

	// In-flight exports are bounded by the export timeout, not by shutdown.
	exportCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return p.shutdown(exportCtx)
		case <-p.clock.After(p.config.ScheduleDelay):
		case <-p.flushCh:
		}
		p.exportReady(exportCtx)
	}
}

// exportReady exports the first batch unconditionally, then any further full
// batches concurrently. A partial remainder waits for the next wake-up.
func (p *BatchSpanProcessor) exportReady(ctx context.Context) {
	first := p.queue.take(p.config.MaxExportBatchSize, false)
	if first == nil {
		return
	}

	var g errgroup.Group
	for {
		batch := p.queue.take(p.config.MaxExportBatchSize, true)
		if batch == nil {
			break
		}
		g.Go(func() error {
			_ = p.exportBatch(ctx, batch)
			return nil
		})
	}
	_ = p.exportBatch(ctx, first)
	_ = g.Wait()

	p.metrics.queueSize.Set(float64(p.queue.len()))
}

// exportBatch exports one batch under the export timeout. Failures are logged
// and the batch is dropped.
func (p *BatchSpanProcessor) exportBatch(ctx context.Context, batch []FinishedSpan) error {
	err := exportWithTimeout(ctx, p.clock, p.config.ExportTimeout, p.exporter, batch)
	switch {
	case err == nil:
		p.metrics.exportedSpans.Add(float64(len(batch)))
	case errors.Is(err, ErrExportTimeout):
		p.metrics.exportFailures.WithLabelValues(reasonTimeout).Inc()
		p.logger.Warn("export timed out, dropping batch",
			zap.Int("batch_size", len(batch)),
			zap.Duration("timeout", p.config.ExportTimeout),
		)
	default:
		p.metrics.exportFailures.WithLabelValues(reasonError).Inc()
		p.logger.Error("export failed, dropping batch",
			zap.Int("batch_size", len(batch)),
			zap.Error(err),
		)
	}
	return err
}

// ForceFlush exports the entire queue in chunks of MaxExportBatchSize,
// concurrently, and returns the combined chunk errors.
func (p *BatchSpanProcessor) ForceFlush(ctx context.Context) error {
	p.stopMu.RLock()
	defer p.stopMu.RUnlock()
	if p.stopped {
		return ErrProcessorShutdown
	}
	return p.flush(ctx)
}

func (p *BatchSpanProcessor) flush(ctx context.Context) error {
	all := p.queue.drain()
	p.metrics.queueSize.Set(0)
	if len(all) == 0 {
		return nil
	}

	size := p.config.MaxExportBatchSize
	chunks := make([][]FinishedSpan, 0, (len(all)+size-1)/size)
	for start := 0; start < len(all); start += size {
		end := min(start+size, len(all))
		chunks = append(chunks, all[start:end])
	}

	errs := make([]error, len(chunks))
	var g errgroup.Group
	for i, chunk := range chunks {
		g.Go(func() error {
			errs[i] = p.exportBatch(ctx, chunk)
			return nil
		})
	}
	_ = g.Wait()

	return multierr.Combine(errs...)
}

// shutdown flushes what is queued and then shuts the exporter down even if
// the flush failed. Flush failures were already logged and are not returned.
func (p *BatchSpanProcessor) shutdown(ctx context.Context) error {
	// Waits for in-flight OnEnd and ForceFlush calls; none start afterwards.
	p.stopMu.Lock()
	p.stopped = true
	p.stopMu.Unlock()

	if err := p.flush(ctx); err != nil {
		p.logger.Warn("final flush incomplete", zap.Error(err))
	}

	if err := p.exporter.Shutdown(ctx); err != nil {
		p.logger.Error("exporter shutdown failed", zap.Error(err))
		return fmt.Errorf("exporter shutdown: %w", err)
	}
	return nil
}

// QueueLen returns the number of spans waiting for export.
func (p *BatchSpanProcessor) QueueLen() int {
	return p.queue.len()
}

// Dropped returns the number of spans dropped because the queue was full.
func (p *BatchSpanProcessor) Dropped() int64 {
	return p.queue.droppedCount()
}
