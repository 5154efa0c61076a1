package spanz

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Failure reasons reported on spanz_export_failures_total.
const (
	reasonError   = "error"
	reasonTimeout = "timeout"
)

// processorMetrics holds the Prometheus collectors of a BatchSpanProcessor.
type processorMetrics struct {
	queueSize      prometheus.Gauge
	exportedSpans  prometheus.Counter
	droppedSpans   prometheus.Counter
	exportFailures *prometheus.CounterVec
}

// newProcessorMetrics creates collectors and registers them on reg. A nil reg
// leaves them unregistered. Processors sharing a registerer and a name share
// their collectors instead of failing registration; give each processor a
// distinct WithProcessorName to keep their series apart.
func newProcessorMetrics(reg prometheus.Registerer, name string, logger *zap.Logger) *processorMetrics {
	factory := promauto.With(nil)
	labels := prometheus.Labels{"processor": name}

	m := &processorMetrics{
		queueSize: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "spanz_batch_queue_spans",
			Help:        "Number of finished spans waiting in the batch queue",
			ConstLabels: labels,
		}),
		exportedSpans: factory.NewCounter(prometheus.CounterOpts{
			Name:        "spanz_exported_spans_total",
			Help:        "Total number of spans handed to the exporter successfully",
			ConstLabels: labels,
		}),
		droppedSpans: factory.NewCounter(prometheus.CounterOpts{
			Name:        "spanz_dropped_spans_total",
			Help:        "Total number of spans dropped because the queue was full",
			ConstLabels: labels,
		}),
		exportFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "spanz_export_failures_total",
			Help:        "Total number of failed export attempts by reason",
			ConstLabels: labels,
		}, []string{"reason"}),
	}
	if reg == nil {
		return m
	}

	m.queueSize = register(reg, m.queueSize, logger)
	m.exportedSpans = register(reg, m.exportedSpans, logger)
	m.droppedSpans = register(reg, m.droppedSpans, logger)
	m.exportFailures = register(reg, m.exportFailures, logger)
	return m
}

// register adds c to reg. If an equal collector is already registered it is
// returned instead; other failures leave c working but unregistered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C, logger *zap.Logger) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing
		}
	}
	logger.Warn("processor metric not registered", zap.Error(err))
	return c
}
