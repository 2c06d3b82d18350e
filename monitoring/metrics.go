// Package monitoring 提供服务指标与模型文件监控
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prediction outcomes used as the "outcome" label.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Metrics 指标收集器. A nil *Metrics is valid and records nothing.
type Metrics struct {
	predictions      *prometheus.CounterVec
	latency          prometheus.Histogram
	predictedSales   prometheus.Histogram
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	alignmentSkipped prometheus.Counter
	modelFileEvents  *prometheus.CounterVec
	modelFeatures    prometheus.Gauge
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewMetrics registers the service metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mart_predictions_total",
			Help: "Prediction requests by outcome.",
		}, []string{"outcome"}),
		latency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mart_prediction_duration_seconds",
			Help:    "Time spent transforming and scoring one request.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		predictedSales: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mart_predicted_sales_usd",
			Help:    "Distribution of predicted item outlet sales.",
			Buckets: []float64{250, 500, 1000, 2000, 3000, 4000, 6000, 8000, 12000},
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "mart_prediction_cache_hits_total",
			Help: "Predictions served from the cache.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "mart_prediction_cache_misses_total",
			Help: "Predictions computed by the model.",
		}),
		alignmentSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "mart_feature_alignment_skipped_total",
			Help: "Feature rows passed to the model without column alignment.",
		}),
		modelFileEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mart_model_file_events_total",
			Help: "Filesystem events seen on the model artifact after startup.",
		}, []string{"op"}),
		modelFeatures: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mart_model_features",
			Help: "Number of feature columns the loaded model expects.",
		}),
	}
}

// ObservePrediction 记录一次预测
func (m *Metrics) ObservePrediction(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(outcome).Inc()
	m.latency.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveSales(value float64) {
	if m == nil {
		return
	}
	m.predictedSales.Observe(value)
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) AlignmentSkipped() {
	if m == nil {
		return
	}
	m.alignmentSkipped.Inc()
}

func (m *Metrics) ModelFileEvent(op string) {
	if m == nil {
		return
	}
	m.modelFileEvents.WithLabelValues(op).Inc()
}

func (m *Metrics) SetModelFeatures(n int) {
	if m == nil {
		return
	}
	m.modelFeatures.Set(float64(n))
}
