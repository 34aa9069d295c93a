package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DeliveryMetrics tracks outbound webhook deliveries and the outbox backlog.
type DeliveryMetrics struct {
	deliveries       *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	refusedURLs      prometheus.Counter
	outboxBacklog    prometheus.Gauge
}

var (
	deliveryMetricsOnce sync.Once
	deliveryMetrics     *DeliveryMetrics
)

func Delivery() *DeliveryMetrics {
	return DeliveryWithConfig(Config{})
}

func DeliveryWithConfig(cfg Config) *DeliveryMetrics {
	deliveryMetricsOnce.Do(func() {
		deliveryMetrics = newDeliveryMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return deliveryMetrics
}

func ResetDeliveryMetricsForTest() {
	deliveryMetricsOnce = sync.Once{}
	deliveryMetrics = nil
}

func newDeliveryMetrics(registerer prometheus.Registerer, cfg Config) *DeliveryMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	constLabels := prometheus.Labels{
		"service": cfg.serviceName(),
		"env":     cfg.environment(),
	}

	deliveries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "stageflow_webhook_deliveries_total",
			Help:        "Total finalized webhook delivery attempts.",
			ConstLabels: constLabels,
		},
		[]string{"status"}, // success | failed
	)

	deliveryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "stageflow_webhook_delivery_duration_seconds",
			Help:        "Wall time of outbound webhook requests.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)

	refusedURLs := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "stageflow_webhook_refused_urls_total",
			Help:        "Trigger requests refused by the egress guard.",
			ConstLabels: constLabels,
		},
	)

	outboxBacklog := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:        "stageflow_outbox_backlog_total",
			Help:        "Billing events awaiting relay broadcast.",
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(deliveries, deliveryDuration, refusedURLs, outboxBacklog)

	return &DeliveryMetrics{
		deliveries:       deliveries,
		deliveryDuration: deliveryDuration,
		refusedURLs:      refusedURLs,
		outboxBacklog:    outboxBacklog,
	}
}

func (m *DeliveryMetrics) ObserveDelivery(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(status).Inc()
	m.deliveryDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *DeliveryMetrics) ObserveRefusedURL() {
	if m == nil {
		return
	}
	m.refusedURLs.Inc()
}

func (m *DeliveryMetrics) SetOutboxBacklog(pending int) {
	if m == nil {
		return
	}
	m.outboxBacklog.Set(float64(pending))
}
