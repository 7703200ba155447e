// Package metrics declares the prometheus instruments for the bot. They are
// registered once in main and injected into the services that move them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ekoamulet"

type Metrics struct {
	PaymentsCreated  prometheus.Counter
	PaymentsFailed   prometheus.Counter
	OrdersCreated    prometheus.Counter
	OrdersPaid       prometheus.Counter
	OrdersCanceled   prometheus.Counter
	OutOfStock       prometheus.Counter
	RetriesExhausted prometheus.Counter
	WebhookEvents    *prometheus.CounterVec
	WebhookDuration  prometheus.Histogram
	StockLevel       prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PaymentsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_created_total",
			Help:      "Payments successfully created at the provider.",
		}),
		PaymentsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_failed_total",
			Help:      "Payment creation attempts rejected by the provider.",
		}),
		OrdersCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders saved to the store and awaiting payment.",
		}),
		OrdersPaid: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_paid_total",
			Help:      "Orders confirmed paid via webhook reconciliation.",
		}),
		OrdersCanceled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_canceled_total",
			Help:      "Orders whose payment was canceled.",
		}),
		OutOfStock: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "out_of_stock_total",
			Help:      "Checkouts rejected because the stock counter was at zero.",
		}),
		RetriesExhausted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_exhausted_total",
			Help:      "Retried operations that failed all attempts.",
		}),
		WebhookEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Webhook deliveries by reconciliation outcome.",
		}, []string{"result"}),
		WebhookDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_duration_seconds",
			Help:      "Webhook handling latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		StockLevel: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stock_level",
			Help:      "Current stock counter for the tracked product.",
		}),
	}
}
