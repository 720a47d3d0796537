// Package metrics регистрирует метрики Prometheus магазина.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — счётчики и гистограммы покупок и синхронизации рангов.
type Metrics struct {
	purchases        *prometheus.CounterVec
	purchaseDuration *prometheus.HistogramVec
	syncDeliveries   *prometheus.CounterVec
}

// New создаёт метрики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rankshop",
			Name:      "purchases_total",
			Help:      "Purchase attempts by kind and outcome.",
		}, []string{"kind", "outcome"}),
		purchaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rankshop",
			Name:      "purchase_duration_seconds",
			Help:      "Time spent processing a purchase.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		syncDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rankshop",
			Name:      "ranksync_deliveries_total",
			Help:      "Rank sync webhook deliveries by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.purchases, m.purchaseDuration, m.syncDeliveries)
	return m
}

// ObservePurchase фиксирует исход одной покупки.
func (m *Metrics) ObservePurchase(kind, outcome string, elapsed time.Duration) {
	m.purchases.WithLabelValues(kind, outcome).Inc()
	m.purchaseDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveDelivery фиксирует результат доставки вебхука.
func (m *Metrics) ObserveDelivery(result string) {
	m.syncDeliveries.WithLabelValues(result).Inc()
}
