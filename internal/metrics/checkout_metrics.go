package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics: метрики оформления, отмены и оплаты заказов.
type CheckoutMetrics struct {
	ordersPlaced    *prometheus.CounterVec
	ordersCancelled prometheus.Counter
	refundedMinor   prometheus.Counter

	paymentResults *prometheus.CounterVec
	stockConflicts prometheus.Counter
	lockConflicts  prometheus.Counter

	stepDuration *prometheus.HistogramVec
	stepFailures *prometheus.CounterVec

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	inFlight prometheus.Gauge
}

// NewCheckoutMetrics регистрирует метрики в DefaultRegisterer.
func NewCheckoutMetrics() *CheckoutMetrics {
	return NewCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCheckoutMetricsWithRegisterer регистрирует метрики в указанном registry (удобно в тестах).
func NewCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	return &CheckoutMetrics{
		ordersPlaced: registerCounterVec(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Total number of placed orders grouped by payment method",
		}, []string{"payment_method"}),
		ordersCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_cancelled_total",
			Help:      "Total number of cancelled orders",
		}),
		refundedMinor: registerCounter(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_refunded_minor_total",
			Help:      "Total amount credited to wallets by refunds, in minor units",
		}),
		paymentResults: registerCounterVec(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_results_total",
			Help:      "Payment outcomes grouped by result (verified, failed, retry, signature_invalid)",
		}, []string{"result"}),
		stockConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_conflicts_total",
			Help:      "Reservations rejected because of insufficient stock",
		}),
		lockConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_version_conflicts_total",
			Help:      "Optimistic locking conflicts on order writes",
		}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_step_duration_seconds",
			Help:      "Duration of checkout workflow steps in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"}),
		stepFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_step_failures_total",
			Help:      "Failed checkout workflow steps grouped by step and error kind",
		}, []string{"step", "kind"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeline_events_total",
			Help:      "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_total",
			Help:      "Total number of events enqueued to the outbox",
		}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "checkout_in_flight",
			Help:      "Number of checkout workflows currently running",
		}),
	}
}

// RecordOrderPlaced увеличивает счётчик оформленных заказов.
func (m *CheckoutMetrics) RecordOrderPlaced(paymentMethod string) {
	m.ordersPlaced.WithLabelValues(paymentMethod).Inc()
}

// RecordOrderCancelled учитывает отмену и сумму возврата в кошелёк.
func (m *CheckoutMetrics) RecordOrderCancelled(refundMinor int64) {
	m.ordersCancelled.Inc()
	if refundMinor > 0 {
		m.refundedMinor.Add(float64(refundMinor))
	}
}

// RecordRefund учитывает ручное зачисление в кошелёк.
func (m *CheckoutMetrics) RecordRefund(amountMinor int64) {
	if amountMinor > 0 {
		m.refundedMinor.Add(float64(amountMinor))
	}
}

// RecordPaymentResult увеличивает счётчик исходов оплаты.
func (m *CheckoutMetrics) RecordPaymentResult(result string) {
	m.paymentResults.WithLabelValues(result).Inc()
}

// RecordStockConflict учитывает отказ резервирования из-за остатков.
func (m *CheckoutMetrics) RecordStockConflict() {
	m.stockConflicts.Inc()
}

// RecordVersionConflict учитывает конфликт optimistic locking.
func (m *CheckoutMetrics) RecordVersionConflict() {
	m.lockConflicts.Inc()
}

// RecordStepDuration записывает время выполнения шага.
func (m *CheckoutMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordStepFailure учитывает неуспешный шаг.
func (m *CheckoutMetrics) RecordStepFailure(step, kind string) {
	m.stepFailures.WithLabelValues(step, kind).Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *CheckoutMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *CheckoutMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// InFlightStarted увеличивает число выполняющихся сценариев.
func (m *CheckoutMetrics) InFlightStarted() {
	m.inFlight.Inc()
}

// InFlightFinished уменьшает число выполняющихся сценариев.
func (m *CheckoutMetrics) InFlightFinished() {
	m.inFlight.Dec()
}
