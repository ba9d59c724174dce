package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentInitiationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "course_payment_initiations_total",
		Help: "Payment initiation attempts by outcome",
	}, []string{
		"outcome", // success, already_paid, gateway_error, gateway_timeout, rejected
	})

	paymentTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "course_payment_transitions_total",
		Help: "Payment status transitions written to the store",
	}, []string{
		"from",
		"to",
		"trigger", // verify, webhook, refund, admin
	})

	paymentRevenueTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "course_payment_revenue_total",
		Help: "Sum of completed payment amounts in major currency units",
	}, []string{"currency"})

	amountMismatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "course_payment_amount_mismatches_total",
		Help: "Verifications where the gateway amount differed from the stored amount",
	})

	enrollmentFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "course_payment_enrollment_failures_total",
		Help: "Completed payments whose enrollment could not be created",
	})

	refundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "course_payment_refunds_total",
		Help: "Refund requests by outcome",
	}, []string{"outcome"})

	webhooksReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "course_payment_webhooks_received_total",
		Help: "Gateway webhook and callback deliveries by outcome",
	}, []string{
		"source",  // webhook, callback
		"outcome", // processed, rejected, error
	})

	gatewayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_gateway_requests_total",
		Help: "Outbound payment gateway requests",
	}, []string{
		"operation", // create, verify, refund
		"outcome",   // success, error, timeout, circuit_open
	})

	gatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_request_duration_seconds",
		Help:    "Latency of outbound payment gateway requests including retries",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"operation"})

	gatewayCircuitState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "payment_gateway_circuit_state",
		Help: "Gateway circuit breaker state (0=closed, 1=open, 2=half-open)",
	})

	eventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "course_payment_events_published_total",
		Help: "Payment lifecycle events handed to the broker",
	}, []string{"type", "outcome"})
)

// RecordInitiation counts one initiation attempt
func RecordInitiation(outcome string) {
	paymentInitiationsTotal.WithLabelValues(outcome).Inc()
}

// RecordTransition counts one persisted status change
func RecordTransition(from, to, trigger string) {
	paymentTransitionsTotal.WithLabelValues(from, to, trigger).Inc()
}

// RecordRevenue adds a completed payment amount
func RecordRevenue(currency string, amount float64) {
	paymentRevenueTotal.WithLabelValues(currency).Add(amount)
}

// RecordAmountMismatch counts a verification amount mismatch
func RecordAmountMismatch() {
	amountMismatchesTotal.Inc()
}

// RecordEnrollmentFailure counts a completed payment left without enrollment
func RecordEnrollmentFailure() {
	enrollmentFailuresTotal.Inc()
}

// RecordRefund counts a refund request
func RecordRefund(outcome string) {
	refundsTotal.WithLabelValues(outcome).Inc()
}

// RecordWebhook counts an inbound gateway delivery
func RecordWebhook(source, outcome string) {
	webhooksReceivedTotal.WithLabelValues(source, outcome).Inc()
}

// RecordGatewayRequest counts an outbound gateway call and its latency
func RecordGatewayRequest(operation, outcome string, seconds float64) {
	gatewayRequestsTotal.WithLabelValues(operation, outcome).Inc()
	gatewayRequestDuration.WithLabelValues(operation).Observe(seconds)
}

// SetGatewayCircuitState publishes the breaker state
func SetGatewayCircuitState(state int) {
	gatewayCircuitState.Set(float64(state))
}

// RecordEventPublished counts a broker publish attempt
func RecordEventPublished(eventType, outcome string) {
	eventsPublishedTotal.WithLabelValues(eventType, outcome).Inc()
}
