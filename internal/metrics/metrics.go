package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PaymentsConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "solarhub",
		Name:      "payments_confirmed_total",
		Help:      "Payments confirmed, by kind (order, pre_order_deposit, pre_order_full).",
	}, []string{"kind"})

	PaymentsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "solarhub",
		Name:      "payments_failed_total",
		Help:      "Payment verifications or confirmations that failed, by kind.",
	}, []string{"kind"})

	WebhookRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "solarhub",
		Name:      "webhook_rejected_total",
		Help:      "Webhook deliveries rejected before processing, by reason.",
	}, []string{"reason"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "solarhub",
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by route pattern and status class.",
	}, []string{"route", "status"})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler { return promhttp.Handler() }
