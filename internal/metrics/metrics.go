package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry owns the collectors served at /metrics.
type Registry struct {
	reg *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	OrdersPlaced    *prometheus.CounterVec
	OrdersCancelled prometheus.Counter
	Payments        *prometheus.CounterVec
	MailFailures    prometheus.Counter
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "orders_placed_total",
			Help:      "Orders committed, by payment method.",
		}, []string{"payment_method"}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "orders_cancelled_total",
			Help:      "Orders cancelled by shoppers or admins.",
		}),
		Payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "payments_total",
			Help:      "Payment outcomes by source (verify, webhook) and result.",
		}, []string{"source", "result"}),
		MailFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "mail_failures_total",
			Help:      "Outbound emails that could not be sent.",
		}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.RequestsTotal,
		r.RequestDuration,
		r.OrdersPlaced,
		r.OrdersCancelled,
		r.Payments,
		r.MailFailures,
	)
	return r
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
