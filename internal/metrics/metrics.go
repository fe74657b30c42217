package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts order lifecycle transitions and notification delivery
// outcomes. Delivery results: "realtime", "push", "stored".
type Metrics struct {
	OrdersCreated       prometheus.Counter
	OrdersCanceled      prometheus.Counter
	OrdersAutoConfirmed prometheus.Counter
	StatusUpdates       prometheus.Counter
	Notifications       *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "orders_created_total",
			Help:      "Total number of orders created.",
		}),
		OrdersCanceled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "orders_canceled_total",
			Help:      "Total number of orders canceled by users.",
		}),
		OrdersAutoConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "orders_auto_confirmed_total",
			Help:      "Total number of orders promoted to confirmed by the sweeper.",
		}),
		StatusUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "order_status_updates_total",
			Help:      "Total number of admin status updates.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "notifications_total",
			Help:      "Total notifications by delivery result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.OrdersCreated, m.OrdersCanceled, m.OrdersAutoConfirmed,
		m.StatusUpdates, m.Notifications)
	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}
