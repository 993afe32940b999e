// Package metrics provides Prometheus metrics for storefront.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionEventsTotal counts session events by kind.
	SessionEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Total number of session events",
		},
		[]string{"kind"},
	)

	// SessionAuthenticated is 1 while the session is authenticated.
	SessionAuthenticated = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "storefront",
			Subsystem: "session",
			Name:      "authenticated",
			Help:      "Session authentication status (1 = authenticated, 0 = not)",
		},
	)

	// CartEventsTotal counts cart mutations by kind.
	CartEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "cart",
			Name:      "events_total",
			Help:      "Total number of cart events",
		},
		[]string{"kind"},
	)

	// CartItems tracks the total quantity in the cart.
	CartItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "storefront",
			Subsystem: "cart",
			Name:      "items",
			Help:      "Total quantity of items in the cart",
		},
	)

	// CheckoutEventsTotal counts checkout steps by kind.
	CheckoutEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "checkout",
			Name:      "events_total",
			Help:      "Total number of checkout events",
		},
		[]string{"kind"},
	)

	// ErrorsTotal counts failures by component and error kind.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "errors_total",
			Help:      "Total number of errors",
		},
		[]string{"component", "kind"},
	)

	// HTTPRequestDuration measures local API latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of local API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "status"},
	)
)

// RecordSessionEvent records a session event.
func RecordSessionEvent(kind string, authenticated bool) {
	SessionEventsTotal.WithLabelValues(kind).Inc()
	if authenticated {
		SessionAuthenticated.Set(1)
	} else {
		SessionAuthenticated.Set(0)
	}
}

// RecordCartEvent records a cart event and the resulting item count.
func RecordCartEvent(kind string, items int) {
	CartEventsTotal.WithLabelValues(kind).Inc()
	CartItems.Set(float64(items))
}

// RecordCheckoutEvent records a checkout event.
func RecordCheckoutEvent(kind string) {
	CheckoutEventsTotal.WithLabelValues(kind).Inc()
}

// RecordError records an error.
func RecordError(component, kind string) {
	ErrorsTotal.WithLabelValues(component, kind).Inc()
}

// RecordRequest records a served API request.
func RecordRequest(route, status string, seconds float64) {
	HTTPRequestDuration.WithLabelValues(route, status).Observe(seconds)
}
