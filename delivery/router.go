package delivery

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the local storefront API over deps.
func NewRouter(deps AppDependencies) http.Handler {
	r := chi.NewRouter()

	h := &HTTPEndpoint{
		app: deps,
	}

	// --- Global Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	// --- Operational Routes ---
	r.Get("/healthz", h.healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	// --- Session Routes ---
	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.sessionHandler)
		r.Post("/phone", h.submitPhoneHandler)
		r.Post("/password", h.submitPasswordHandler)
		r.Post("/otp", h.submitOTPHandler)
		r.Post("/otp/resend", h.resendOTPHandler)
		r.Post("/cancel", h.cancelLoginHandler)
		r.Post("/logout", h.logoutHandler)
	})
	r.Post("/welcome/seen", h.welcomeSeenHandler)

	// --- Cart Routes ---
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.cartHandler)
		r.Post("/items", h.addItemHandler)
		r.Delete("/items/{productID}", h.removeItemHandler)
		r.Delete("/", h.clearCartHandler)
	})

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(deps.SessionMiddleware)
		r.Get("/account/profile", h.profileHandler)

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", h.checkoutStateHandler)
			r.Get("/addresses", h.addressesHandler)
			r.Post("/addresses", h.addAddressHandler)
			r.Put("/address", h.selectAddressHandler)
			r.Post("/order", h.submitOrderHandler)
			r.Post("/payment", h.paymentHandler)
			r.Post("/reset", h.resetCheckoutHandler)
		})
	})

	return r
}
