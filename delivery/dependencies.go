package delivery

import (
	"context"
	"net/http"

	"storefront/cart"
	"storefront/checkout"
	"storefront/session"
)

// AppDependencies defines the contract that the delivery layer (HTTP handlers)
// expects from the core application layer.
type AppDependencies interface {
	Session() *session.Manager
	Cart() *cart.Store
	Checkout() *checkout.Orchestrator

	// WelcomeSeen and MarkWelcomeSeen back the first-run banner.
	WelcomeSeen(ctx context.Context) bool
	MarkWelcomeSeen(ctx context.Context) error

	// SessionMiddleware provides the middleware to protect routes.
	SessionMiddleware(next http.Handler) http.Handler

	GetSessionFromContext(ctx context.Context) (session.State, bool)
}
