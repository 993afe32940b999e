package app

import (
	"storefront/apperr"
	"storefront/checkout"
	"storefront/metrics"
	"storefront/session"
)

// startObservers feeds session, cart and checkout events into metrics and
// the log. Each goroutine ends when its hub is closed.
func (a *App) startObservers() {
	sessionEvents, _ := a.session.Subscribe()
	cartEvents, _ := a.cart.Subscribe()
	checkoutEvents, _ := a.checkout.Subscribe()

	a.observers.Add(3)

	go func() {
		defer a.observers.Done()
		for ev := range sessionEvents {
			metrics.RecordSessionEvent(string(ev.Kind), ev.Phase == session.PhaseAuthenticated)
			if ev.Kind == session.EventLoggedOut && ev.Reason != "" {
				a.logger.Warn("session ended", "reason", ev.Reason)
			}
		}
	}()

	go func() {
		defer a.observers.Done()
		for ev := range cartEvents {
			metrics.RecordCartEvent(string(ev.Kind), ev.ItemCount)
		}
	}()

	go func() {
		defer a.observers.Done()
		for ev := range checkoutEvents {
			metrics.RecordCheckoutEvent(string(ev.Kind))
			if ev.Kind == checkout.EventFailed {
				metrics.RecordError("checkout", string(apperr.KindOf(ev.Err)))
			}
		}
	}()
}
