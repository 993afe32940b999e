package app

import (
	"context"
	"encoding/json"
	"net/http"

	"storefront/delivery/model"
	"storefront/session"
)

// A private type for the context key to prevent collisions.
type contextKey string

// sessionContextKey is the key used to store the session state in the request context.
const sessionContextKey contextKey = "session"

// SessionMiddleware lets a request through only while the session is
// authenticated. The token-free session state is added to the request
// context for downstream handlers.
func (a *App) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := a.session.State()
		if !state.Authenticated() {
			a.logger.Debug("rejected unauthenticated request", "path", r.URL.Path, "phase", state.Phase)
			writeJSONError(w, http.StatusUnauthorized, model.ErrorDetail{
				Code:      "UNAUTHORIZED",
				Message:   "Session Expired",
				ErrorType: "AUTH_ERROR",
			})
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, state)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionFromContext retrieves the session state stored by SessionMiddleware.
func (a *App) GetSessionFromContext(ctx context.Context) (session.State, bool) {
	state, ok := ctx.Value(sessionContextKey).(session.State)
	return state, ok
}

func writeJSONError(w http.ResponseWriter, status int, detail model.ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.ErrorResponse{Error: detail})
}
