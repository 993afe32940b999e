package delivery

import (
	"log/slog"
	"net/http"
)

// profileHandler serves the account page: user info, addresses and orders.
func (h *HTTPEndpoint) profileHandler(w http.ResponseWriter, r *http.Request) {
	state, ok := h.app.GetSessionFromContext(r.Context())
	if !ok {
		// Only reachable if the route is mounted without SessionMiddleware.
		slog.Error("profile requested without session in context")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "session not found in context"})
		return
	}

	profile, err := h.app.Checkout().Profile(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Debug("profile served", "phone_number", state.PhoneNumber, "orders", len(profile.Orders))
	writeJSON(w, http.StatusOK, profile)
}
