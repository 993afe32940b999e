package delivery

import (
	"log/slog"
	"net/http"
)

func (h *HTTPEndpoint) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Session().Logout(r.Context()); err != nil {
		// The session is already cleared in memory; only the persisted copy failed.
		slog.Warn("logout did not clear persisted tokens", "error", err)
	}
	writeJSON(w, http.StatusOK, h.sessionResponse(r))
}

// cancelLoginHandler abandons an unfinished login and discards any response
// still in flight for it.
func (h *HTTPEndpoint) cancelLoginHandler(w http.ResponseWriter, r *http.Request) {
	h.app.Session().CancelLogin()
	writeJSON(w, http.StatusOK, h.sessionResponse(r))
}

func (h *HTTPEndpoint) welcomeSeenHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.app.MarkWelcomeSeen(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
