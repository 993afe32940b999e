package delivery

import (
	"net/http"

	"storefront/delivery/model"
)

func (h *HTTPEndpoint) sessionResponse(r *http.Request) model.SessionResponse {
	state := h.app.Session().State()
	return model.SessionResponse{
		Phase:       state.Phase,
		PhoneNumber: state.PhoneNumber,
		WelcomeSeen: h.app.WelcomeSeen(r.Context()),
	}
}

func (h *HTTPEndpoint) sessionHandler(w http.ResponseWriter, r *http.Request) {
	sess := h.app.Session()
	if state := sess.State(); state.Authenticated() && state.PhoneNumber == "" {
		// A restored session has no phone number until the backend is asked.
		if _, err := sess.EnsureFresh(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, h.sessionResponse(r))
}

// submitPhoneHandler starts a login. The response phase tells the client
// whether to ask for a password or a code.
func (h *HTTPEndpoint) submitPhoneHandler(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitPhoneRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if _, err := h.app.Session().SubmitPhoneNumber(r.Context(), req.PhoneNumber); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionResponse(r))
}

func (h *HTTPEndpoint) submitPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.app.Session().SubmitPassword(r.Context(), req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionResponse(r))
}
