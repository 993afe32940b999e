package delivery

import (
	"net/http"

	"storefront/delivery/model"
)

// submitOTPHandler verifies the code. For new users the profile collected
// on the signup step is sent along with it.
func (h *HTTPEndpoint) submitOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitOTPRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.app.Session().SubmitOTP(r.Context(), req.Code, req.Profile); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionResponse(r))
}

func (h *HTTPEndpoint) resendOTPHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Session().ResendOTP(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
