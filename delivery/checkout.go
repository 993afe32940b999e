package delivery

import (
	"net/http"

	"storefront/checkout"
	"storefront/delivery/model"
)

func (h *HTTPEndpoint) checkoutResponse() model.CheckoutResponse {
	o := h.app.Checkout()
	return model.CheckoutResponse{
		Step:            o.Step(),
		Addresses:       o.Addresses(),
		SelectedAddress: o.SelectedAddress(),
		Invoice:         o.Invoice(),
	}
}

func (h *HTTPEndpoint) checkoutStateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.checkoutResponse())
}

// addressesHandler reloads the address list from the backend.
func (h *HTTPEndpoint) addressesHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := h.app.Checkout().LoadAddresses(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.checkoutResponse())
}

func (h *HTTPEndpoint) addAddressHandler(w http.ResponseWriter, r *http.Request) {
	var form checkout.AddressForm
	if !decodeBody(w, r, &form) {
		return
	}

	created, err := h.app.Checkout().AddAddress(r.Context(), form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *HTTPEndpoint) selectAddressHandler(w http.ResponseWriter, r *http.Request) {
	var req model.SelectAddressRequest
	if !decodeBody(w, r, &req) {
		return
	}

	h.app.Checkout().SelectAddress(req.AddressID)
	writeJSON(w, http.StatusOK, h.checkoutResponse())
}

func (h *HTTPEndpoint) submitOrderHandler(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.app.Checkout().SubmitOrder(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, invoice)
}

// paymentHandler returns the gateway redirect for the current invoice.
func (h *HTTPEndpoint) paymentHandler(w http.ResponseWriter, r *http.Request) {
	o := h.app.Checkout()
	url, err := o.RequestPaymentURL(r.Context(), o.Invoice())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.PaymentResponse{PaymentURL: url})
}

func (h *HTTPEndpoint) resetCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	h.app.Checkout().Reset()
	writeJSON(w, http.StatusOK, h.checkoutResponse())
}
