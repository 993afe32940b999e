package delivery

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront/cart"
	"storefront/delivery/model"
)

func (h *HTTPEndpoint) cartResponse() model.CartResponse {
	c := h.app.Cart()
	return model.CartResponse{Items: c.Lines(), ItemCount: c.ItemCount()}
}

func (h *HTTPEndpoint) cartHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cartResponse())
}

func (h *HTTPEndpoint) addItemHandler(w http.ResponseWriter, r *http.Request) {
	var req model.AddItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.app.Cart().Add(r.Context(), req.ProductID, req.Product); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartResponse())
}

// removeItemHandler takes one unit of the product out of the cart.
func (h *HTTPEndpoint) removeItemHandler(w http.ResponseWriter, r *http.Request) {
	id := cart.ProductID(chi.URLParam(r, "productID"))
	if err := h.app.Cart().Remove(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartResponse())
}

func (h *HTTPEndpoint) clearCartHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Cart().Clear(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartResponse())
}
