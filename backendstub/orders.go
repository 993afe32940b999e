package backendstub

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"storefront/checkout"
)

var validate = validator.New()

type paymentRequest struct {
	TransactionID string `json:"transaction_id"`
}

func (s *Server) listAddressesHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(r)
	if !ok {
		writeTokenNotValid(w)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Addresses++

	addresses := append([]checkout.Address{}, s.addresses[u.info.ID]...)
	writeJSON(w, http.StatusOK, addresses)
}

func (s *Server) addAddressHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(r)
	if !ok {
		writeTokenNotValid(w)
		return
	}

	var form checkout.AddressForm
	if err := decodeBody(r, &form); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"non_field_errors": {"Invalid data."},
		})
		return
	}
	if errs := fieldErrors(form); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusCreated, s.addAddressLocked(u.info.ID, form))
}

// fieldErrors renders validation failures the way serializer errors look:
// one list of messages per field, keyed by the JSON name.
func fieldErrors(form checkout.AddressForm) map[string][]string {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	out := make(map[string][]string)
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		out["non_field_errors"] = []string{err.Error()}
		return out
	}
	for _, fe := range validationErrors {
		name := jsonFieldNames[fe.Field()]
		if name == "" {
			name = fe.Field()
		}
		out[name] = append(out[name], "This field may not be blank.")
	}
	return out
}

var jsonFieldNames = map[string]string{
	"Country":    "country",
	"State":      "state",
	"City":       "city",
	"Street":     "street",
	"PostalCode": "postal_code",
}

func (s *Server) listOrdersHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(r)
	if !ok {
		writeTokenNotValid(w)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	orders := make([]checkout.OrderSummary, 0, len(s.orders[u.info.ID]))
	for _, o := range s.orders[u.info.ID] {
		orders = append(orders, o.summary)
	}
	writeJSON(w, http.StatusOK, orders)
}

// submitOrderHandler creates an order and its pending transaction. A repeated
// Idempotency-Key returns the first result without creating another order.
func (s *Server) submitOrderHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(r)
	if !ok {
		writeTokenNotValid(w)
		return
	}

	var req checkout.OrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid order")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Orders++

	key := r.Header.Get("Idempotency-Key")
	if result, ok := s.idempotent[key]; ok && key != "" {
		s.logger.Info("order replayed", "transaction_id", result.TransactionID)
		writeJSON(w, http.StatusOK, result)
		return
	}

	if len(req.Items) == 0 {
		writeJSONError(w, http.StatusBadRequest, "Cart is empty")
		return
	}
	if req.ShippingAddress == 0 {
		writeJSONError(w, http.StatusBadRequest, "Shipping address is required")
		return
	}
	if !s.ownsAddressLocked(u.info.ID, req.ShippingAddress) {
		writeJSONError(w, http.StatusBadRequest, "Invalid shipping address")
		return
	}

	o, err := s.createOrderLocked(u.info.ID, req)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := checkout.OrderResult{TransactionID: o.transactionID, Status: "pending"}
	if key != "" {
		s.idempotent[key] = result
	}
	s.logger.Info("order created", "order_id", o.summary.ID, "transaction_id", o.transactionID)
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) ownsAddressLocked(userID, addressID int) bool {
	for _, a := range s.addresses[userID] {
		if a.ID == addressID {
			return true
		}
	}
	return false
}

func (s *Server) createOrderLocked(userID int, req checkout.OrderRequest) (*order, error) {
	s.nextOrderID++
	summary := checkout.OrderSummary{ID: s.nextOrderID}

	var total int64
	for _, item := range req.Items {
		variant, err := strconv.Atoi(string(item.ID))
		if err != nil {
			return nil, fmt.Errorf("invalid product variant %q", item.ID)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("invalid quantity for product variant %q", item.ID)
		}

		price, ok := s.prices[variant]
		if !ok {
			price = DefaultPrice
		}
		s.nextItemID++
		summary.Items = append(summary.Items, checkout.OrderSummaryItem{
			ID:             s.nextItemID,
			ProductVariant: variant,
			Quantity:       item.Quantity,
			Price:          price,
		})
		total += price * int64(item.Quantity)
	}
	summary.TotalPrice = &total

	o := &order{
		userID:        userID,
		transactionID: fmt.Sprintf("A%035d", s.nextOrderID),
		summary:       summary,
	}
	s.orders[userID] = append(s.orders[userID], o)
	s.transactions[o.transactionID] = o
	return o, nil
}

// paymentHandler returns the gateway authority of a pending transaction.
func (s *Server) paymentHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(r)
	if !ok {
		writeTokenNotValid(w)
		return
	}

	var req paymentRequest
	if err := decodeBody(r, &req); err != nil || req.TransactionID == "" {
		writeJSONError(w, http.StatusBadRequest, "transaction_id is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Payments++

	o, ok := s.transactions[req.TransactionID]
	if !ok || o.userID != u.info.ID {
		writeJSONError(w, http.StatusNotFound, "Order not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"payment_url": o.transactionID})
}
