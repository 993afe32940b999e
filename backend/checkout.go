package backend

import (
	"context"
	"net/http"

	"storefront/checkout"
)

var _ checkout.Backend = (*Client)(nil)

type paymentRequest struct {
	TransactionID string `json:"transaction_id"`
}

type paymentResponse struct {
	PaymentURL string `json:"payment_url"`
}

// ListAddresses returns the saved addresses.
func (c *Client) ListAddresses(ctx context.Context, access string) ([]checkout.Address, error) {
	var addresses []checkout.Address
	err := c.do(ctx, request{
		op:     "list addresses",
		method: http.MethodGet,
		path:   "account/user-addresses/",
		access: access,
	}, &addresses)
	if addresses == nil && err == nil {
		addresses = []checkout.Address{}
	}
	return addresses, err
}

// CreateAddress saves a new address.
func (c *Client) CreateAddress(ctx context.Context, access string, form checkout.AddressForm) (checkout.Address, error) {
	var created checkout.Address
	err := c.do(ctx, request{
		op:     "create address",
		method: http.MethodPost,
		path:   "account/add-address/",
		access: access,
		body:   form,
	}, &created)
	return created, err
}

// SubmitOrder creates an order. The idempotency key lets the backend
// recognize a retry of the same submission.
func (c *Client) SubmitOrder(ctx context.Context, access string, req checkout.OrderRequest, idempotencyKey string) (checkout.OrderResult, error) {
	var result checkout.OrderResult
	err := c.do(ctx, request{
		op:             "submit order",
		method:         http.MethodPost,
		path:           "order_check_add/",
		access:         access,
		idempotencyKey: idempotencyKey,
		body:           req,
	}, &result)
	return result, err
}

// RequestPayment returns the gateway authority (or full URL) for a transaction.
func (c *Client) RequestPayment(ctx context.Context, access, transactionID string) (string, error) {
	var resp paymentResponse
	err := c.do(ctx, request{
		op:     "request payment",
		method: http.MethodPost,
		path:   "payment/",
		access: access,
		body:   paymentRequest{TransactionID: transactionID},
	}, &resp)
	return resp.PaymentURL, err
}

// ListOrders returns the order history.
func (c *Client) ListOrders(ctx context.Context, access string) ([]checkout.OrderSummary, error) {
	var orders []checkout.OrderSummary
	err := c.do(ctx, request{
		op:     "list orders",
		method: http.MethodGet,
		path:   "order/",
		access: access,
	}, &orders)
	if orders == nil && err == nil {
		orders = []checkout.OrderSummary{}
	}
	return orders, err
}
