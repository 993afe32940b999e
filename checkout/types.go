package checkout

import (
	"context"
	"time"

	"storefront/cart"
	"storefront/session"
)

// Address is a shipping address owned by the account service.
type Address struct {
	ID         int    `json:"id"`
	Country    string `json:"country"`
	State      string `json:"state"`
	City       string `json:"city"`
	Street     string `json:"street"`
	PostalCode string `json:"postal_code"`
	IsDefault  bool   `json:"is_default"`
}

// AddressForm is a new address. Every field except IsDefault is required.
type AddressForm struct {
	Country    string `json:"country" validate:"required"`
	State      string `json:"state" validate:"required"`
	City       string `json:"city" validate:"required"`
	Street     string `json:"street" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	IsDefault  bool   `json:"is_default"`
}

// OrderItem is one product and quantity in an order request.
type OrderItem struct {
	ID       cart.ProductID `json:"id"`
	Quantity int            `json:"quantity"`
}

// OrderRequest is the body of the order endpoint.
type OrderRequest struct {
	Items           []OrderItem `json:"items"`
	ShippingAddress int         `json:"shipping_address"`
}

// OrderResult is what the order endpoint returns.
type OrderResult struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status,omitempty"`
}

// Invoice identifies one checkout attempt. It is never mutated; a new
// attempt replaces it.
type Invoice struct {
	TransactionID     string      `json:"transaction_id"`
	LineItems         []OrderItem `json:"line_items"`
	ShippingAddressID int         `json:"shipping_address_id"`
	Status            string      `json:"status"`
	CreatedAt         time.Time   `json:"created_at"`
}

// OrderSummary is an entry of the order history.
type OrderSummary struct {
	ID         int                `json:"id"`
	TotalPrice *int64             `json:"total_price"`
	Items      []OrderSummaryItem `json:"items"`
	Completed  bool               `json:"completed_at"`
}

// OrderSummaryItem is a line of a past order.
type OrderSummaryItem struct {
	ID             int   `json:"id"`
	ProductVariant int   `json:"product_variant"`
	Quantity       int   `json:"quantity"`
	Price          int64 `json:"price"`
}

// Profile is the account page: who the user is, where they ship and what
// they ordered.
type Profile struct {
	User      session.UserInfo `json:"user"`
	Addresses []Address        `json:"addresses"`
	Orders    []OrderSummary   `json:"orders"`
}

// Step is the checkout page the user is on.
type Step string

const (
	StepCart    Step = "cart"
	StepAddress Step = "address"
	StepPayment Step = "payment"
)

//go:generate mockgen -destination=mocks/mock_checkout.go -package=mocks storefront/checkout Backend,Session

// Backend is the order, address and payment service. Every call takes the
// bearer access token.
type Backend interface {
	ListAddresses(ctx context.Context, access string) ([]Address, error)
	CreateAddress(ctx context.Context, access string, form AddressForm) (Address, error)
	SubmitOrder(ctx context.Context, access string, req OrderRequest, idempotencyKey string) (OrderResult, error)
	RequestPayment(ctx context.Context, access string, transactionID string) (string, error)
	ListOrders(ctx context.Context, access string) ([]OrderSummary, error)
}

// Session is the part of session.Manager checkout depends on.
type Session interface {
	Phase() session.Phase
	EnsureFresh(ctx context.Context) (session.UserInfo, error)
	Do(ctx context.Context, fn session.AuthFunc) error
	WithToken(ctx context.Context, fn session.AuthFunc) error
}

// Cart is the part of cart.Store checkout reads.
type Cart interface {
	OrderableLines() []cart.Line
}
