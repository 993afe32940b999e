// Package checkout drives cart → address → order → payment redirect.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"storefront/apperr"
	"storefront/notify"
	"storefront/session"
)

// AddressPlaceholder is the label of the empty choice in the address picker.
const AddressPlaceholder = "انتخاب کنید"

// DefaultGatewayURL is the hosted payment page base.
const DefaultGatewayURL = "https://api.zarinpal.com/pg"

// EventKind names a checkout change.
type EventKind string

const (
	EventAddressesLoaded EventKind = "addresses_loaded"
	EventAddressAdded    EventKind = "address_added"
	EventOrderSubmitted  EventKind = "order_submitted"
	EventPaymentURL      EventKind = "payment_url_issued"
	EventFailed          EventKind = "failed"
	EventReset           EventKind = "reset"
)

// Event is published after a checkout step completes or fails.
type Event struct {
	Kind EventKind
	Step Step
	Err  error
}

// Orchestrator holds the state of one checkout attempt.
type Orchestrator struct {
	session  Session
	cart     Cart
	backend  Backend
	gateway  string
	logger   *slog.Logger
	validate *validator.Validate
	hub      *notify.Hub[Event]

	mu        sync.RWMutex
	addresses []Address
	selected  string
	invoice   *Invoice
	step      Step
	attempt   uint64
}

// New creates an Orchestrator. An empty gateway uses DefaultGatewayURL.
func New(sess Session, c Cart, backend Backend, gateway string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if gateway == "" {
		gateway = DefaultGatewayURL
	}
	return &Orchestrator{
		session:  sess,
		cart:     c,
		backend:  backend,
		gateway:  gateway,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		hub:      notify.NewHub[Event](),
		step:     StepCart,
	}
}

// Subscribe registers an observer of checkout events.
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	return o.hub.Subscribe()
}

// Close releases all subscribers.
func (o *Orchestrator) Close() {
	o.hub.Close()
}

// Step reports the current checkout page.
func (o *Orchestrator) Step() Step {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.step
}

// Addresses returns the cached address set.
func (o *Orchestrator) Addresses() []Address {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Address, len(o.addresses))
	copy(out, o.addresses)
	return out
}

// Invoice returns the invoice of the current attempt, or nil.
func (o *Orchestrator) Invoice() *Invoice {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.invoice
}

// SelectedAddress returns the raw selection.
func (o *Orchestrator) SelectedAddress() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.selected
}

// LoadAddresses refreshes the address cache and enters the address step.
// On failure the previous cache is kept.
func (o *Orchestrator) LoadAddresses(ctx context.Context) ([]Address, error) {
	if err := o.requireAuthenticated("load addresses"); err != nil {
		return nil, err
	}

	if _, err := o.session.EnsureFresh(ctx); err != nil {
		return nil, o.fail(fmt.Errorf("%w: %w", apperr.ErrAddressFetchFailed, err))
	}

	var addresses []Address
	err := o.session.Do(ctx, func(ctx context.Context, access string) error {
		var err error
		addresses, err = o.backend.ListAddresses(ctx, access)
		return err
	})
	if err != nil {
		return nil, o.fail(fmt.Errorf("%w: %w", apperr.ErrAddressFetchFailed, err))
	}

	o.mu.Lock()
	o.addresses = addresses
	if o.step == StepCart {
		o.step = StepAddress
	}
	step := o.step
	o.mu.Unlock()

	o.logger.Info("addresses loaded", "count", len(addresses))
	o.hub.Publish(Event{Kind: EventAddressesLoaded, Step: step})
	return o.Addresses(), nil
}

// AddAddress creates an address and appends it to the cache.
func (o *Orchestrator) AddAddress(ctx context.Context, form AddressForm) (Address, error) {
	if err := o.validateAddress(form); err != nil {
		return Address{}, err
	}
	if err := o.requireAuthenticated("add address"); err != nil {
		return Address{}, err
	}

	var created Address
	err := o.session.Do(ctx, func(ctx context.Context, access string) error {
		var err error
		created, err = o.backend.CreateAddress(ctx, access, form)
		return err
	})
	if err != nil {
		return Address{}, o.fail(fmt.Errorf("%w: %w", apperr.ErrAddressCreateFailed, err))
	}

	o.mu.Lock()
	o.addresses = append(o.addresses, created)
	step := o.step
	o.mu.Unlock()

	o.logger.Info("address created", "address_id", created.ID, "is_default", created.IsDefault)
	o.hub.Publish(Event{Kind: EventAddressAdded, Step: step})
	return created, nil
}

func (o *Orchestrator) validateAddress(form AddressForm) error {
	err := o.validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := addressFieldName(verrs[0].Field())
		return apperr.NewValidationError(field, fmt.Sprintf("%s is required.", verrs[0].Field()))
	}
	return apperr.NewValidationError("", err.Error())
}

func addressFieldName(field string) string {
	if field == "PostalCode" {
		return "postal_code"
	}
	return strings.ToLower(field)
}

// SelectAddress records the chosen address id. It is not checked against
// the cache; SubmitOrder rejects ids that are not numeric.
func (o *Orchestrator) SelectAddress(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.selected = strings.TrimSpace(id)
}

// SubmitOrder sends the positive-quantity cart lines with the selected
// address. On success the invoice is stored and the step moves to payment.
// The cart is never cleared here.
func (o *Orchestrator) SubmitOrder(ctx context.Context) (*Invoice, error) {
	lines := o.cart.OrderableLines()
	if len(lines) == 0 {
		return nil, apperr.NewValidationError("cart", "Your cart is empty.")
	}

	o.mu.RLock()
	selected, attempt := o.selected, o.attempt
	o.mu.RUnlock()

	addressID, err := parseAddressID(selected)
	if err != nil {
		return nil, err
	}
	if err := o.requireAuthenticated("submit order"); err != nil {
		return nil, err
	}

	req := OrderRequest{Items: make([]OrderItem, 0, len(lines)), ShippingAddress: addressID}
	for _, l := range lines {
		req.Items = append(req.Items, OrderItem{ID: l.ProductID, Quantity: l.Quantity})
	}

	// The key survives the retry after a token refresh so the order is
	// created at most once.
	key := uuid.NewString()
	var result OrderResult
	err = o.session.Do(ctx, func(ctx context.Context, access string) error {
		var err error
		result, err = o.backend.SubmitOrder(ctx, access, req, key)
		return err
	})
	if err == nil && result.TransactionID == "" {
		err = errors.New("order response has no transaction id")
	}
	if err != nil {
		return nil, o.fail(fmt.Errorf("%w: %w", apperr.ErrOrderSubmitFailed, err))
	}

	invoice := &Invoice{
		TransactionID:     result.TransactionID,
		LineItems:         req.Items,
		ShippingAddressID: addressID,
		Status:            result.Status,
		CreatedAt:         time.Now().UTC(),
	}
	if invoice.Status == "" {
		invoice.Status = "pending"
	}

	o.mu.Lock()
	if o.attempt != attempt {
		o.mu.Unlock()
		return nil, fmt.Errorf("submit order: %w", apperr.ErrStaleResponse)
	}
	o.invoice = invoice
	o.step = StepPayment
	o.mu.Unlock()

	o.logger.Info("order submitted",
		"transaction_id", invoice.TransactionID,
		"items", len(invoice.LineItems),
		"shipping_address", addressID)
	o.hub.Publish(Event{Kind: EventOrderSubmitted, Step: StepPayment})
	return invoice, nil
}

// parseAddressID rejects the empty selection, the placeholder and anything
// that is not a positive integer.
func parseAddressID(selected string) (int, error) {
	invalid := apperr.NewValidationError("shipping_address", "Select a shipping address.")
	if selected == "" || selected == AddressPlaceholder {
		return 0, invalid
	}
	id, err := strconv.Atoi(selected)
	if err != nil || id <= 0 {
		return 0, invalid
	}
	return id, nil
}

// RequestPaymentURL asks for the gateway redirect of invoice. The token is
// checked first; the payment call itself is made exactly once.
func (o *Orchestrator) RequestPaymentURL(ctx context.Context, invoice *Invoice) (string, error) {
	if invoice == nil || invoice.TransactionID == "" {
		return "", apperr.NewValidationError("invoice", "There is no order to pay for.")
	}
	if err := o.requireAuthenticated("request payment url"); err != nil {
		return "", err
	}

	if _, err := o.session.EnsureFresh(ctx); err != nil {
		return "", o.fail(fmt.Errorf("%w: %w", apperr.ErrPaymentURLFailed, err))
	}

	var authority string
	err := o.session.WithToken(ctx, func(ctx context.Context, access string) error {
		var err error
		authority, err = o.backend.RequestPayment(ctx, access, invoice.TransactionID)
		return err
	})
	if err == nil && authority == "" {
		err = errors.New("payment response has no payment url")
	}
	if err != nil {
		return "", o.fail(fmt.Errorf("%w: %w", apperr.ErrPaymentURLFailed, err))
	}

	redirect, err := composePaymentURL(o.gateway, authority)
	if err != nil {
		return "", o.fail(fmt.Errorf("%w: %w", apperr.ErrPaymentURLFailed, err))
	}

	o.logger.Info("payment url issued", "transaction_id", invoice.TransactionID)
	o.hub.Publish(Event{Kind: EventPaymentURL, Step: o.Step()})
	return redirect, nil
}

// composePaymentURL returns authority unchanged when it is already an
// absolute URL, otherwise gateway/StartPay/authority.
func composePaymentURL(gateway, authority string) (string, error) {
	if u, err := url.Parse(authority); err == nil && (u.Scheme == "https" || u.Scheme == "http") && u.Host != "" {
		return authority, nil
	}
	base, err := url.Parse(strings.TrimRight(gateway, "/"))
	if err != nil || base.Scheme == "" {
		return "", fmt.Errorf("invalid payment gateway url %q", gateway)
	}
	return base.JoinPath("StartPay", authority).String(), nil
}

// Reset forgets the invoice and selection and returns to the cart step.
// Responses for the abandoned attempt are discarded.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.invoice = nil
	o.selected = ""
	o.step = StepCart
	o.attempt++
	o.mu.Unlock()

	o.hub.Publish(Event{Kind: EventReset, Step: StepCart})
}

// Profile loads the account page: user info, addresses and order history.
func (o *Orchestrator) Profile(ctx context.Context) (Profile, error) {
	if err := o.requireAuthenticated("load profile"); err != nil {
		return Profile{}, err
	}

	user, err := o.session.EnsureFresh(ctx)
	if err != nil {
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}

	var addresses []Address
	var orders []OrderSummary
	err = o.session.Do(ctx, func(ctx context.Context, access string) error {
		var err error
		addresses, err = o.backend.ListAddresses(ctx, access)
		if err != nil {
			return fmt.Errorf("%w: %w", apperr.ErrAddressFetchFailed, err)
		}
		orders, err = o.backend.ListOrders(ctx, access)
		return err
	})
	if err != nil {
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}

	o.mu.Lock()
	o.addresses = addresses
	o.mu.Unlock()

	return Profile{User: user, Addresses: addresses, Orders: orders}, nil
}

func (o *Orchestrator) requireAuthenticated(op string) error {
	if p := o.session.Phase(); p != session.PhaseAuthenticated {
		return fmt.Errorf("%s in %s: %w", op, p, apperr.ErrWrongPhase)
	}
	return nil
}

func (o *Orchestrator) fail(err error) error {
	o.logger.Warn("checkout step failed", "kind", apperr.KindOf(err), "error", err)
	o.hub.Publish(Event{Kind: EventFailed, Step: o.Step(), Err: err})
	return err
}
