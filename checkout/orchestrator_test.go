package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/apperr"
	"storefront/cart"
	"storefront/session"
	"storefront/store"
)

type fakeSession struct {
	phase     session.Phase
	freshErr  error
	doCalls   int
	withCalls int
}

func (f *fakeSession) Phase() session.Phase { return f.phase }

func (f *fakeSession) EnsureFresh(ctx context.Context) (session.UserInfo, error) {
	if f.freshErr != nil {
		return session.UserInfo{}, f.freshErr
	}
	return session.UserInfo{PhoneNumber: "09123456789"}, nil
}

func (f *fakeSession) Do(ctx context.Context, fn session.AuthFunc) error {
	f.doCalls++
	return fn(ctx, "token")
}

func (f *fakeSession) WithToken(ctx context.Context, fn session.AuthFunc) error {
	f.withCalls++
	return fn(ctx, "token")
}

type fakeBackend struct {
	mu sync.Mutex

	addresses   []Address
	listErr     error
	createErr   error
	orderErr    error
	order       OrderResult
	paymentErr  error
	payment     string
	orders      []OrderSummary
	orderCalls  int
	lastOrder   OrderRequest
	lastKey     string
	payCalls    int
	createCalls int
}

func (f *fakeBackend) ListAddresses(ctx context.Context, access string) ([]Address, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.addresses, nil
}

func (f *fakeBackend) CreateAddress(ctx context.Context, access string, form AddressForm) (Address, error) {
	f.createCalls++
	if f.createErr != nil {
		return Address{}, f.createErr
	}
	return Address{ID: 99, Country: form.Country, State: form.State, City: form.City, Street: form.Street, PostalCode: form.PostalCode, IsDefault: form.IsDefault}, nil
}

func (f *fakeBackend) SubmitOrder(ctx context.Context, access string, req OrderRequest, key string) (OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderCalls++
	f.lastOrder = req
	f.lastKey = key
	if f.orderErr != nil {
		return OrderResult{}, f.orderErr
	}
	return f.order, nil
}

func (f *fakeBackend) RequestPayment(ctx context.Context, access, transactionID string) (string, error) {
	f.payCalls++
	if f.paymentErr != nil {
		return "", f.paymentErr
	}
	return f.payment, nil
}

func (f *fakeBackend) ListOrders(ctx context.Context, access string) ([]OrderSummary, error) {
	return f.orders, nil
}

func newFixture(t *testing.T) (*Orchestrator, *fakeSession, *fakeBackend, *cart.Store) {
	t.Helper()
	sess := &fakeSession{phase: session.PhaseAuthenticated}
	backend := &fakeBackend{
		addresses: []Address{{ID: 1, City: "Tehran", IsDefault: true}},
		order:     OrderResult{TransactionID: "A00000000000000000000000000000123456"},
		payment:   "A00000000000000000000000000000123456",
	}
	c := cart.New(store.NewMemoryStore(), nil)
	c.Initialize(context.Background())

	o := New(sess, c, backend, "", nil)
	t.Cleanup(o.Close)
	return o, sess, backend, c
}

func TestOrchestrator_SubmitOrderOnlySendsPositiveLines(t *testing.T) {
	ctx := context.Background()
	o, _, backend, c := newFixture(t)

	require.NoError(t, c.Add(ctx, "P1", nil))
	require.NoError(t, c.Add(ctx, "P1", nil))
	require.NoError(t, c.Add(ctx, "P2", nil))
	require.NoError(t, c.Remove(ctx, "P2"))
	o.SelectAddress("1")

	invoice, err := o.SubmitOrder(ctx)

	require.NoError(t, err)
	assert.Equal(t, OrderRequest{Items: []OrderItem{{ID: "P1", Quantity: 2}}, ShippingAddress: 1}, backend.lastOrder)
	assert.NotEmpty(t, backend.lastKey)
	assert.Equal(t, "A00000000000000000000000000000123456", invoice.TransactionID)
	assert.Equal(t, 1, invoice.ShippingAddressID)
	assert.Equal(t, "pending", invoice.Status)
	assert.Equal(t, StepPayment, o.Step())
	assert.Same(t, invoice, o.Invoice())
	assert.Equal(t, 2, c.ItemCount())
}

func TestOrchestrator_SubmitOrderEmptyCartMakesNoCall(t *testing.T) {
	ctx := context.Background()
	o, sess, backend, c := newFixture(t)
	require.NoError(t, c.Add(ctx, "P1", nil))
	require.NoError(t, c.Remove(ctx, "P1"))
	o.SelectAddress("1")

	_, err := o.SubmitOrder(ctx)

	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, backend.orderCalls)
	assert.Zero(t, sess.doCalls)
	assert.Nil(t, o.Invoice())
}

func TestOrchestrator_SubmitOrderRejectsBadSelection(t *testing.T) {
	for _, selected := range []string{"", AddressPlaceholder, "home", "0", "-3"} {
		t.Run(selected, func(t *testing.T) {
			ctx := context.Background()
			o, _, backend, c := newFixture(t)
			require.NoError(t, c.Add(ctx, "P1", nil))
			o.SelectAddress(selected)

			_, err := o.SubmitOrder(ctx)

			var vErr *apperr.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, "shipping_address", vErr.Field)
			assert.Zero(t, backend.orderCalls)
		})
	}
}

func TestOrchestrator_SubmitOrderFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	o, _, backend, c := newFixture(t)
	backend.orderErr = apperr.ErrNetworkFailure
	require.NoError(t, c.Add(ctx, "P1", nil))
	o.SelectAddress("1")

	_, err := o.SubmitOrder(ctx)

	assert.ErrorIs(t, err, apperr.ErrOrderSubmitFailed)
	assert.ErrorIs(t, err, apperr.ErrNetworkFailure)
	assert.Equal(t, apperr.KindOrderSubmit, apperr.KindOf(err))
	assert.Nil(t, o.Invoice())
	assert.Equal(t, StepCart, o.Step())
	assert.Equal(t, 1, c.ItemCount())
}

func TestOrchestrator_SubmitOrderRequiresAuthentication(t *testing.T) {
	ctx := context.Background()
	o, sess, backend, c := newFixture(t)
	sess.phase = session.PhaseAnonymous
	require.NoError(t, c.Add(ctx, "P1", nil))
	o.SelectAddress("1")

	_, err := o.SubmitOrder(ctx)

	assert.ErrorIs(t, err, apperr.ErrWrongPhase)
	assert.Zero(t, backend.orderCalls)
}

func TestOrchestrator_LoadAddresses(t *testing.T) {
	ctx := context.Background()
	o, _, backend, _ := newFixture(t)

	addresses, err := o.LoadAddresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, backend.addresses, addresses)
	assert.Equal(t, StepAddress, o.Step())

	backend.listErr = apperr.ErrNetworkFailure
	_, err = o.LoadAddresses(ctx)

	assert.ErrorIs(t, err, apperr.ErrAddressFetchFailed)
	assert.Equal(t, backend.addresses, o.Addresses())
}

func TestOrchestrator_LoadAddressesRefreshFailure(t *testing.T) {
	o, sess, _, _ := newFixture(t)
	sess.freshErr = apperr.ErrTokenRefreshFailed

	_, err := o.LoadAddresses(context.Background())

	assert.ErrorIs(t, err, apperr.ErrAddressFetchFailed)
	assert.Equal(t, apperr.KindTokenRefreshFailed, apperr.KindOf(err))
}

func TestOrchestrator_AddAddress(t *testing.T) {
	ctx := context.Background()
	o, _, backend, _ := newFixture(t)
	_, err := o.LoadAddresses(ctx)
	require.NoError(t, err)

	form := AddressForm{Country: "Iran", State: "Tehran", City: "Tehran", Street: "Valiasr", PostalCode: "1234567890"}
	created, err := o.AddAddress(ctx, form)

	require.NoError(t, err)
	assert.Equal(t, 99, created.ID)
	assert.Len(t, o.Addresses(), 2)
	assert.Equal(t, 1, backend.createCalls)
}

func TestOrchestrator_AddAddressValidation(t *testing.T) {
	o, _, backend, _ := newFixture(t)

	_, err := o.AddAddress(context.Background(), AddressForm{Country: "Iran", State: "Tehran", City: "Tehran", Street: "Valiasr"})

	var vErr *apperr.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "postal_code", vErr.Field)
	assert.Zero(t, backend.createCalls)
}

func TestOrchestrator_AddAddressFailureLeavesCache(t *testing.T) {
	ctx := context.Background()
	o, _, backend, _ := newFixture(t)
	_, err := o.LoadAddresses(ctx)
	require.NoError(t, err)
	backend.createErr = errors.New("500")

	_, err = o.AddAddress(ctx, AddressForm{Country: "a", State: "b", City: "c", Street: "d", PostalCode: "e"})

	assert.ErrorIs(t, err, apperr.ErrAddressCreateFailed)
	assert.Len(t, o.Addresses(), 1)
}

func TestOrchestrator_RequestPaymentURL(t *testing.T) {
	ctx := context.Background()
	o, sess, backend, c := newFixture(t)
	require.NoError(t, c.Add(ctx, "1", nil))
	o.SelectAddress("1")
	invoice, err := o.SubmitOrder(ctx)
	require.NoError(t, err)

	redirect, err := o.RequestPaymentURL(ctx, invoice)

	require.NoError(t, err)
	assert.Equal(t, "https://api.zarinpal.com/pg/StartPay/A00000000000000000000000000000123456", redirect)
	assert.Equal(t, 1, backend.payCalls)
	assert.Equal(t, 1, sess.withCalls)
}

func TestOrchestrator_RequestPaymentURLNotRetried(t *testing.T) {
	ctx := context.Background()
	o, _, backend, _ := newFixture(t)
	backend.paymentErr = apperr.ErrTokenExpired

	_, err := o.RequestPaymentURL(ctx, &Invoice{TransactionID: "T1"})

	assert.ErrorIs(t, err, apperr.ErrPaymentURLFailed)
	assert.Equal(t, 1, backend.payCalls)
}

func TestOrchestrator_RequestPaymentURLNeedsInvoice(t *testing.T) {
	o, _, backend, _ := newFixture(t)

	_, err := o.RequestPaymentURL(context.Background(), nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = o.RequestPaymentURL(context.Background(), &Invoice{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, backend.payCalls)
}

func TestComposePaymentURL(t *testing.T) {
	tests := []struct {
		gateway   string
		authority string
		want      string
	}{
		{gateway: "https://api.zarinpal.com/pg", authority: "A1", want: "https://api.zarinpal.com/pg/StartPay/A1"},
		{gateway: "https://sandbox.zarinpal.com/pg/", authority: "A1", want: "https://sandbox.zarinpal.com/pg/StartPay/A1"},
		{gateway: "https://api.zarinpal.com/pg", authority: "https://pay.example.com/x?y=1", want: "https://pay.example.com/x?y=1"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := composePaymentURL(tt.gateway, tt.authority)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := composePaymentURL("not a url", "A1")
	assert.Error(t, err)
}

func TestOrchestrator_ResetDiscardsInvoice(t *testing.T) {
	ctx := context.Background()
	o, _, _, c := newFixture(t)
	require.NoError(t, c.Add(ctx, "1", nil))
	o.SelectAddress("1")
	_, err := o.SubmitOrder(ctx)
	require.NoError(t, err)

	o.Reset()

	assert.Nil(t, o.Invoice())
	assert.Empty(t, o.SelectedAddress())
	assert.Equal(t, StepCart, o.Step())
}

func TestOrchestrator_Profile(t *testing.T) {
	o, _, backend, _ := newFixture(t)
	total := int64(250000)
	backend.orders = []OrderSummary{{ID: 7, TotalPrice: &total, Completed: true}}

	profile, err := o.Profile(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "09123456789", profile.User.PhoneNumber)
	assert.Equal(t, backend.addresses, profile.Addresses)
	assert.Equal(t, backend.orders, profile.Orders)
}
