package delivery_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/app"
	"storefront/backendstub"
	"storefront/checkout"
	"storefront/config"
	"storefront/delivery/model"
	"storefront/logger"
	"storefront/session"
)

const (
	phone    = "09121112233"
	password = "hunter22"
)

type harness struct {
	stub *backendstub.Server
	app  *app.App
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	stub, err := backendstub.New(backendstub.Options{Keys: 1, Logger: logger.Discard()})
	require.NoError(t, err)
	backend := httptest.NewServer(stub.Handler())
	t.Cleanup(backend.Close)

	cfg := &config.Config{
		Backend: config.BackendConfig{
			BaseURL:           backend.URL + "/api/",
			PaymentGatewayURL: checkout.DefaultGatewayURL,
		},
		Identity: config.IdentityConfig{Provider: "drf"},
		Store:    config.StoreConfig{Driver: "memory"},
		Timeouts: config.TimeoutsConfig{Request: 5 * time.Second},
		OTP:      config.OTPConfig{ResendInterval: time.Minute, ResendBurst: 1},
		Server:   config.ServerConfig{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second},
	}

	a, err := app.New(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return &harness{stub: stub, app: a}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.app.Router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	h.stub.AddUser(phone, password)

	rec := h.do(t, http.MethodPost, "/session/phone", model.SubmitPhoneRequest{PhoneNumber: phone})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, session.PhaseAwaitingPassword, decode[model.SessionResponse](t, rec).Phase)

	rec = h.do(t, http.MethodPost, "/session/password", model.SubmitPasswordRequest{Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, session.PhaseAuthenticated, decode[model.SessionResponse](t, rec).Phase)
}

func TestRouter_CheckoutFlow(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	rec := h.do(t, http.MethodPost, "/cart/items", model.AddItemRequest{ProductID: "12", Product: json.RawMessage(`{"title":"beans"}`)})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(t, http.MethodPost, "/cart/items", map[string]any{"id": 12})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[model.CartResponse](t, rec).ItemCount)

	rec = h.do(t, http.MethodPost, "/checkout/addresses", checkout.AddressForm{
		Country:    "Iran",
		State:      "Tehran",
		City:       "Tehran",
		Street:     "Valiasr 12",
		PostalCode: "1234567890",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[checkout.Address](t, rec)
	require.NotZero(t, created.ID)

	rec = h.do(t, http.MethodGet, "/checkout/addresses", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[model.CheckoutResponse](t, rec)
	assert.Equal(t, checkout.StepAddress, state.Step)
	require.Len(t, state.Addresses, 1)

	rec = h.do(t, http.MethodPut, "/checkout/address", model.SelectAddressRequest{AddressID: strconv.Itoa(created.ID)})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/checkout/order", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	invoice := decode[checkout.Invoice](t, rec)
	require.NotEmpty(t, invoice.TransactionID)

	rec = h.do(t, http.MethodPost, "/checkout/payment", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	payment := decode[model.PaymentResponse](t, rec)
	assert.Equal(t, checkout.DefaultGatewayURL+"/StartPay/"+invoice.TransactionID, payment.PaymentURL)

	// The cart survives a successful order.
	rec = h.do(t, http.MethodGet, "/cart/", nil)
	assert.Equal(t, 2, decode[model.CartResponse](t, rec).ItemCount)

	rec = h.do(t, http.MethodPost, "/checkout/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state = decode[model.CheckoutResponse](t, rec)
	assert.Equal(t, checkout.StepCart, state.Step)
	assert.Nil(t, state.Invoice)

	rec = h.do(t, http.MethodGet, "/account/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	profile := decode[checkout.Profile](t, rec)
	assert.Equal(t, phone, profile.User.PhoneNumber)
	assert.Len(t, profile.Orders, 1)
}

func TestRouter_SignupWithOTP(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/session/phone", model.SubmitPhoneRequest{PhoneNumber: phone})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, session.PhaseAwaitingOTP, decode[model.SessionResponse](t, rec).Phase)

	rec = h.do(t, http.MethodPost, "/session/otp/resend", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	code := h.stub.LastOTP(phone)
	require.Len(t, code, session.OTPLength)

	rec = h.do(t, http.MethodPost, "/session/otp", model.SubmitOTPRequest{
		Code:    code,
		Profile: session.ProfileForm{FirstName: "Sara", Email: "sara@example.com"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, session.PhaseAuthenticated, decode[model.SessionResponse](t, rec).Phase)

	rec = h.do(t, http.MethodPost, "/session/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.PhaseAnonymous, decode[model.SessionResponse](t, rec).Phase)
}

func TestRouter_Errors(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T, h *harness)
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid phone",
			method:     http.MethodPost,
			path:       "/session/phone",
			body:       model.SubmitPhoneRequest{PhoneNumber: "12345"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "password before phone",
			method:     http.MethodPost,
			path:       "/session/password",
			body:       model.SubmitPasswordRequest{Password: "x"},
			wantStatus: http.StatusConflict,
			wantCode:   "WRONG_PHASE",
		},
		{
			name:       "malformed body",
			method:     http.MethodPost,
			path:       "/session/phone",
			body:       "{not json",
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		{
			name:       "protected route while anonymous",
			method:     http.MethodGet,
			path:       "/checkout/",
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name: "wrong password",
			setup: func(t *testing.T, h *harness) {
				h.stub.AddUser(phone, password)
				rec := h.do(t, http.MethodPost, "/session/phone", model.SubmitPhoneRequest{PhoneNumber: phone})
				require.Equal(t, http.StatusOK, rec.Code)
			},
			method:     http.MethodPost,
			path:       "/session/password",
			body:       model.SubmitPasswordRequest{Password: "wrong"},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_CREDENTIALS",
		},
		{
			name:       "order with empty cart",
			setup:      func(t *testing.T, h *harness) { h.login(t) },
			method:     http.MethodPost,
			path:       "/checkout/order",
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "payment without order",
			setup:      func(t *testing.T, h *harness) { h.login(t) },
			method:     http.MethodPost,
			path:       "/checkout/payment",
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "incomplete address",
			setup:      func(t *testing.T, h *harness) { h.login(t) },
			method:     http.MethodPost,
			path:       "/checkout/addresses",
			body:       checkout.AddressForm{Country: "Iran"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.setup != nil {
				tt.setup(t, h)
			}

			rec := h.do(t, tt.method, tt.path, tt.body)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			body := decode[model.ErrorResponse](t, rec)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestRouter_ValidationErrorNamesField(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/session/phone", model.SubmitPhoneRequest{PhoneNumber: "0912"})

	body := decode[model.ErrorResponse](t, rec)
	assert.Equal(t, "phone_number", body.Error.Attribute["field"])
}

func TestRouter_CartRemoveAndClear(t *testing.T) {
	h := newHarness(t)

	h.do(t, http.MethodPost, "/cart/items", model.AddItemRequest{ProductID: "3"})
	h.do(t, http.MethodPost, "/cart/items", model.AddItemRequest{ProductID: "3"})

	rec := h.do(t, http.MethodDelete, "/cart/items/3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[model.CartResponse](t, rec).ItemCount)

	rec = h.do(t, http.MethodDelete, "/cart/items/3", nil)
	cartState := decode[model.CartResponse](t, rec)
	assert.Equal(t, 0, cartState.ItemCount)
	require.Len(t, cartState.Items, 1, "a line at zero stays in the cart")

	rec = h.do(t, http.MethodDelete, "/cart/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[model.CartResponse](t, rec).Items)

	rec = h.do(t, http.MethodPost, "/cart/items", model.AddItemRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_CancelLogin(t *testing.T) {
	h := newHarness(t)

	h.do(t, http.MethodPost, "/session/phone", model.SubmitPhoneRequest{PhoneNumber: phone})
	rec := h.do(t, http.MethodPost, "/session/cancel", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[model.SessionResponse](t, rec)
	assert.Equal(t, session.PhaseAnonymous, state.Phase)
	assert.Empty(t, state.PhoneNumber)
}

func TestRouter_WelcomeAndHealth(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/session/", nil)
	assert.False(t, decode[model.SessionResponse](t, rec).WelcomeSeen)

	rec = h.do(t, http.MethodPost, "/welcome/seen", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, http.MethodGet, "/session/", nil)
	assert.True(t, decode[model.SessionResponse](t, rec).WelcomeSeen)

	rec = h.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", decode[map[string]string](t, rec)["phase"])

	rec = h.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_http_request_duration_seconds")
}
