// Package backendstub is an in-process stand-in for the storefront REST API:
// the account, order and payment endpoints under /api/. It mints real
// RS256 tokens from a rotating JWK set so clients go through the same token
// lifecycle as against the production backend.
package backendstub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/jwk"

	"storefront/checkout"
	"storefront/session"
)

const (
	DefaultAccessTTL  = 5 * time.Minute
	DefaultRefreshTTL = 24 * time.Hour
	DefaultPrice      = int64(100000)

	otpTTL = 5 * time.Minute
)

type Options struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Keys is the number of signing keys to rotate between.
	Keys   int
	Logger *slog.Logger
}

// Stats counts the calls each endpoint served.
type Stats struct {
	CheckPhone int
	SendOTP    int
	VerifyOTP  int
	Login      int
	Refresh    int
	UserInfo   int
	Addresses  int
	Orders     int
	Payments   int
}

type user struct {
	info     session.UserInfo
	password string
}

type otpEntry struct {
	code    string
	expires time.Time
}

type order struct {
	userID        int
	transactionID string
	summary       checkout.OrderSummary
}

type Server struct {
	signer     Signer
	verifier   *Verifier
	publicKeys jwk.Set
	logger     *slog.Logger
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time

	mu            sync.Mutex
	users         map[string]*user
	usersByID     map[int]*user
	otps          map[string]otpEntry
	addresses     map[int][]checkout.Address
	orders        map[int][]*order
	transactions  map[string]*order
	idempotent    map[string]checkout.OrderResult
	prices        map[int]int64
	nextUserID    int
	nextAddressID int
	nextOrderID   int
	nextItemID    int
	epoch         int
	failRefresh   bool
	stats         Stats
}

// New generates a signing set and returns an empty backend.
func New(opts Options) (*Server, error) {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = DefaultAccessTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = DefaultRefreshTTL
	}
	if opts.Keys <= 0 {
		opts.Keys = 2
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("component", "backendstub")

	keys, err := GenerateKeySet(opts.Keys)
	if err != nil {
		return nil, err
	}
	publicKeys, err := PublicKeySet(context.Background(), keys)
	if err != nil {
		return nil, err
	}
	signer, err := NewJWTSigner(keys, logger)
	if err != nil {
		return nil, err
	}

	return &Server{
		signer:       signer,
		verifier:     NewVerifier(publicKeys, logger),
		publicKeys:   publicKeys,
		logger:       logger,
		accessTTL:    opts.AccessTTL,
		refreshTTL:   opts.RefreshTTL,
		now:          time.Now,
		users:        make(map[string]*user),
		usersByID:    make(map[int]*user),
		otps:         make(map[string]otpEntry),
		addresses:    make(map[int][]checkout.Address),
		orders:       make(map[int][]*order),
		transactions: make(map[string]*order),
		idempotent:   make(map[string]checkout.OrderResult),
		prices:       make(map[int]int64),
	}, nil
}

// Handler returns the router. The API lives under /api/ and the public
// keys under /.well-known/jwks.json.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/.well-known/jwks.json", s.jwksHandler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/account/check-login-phone/", s.checkPhoneHandler)
		r.Post("/account/send-otp/", s.sendOTPHandler)
		r.Post("/account/verify-otp/", s.verifyOTPHandler)
		r.Post("/account/token/", s.tokenHandler)
		r.Post("/account/token/refresh/", s.refreshHandler)

		r.Group(func(r chi.Router) {
			r.Use(s.jwtMiddleware)
			r.Get("/account/user-info/", s.userInfoHandler)
			r.Get("/account/user-addresses/", s.listAddressesHandler)
			r.Post("/account/add-address/", s.addAddressHandler)
			r.Get("/order/", s.listOrdersHandler)
			r.Post("/order_check_add/", s.submitOrderHandler)
			r.Post("/payment/", s.paymentHandler)
		})
	})

	return r
}

func (s *Server) jwksHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.publicKeys)
}

// PublicKeys returns the verification set.
func (s *Server) PublicKeys() jwk.Set {
	return s.publicKeys
}

// AddUser registers phone. An empty password makes an OTP-only account.
func (s *Server) AddUser(phone, password string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(phone, password).info.ID
}

func (s *Server) addUserLocked(phone, password string) *user {
	if u, ok := s.users[phone]; ok {
		if password != "" {
			u.password = password
		}
		return u
	}
	s.nextUserID++
	u := &user{
		info:     session.UserInfo{ID: s.nextUserID, PhoneNumber: phone},
		password: password,
	}
	s.users[phone] = u
	s.usersByID[u.info.ID] = u
	return u
}

// AddAddress stores an address for the user with phone, who must exist.
func (s *Server) AddAddress(phone string, form checkout.AddressForm) (checkout.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[phone]
	if !ok {
		return checkout.Address{}, fmt.Errorf("no user with phone %s", phone)
	}
	return s.addAddressLocked(u.info.ID, form), nil
}

func (s *Server) addAddressLocked(userID int, form checkout.AddressForm) checkout.Address {
	s.nextAddressID++
	address := checkout.Address{
		ID:         s.nextAddressID,
		Country:    form.Country,
		State:      form.State,
		City:       form.City,
		Street:     form.Street,
		PostalCode: form.PostalCode,
		IsDefault:  form.IsDefault,
	}
	if address.IsDefault {
		for i := range s.addresses[userID] {
			s.addresses[userID][i].IsDefault = false
		}
	}
	s.addresses[userID] = append(s.addresses[userID], address)
	return address
}

// SetPrice sets the unit price of a product variant. Unknown variants cost
// DefaultPrice.
func (s *Server) SetPrice(productID int, price int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[productID] = price
}

// LastOTP returns the pending code for phone, or "" if there is none.
func (s *Server) LastOTP(phone string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.otps[phone].code
}

// ExpireAccessTokens invalidates every access token issued so far. Refresh
// tokens stay valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
}

// FailRefresh makes the refresh endpoint reject every token while on is true.
func (s *Server) FailRefresh(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = on
}

func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// issueLocked mints an access token, and a refresh token when withRefresh is set.
func (s *Server) issueLocked(u *user, withRefresh bool) (session.Tokens, error) {
	now := s.now()

	access, err := s.signer.Sign(jwt.MapClaims{
		"token_type": tokenTypeAccess,
		"user_id":    u.info.ID,
		"epoch":      s.epoch,
		"jti":        uuid.NewString(),
		"iat":        now.Unix(),
		"exp":        now.Add(s.accessTTL).Unix(),
	})
	if err != nil {
		return session.Tokens{}, err
	}
	if !withRefresh {
		return session.Tokens{Access: access}, nil
	}

	refresh, err := s.signer.Sign(jwt.MapClaims{
		"token_type": tokenTypeRefresh,
		"user_id":    u.info.ID,
		"jti":        uuid.NewString(),
		"iat":        now.Unix(),
		"exp":        now.Add(s.refreshTTL).Unix(),
	})
	if err != nil {
		return session.Tokens{}, err
	}
	return session.Tokens{Access: access, Refresh: refresh}, nil
}

func (s *Server) currentEpoch(claims jwt.MapClaims) bool {
	epoch, ok := claims["epoch"].(float64)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(epoch) == s.epoch
}

type detailResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type ackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes the {"error": message} body the order and payment
// endpoints use.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeTokenNotValid(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, detailResponse{
		Detail: "Given token not valid for any token type",
		Code:   "token_not_valid",
	})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
