// Package session runs the phone/OTP/password login state machine and owns
// the access/refresh token pair, including silent renewal.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"storefront/apperr"
	"storefront/notify"
	"storefront/store"
)

// DefaultTimeout bounds every backend call made by the manager.
const DefaultTimeout = 15 * time.Second

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithTokenIssuer routes password login and refresh through issuer instead
// of the account backend.
func WithTokenIssuer(issuer TokenIssuer) Option {
	return func(m *Manager) {
		if issuer != nil {
			m.issuer = issuer
		}
	}
}

// WithResendLimit allows one OTP resend per interval with the given burst.
func WithResendLimit(interval time.Duration, burst int) Option {
	return func(m *Manager) {
		if interval > 0 && burst > 0 {
			m.resend = rate.NewLimiter(rate.Every(interval), burst)
		}
	}
}

// Manager is the single session object shared by the cart, checkout and UI.
// Every state change bumps a generation counter; a backend response that
// comes back under an older generation is discarded with ErrStaleResponse.
type Manager struct {
	backend Backend
	issuer  TokenIssuer
	store   store.Store
	logger  *slog.Logger
	timeout time.Duration
	resend  *rate.Limiter

	// gate is held exclusively while a refresh runs so no call reads the
	// token that is being replaced. Lock order is gate then mu.
	gate    sync.RWMutex
	refresh singleflight.Group

	mu     sync.RWMutex
	phase  Phase
	phone  string
	tokens Tokens
	gen    uint64

	hub *notify.Hub[Event]
}

// New creates a Manager in PhaseAnonymous. Call Restore to pick up a
// persisted session.
func New(backend Backend, st store.Store, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		backend: backend,
		issuer:  backend,
		store:   st,
		logger:  logger,
		timeout: DefaultTimeout,
		resend:  rate.NewLimiter(rate.Every(time.Minute), 1),
		phase:   PhaseAnonymous,
		hub:     notify.NewHub[Event](),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current phase and phone number.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return State{Phase: m.phase, PhoneNumber: m.phone}
}

// Phase returns the current phase.
func (m *Manager) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// Subscribe registers an observer of session changes.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	return m.hub.Subscribe()
}

// Restore loads a persisted token pair. Both tokens must be present; a lone
// token is treated as corrupt state and removed. Restore only acts in
// PhaseAnonymous and never fails: unreadable state leaves the session
// anonymous.
func (m *Manager) Restore(ctx context.Context) Phase {
	m.mu.Lock()
	if m.phase != PhaseAnonymous {
		p := m.phase
		m.mu.Unlock()
		return p
	}

	access, aErr := m.store.Get(ctx, store.KeyAccessToken)
	refresh, rErr := m.store.Get(ctx, store.KeyRefreshToken)
	for _, err := range []error{aErr, rErr} {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			m.logger.Warn("failed to read persisted session", "error", err)
		}
	}

	tokens := Tokens{Access: access, Refresh: refresh}
	if aErr != nil || rErr != nil || !tokens.Complete() {
		if tokens.Access != "" || tokens.Refresh != "" {
			m.logger.Warn("discarding incomplete persisted session")
			if err := m.store.Delete(ctx, store.KeyAccessToken, store.KeyRefreshToken); err != nil {
				m.logger.Warn("failed to clear incomplete session", "error", err)
			}
		}
		m.mu.Unlock()
		return PhaseAnonymous
	}

	m.tokens = tokens
	m.phase = PhaseAuthenticated
	m.gen++
	m.mu.Unlock()

	m.logger.Info("session restored", "access_token_prefix", tokenPrefix(access))
	m.publish(EventPhaseChanged, PhaseAuthenticated, "restored")
	return PhaseAuthenticated
}

// SubmitPhoneNumber validates phone and asks the backend whether the user
// exists. Existing users continue with a password; new users, and existing
// users without one, continue with an OTP which is dispatched here.
func (m *Manager) SubmitPhoneNumber(ctx context.Context, phone string) (Phase, error) {
	if err := ValidatePhoneNumber(phone); err != nil {
		return m.Phase(), err
	}

	m.mu.Lock()
	if m.phase != PhaseAnonymous {
		p := m.phase
		m.mu.Unlock()
		return p, fmt.Errorf("submit phone number in %s: %w", p, apperr.ErrWrongPhase)
	}
	m.phase = PhasePhoneSubmitted
	m.phone = phone
	m.gen++
	gen := m.gen
	m.mu.Unlock()
	m.publish(EventPhaseChanged, PhasePhoneSubmitted, "")

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	status, err := m.backend.CheckPhone(callCtx, phone)
	cancel()

	m.mu.Lock()
	if m.gen != gen || m.phase != PhasePhoneSubmitted {
		p := m.phase
		m.mu.Unlock()
		return p, fmt.Errorf("check phone: %w", apperr.ErrStaleResponse)
	}
	if err != nil {
		m.phase = PhaseAnonymous
		m.phone = ""
		m.gen++
		m.mu.Unlock()
		m.logger.Warn("phone check failed", "error", err)
		m.publish(EventPhaseChanged, PhaseAnonymous, "")
		return PhaseAnonymous, fmt.Errorf("check phone: %w", err)
	}

	if !status.needsOTP() {
		m.phase = PhaseAwaitingPassword
		m.gen++
		m.mu.Unlock()
		m.publish(EventPhaseChanged, PhaseAwaitingPassword, "")
		return PhaseAwaitingPassword, nil
	}

	m.phase = PhaseAwaitingOTP
	m.gen++
	gen = m.gen
	m.mu.Unlock()
	m.publish(EventPhaseChanged, PhaseAwaitingOTP, "")

	// The first dispatch spends a limiter token so an immediate resend waits.
	m.resend.Allow()
	if err := m.sendOTP(ctx, gen, phone); err != nil {
		return m.Phase(), err
	}
	return PhaseAwaitingOTP, nil
}

// ResendOTP dispatches another code while waiting for one.
func (m *Manager) ResendOTP(ctx context.Context) error {
	m.mu.RLock()
	phase, phone, gen := m.phase, m.phone, m.gen
	m.mu.RUnlock()

	if phase != PhaseAwaitingOTP {
		return fmt.Errorf("resend otp in %s: %w", phase, apperr.ErrWrongPhase)
	}
	if !m.resend.Allow() {
		return apperr.ErrOTPThrottled
	}
	return m.sendOTP(ctx, gen, phone)
}

func (m *Manager) sendOTP(ctx context.Context, gen uint64, phone string) error {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.backend.SendOTP(callCtx, phone)
	cancel()

	if m.stale(gen) {
		return fmt.Errorf("send otp: %w", apperr.ErrStaleResponse)
	}
	if err != nil {
		m.logger.Warn("otp dispatch failed", "error", err)
		return fmt.Errorf("send otp: %w", err)
	}
	m.logger.Info("otp dispatched")
	return nil
}

// SubmitPassword exchanges the password for a token pair. A rejection keeps
// the session in PhaseAwaitingPassword.
func (m *Manager) SubmitPassword(ctx context.Context, password string) error {
	if password == "" {
		return apperr.NewValidationError("password", "Password is required.")
	}

	m.mu.RLock()
	phase, phone, gen := m.phase, m.phone, m.gen
	m.mu.RUnlock()
	if phase != PhaseAwaitingPassword {
		return fmt.Errorf("submit password in %s: %w", phase, apperr.ErrWrongPhase)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	tokens, err := m.issuer.ObtainToken(callCtx, phone, password)
	cancel()

	if err == nil && !tokens.Complete() {
		err = errors.New("token response missing access or refresh")
	}
	if err != nil {
		if m.stale(gen) {
			return fmt.Errorf("obtain token: %w", apperr.ErrStaleResponse)
		}
		return fmt.Errorf("obtain token: %w", asFailure(err, apperr.ErrInvalidCredentials))
	}
	return m.authenticate(ctx, gen, PhaseAwaitingPassword, tokens)
}

// SubmitOTP verifies code together with the create-profile fields. A
// rejection keeps the session in PhaseAwaitingOTP.
func (m *Manager) SubmitOTP(ctx context.Context, code string, profile ProfileForm) error {
	if err := ValidateOTPCode(code); err != nil {
		return err
	}
	if err := profile.Validate(); err != nil {
		return err
	}

	m.mu.RLock()
	phase, phone, gen := m.phase, m.phone, m.gen
	m.mu.RUnlock()
	if phase != PhaseAwaitingOTP {
		return fmt.Errorf("submit otp in %s: %w", phase, apperr.ErrWrongPhase)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	tokens, err := m.backend.VerifyOTP(callCtx, phone, code, profile)
	cancel()

	if err == nil && !tokens.Complete() {
		err = errors.New("verify response missing access or refresh")
	}
	if err != nil {
		if m.stale(gen) {
			return fmt.Errorf("verify otp: %w", apperr.ErrStaleResponse)
		}
		return fmt.Errorf("verify otp: %w", asFailure(err, apperr.ErrInvalidOTP))
	}
	return m.authenticate(ctx, gen, PhaseAwaitingOTP, tokens)
}

// authenticate persists tokens and then moves to PhaseAuthenticated, as long
// as nothing changed the session since gen.
func (m *Manager) authenticate(ctx context.Context, gen uint64, from Phase, tokens Tokens) error {
	m.mu.Lock()
	if m.gen != gen || m.phase != from {
		m.mu.Unlock()
		return fmt.Errorf("authenticate: %w", apperr.ErrStaleResponse)
	}
	if err := m.persistTokens(ctx, tokens); err != nil {
		m.mu.Unlock()
		return err
	}
	m.tokens = tokens
	m.phase = PhaseAuthenticated
	m.gen++
	m.mu.Unlock()

	m.logger.Info("session authenticated", "via", from, "access_token_prefix", tokenPrefix(tokens.Access))
	m.publish(EventPhaseChanged, PhaseAuthenticated, "")
	return nil
}

// persistTokens writes both tokens. On partial failure both keys are
// removed so the store never holds half a session. Caller holds mu.
func (m *Manager) persistTokens(ctx context.Context, tokens Tokens) error {
	err := m.store.Set(ctx, store.KeyAccessToken, tokens.Access)
	if err == nil {
		err = m.store.Set(ctx, store.KeyRefreshToken, tokens.Refresh)
	}
	if err != nil {
		if delErr := m.store.Delete(ctx, store.KeyAccessToken, store.KeyRefreshToken); delErr != nil {
			m.logger.Error("failed to clear partially persisted session", "error", delErr)
		}
		return fmt.Errorf("failed to persist tokens: %w", err)
	}
	return nil
}

// CancelLogin abandons an unfinished login and returns to PhaseAnonymous.
// Responses still in flight for the abandoned step are discarded.
func (m *Manager) CancelLogin() {
	m.mu.Lock()
	if m.phase == PhaseAnonymous || m.phase == PhaseAuthenticated {
		m.mu.Unlock()
		return
	}
	m.phase = PhaseAnonymous
	m.phone = ""
	m.gen++
	m.mu.Unlock()
	m.publish(EventPhaseChanged, PhaseAnonymous, "cancelled")
}

// Logout clears the tokens from memory and the store and returns to
// PhaseAnonymous. Server-side revocation is attempted when supported and
// its failure is only logged.
func (m *Manager) Logout(ctx context.Context) error {
	tokens, err := m.clear(ctx)
	m.publish(EventLoggedOut, PhaseAnonymous, "")

	if tokens.Complete() {
		m.revoke(ctx, tokens)
	}
	return err
}

// clear resets the session and removes persisted tokens.
func (m *Manager) clear(ctx context.Context) (Tokens, error) {
	m.mu.Lock()
	tokens := m.tokens
	m.tokens = Tokens{}
	m.phase = PhaseAnonymous
	m.phone = ""
	m.gen++
	err := m.store.Delete(ctx, store.KeyAccessToken, store.KeyRefreshToken)
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("failed to remove persisted tokens", "error", err)
		return tokens, fmt.Errorf("failed to clear session: %w", err)
	}
	return tokens, nil
}

func (m *Manager) revoke(ctx context.Context, tokens Tokens) {
	var revoker Revoker
	if r, ok := m.issuer.(Revoker); ok {
		revoker = r
	} else if r, ok := m.backend.(Revoker); ok {
		revoker = r
	}
	if revoker == nil {
		return
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()
	if err := revoker.Revoke(callCtx, tokens); err != nil {
		m.logger.Warn("token revocation failed", "error", err)
	}
}

// Teardown closes every subscription. The manager is unusable for
// observers afterwards.
func (m *Manager) Teardown() {
	m.hub.Close()
}

func (m *Manager) stale(gen uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen != gen
}

func (m *Manager) publish(kind EventKind, phase Phase, reason string) {
	m.hub.Publish(Event{Kind: kind, Phase: phase, Reason: reason})
}

// asFailure tags err with kind unless it is already a transport failure or
// already carries kind.
func asFailure(err, kind error) error {
	if errors.Is(err, apperr.ErrNetworkFailure) || errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

func tokenPrefix(token string) string {
	return token[:min(8, len(token))]
}
