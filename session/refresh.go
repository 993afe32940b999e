package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/apperr"
)

const refreshKey = "token_refresh"

// AuthFunc is an authenticated backend call made with the given access token.
type AuthFunc func(ctx context.Context, access string) error

// Do runs fn with the current access token. If fn reports ErrTokenExpired the
// token is refreshed once, shared with every concurrent caller, and fn is
// retried exactly once. A failed refresh logs the session out and returns
// ErrTokenRefreshFailed.
func (m *Manager) Do(ctx context.Context, fn AuthFunc) error {
	access, err := m.accessToken()
	if err != nil {
		return err
	}

	err = m.call(ctx, access, fn)
	if !errors.Is(err, apperr.ErrTokenExpired) {
		return err
	}

	m.logger.Info("access token rejected, refreshing", "access_token_prefix", tokenPrefix(access))
	fresh, err := m.refreshAccess(ctx, access)
	if err != nil {
		return err
	}
	return m.call(ctx, fresh, fn)
}

// WithToken runs fn once with the current access token and never refreshes.
// It is for calls that must not be repeated, such as starting a payment.
func (m *Manager) WithToken(ctx context.Context, fn AuthFunc) error {
	access, err := m.accessToken()
	if err != nil {
		return err
	}
	return m.call(ctx, access, fn)
}

// EnsureFresh makes a trial authenticated call, refreshing the token if the
// backend rejects it, and returns the user profile. A restored session
// learns its phone number here.
func (m *Manager) EnsureFresh(ctx context.Context) (UserInfo, error) {
	var info UserInfo
	err := m.Do(ctx, func(ctx context.Context, access string) error {
		var err error
		info, err = m.backend.UserInfo(ctx, access)
		return err
	})
	if err == nil && info.PhoneNumber != "" {
		m.mu.Lock()
		if m.phase == PhaseAuthenticated && m.phone == "" {
			m.phone = info.PhoneNumber
		}
		m.mu.Unlock()
	}
	return info, err
}

func (m *Manager) call(ctx context.Context, access string, fn AuthFunc) error {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return fn(callCtx, access)
}

// accessToken reads the token, waiting for any refresh in flight.
func (m *Manager) accessToken() (string, error) {
	m.gate.RLock()
	defer m.gate.RUnlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.phase != PhaseAuthenticated {
		return "", fmt.Errorf("authenticated call in %s: %w", m.phase, apperr.ErrWrongPhase)
	}
	return m.tokens.Access, nil
}

// refreshAccess returns a token newer than rejected. Concurrent callers share
// one backend refresh.
func (m *Manager) refreshAccess(ctx context.Context, rejected string) (string, error) {
	start := time.Now()
	result, err, shared := m.refresh.Do(refreshKey, func() (any, error) {
		m.gate.Lock()
		defer m.gate.Unlock()
		return m.performRefresh(ctx, rejected)
	})
	if err != nil {
		return "", err
	}

	m.logger.Debug("token refresh completed", "duration", time.Since(start), "shared_result", shared)
	return result.(string), nil
}

// performRefresh runs with gate held exclusively.
func (m *Manager) performRefresh(ctx context.Context, rejected string) (string, error) {
	m.mu.RLock()
	phase, tokens, gen := m.phase, m.tokens, m.gen
	m.mu.RUnlock()

	if phase != PhaseAuthenticated {
		return "", fmt.Errorf("%w: session is %s", apperr.ErrTokenRefreshFailed, phase)
	}
	if tokens.Access != rejected {
		m.logger.Debug("token was already refreshed by another call")
		return tokens.Access, nil
	}

	// A caller giving up must not abort the refresh other callers wait on.
	ctx = context.WithoutCancel(ctx)
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	renewed, err := m.issuer.RefreshToken(callCtx, tokens.Refresh)
	cancel()

	if err == nil && renewed.Access == "" {
		err = errors.New("refresh response missing access token")
	}
	if err != nil {
		return "", m.failRefresh(ctx, gen, err)
	}
	if renewed.Refresh == "" {
		renewed.Refresh = tokens.Refresh
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: %w", apperr.ErrTokenRefreshFailed, apperr.ErrStaleResponse)
	}
	if err := m.persistTokens(ctx, renewed); err != nil {
		m.mu.Unlock()
		return "", m.failRefresh(ctx, gen, err)
	}
	m.tokens = renewed
	m.mu.Unlock()

	m.logger.Info("access token refreshed",
		"old_access_token_prefix", tokenPrefix(tokens.Access),
		"new_access_token_prefix", tokenPrefix(renewed.Access),
		"refresh_rotated", renewed.Refresh != tokens.Refresh)
	m.publish(EventTokenRefreshed, PhaseAuthenticated, "")
	return renewed.Access, nil
}

// failRefresh forces a logout unless the session already moved on.
func (m *Manager) failRefresh(ctx context.Context, gen uint64, cause error) error {
	m.logger.Warn("token refresh failed, logging out", "error", cause)
	m.publish(EventRefreshFailed, PhaseAuthenticated, "")

	if m.stale(gen) {
		return fmt.Errorf("%w: %w", apperr.ErrTokenRefreshFailed, cause)
	}
	if _, err := m.clear(ctx); err != nil {
		m.logger.Error("forced logout could not clear persisted tokens", "error", err)
	}
	m.publish(EventLoggedOut, PhaseAnonymous, "refresh_failed")
	return fmt.Errorf("%w: %w", apperr.ErrTokenRefreshFailed, cause)
}
