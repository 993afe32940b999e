package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/apperr"
	"storefront/store"
)

const validPhone = "09123456789"

func newManager(t *testing.T, backend *fakeBackend, opts ...Option) (*Manager, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	m := New(backend, mem, nil, opts...)
	t.Cleanup(m.Teardown)
	return m, mem
}

func boolPtr(b bool) *bool { return &b }

func TestManager_SubmitPhoneNumber(t *testing.T) {
	tests := []struct {
		name      string
		status    PhoneStatus
		want      Phase
		wantSends int
	}{
		{name: "existing user", status: PhoneStatus{NewUser: false}, want: PhaseAwaitingPassword},
		{name: "existing user with password", status: PhoneStatus{HasPassword: boolPtr(true)}, want: PhaseAwaitingPassword},
		{name: "new user", status: PhoneStatus{NewUser: true}, want: PhaseAwaitingOTP, wantSends: 1},
		{name: "existing user without password", status: PhoneStatus{HasPassword: boolPtr(false)}, want: PhaseAwaitingOTP, wantSends: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.status = tt.status
			m, _ := newManager(t, backend)

			phase, err := m.SubmitPhoneNumber(context.Background(), validPhone)

			require.NoError(t, err)
			assert.Equal(t, tt.want, phase)
			assert.Equal(t, tt.want, m.Phase())
			assert.Equal(t, validPhone, m.State().PhoneNumber)
			assert.Equal(t, tt.wantSends, backend.sendCalls)
		})
	}
}

func TestManager_SubmitPhoneNumberInvalidNeverCallsBackend(t *testing.T) {
	backend := newFakeBackend()
	m, _ := newManager(t, backend)

	phase, err := m.SubmitPhoneNumber(context.Background(), "0912345678")

	var vErr *apperr.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.NotEmpty(t, vErr.Message)
	assert.Equal(t, PhaseAnonymous, phase)
	assert.Zero(t, backend.checkCalls)
}

func TestManager_PhoneCheckFailureReturnsToAnonymous(t *testing.T) {
	backend := newFakeBackend()
	backend.checkErr = apperr.ErrNetworkFailure
	m, _ := newManager(t, backend)

	phase, err := m.SubmitPhoneNumber(context.Background(), validPhone)

	assert.ErrorIs(t, err, apperr.ErrNetworkFailure)
	assert.Equal(t, PhaseAnonymous, phase)
	assert.Equal(t, State{Phase: PhaseAnonymous}, m.State())

	backend.checkErr = nil
	phase, err = m.SubmitPhoneNumber(context.Background(), validPhone)
	require.NoError(t, err)
	assert.Equal(t, PhaseAwaitingPassword, phase)
}

func TestManager_SubmitPhoneNumberWrongPhase(t *testing.T) {
	m, _ := newManager(t, newFakeBackend())
	_, err := m.SubmitPhoneNumber(context.Background(), validPhone)
	require.NoError(t, err)

	_, err = m.SubmitPhoneNumber(context.Background(), validPhone)

	assert.ErrorIs(t, err, apperr.ErrWrongPhase)
}

func TestManager_LateCheckResponseIsDiscarded(t *testing.T) {
	backend := newFakeBackend()
	backend.checkGate = make(chan struct{})
	m, _ := newManager(t, backend)

	done := make(chan error, 1)
	go func() {
		_, err := m.SubmitPhoneNumber(context.Background(), validPhone)
		done <- err
	}()

	require.Eventually(t, func() bool { return m.Phase() == PhasePhoneSubmitted }, time.Second, time.Millisecond)
	m.CancelLogin()
	close(backend.checkGate)

	err := <-done
	assert.ErrorIs(t, err, apperr.ErrStaleResponse)
	assert.Equal(t, PhaseAnonymous, m.Phase())
}

func TestManager_SubmitPassword(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	m, mem := newManager(t, backend)
	_, err := m.SubmitPhoneNumber(ctx, validPhone)
	require.NoError(t, err)

	err = m.SubmitPassword(ctx, "wrong")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	assert.Equal(t, PhaseAwaitingPassword, m.Phase())

	require.NoError(t, m.SubmitPassword(ctx, "secret"))
	assert.Equal(t, PhaseAuthenticated, m.Phase())

	access, err := mem.Get(ctx, store.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access-1", access)
	refresh, err := mem.Get(ctx, store.KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", refresh)
}

func TestManager_SubmitPasswordNetworkFailureStaysDistinct(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t, newFakeBackend(), WithTokenIssuer(issuerFunc(func() (Tokens, error) {
		return Tokens{}, apperr.ErrNetworkFailure
	})))
	_, err := m.SubmitPhoneNumber(ctx, validPhone)
	require.NoError(t, err)

	err = m.SubmitPassword(ctx, "secret")

	assert.ErrorIs(t, err, apperr.ErrNetworkFailure)
	assert.NotErrorIs(t, err, apperr.ErrInvalidCredentials)
	assert.Equal(t, PhaseAwaitingPassword, m.Phase())
}

func TestManager_SubmitPasswordIncompleteTokens(t *testing.T) {
	ctx := context.Background()
	m, mem := newManager(t, newFakeBackend(), WithTokenIssuer(issuerFunc(func() (Tokens, error) {
		return Tokens{Access: "only-access"}, nil
	})))
	_, err := m.SubmitPhoneNumber(ctx, validPhone)
	require.NoError(t, err)

	err = m.SubmitPassword(ctx, "secret")

	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	_, getErr := mem.Get(ctx, store.KeyAccessToken)
	assert.ErrorIs(t, getErr, store.ErrNotFound)
}

func TestManager_SubmitPasswordWrongPhase(t *testing.T) {
	m, _ := newManager(t, newFakeBackend())

	err := m.SubmitPassword(context.Background(), "secret")

	assert.ErrorIs(t, err, apperr.ErrWrongPhase)
}

func TestManager_SubmitOTP(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.status = PhoneStatus{NewUser: true}
	m, mem := newManager(t, backend)
	_, err := m.SubmitPhoneNumber(ctx, validPhone)
	require.NoError(t, err)

	profile := ProfileForm{FirstName: "Sara", LastName: "Ahmadi", Email: "sara@example.com", Password: "pw", ConfirmPassword: "pw"}

	err = m.SubmitOTP(ctx, "1234", profile)
	var vErr *apperr.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Zero(t, backend.verifyCalls)

	err = m.SubmitOTP(ctx, "54321", profile)
	assert.ErrorIs(t, err, apperr.ErrInvalidOTP)
	assert.Equal(t, PhaseAwaitingOTP, m.Phase())

	require.NoError(t, m.SubmitOTP(ctx, "12345", profile))
	assert.Equal(t, PhaseAuthenticated, m.Phase())
	assert.Equal(t, profile, backend.lastProfile)

	access, err := mem.Get(ctx, store.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access-1", access)
}

func TestManager_SubmitOTPRejectsMismatchedPasswords(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.status = PhoneStatus{NewUser: true}
	m, _ := newManager(t, backend)
	_, err := m.SubmitPhoneNumber(ctx, validPhone)
	require.NoError(t, err)

	err = m.SubmitOTP(ctx, "12345", ProfileForm{Password: "a", ConfirmPassword: "b"})

	var vErr *apperr.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "confirm_password", vErr.Field)
	assert.Zero(t, backend.verifyCalls)
}

func TestManager_ResendOTPThrottled(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.status = PhoneStatus{NewUser: true}
	m, _ := newManager(t, backend, WithResendLimit(time.Hour, 2))
	_, err := m.SubmitPhoneNumber(ctx, validPhone)
	require.NoError(t, err)

	require.NoError(t, m.ResendOTP(ctx))
	err = m.ResendOTP(ctx)

	assert.ErrorIs(t, err, apperr.ErrOTPThrottled)
	assert.Equal(t, 2, backend.sendCalls)
}

func TestManager_ResendOTPWrongPhase(t *testing.T) {
	m, _ := newManager(t, newFakeBackend())

	err := m.ResendOTP(context.Background())

	assert.ErrorIs(t, err, apperr.ErrWrongPhase)
}

func TestManager_OTPDispatchFailureKeepsAwaitingOTP(t *testing.T) {
	backend := newFakeBackend()
	backend.status = PhoneStatus{NewUser: true}
	backend.sendErr = apperr.ErrNetworkFailure
	m, _ := newManager(t, backend)

	phase, err := m.SubmitPhoneNumber(context.Background(), validPhone)

	assert.ErrorIs(t, err, apperr.ErrNetworkFailure)
	assert.Equal(t, PhaseAwaitingOTP, phase)
}

func TestManager_LogoutClearsTokensAndRevokes(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	m, mem := newManager(t, backend)
	authenticate(t, m)

	events, cancel := m.Subscribe()
	defer cancel()

	require.NoError(t, m.Logout(ctx))

	assert.Equal(t, State{Phase: PhaseAnonymous}, m.State())
	_, err := mem.Get(ctx, store.KeyAccessToken)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = mem.Get(ctx, store.KeyRefreshToken)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, []Tokens{{Access: "access-1", Refresh: "refresh-1"}}, backend.revoked)
	assert.Equal(t, Event{Kind: EventLoggedOut, Phase: PhaseAnonymous}, <-events)
}

func TestManager_LogoutIgnoresRevokeFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.revokeErr = errors.New("revocation endpoint down")
	m, _ := newManager(t, backend)
	authenticate(t, m)

	require.NoError(t, m.Logout(context.Background()))
	assert.Equal(t, PhaseAnonymous, m.Phase())
}

func TestManager_Restore(t *testing.T) {
	tests := []struct {
		name    string
		access  string
		refresh string
		want    Phase
	}{
		{name: "both tokens", access: "a", refresh: "r", want: PhaseAuthenticated},
		{name: "no tokens", want: PhaseAnonymous},
		{name: "access only", access: "a", want: PhaseAnonymous},
		{name: "refresh only", refresh: "r", want: PhaseAnonymous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			m, mem := newManager(t, newFakeBackend())
			if tt.access != "" {
				require.NoError(t, mem.Set(ctx, store.KeyAccessToken, tt.access))
			}
			if tt.refresh != "" {
				require.NoError(t, mem.Set(ctx, store.KeyRefreshToken, tt.refresh))
			}

			assert.Equal(t, tt.want, m.Restore(ctx))
			assert.Equal(t, tt.want, m.Phase())

			if tt.want == PhaseAnonymous {
				_, err := mem.Get(ctx, store.KeyAccessToken)
				assert.ErrorIs(t, err, store.ErrNotFound)
				_, err = mem.Get(ctx, store.KeyRefreshToken)
				assert.ErrorIs(t, err, store.ErrNotFound)
			}
		})
	}
}

func TestManager_SubscribeSeesPhaseChanges(t *testing.T) {
	backend := newFakeBackend()
	m, _ := newManager(t, backend)
	events, cancel := m.Subscribe()
	defer cancel()

	authenticate(t, m)

	var phases []Phase
	for len(events) > 0 {
		phases = append(phases, (<-events).Phase)
	}
	assert.Equal(t, []Phase{PhasePhoneSubmitted, PhaseAwaitingPassword, PhaseAuthenticated}, phases)
}

func authenticate(t *testing.T, m *Manager) {
	t.Helper()
	ctx := context.Background()
	_, err := m.SubmitPhoneNumber(ctx, validPhone)
	require.NoError(t, err)
	require.NoError(t, m.SubmitPassword(ctx, "secret"))
	require.Equal(t, PhaseAuthenticated, m.Phase())
}

// issuerFunc answers every token request with the same result.
type issuerFunc func() (Tokens, error)

func (f issuerFunc) ObtainToken(context.Context, string, string) (Tokens, error) { return f() }
func (f issuerFunc) RefreshToken(context.Context, string) (Tokens, error)        { return f() }

func TestManager_RestoredSessionLearnsPhoneNumber(t *testing.T) {
	ctx := context.Background()
	m, mem := newManager(t, newFakeBackend())
	require.NoError(t, mem.Set(ctx, store.KeyAccessToken, "access-1"))
	require.NoError(t, mem.Set(ctx, store.KeyRefreshToken, "refresh-1"))

	require.Equal(t, PhaseAuthenticated, m.Restore(ctx))
	assert.Empty(t, m.State().PhoneNumber)

	info, err := m.EnsureFresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "09123456789", info.PhoneNumber)
	assert.Equal(t, State{Phase: PhaseAuthenticated, PhoneNumber: "09123456789"}, m.State())
}
