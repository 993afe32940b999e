package session

import (
	"context"
	"sync"

	"storefront/apperr"
)

// fakeBackend is a scripted account service.
type fakeBackend struct {
	mu sync.Mutex

	status      PhoneStatus
	checkErr    error
	checkGate   chan struct{}
	sendErr     error
	verifyErr   error
	verifyCode  string
	password    string
	tokens      Tokens
	refreshed   Tokens
	refreshErr  error
	refreshGate chan struct{}
	validAccess string
	revokeErr   error

	checkCalls    int
	sendCalls     int
	verifyCalls   int
	tokenCalls    int
	refreshCalls  int
	userInfoCalls int
	revoked       []Tokens
	lastProfile   ProfileForm
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		password:    "secret",
		verifyCode:  "12345",
		tokens:      Tokens{Access: "access-1", Refresh: "refresh-1"},
		refreshed:   Tokens{Access: "access-2"},
		validAccess: "access-1",
	}
}

func (f *fakeBackend) CheckPhone(ctx context.Context, phone string) (PhoneStatus, error) {
	f.mu.Lock()
	f.checkCalls++
	gate := f.checkGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if f.checkErr != nil {
		return PhoneStatus{}, f.checkErr
	}
	return f.status, nil
}

func (f *fakeBackend) SendOTP(ctx context.Context, phone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	return f.sendErr
}

func (f *fakeBackend) VerifyOTP(ctx context.Context, phone, code string, profile ProfileForm) (Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	f.lastProfile = profile
	if f.verifyErr != nil {
		return Tokens{}, f.verifyErr
	}
	if code != f.verifyCode {
		return Tokens{}, apperr.ErrInvalidOTP
	}
	return f.tokens, nil
}

func (f *fakeBackend) ObtainToken(ctx context.Context, phone, password string) (Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenCalls++
	if password != f.password {
		return Tokens{}, apperr.ErrInvalidCredentials
	}
	return f.tokens, nil
}

func (f *fakeBackend) RefreshToken(ctx context.Context, refresh string) (Tokens, error) {
	f.mu.Lock()
	f.refreshCalls++
	gate := f.refreshGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return Tokens{}, f.refreshErr
	}
	f.validAccess = f.refreshed.Access
	return f.refreshed, nil
}

func (f *fakeBackend) UserInfo(ctx context.Context, access string) (UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userInfoCalls++
	if access != f.validAccess {
		return UserInfo{}, apperr.ErrTokenExpired
	}
	return UserInfo{PhoneNumber: "09123456789", FirstName: "Sara"}, nil
}

func (f *fakeBackend) Revoke(ctx context.Context, tokens Tokens) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, tokens)
	return f.revokeErr
}

func (f *fakeBackend) counts() (refresh, userInfo int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls, f.userInfoCalls
}
