package session

import "context"

// Tokens is an access/refresh pair. Values are opaque credentials.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Complete reports whether both tokens are present.
func (t Tokens) Complete() bool {
	return t.Access != "" && t.Refresh != ""
}

// PhoneStatus is the answer of the phone check. HasPassword is nil when the
// backend did not say.
type PhoneStatus struct {
	NewUser     bool  `json:"new_user"`
	HasPassword *bool `json:"have_pass,omitempty"`
}

// needsOTP reports whether the user must verify by code instead of password.
func (s PhoneStatus) needsOTP() bool {
	return s.NewUser || (s.HasPassword != nil && !*s.HasPassword)
}

// UserInfo is the profile returned by the user-info endpoint.
type UserInfo struct {
	ID          int    `json:"id,omitempty"`
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
}

// TokenIssuer exchanges credentials for tokens and renews access tokens.
// A refresh response with an empty Refresh keeps the current refresh token.
type TokenIssuer interface {
	ObtainToken(ctx context.Context, phone, password string) (Tokens, error)
	RefreshToken(ctx context.Context, refresh string) (Tokens, error)
}

// Backend is the account service the session talks to.
//
// Implementations map failures onto apperr: transport problems wrap
// ErrNetworkFailure, a rejected bearer token wraps ErrTokenExpired, rejected
// credentials wrap ErrInvalidCredentials and a rejected code wraps ErrInvalidOTP.
type Backend interface {
	TokenIssuer
	CheckPhone(ctx context.Context, phone string) (PhoneStatus, error)
	SendOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string, profile ProfileForm) (Tokens, error)
	UserInfo(ctx context.Context, access string) (UserInfo, error)
}

// Revoker is implemented by issuers that can invalidate tokens server-side.
// Logout uses it on a best-effort basis.
type Revoker interface {
	Revoke(ctx context.Context, tokens Tokens) error
}
