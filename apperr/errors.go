// Package apperr defines the error kinds surfaced by the storefront core.
// Components wrap these sentinels with %w; callers compare with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

// Errors raised before anything reaches the network.
var (
	ErrValidation     = errors.New("validation failed")
	ErrWrongPhase     = errors.New("operation not allowed in current session phase")
	ErrNotInitialized = errors.New("component not initialized")
	ErrOTPThrottled   = errors.New("otp resend throttled")
)

// Authentication errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidOTP         = errors.New("invalid otp")
	ErrTokenExpired       = errors.New("access token expired")
	ErrTokenRefreshFailed = errors.New("token refresh failed")
	ErrStaleResponse      = errors.New("response arrived for an abandoned step")
)

// Transport and checkout errors.
var (
	ErrNetworkFailure      = errors.New("network failure")
	ErrAddressFetchFailed  = errors.New("address fetch failed")
	ErrAddressCreateFailed = errors.New("address create failed")
	ErrOrderSubmitFailed   = errors.New("order submit failed")
	ErrPaymentURLFailed    = errors.New("payment url request failed")
)

// ValidationError carries a user-facing message for input rejected locally.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Kind names an error class for rendering. Kinds are checked in priority
// order so a refresh failure wins over the step failure that wraps it.
type Kind string

const (
	KindNone               Kind = ""
	KindValidation         Kind = "VALIDATION_ERROR"
	KindWrongPhase         Kind = "WRONG_PHASE"
	KindNotInitialized     Kind = "NOT_INITIALIZED"
	KindOTPThrottled       Kind = "OTP_THROTTLED"
	KindInvalidCredentials Kind = "INVALID_CREDENTIALS"
	KindInvalidOTP         Kind = "INVALID_OTP"
	KindTokenRefreshFailed Kind = "TOKEN_REFRESH_FAILED"
	KindTokenExpired       Kind = "TOKEN_EXPIRED"
	KindStaleResponse      Kind = "STALE_RESPONSE"
	KindAddressFetch       Kind = "ADDRESS_FETCH_FAILED"
	KindAddressCreate      Kind = "ADDRESS_CREATE_FAILED"
	KindOrderSubmit        Kind = "ORDER_SUBMIT_FAILED"
	KindPaymentURL         Kind = "PAYMENT_URL_FAILED"
	KindNetworkFailure     Kind = "NETWORK_FAILURE"
	KindInternal           Kind = "INTERNAL_ERROR"
)

var kindOrder = []struct {
	err  error
	kind Kind
}{
	{ErrValidation, KindValidation},
	{ErrTokenRefreshFailed, KindTokenRefreshFailed},
	{ErrWrongPhase, KindWrongPhase},
	{ErrNotInitialized, KindNotInitialized},
	{ErrOTPThrottled, KindOTPThrottled},
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrInvalidOTP, KindInvalidOTP},
	{ErrStaleResponse, KindStaleResponse},
	{ErrAddressFetchFailed, KindAddressFetch},
	{ErrAddressCreateFailed, KindAddressCreate},
	{ErrOrderSubmitFailed, KindOrderSubmit},
	{ErrPaymentURLFailed, KindPaymentURL},
	{ErrTokenExpired, KindTokenExpired},
	{ErrNetworkFailure, KindNetworkFailure},
}

// KindOf maps err to its kind. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kindOrder {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Message returns the user-facing text for err.
func Message(err error) string {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Message
	}
	switch KindOf(err) {
	case KindNone:
		return ""
	case KindWrongPhase:
		return "This step is not available right now."
	case KindOTPThrottled:
		return "Please wait before requesting another code."
	case KindInvalidCredentials:
		return "Incorrect password. Please try again."
	case KindInvalidOTP:
		return "Incorrect OTP. Please try again."
	case KindTokenRefreshFailed:
		return "Your session has expired. Please log in again."
	case KindAddressFetch:
		return "Could not load your addresses."
	case KindAddressCreate:
		return "Could not save the address."
	case KindOrderSubmit:
		return "Could not create the order."
	case KindPaymentURL:
		return "Could not reach the payment gateway."
	case KindNetworkFailure:
		return "Network error. Please try again."
	default:
		return "Something went wrong."
	}
}
