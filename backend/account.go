package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"storefront/apperr"
	"storefront/session"
)

var _ session.Backend = (*Client)(nil)

type phoneRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type ackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type verifyOTPRequest struct {
	OTP         string `json:"otp"`
	PhoneNumber string `json:"phone_number"`
	session.ProfileForm
}

type verifyOTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type tokenRequest struct {
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// CheckPhone asks whether a user with phone exists and has a password.
func (c *Client) CheckPhone(ctx context.Context, phone string) (session.PhoneStatus, error) {
	var status session.PhoneStatus
	err := c.do(ctx, request{
		op:     "check phone",
		method: http.MethodPost,
		path:   "account/check-login-phone/",
		body:   phoneRequest{PhoneNumber: phone},
	}, &status)
	return status, err
}

// SendOTP asks the backend to text a code to phone.
func (c *Client) SendOTP(ctx context.Context, phone string) error {
	var ack ackResponse
	err := c.do(ctx, request{
		op:     "send otp",
		method: http.MethodPost,
		path:   "account/send-otp/",
		body:   phoneRequest{PhoneNumber: phone},
	}, &ack)
	if err != nil {
		return err
	}
	if !ack.Success {
		return fmt.Errorf("send otp: %s", ack.Message)
	}
	return nil
}

// VerifyOTP checks code and creates or updates the profile. A 400 or an
// unsuccessful body is reported as apperr.ErrInvalidOTP.
func (c *Client) VerifyOTP(ctx context.Context, phone, code string, profile session.ProfileForm) (session.Tokens, error) {
	var resp verifyOTPResponse
	err := c.do(ctx, request{
		op:     "verify otp",
		method: http.MethodPost,
		path:   "account/verify-otp/",
		body:   verifyOTPRequest{OTP: code, PhoneNumber: phone, ProfileForm: profile},
	}, &resp)
	if err != nil {
		if isStatus(err, http.StatusBadRequest) {
			return session.Tokens{}, fmt.Errorf("%w: %w", apperr.ErrInvalidOTP, err)
		}
		return session.Tokens{}, err
	}
	if !resp.Success {
		return session.Tokens{}, fmt.Errorf("%w: %s", apperr.ErrInvalidOTP, resp.Message)
	}
	return session.Tokens{Access: resp.Access, Refresh: resp.Refresh}, nil
}

// ObtainToken exchanges phone and password for a token pair.
func (c *Client) ObtainToken(ctx context.Context, phone, password string) (session.Tokens, error) {
	var tokens session.Tokens
	err := c.do(ctx, request{
		op:     "obtain token",
		method: http.MethodPost,
		path:   "account/token/",
		body:   tokenRequest{PhoneNumber: phone, Password: password},
	}, &tokens)
	if err != nil {
		if isStatus(err, http.StatusBadRequest, http.StatusUnauthorized) {
			return session.Tokens{}, fmt.Errorf("%w: %w", apperr.ErrInvalidCredentials, err)
		}
		return session.Tokens{}, err
	}
	return tokens, nil
}

// RefreshToken mints a new access token. The refresh token is returned only
// when the backend rotates it.
func (c *Client) RefreshToken(ctx context.Context, refresh string) (session.Tokens, error) {
	var tokens session.Tokens
	err := c.do(ctx, request{
		op:     "refresh token",
		method: http.MethodPost,
		path:   "account/token/refresh/",
		body:   refreshRequest{Refresh: refresh},
	}, &tokens)
	return tokens, err
}

// UserInfo returns the profile of the token owner.
func (c *Client) UserInfo(ctx context.Context, access string) (session.UserInfo, error) {
	var info session.UserInfo
	err := c.do(ctx, request{
		op:     "user info",
		method: http.MethodGet,
		path:   "account/user-info/",
		access: access,
	}, &info)
	return info, err
}

func isStatus(err error, codes ...int) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	for _, code := range codes {
		if statusErr.StatusCode == code {
			return true
		}
	}
	return false
}
