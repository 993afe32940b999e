package model

import "storefront/session"

type SubmitPhoneRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type (
	SubmitPasswordRequest struct {
		Password string `json:"password"`
	}

	SubmitOTPRequest struct {
		Code    string              `json:"otp"`
		Profile session.ProfileForm `json:"profile"`
	}

	SessionResponse struct {
		Phase       session.Phase `json:"phase"`
		PhoneNumber string        `json:"phone_number,omitempty"`
		WelcomeSeen bool          `json:"welcome_seen"`
	}
)
