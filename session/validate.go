package session

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"storefront/apperr"
)

// OTPLength is the number of digits in a one-time code.
const OTPLength = 5

var (
	phonePattern = regexp.MustCompile(`^09\d{9}$`)
	otpPattern   = regexp.MustCompile(fmt.Sprintf(`^\d{%d}$`, OTPLength))
	validate     = validator.New(validator.WithRequiredStructEnabled())
)

// ValidatePhoneNumber accepts exactly 11 digits starting with "09".
func ValidatePhoneNumber(phone string) error {
	if !phonePattern.MatchString(phone) {
		return apperr.NewValidationError("phone_number", "Phone number must be 11 digits and start with 09.")
	}
	return nil
}

// ValidateOTPCode accepts exactly OTPLength ASCII digits.
func ValidateOTPCode(code string) error {
	if !otpPattern.MatchString(code) {
		return apperr.NewValidationError("otp", fmt.Sprintf("Enter all %d digits of the code.", OTPLength))
	}
	return nil
}

// ProfileForm is collected on the create-profile step and sent with the OTP.
type ProfileForm struct {
	FirstName       string `json:"first_name" validate:"max=150"`
	LastName        string `json:"last_name" validate:"max=150"`
	Email           string `json:"email" validate:"omitempty,email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password" validate:"eqfield=Password"`
}

// Validate checks the profile fields.
func (p ProfileForm) Validate() error {
	if err := validate.Struct(p); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return profileFieldError(verrs[0])
		}
		return apperr.NewValidationError("", err.Error())
	}
	return nil
}

func profileFieldError(fe validator.FieldError) error {
	switch fe.Field() {
	case "Email":
		return apperr.NewValidationError("email", "Enter a valid email address.")
	case "ConfirmPassword":
		return apperr.NewValidationError("confirm_password", "Passwords do not match.")
	default:
		return apperr.NewValidationError(strings.ToLower(fe.Field()), "Value is too long.")
	}
}

// OTPInput tracks a code entered one digit at a time.
type OTPInput struct {
	digits [OTPLength]string
}

// SetDigit stores a single character at position i. An empty value clears it.
func (o *OTPInput) SetDigit(i int, v string) error {
	if i < 0 || i >= OTPLength {
		return apperr.NewValidationError("otp", fmt.Sprintf("Digit position %d is out of range.", i))
	}
	if utf8.RuneCountInString(v) > 1 {
		return apperr.NewValidationError("otp", "Enter one digit per box.")
	}
	o.digits[i] = v
	return nil
}

// Backspace clears position i and returns the position focus should move
// to, which is the previous box when i was already empty.
func (o *OTPInput) Backspace(i int) int {
	if i < 0 || i >= OTPLength {
		return 0
	}
	if o.digits[i] == "" && i > 0 {
		o.digits[i-1] = ""
		return i - 1
	}
	o.digits[i] = ""
	return i
}

// Reset clears every digit.
func (o *OTPInput) Reset() {
	o.digits = [OTPLength]string{}
}

// Code returns the concatenated digits once all of them are numeric.
func (o *OTPInput) Code() (string, error) {
	code := strings.Join(o.digits[:], "")
	if err := ValidateOTPCode(code); err != nil {
		return "", err
	}
	return code, nil
}
