package backendstub

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"regexp"

	"storefront/session"
)

var (
	phonePattern = regexp.MustCompile(`^\d{11}$`)
	otpPattern   = regexp.MustCompile(`^\d{5}$`)
)

type phoneRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type phoneStatusResponse struct {
	NewUser  bool `json:"new_user"`
	HavePass bool `json:"have_pass"`
}

type sendOTPResponse struct {
	Success bool   `json:"success"`
	OTPCode string `json:"otp_code,omitempty"`
	Message string `json:"message"`
}

type verifyOTPRequest struct {
	PhoneNumber     string `json:"phone_number"`
	OTP             string `json:"otp"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type verifyOTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Access  string `json:"access,omitempty"`
	Refresh string `json:"refresh,omitempty"`
}

type tokenRequest struct {
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

func (s *Server) checkPhoneHandler(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if err := decodeBody(r, &req); err != nil || req.PhoneNumber == "" {
		writeJSONError(w, http.StatusBadRequest, "Phone number is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.CheckPhone++

	u, ok := s.users[req.PhoneNumber]
	writeJSON(w, http.StatusOK, phoneStatusResponse{
		NewUser:  !ok,
		HavePass: ok && u.password != "",
	})
}

func (s *Server) sendOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if err := decodeBody(r, &req); err != nil || req.PhoneNumber == "" {
		writeJSON(w, http.StatusBadRequest, ackResponse{Message: "Phone number is required."})
		return
	}
	if !phonePattern.MatchString(req.PhoneNumber) {
		writeJSON(w, http.StatusBadRequest, ackResponse{Message: "Phone number must be 11 digits."})
		return
	}

	code, err := generateOTP()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ackResponse{
			Message: fmt.Sprintf("An unexpected error occurred %v", err),
		})
		return
	}

	s.mu.Lock()
	s.stats.SendOTP++
	s.otps[req.PhoneNumber] = otpEntry{code: code, expires: s.now().Add(otpTTL)}
	s.mu.Unlock()

	s.logger.Info("otp issued", "phone", req.PhoneNumber)
	writeJSON(w, http.StatusOK, sendOTPResponse{
		Success: true,
		OTPCode: code,
		Message: "OTP sent successfully",
	})
}

func (s *Server) verifyOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeBody(r, &req); err != nil || req.PhoneNumber == "" || req.OTP == "" {
		writeJSON(w, http.StatusBadRequest, verifyOTPResponse{Message: "Phone number and OTP are required."})
		return
	}
	if !phonePattern.MatchString(req.PhoneNumber) {
		writeJSON(w, http.StatusBadRequest, verifyOTPResponse{Message: "Invalid phone number format."})
		return
	}
	if !otpPattern.MatchString(req.OTP) {
		writeJSON(w, http.StatusBadRequest, verifyOTPResponse{Message: "Invalid OTP format."})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.VerifyOTP++

	entry, ok := s.otps[req.PhoneNumber]
	if !ok || entry.code != req.OTP || s.now().After(entry.expires) {
		writeJSON(w, http.StatusBadRequest, verifyOTPResponse{Message: "Invalid or expired OTP."})
		return
	}
	delete(s.otps, req.PhoneNumber)

	u := s.addUserLocked(req.PhoneNumber, "")
	applyProfile(u, req)

	tokens, err := s.issueLocked(u, true)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, verifyOTPResponse{
			Message: fmt.Sprintf("An unexpected error occurred. %v", err),
		})
		return
	}
	writeJSON(w, http.StatusOK, verifyOTPResponse{
		Success: true,
		Message: "OTP verified successfully",
		Access:  tokens.Access,
		Refresh: tokens.Refresh,
	})
}

// applyProfile copies the non-empty profile fields. The password is only
// set when both entries match.
func applyProfile(u *user, req verifyOTPRequest) {
	if req.FirstName != "" {
		u.info.FirstName = req.FirstName
	}
	if req.LastName != "" {
		u.info.LastName = req.LastName
	}
	if req.Email != "" {
		u.info.Email = req.Email
	}
	if req.Password != "" && req.Password == req.ConfirmPassword {
		u.password = req.Password
	}
}

func (s *Server) tokenHandler(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(r, &req); err != nil || req.PhoneNumber == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"password": {"This field is required."},
		})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Login++

	u, ok := s.users[req.PhoneNumber]
	if !ok || u.password == "" || u.password != req.Password {
		writeJSON(w, http.StatusUnauthorized, detailResponse{
			Detail: "No active account found with the given credentials",
		})
		return
	}

	tokens, err := s.issueLocked(u, true)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

// refreshHandler mints a new access token. Refresh tokens are not rotated.
func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(r, &req); err != nil || req.Refresh == "" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"refresh": {"This field is required."},
		})
		return
	}

	claims, err := s.verifier.Parse(req.Refresh, tokenTypeRefresh)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Refresh++

	if err != nil || s.failRefresh {
		s.logger.Debug("refresh rejected", "error", err, "forced", s.failRefresh)
		writeJSON(w, http.StatusUnauthorized, detailResponse{
			Detail: "Token is invalid or expired",
			Code:   "token_not_valid",
		})
		return
	}

	id, _ := userIDOf(claims)
	u, ok := s.usersByID[id]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, detailResponse{
			Detail: "User not found",
			Code:   "user_not_found",
		})
		return
	}

	tokens, err := s.issueLocked(u, false)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": tokens.Access})
}

func (s *Server) userInfoHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(r)
	if !ok {
		writeTokenNotValid(w)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.UserInfo++
	writeJSON(w, http.StatusOK, u.info)
}

// currentUser resolves the user named by the access token claims.
func (s *Server) currentUser(r *http.Request) (*user, bool) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		return nil, false
	}
	id, ok := userIDOf(claims)
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByID[id]
	return u, ok
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", session.OTPLength, n.Int64()), nil
}
