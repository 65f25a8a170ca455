package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/veriqo/server/internal/auth"
)

// AuthHandler handles the authentication endpoints.
type AuthHandler struct {
	svc          *auth.Service
	errorLogPath string
	log          *zap.Logger
}

// NewAuthHandler creates an auth handler. errorLogPath backs the
// diagnostic GET /auth/logs endpoint.
func NewAuthHandler(svc *auth.Service, errorLogPath string, log *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, errorLogPath: errorLogPath, log: log}
}

// signupRequest is the request body for POST /auth/signup
type signupRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Phone     string `json:"phone"`
}

// signinRequest is the request body for POST /auth/signin
type signinRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// otpRequest is the request body for the OTP verification endpoints.
// The code is accepted as a JSON number or numeric string.
type otpRequest struct {
	Phone string      `json:"phone"`
	OTP   json.Number `json:"otp"`
}

// newPasswordRequest is the request body for PATCH /auth/reset-password
type newPasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

// HandleSignup handles POST /auth/signup
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" || req.Password == "" {
		respondBadRequest(w, "phone and password are required")
		return
	}

	in := auth.SignupInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Password:  req.Password,
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		in.Email = &email
	}

	res, err := h.svc.Signup(r.Context(), in)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// HandleSignin handles POST /auth/signin
func (h *AuthHandler) HandleSignin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" || req.Password == "" {
		respondBadRequest(w, "phone and password are required")
		return
	}

	res, err := h.svc.Signin(r.Context(), req.Phone, req.Password)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func decodeOTPRequest(w http.ResponseWriter, r *http.Request) (phone, code string, ok bool) {
	var req otpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body")
		return "", "", false
	}
	phone = strings.TrimSpace(req.Phone)
	code = req.OTP.String()
	if phone == "" || code == "" {
		respondBadRequest(w, "phone and otp are required")
		return "", "", false
	}
	return phone, code, true
}

// HandleLoginOTPVerification handles POST /auth/signin/otp-verification
func (h *AuthHandler) HandleLoginOTPVerification(w http.ResponseWriter, r *http.Request) {
	phone, code, ok := decodeOTPRequest(w, r)
	if !ok {
		return
	}
	res, err := h.svc.LoginOTPVerification(r.Context(), phone, code)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// HandleOTPVerification handles POST /auth/otp-verification
func (h *AuthHandler) HandleOTPVerification(w http.ResponseWriter, r *http.Request) {
	phone, code, ok := decodeOTPRequest(w, r)
	if !ok {
		return
	}
	res, err := h.svc.OTPVerification(r.Context(), phone, code)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// HandleResendOTP handles GET /auth/resend-otp/{phone}
func (h *AuthHandler) HandleResendOTP(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(chi.URLParam(r, "phone"))
	if phone == "" {
		respondBadRequest(w, "phone is required")
		return
	}
	res, err := h.svc.ResendOTP(r.Context(), phone)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// HandleMagicLink handles GET /auth/magic-link/{email}
func (h *AuthHandler) HandleMagicLink(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(chi.URLParam(r, "email"))
	if email == "" {
		respondBadRequest(w, "email is required")
		return
	}
	res, err := h.svc.MagicLink(r.Context(), email)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// HandleForgotPassword handles GET /auth/forgot-password/{email}
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(chi.URLParam(r, "email"))
	if email == "" {
		respondBadRequest(w, "email is required")
		return
	}
	res, err := h.svc.ForgotPassword(r.Context(), email)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// HandleResetPassword handles PATCH /auth/reset-password/{email}/{token}
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(chi.URLParam(r, "email"))
	token := strings.TrimSpace(chi.URLParam(r, "token"))

	var req newPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}
	if email == "" || token == "" || req.NewPassword == "" {
		respondBadRequest(w, "email, token and newPassword are required")
		return
	}

	res, err := h.svc.ResetPassword(r.Context(), email, token, req.NewPassword)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// HandleReadLogs handles GET /auth/logs. Thin operational utility over
// the error log file; not part of the core flows.
func (h *AuthHandler) HandleReadLogs(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(h.errorLogPath)
	if err != nil {
		respondBadRequest(w, "No error files was found")
		return
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	respondJSON(w, http.StatusOK, map[string]interface{}{"data": lines})
}
