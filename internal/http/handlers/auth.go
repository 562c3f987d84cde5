package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ecomauth/server/internal/auth"
	"github.com/ecomauth/server/internal/email"
	"github.com/ecomauth/server/internal/middleware"
	"github.com/ecomauth/server/internal/model"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	service *auth.Service
	google  *auth.GoogleBridge // nil when federated login is not configured
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service *auth.Service, google *auth.GoogleBridge) *AuthHandler {
	return &AuthHandler{service: service, google: google}
}

// requestOTPRequest is the request body for POST /auth/otp
type requestOTPRequest struct {
	Email string `json:"email"`
	Type  string `json:"type"`
}

// HandleRequestOTP handles POST /auth/otp
func (h *AuthHandler) HandleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req requestOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithFieldError(w, http.StatusUnprocessableEntity, "", "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		respondWithFieldError(w, http.StatusBadRequest, "email", "email is required")
		return
	}
	purpose, ok := parsePurpose(req.Type)
	if !ok {
		respondWithFieldError(w, http.StatusBadRequest, "type", "unknown verification code type")
		return
	}

	if err := h.service.RequestOTP(r.Context(), req.Email, purpose); err != nil {
		respondDomainError(w, req.Email, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "otp_sent"})
}

// registerRequest is the request body for POST /auth/register
type registerRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Name            string `json:"name"`
	PhoneNumber     string `json:"phoneNumber"`
	Code            string `json:"code"`
}

// userResponse is the user object in API responses. Credential fields are
// absent by construction.
type userResponse struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Avatar      string `json:"avatar,omitempty"`
	Status      string `json:"status"`
	RoleID      int64  `json:"roleId"`
}

// HandleRegister handles POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithFieldError(w, http.StatusUnprocessableEntity, "", "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Code = strings.TrimSpace(req.Code)
	switch {
	case req.Email == "":
		respondWithFieldError(w, http.StatusBadRequest, "email", "email is required")
		return
	case len(req.Password) < 6:
		respondWithFieldError(w, http.StatusBadRequest, "password", "password must be at least 6 characters")
		return
	case req.Password != req.ConfirmPassword:
		respondWithFieldError(w, http.StatusUnprocessableEntity, "confirmPassword", "passwords do not match")
		return
	case req.Code == "":
		respondWithFieldError(w, http.StatusBadRequest, "code", "code is required")
		return
	}

	user, err := h.service.Register(r.Context(), auth.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		Code:        req.Code,
	})
	if err != nil {
		respondDomainError(w, req.Email, err)
		return
	}
	respondJSON(w, http.StatusCreated, toUserResponse(user))
}

// loginRequest is the request body for POST /auth/login
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TOTPCode string `json:"totpCode"`
	Code     string `json:"code"`
}

// tokenResponse is the token pair returned by login, refresh and the Google
// callback.
type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithFieldError(w, http.StatusUnprocessableEntity, "", "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		respondWithFieldError(w, http.StatusBadRequest, "email", "email and password are required")
		return
	}

	pair, err := h.service.Login(r.Context(), auth.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: r.UserAgent(),
		IP:        getClientIP(r),
		TOTPCode:  strings.TrimSpace(req.TOTPCode),
		OTPCode:   strings.TrimSpace(req.Code),
	})
	if err != nil {
		respondDomainError(w, req.Email, err)
		return
	}
	respondJSON(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// refreshRequest is the request body for POST /auth/refresh and /auth/logout
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// HandleRefresh handles POST /auth/refresh
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithFieldError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		respondWithFieldError(w, http.StatusBadRequest, "refreshToken", "refreshToken is required")
		return
	}

	pair, err := h.service.RefreshToken(r.Context(), req.RefreshToken, r.UserAgent(), getClientIP(r))
	if err != nil {
		respondDomainError(w, "", err)
		return
	}
	respondJSON(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// HandleLogout handles POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithFieldError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		respondWithFieldError(w, http.StatusBadRequest, "refreshToken", "refreshToken is required")
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		respondDomainError(w, "", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "logout successful"})
}

// forgotPasswordRequest is the request body for POST /auth/forgot-password
type forgotPasswordRequest struct {
	Email              string `json:"email"`
	Code               string `json:"code"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

// HandleForgotPassword handles POST /auth/forgot-password
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithFieldError(w, http.StatusUnprocessableEntity, "", "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Code = strings.TrimSpace(req.Code)
	switch {
	case req.Email == "" || req.Code == "":
		respondWithFieldError(w, http.StatusBadRequest, "email", "email and code are required")
		return
	case len(req.NewPassword) < 6:
		respondWithFieldError(w, http.StatusBadRequest, "newPassword", "password must be at least 6 characters")
		return
	case req.NewPassword != req.ConfirmNewPassword:
		respondWithFieldError(w, http.StatusUnprocessableEntity, "confirmNewPassword", "passwords do not match")
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		respondDomainError(w, req.Email, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// HandleSetup2FA handles POST /auth/2fa/setup (protected)
func (h *AuthHandler) HandleSetup2FA(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithFieldError(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}

	setup, err := h.service.SetupTwoFactor(r.Context(), user.ID)
	if err != nil {
		respondDomainError(w, user.Email, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"secret": setup.Secret,
		"uri":    setup.ProvisioningURI,
	})
}

// disable2FARequest is the request body for POST /auth/2fa/disable
type disable2FARequest struct {
	TOTPCode string `json:"totpCode"`
	Code     string `json:"code"`
}

// HandleDisable2FA handles POST /auth/2fa/disable (protected)
func (h *AuthHandler) HandleDisable2FA(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithFieldError(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}

	var req disable2FARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithFieldError(w, http.StatusUnprocessableEntity, "", "invalid request body")
		return
	}

	err := h.service.DisableTwoFactor(r.Context(), user.ID, strings.TrimSpace(req.TOTPCode), strings.TrimSpace(req.Code))
	if err != nil {
		respondDomainError(w, user.Email, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "two-factor authentication disabled"})
}

// HandleGoogleURL handles GET /auth/google/url
func (h *AuthHandler) HandleGoogleURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.google.AuthorizationURL(r.UserAgent(), getClientIP(r))
	if err != nil {
		respondWithFieldError(w, http.StatusInternalServerError, "", "failed to build authorization URL")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

// HandleGoogleCallback handles GET /auth/google/callback
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		respondWithFieldError(w, http.StatusBadRequest, "code", "code is required")
		return
	}
	state := r.URL.Query().Get("state")

	pair, err := h.google.Callback(r.Context(), code, state)
	if err != nil {
		logrus.WithError(err).Warn("google callback failed")
		respondWithFieldError(w, http.StatusUnauthorized, "", "google login failed")
		return
	}
	respondJSON(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// HandleMe handles GET /me (protected). Returns the authenticated user.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithFieldError(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(*user))
}

func toUserResponse(u model.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		PhoneNumber: u.PhoneNumber,
		Avatar:      u.Avatar,
		Status:      string(u.Status),
		RoleID:      u.RoleID,
	}
}

func parsePurpose(raw string) (model.CodePurpose, bool) {
	switch model.CodePurpose(raw) {
	case model.PurposeRegister, model.PurposeForgotPassword, model.PurposeLogin, model.PurposeDisable2FA:
		return model.CodePurpose(raw), true
	}
	return "", false
}

// respondDomainError maps a domain error to its HTTP status and field-level
// body. Unexpected errors become opaque 500s.
func respondDomainError(w http.ResponseWriter, emailAddr string, err error) {
	domainErr := auth.AsError(err)
	if domainErr == nil {
		if emailAddr != "" {
			logrus.WithField("email", email.Mask(emailAddr)).WithError(err).Error("internal error")
		} else {
			logrus.WithError(err).Error("internal error")
		}
		respondWithFieldError(w, http.StatusInternalServerError, "", "internal server error")
		return
	}

	status := http.StatusUnprocessableEntity
	switch domainErr.Kind {
	case auth.KindEmailAlreadyExists, auth.KindTwoFactorAlreadyEnabled, auth.KindTwoFactorNotEnabled:
		status = http.StatusConflict
	case auth.KindEmailNotFound:
		status = http.StatusNotFound
	case auth.KindRefreshTokenRevoked, auth.KindUnauthorized, auth.KindInvalidToken:
		status = http.StatusUnauthorized
	case auth.KindOTPDeliveryFailed:
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]string{
		"error": domainErr.Error(),
		"code":  string(domainErr.Kind),
	}
	if domainErr.Field != "" {
		body["field"] = domainErr.Field
	}
	_ = json.NewEncoder(w).Encode(body)
}

// respondWithFieldError sends a JSON error response with an optional field name
func respondWithFieldError(w http.ResponseWriter, statusCode int, field, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	body := map[string]string{"error": message}
	if field != "" {
		body["field"] = field
	}
	_ = json.NewEncoder(w).Encode(body)
}

func respondJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithError(err).Error("failed to encode response")
	}
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}
	return r.RemoteAddr
}
