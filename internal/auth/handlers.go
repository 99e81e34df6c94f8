package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// CookieWriter produces the session cookie descriptors. Implemented by
// the session store; declared here so the handler does not depend on it
// directly.
type CookieWriter interface {
	Cookie(session *Session) *http.Cookie
	BlankCookie() *http.Cookie
}

// Handler handles HTTP requests for the account lifecycle.
type Handler struct {
	service *Service
	cookies CookieWriter
	logger  *slog.Logger
}

// NewHandler creates a new auth handler.
func NewHandler(service *Service, cookies CookieWriter, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		cookies: cookies,
		logger:  logger,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyEmailRequest struct {
	Code string `json:"code"`
}

type resetRequestRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Signup handles POST /user/signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondMessage(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.service.Signup(r.Context(), SignupInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			h.respondMessage(w, "Email already used", http.StatusBadRequest)
			return
		}
		h.handleServiceError(w, err)
		return
	}

	h.redirectWithSession(w, session)
}

// Login handles POST /user/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondMessage(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.service.Login(r.Context(), LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			h.respondMessage(w, "Invalid email or password", http.StatusBadRequest)
			return
		}
		h.handleServiceError(w, err)
		return
	}

	h.redirectWithSession(w, session)
}

// VerifyEmail handles POST /user/email-verification. The session gate
// has already resolved the cookie; no session means a bare 401.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var req verifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		h.respondMessage(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.service.VerifyEmail(r.Context(), user, req.Code)
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			h.respondMessage(w, "Invalid or expired code", http.StatusBadRequest)
			return
		}
		h.handleServiceError(w, err)
		return
	}

	h.redirectWithSession(w, session)
}

// RequestPasswordReset handles POST /user/reset-password. The response
// is 200 whether or not the email maps to a verified account, so the
// endpoint cannot be used to enumerate accounts.
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		h.respondMessage(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.logger.Error("password reset request failed", "error", err)
	}

	w.WriteHeader(http.StatusOK)
}

// ResetPassword handles GET /user/reset-password/{token}
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondMessage(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.service.ResetPassword(r.Context(), ResetPasswordInput{
		Token:       r.PathValue("token"),
		NewPassword: req.Password,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			h.respondMessage(w, "Invalid or expired token", http.StatusBadRequest)
			return
		}
		h.handleServiceError(w, err)
		return
	}

	h.redirectWithSession(w, session)
}

// Logout handles POST /user/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if session, ok := SessionFrom(r.Context()); ok {
		if err := h.service.Logout(r.Context(), session.ID); err != nil {
			h.logger.Error("failed to delete session", "error", err)
			// Still clear the cookie even if the DB deletion fails.
		}
	}

	http.SetCookie(w, h.cookies.BlankCookie())
	h.respondJSON(w, messageResponse{Message: "logged out"}, http.StatusOK)
}

// Me handles GET /user/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	h.respondJSON(w, struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}{user.ID, user.Email, user.EmailVerified}, http.StatusOK)
}

// Helper methods

func (h *Handler) redirectWithSession(w http.ResponseWriter, session *Session) {
	http.SetCookie(w, h.cookies.Cookie(session))
	w.Header().Set("Location", "/")
	w.WriteHeader(http.StatusFound)
}

func (h *Handler) respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) respondMessage(w http.ResponseWriter, message string, status int) {
	h.respondJSON(w, messageResponse{Message: message}, status)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	if isValidationError(err) {
		h.respondMessage(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.logger.Error("service error", "error", err)
	h.respondMessage(w, "internal server error", http.StatusInternalServerError)
}

func isValidationError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{"email", "password", "token", "invalid"} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}
