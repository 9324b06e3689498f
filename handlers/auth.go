// Package handlers is the HTTP layer: decode the request, call a service,
// write the JSON envelope. No business logic lives here.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Ajay-css/chatify/models"
	"github.com/Ajay-css/chatify/pkg"
	"github.com/Ajay-css/chatify/pkg/ratelimit"
	"github.com/Ajay-css/chatify/services"
)

type contextKey string

// UserContextKey carries the authenticated *models.User set by the auth
// middleware.
const UserContextKey contextKey = "user"

// TokenCookieName is shared with the WebSocket handshake.
const TokenCookieName = "jwt"

type AuthHandler struct {
	authService  services.AuthService
	loginLimiter *ratelimit.LoginRateLimiter
	secureCookie bool
}

func NewAuthHandler(authService services.AuthService, loginLimiter *ratelimit.LoginRateLimiter, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		loginLimiter: loginLimiter,
		secureCookie: secureCookie,
	}
}

// Signup: POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.authService.Signup(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	h.setTokenCookie(w, res.Token, res.ExpiresAt)
	pkg.JSON(w, http.StatusCreated, res)
}

// Login: POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ip := ratelimit.ExtractIP(r)
	if h.loginLimiter != nil && !h.loginLimiter.Allow(ip) {
		retryAfter := h.loginLimiter.RetryAfterSeconds(ip)
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
		pkg.ErrorWithMessage(w, http.StatusTooManyRequests,
			fmt.Sprintf("too many login attempts, please try again in %s", ratelimit.FormatRetryMessage(retryAfter)))
		return
	}

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	if h.loginLimiter != nil {
		h.loginLimiter.Reset(ip)
	}

	h.setTokenCookie(w, res.Token, res.ExpiresAt)
	pkg.JSON(w, http.StatusOK, res)
}

// Logout: POST /api/auth/logout. Tokens are stateless; logging out only
// clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Check: GET /api/auth/check (authenticated)
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}
	pkg.JSON(w, http.StatusOK, user)
}

func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}
