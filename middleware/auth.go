// Package middleware wraps HTTP handlers with cross-cutting checks.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Ajay-css/chatify/handlers"
	"github.com/Ajay-css/chatify/models"
	"github.com/Ajay-css/chatify/pkg"
	"github.com/Ajay-css/chatify/pkg/cache"
	"github.com/Ajay-css/chatify/services"
)

const userCacheTTL = 30 * time.Second

// AuthMiddleware resolves the caller from a Bearer token or the jwt cookie
// and stores the user in the request context.
type AuthMiddleware struct {
	authService services.AuthService
	users       *cache.TTLCache[string, models.User]
}

func NewAuthMiddleware(authService services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		users:       cache.New[string, models.User](userCacheTTL, time.Minute),
	}
}

func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := tokenFromRequest(r)
		if tokenString == "" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "unauthorized - no token provided")
			return
		}

		claims, err := m.authService.ValidateAccessToken(tokenString)
		if err != nil {
			pkg.Error(w, err)
			return
		}

		user, ok := m.users.Get(claims.UserID)
		if !ok {
			u, err := m.authService.GetUser(r.Context(), claims.UserID)
			if err != nil {
				pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found")
				return
			}
			user = *u
			user.PasswordHash = ""
			m.users.Set(claims.UserID, user)
		}

		ctx := context.WithValue(r.Context(), handlers.UserContextKey, &user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) Close() {
	m.users.Close()
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie(handlers.TokenCookieName); err == nil {
		return c.Value
	}
	return ""
}
