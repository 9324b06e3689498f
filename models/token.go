package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims is the JWT payload. It lives in models because services, ws
// and middleware all read it.
type TokenClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
