package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the payload of access tokens issued by the campus
// identity provider.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the core's actor value.
func (c *JWTClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{ID: c.UserID, Role: c.Role, Email: c.Email, Name: c.FullName}
}
