package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the access token payload issued by the identity directory.
type JWTClaims struct {
	UserID   string     `json:"user_id"`
	Roles    []UserRole `json:"roles"`
	Email    string     `json:"email"`
	FullName string     `json:"full_name"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims carry role.
func (c *JWTClaims) HasRole(role UserRole) bool {
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}
