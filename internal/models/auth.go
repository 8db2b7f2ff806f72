package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the parties that can act on timecards.
type UserRole string

const (
	RoleProvider UserRole = "PROVIDER"
	RoleClient   UserRole = "CLIENT"
	RoleAdmin    UserRole = "ADMIN"
)

// JWTClaims represents the identity carried by access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email,omitempty"`
	FullName string   `json:"full_name,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claims belong to an administrator.
func (c *JWTClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
