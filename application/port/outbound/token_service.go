package outbound

import "time"

type TokenClaims struct {
	Subject   string    `json:"sub"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"exp"`
}

// TokenService issues and validates short-lived admin session tokens.
type TokenService interface {
	GenerateAdminToken(subject string) (string, time.Time, error)
	ValidateAdminToken(token string) (*TokenClaims, error)
}
