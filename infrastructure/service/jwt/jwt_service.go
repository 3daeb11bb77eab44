package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/fixora/tollgate/application/port/outbound"
	"github.com/golang-jwt/jwt/v5"
)

const (
	adminRole = "admin"
	issuer    = "tollgate"
)

type JWTService struct {
	hmacSecret []byte
	ttl        time.Duration
	now        func() time.Time
}

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrMissingSecret = errors.New("jwt secret is required")
)

func NewJWTService(secret string, ttl time.Duration) (*JWTService, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("invalid admin token ttl: %s", ttl)
	}
	return &JWTService{
		hmacSecret: []byte(secret),
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

func (s *JWTService) GenerateAdminToken(subject string) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)
	tokenClaims := jwt.MapClaims{
		"sub":  subject,
		"role": adminRole,
		"iss":  issuer,
		"exp":  expiresAt.Unix(),
		"iat":  issuedAt.Unix(),
		"type": "admin_session",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims)
	tokenString, err := token.SignedString(s.hmacSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign admin token: %w", err)
	}

	return tokenString, expiresAt, nil
}

func (s *JWTService) ValidateAdminToken(tokenString string) (*outbound.TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.hmacSecret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, s.handleValidationError(err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	subject, ok := claims["sub"].(string)
	if !ok || subject == "" {
		return nil, ErrInvalidToken
	}
	role, ok := claims["role"].(string)
	if !ok || role != adminRole {
		return nil, ErrInvalidToken
	}
	tokenType, ok := claims["type"].(string)
	if !ok || tokenType != "admin_session" {
		return nil, ErrInvalidToken
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}

	return &outbound.TokenClaims{
		Subject:   subject,
		Role:      role,
		ExpiresAt: exp.Time,
	}, nil
}

func (s *JWTService) handleValidationError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return ErrInvalidToken
}
