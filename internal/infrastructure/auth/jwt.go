// Package auth issues and verifies operator tokens. The token subject is the
// actor recorded in the audit ledger.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/payops/payops/internal/shared/biztime"
	"github.com/payops/payops/internal/shared/config"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeService TokenType = "service"
)

type Claims struct {
	Role string `json:"role"`
	// OrganizationID restricts the operator to one organization when set.
	OrganizationID string    `json:"organization_id,omitempty"`
	TokenType      TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// Actor is the identity recorded for writes made with the token.
func (c *Claims) Actor() string {
	return c.Subject
}

type JWTService struct {
	secret           []byte
	issuer           string
	accessExpMinutes int
}

func NewJWTService(cfg config.JWTConfig) *JWTService {
	exp := cfg.AccessExpMinutes
	if exp <= 0 {
		exp = 60
	}
	return &JWTService{
		secret:           []byte(cfg.Secret),
		issuer:           cfg.Issuer,
		accessExpMinutes: exp,
	}
}

// Generate signs an access token for an operator. A service token carries no
// expiry and is meant for machine callers such as the payment gateway.
func (s *JWTService) Generate(actor, role, organizationID string, tokenType TokenType) (string, error) {
	if actor == "" || role == "" {
		return "", errors.New("actor and role are required")
	}
	now := biztime.NowUTC()

	claims := &Claims{
		Role:           role,
		OrganizationID: organizationID,
		TokenType:      tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if tokenType == TokenTypeAccess {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(time.Duration(s.accessExpMinutes) * time.Minute))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *JWTService) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" || claims.Role == "" {
		return nil, fmt.Errorf("token has no subject or role")
	}
	return claims, nil
}

// AccessExpMinutes returns the access token expiration time in minutes
func (s *JWTService) AccessExpMinutes() int {
	return s.accessExpMinutes
}
