package opsauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/support-assistant/internal/platform/apierr"
)

const RoleOperator = "operator"

var (
	ErrDisabled  = errors.New("operator auth is not configured")
	ErrForbidden = errors.New("token lacks operator role")
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 operator tokens.
type Signer struct {
	secret []byte
	issuer string
}

func NewSigner(secret, issuer string) *Signer {
	return &Signer{secret: []byte(strings.TrimSpace(secret)), issuer: strings.TrimSpace(issuer)}
}

func (s *Signer) Enabled() bool { return s != nil && len(s.secret) > 0 }

func (s *Signer) Issue(subject string, ttl time.Duration) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	now := time.Now()
	claims := Claims{
		Role: RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify returns the claims of a valid operator token. Bad or expired tokens wrap
// apierr.ErrUnauthorized; a valid token without the operator role yields ErrForbidden.
func (s *Signer) Verify(token string) (*Claims, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse operator token: %v: %w", err, apierr.ErrUnauthorized)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid operator token: %w", apierr.ErrUnauthorized)
	}
	if claims.Role != RoleOperator {
		return nil, ErrForbidden
	}
	return claims, nil
}
