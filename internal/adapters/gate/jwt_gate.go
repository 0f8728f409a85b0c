// Package gate adapts the external authorization check to capability
// claims carried in HS256 tokens. The ledger core only ever sees the
// yes/no answer.
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/colonyledger/core/internal/domain/entities"
	"github.com/colonyledger/core/internal/infrastructure/config"
	"github.com/colonyledger/core/internal/ports"
)

// Claims represents the capability token claims
type Claims struct {
	Capabilities []string `json:"caps"`
	jwt.RegisteredClaims
}

// JWTGate implements ports.AccessGate over signed capability tokens and a
// bcrypt-hashed operator API key.
type JWTGate struct {
	cfg config.GateConfig
}

// New creates a new access gate
func New(cfg config.GateConfig) *JWTGate {
	return &JWTGate{cfg: cfg}
}

// Authorize grants the call when the caller carries the capability or the
// wildcard. Everything else is entities.ErrNotAuthorized.
func (g *JWTGate) Authorize(ctx context.Context, caller ports.Caller, capability ports.Capability) error {
	for _, held := range caller.Capabilities {
		if held == string(capability) || held == "*" {
			return nil
		}
	}
	return entities.ErrNotAuthorized
}

// ParseToken validates a bearer token and resolves the caller it names.
func (g *JWTGate) ParseToken(tokenString string) (ports.Caller, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(g.cfg.JWTSecret), nil
	}, jwt.WithIssuer(g.cfg.Issuer))
	if err != nil {
		return ports.Caller{}, fmt.Errorf("parse capability token: %w", err)
	}
	if !token.Valid {
		return ports.Caller{}, fmt.Errorf("invalid capability token")
	}

	return ports.Caller{
		Subject:      claims.Subject,
		Capabilities: claims.Capabilities,
	}, nil
}

// VerifyOperatorKey checks a presented API key against the configured
// bcrypt hash. A matching key acts with every capability.
func (g *JWTGate) VerifyOperatorKey(key string) (ports.Caller, bool) {
	if g.cfg.OperatorKeyHash == "" || key == "" {
		return ports.Caller{}, false
	}

	if err := bcrypt.CompareHashAndPassword([]byte(g.cfg.OperatorKeyHash), []byte(key)); err != nil {
		return ports.Caller{}, false
	}

	return ports.Caller{Subject: "operator", Capabilities: []string{"*"}}, true
}

// IssueToken mints a capability token for a caller. Used by the CLI.
func (g *JWTGate) IssueToken(subject string, capabilities []string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = g.cfg.TokenTTL
	}

	now := time.Now()
	claims := &Claims{
		Capabilities: capabilities,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    g.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(g.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign capability token: %w", err)
	}

	return signed, nil
}
