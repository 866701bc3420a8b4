// Package auth issues and verifies the credentials accepted by the mutating
// API surface: HS256 JWTs for interactive callers and bcrypt-hashed API keys
// for services.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrInvalidClaims = errors.New("invalid token claims")
	ErrEmptySubject  = errors.New("subject cannot be empty")
	ErrEmptyRole     = errors.New("role cannot be empty")
	ErrInvalidRole   = errors.New("invalid role")
	ErrShortSecret   = errors.New("secret must be at least 32 characters")
)

// Roles ordered by privilege. Readers query the graph, curators mutate
// relations and version chains, admins additionally manage API keys.
const (
	RoleAdmin   = "admin"
	RoleCurator = "curator"
	RoleReader  = "reader"
)

var validRoles = map[string]bool{
	RoleAdmin:   true,
	RoleCurator: true,
	RoleReader:  true,
}

// CanMutate reports whether the role may change PIDs and relations
func CanMutate(role string) bool {
	return role == RoleAdmin || role == RoleCurator
}

// Claims represents verified token claims
type Claims struct {
	Subject   string    `json:"sub"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
	IssuedAt  time.Time `json:"issued_at"`
}

// JWTManager manages JWT token generation and validation
type JWTManager struct {
	secretKey     []byte
	issuer        string
	tokenDuration time.Duration
}

// NewJWTManager creates a new JWT manager. The secret must be at least 32
// characters.
func NewJWTManager(secret, issuer string, tokenDuration time.Duration) (*JWTManager, error) {
	if len(secret) < 32 {
		return nil, ErrShortSecret
	}

	return &JWTManager{
		secretKey:     []byte(secret),
		issuer:        issuer,
		tokenDuration: tokenDuration,
	}, nil
}

// GenerateToken generates a signed token for the given subject and role
func (m *JWTManager) GenerateToken(subject, role string) (string, error) {
	if subject == "" {
		return "", ErrEmptySubject
	}
	if role == "" {
		return "", ErrEmptyRole
	}
	if !validRoles[role] {
		return "", fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iss":  m.issuer,
		"exp":  now.Add(m.tokenDuration).Unix(),
		"iat":  now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken verifies a token and returns its claims
func (m *JWTManager) ValidateToken(_ context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claimsMap, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidClaims
	}

	subject, ok := claimsMap["sub"].(string)
	if !ok || subject == "" {
		return nil, fmt.Errorf("%w: missing or invalid sub", ErrInvalidClaims)
	}

	role, ok := claimsMap["role"].(string)
	if !ok || !validRoles[role] {
		return nil, fmt.Errorf("%w: missing or invalid role", ErrInvalidClaims)
	}

	if m.issuer != "" {
		issuer, _ := claimsMap["iss"].(string)
		if issuer != m.issuer {
			return nil, fmt.Errorf("%w: unexpected issuer", ErrInvalidClaims)
		}
	}

	exp, ok := claimsMap["exp"].(float64)
	if !ok {
		return nil, fmt.Errorf("%w: missing expiration", ErrInvalidClaims)
	}
	iat, _ := claimsMap["iat"].(float64)

	return &Claims{
		Subject:   subject,
		Role:      role,
		ExpiresAt: time.Unix(int64(exp), 0),
		IssuedAt:  time.Unix(int64(iat), 0),
	}, nil
}

// Name returns the validator name for logging
func (m *JWTManager) Name() string {
	return "jwt-hs256"
}
