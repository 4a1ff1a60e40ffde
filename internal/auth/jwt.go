package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the session token claims issued by the hosted auth service.
type Claims struct {
	Email       string         `json:"email"`
	Role        string         `json:"role"`
	SessionID   string         `json:"session_id"`
	AppMetadata map[string]any `json:"app_metadata,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 session tokens against the shared auth secret.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifier creates a Verifier. An empty issuer disables the issuer check.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Verify parses and validates a token and returns the caller identity.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	if len(v.secret) == 0 {
		return nil, errors.New("auth secret not configured")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	role := claims.Role
	if appRole, ok := claims.AppMetadata["role"].(string); ok && appRole != "" {
		role = appRole
	}

	return &Identity{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Role:      role,
		SessionID: claims.SessionID,
	}, nil
}

// IssueToken signs a session token; used by tests and local tooling.
func IssueToken(secret, subject, email string, ttl time.Duration) (string, error) {
	claims := &Claims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
