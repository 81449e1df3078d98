package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/apierr"
)

// Claims is the token payload. The owner id doubles as the clinician's
// email address.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Service signs and verifies HS256 tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
}

// NewService returns a Service signing with secret. Tokens expire after ttl.
func NewService(secret string, ttl time.Duration) *Service {
	return &Service{secret: []byte(secret), ttl: ttl}
}

// Issue returns a signed token identifying the clinician by email.
func (s *Service) Issue(email string) (string, error) {
	if email == "" {
		return "", apierr.Validation("missing email")
	}

	now := time.Now()
	claims := Claims{
		UserID: email,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", apierr.Upstream("failed to sign token", err)
	}
	return signed, nil
}

// Verify parses and validates a token and returns its claims. Expired,
// malformed and wrongly signed tokens all come back as auth errors.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apierr.Auth("invalid or expired token")
	}
	if claims.UserID == "" {
		return nil, apierr.Auth("token carries no user identity")
	}
	return claims, nil
}

// FromAuthorizationHeader extracts the bearer token from an Authorization
// header value.
func FromAuthorizationHeader(header string) (string, error) {
	const prefix = "Bearer "
	if header == "" {
		return "", apierr.Auth("missing Authorization header")
	}
	if !strings.HasPrefix(header, prefix) {
		return "", apierr.Auth("Authorization header is not a bearer token")
	}
	return strings.TrimPrefix(header, prefix), nil
}

type ctxKey struct{}

// WithOwner returns a context carrying the authenticated owner id.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, ownerID)
}

// OwnerFrom returns the authenticated owner id stored in ctx, if any.
func OwnerFrom(ctx context.Context) (string, bool) {
	ownerID, ok := ctx.Value(ctxKey{}).(string)
	return ownerID, ok && ownerID != ""
}
