// Package service verifies session tokens issued by the identity provider
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ErrInvalidToken is returned for any token that does not resolve to an identity
var ErrInvalidToken = errors.New("invalid or expired token")

// Identity is the caller resolved from a verified session token
type Identity struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

// sessionClaims is the claim set of a session token; "sub" carries the user ID
type sessionClaims struct {
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// IdentityVerifier validates session JWTs either with a shared HMAC secret or with the provider's JWKS
type IdentityVerifier struct {
	keyfunc  jwt.Keyfunc
	methods  []string
	issuer   string
	audience string
	secret   []byte
	jwks     *keyfunc.JWKS
}

// NewHMACVerifier creates a verifier for HS256 tokens signed with secret.
// Empty issuer or audience disables the corresponding check.
func NewHMACVerifier(secret, issuer, audience string) *IdentityVerifier {
	key := []byte(secret)
	return &IdentityVerifier{
		keyfunc: func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		},
		methods:  []string{jwt.SigningMethodHS256.Alg()},
		issuer:   issuer,
		audience: audience,
		secret:   key,
	}
}

// NewJWKSVerifier creates a verifier that fetches signing keys from jwksURL and refreshes them in the background
// until ctx is done or Close is called.
func NewJWKSVerifier(ctx context.Context, jwksURL, issuer, audience string, logger *zap.Logger) (*IdentityVerifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Error("jwks refresh failed", zap.String("url", jwksURL), zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	return &IdentityVerifier{
		keyfunc:  jwks.Keyfunc,
		methods:  []string{"RS256", "RS384", "RS512", "ES256", "ES384"},
		issuer:   issuer,
		audience: audience,
		jwks:     jwks,
	}, nil
}

// Close stops the background JWKS refresh, if any
func (v *IdentityVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

// Verify validates a token and returns the identity it carries
func (v *IdentityVerifier) Verify(tokenString string) (*Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods(v.methods)}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyfunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	// Session tokens must expire and name a subject
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: exp claim is required", ErrInvalidToken)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: sub claim is required", ErrInvalidToken)
	}

	return &Identity{
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// IssueToken signs an HS256 session token for userID. Only available on HMAC verifiers;
// used for local development and tests where no external identity provider is running.
func (v *IdentityVerifier) IssueToken(userID string, ttl time.Duration) (string, error) {
	if v.secret == nil {
		return "", fmt.Errorf("token issuing requires an HMAC verifier")
	}

	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
