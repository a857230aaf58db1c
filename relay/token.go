package relay

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/formmail/httputil"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// TokenVerifier decides whether the anti-spam token posted with a form is
// acceptable. Implementations must be safe for concurrent use.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) bool
}

// StaticToken accepts exactly one shared secret, the value the site's
// JavaScript writes into the hidden spam_token field.
type StaticToken struct {
	secret []byte
}

// NewStaticToken returns a verifier for secret. An empty secret accepts nothing.
func NewStaticToken(secret string) StaticToken {
	return StaticToken{secret: []byte(secret)}
}

// Verify compares token with the secret in constant time.
func (s StaticToken) Verify(_ context.Context, token string) bool {
	if len(s.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), s.secret) == 1
}

// DefaultTokenIssuer is the iss claim of signed form tokens.
const DefaultTokenIssuer = "formmail"

// FormClaims are the claims of a signed form token. RenderedAt repeats the
// issue time so the page can copy it into the timestamp field.
type FormClaims struct {
	RenderedAt int64 `json:"rat"`
	jwt.RegisteredClaims
}

// SignedToken issues and verifies short-lived HS256 form tokens.
type SignedToken struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// SignedTokenOption configures a SignedToken.
type SignedTokenOption func(*SignedToken)

// WithIssuer overrides DefaultTokenIssuer.
func WithIssuer(iss string) SignedTokenOption {
	return func(s *SignedToken) { s.issuer = iss }
}

// WithTokenClock sets the time source used for issuing and expiry checks.
func WithTokenClock(now func() time.Time) SignedTokenOption {
	return func(s *SignedToken) { s.now = now }
}

// ErrWeakKey is returned when the signing key is shorter than 32 bytes.
var ErrWeakKey = errors.New("relay: token signing key must be at least 32 bytes")

// NewSignedToken returns a SignedToken. ttl defaults to 2h.
func NewSignedToken(key string, ttl time.Duration, opts ...SignedTokenOption) (*SignedToken, error) {
	if len(key) < 32 {
		return nil, ErrWeakKey
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	s := &SignedToken{
		key:    []byte(key),
		ttl:    ttl,
		issuer: DefaultTokenIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a new token and returns it with its render time.
func (s *SignedToken) Issue() (string, time.Time, error) {
	now := s.now().Truncate(time.Second)
	claims := FormClaims{
		RenderedAt: now.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("relay: sign form token: %w", err)
	}
	return signed, now, nil
}

// Verify checks signature, algorithm, issuer and expiry.
func (s *SignedToken) Verify(_ context.Context, token string) bool {
	if token == "" {
		return false
	}
	parsed, err := jwt.ParseWithClaims(token, &FormClaims{},
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	return err == nil && parsed.Valid
}

// IssuedToken is the JSON body returned by the token endpoint.
type IssuedToken struct {
	Token     string `json:"token"`
	Timestamp int64  `json:"timestamp"`
}

// IssueHandler serves freshly signed tokens for the site's forms to embed.
func (s *SignedToken) IssueHandler(logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, at, err := s.Issue()
		if err != nil {
			logger.Error("form token issue failed", zap.Error(err))
			httputil.JSONError(w, http.StatusInternalServerError, "token_failed", "could not issue form token")
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		httputil.WriteJSON(w, http.StatusOK, IssuedToken{Token: token, Timestamp: at.Unix()})
	})
}
