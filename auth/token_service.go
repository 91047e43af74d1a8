package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultTokenTTL is used when TokenConfig.TTL is zero
const DefaultTokenTTL = 60 * time.Minute

// MinSigningKeyBytes is the shortest HS256 key we accept
const MinSigningKeyBytes = 32

// TokenConfig is built once at startup and handed to NewTokenService.
type TokenConfig struct {
	SigningKey []byte
	Issuer     string
	Audience   []string
	TTL        time.Duration
}

// TokenService issues and verifies HS256 bearer tokens. It keeps no
// per-token state, so a token stays valid until it expires.
type TokenService struct {
	signingKey []byte
	issuer     string
	audience   jwt.ClaimStrings
	ttl        time.Duration
	now        func() time.Time
	logger     Logger
}

var (
	_ TokenIssuer   = (*TokenService)(nil)
	_ TokenVerifier = (*TokenService)(nil)
)

// TokenServiceOption customizes a TokenService
type TokenServiceOption func(*TokenService)

// WithClock overrides the time source used for issuing and verifying
func WithClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewTokenService creates a new TokenService instance. A missing or short
// signing key is a configuration error, never a silent default.
func NewTokenService(cfg TokenConfig, opts ...TokenServiceOption) (*TokenService, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, goerrors.New("token signing key is not configured", goerrors.CategoryInternal)
	}

	if len(cfg.SigningKey) < MinSigningKeyBytes {
		return nil, goerrors.New(fmt.Sprintf("token signing key must be at least %d bytes", MinSigningKeyBytes), goerrors.CategoryInternal)
	}

	if cfg.TTL < 0 {
		return nil, goerrors.New("token TTL must be non-negative", goerrors.CategoryBadInput)
	}

	if cfg.TTL == 0 {
		cfg.TTL = DefaultTokenTTL
	}

	var aud jwt.ClaimStrings
	for _, a := range cfg.Audience {
		if a = strings.TrimSpace(a); a != "" {
			aud = append(aud, a)
		}
	}

	ts := &TokenService{
		signingKey: slices.Clone(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   aud,
		ttl:        cfg.TTL,
		now:        time.Now,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts, nil
}

// TTL returns the configured token lifetime
func (ts *TokenService) TTL() time.Duration {
	return ts.ttl
}

// Issue creates a signed token for identity with optional roles
func (ts *TokenService) Issue(identity Identity, roles ...string) (Token, error) {
	if identity.IsZero() {
		return Token{}, goerrors.New("identity is required", goerrors.CategoryBadInput)
	}

	now := ts.now()
	expiresAt := now.Add(ts.ttl)

	claims := newJWTClaims(identity, roles)
	claims.Issuer = ts.issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	if len(ts.audience) > 0 {
		claims.Audience = slices.Clone(ts.audience)
	}

	ensureTokenID(&claims.RegisteredClaims)

	signed, err := ts.SignClaims(claims)
	if err != nil {
		return Token{}, err
	}

	return Token{Value: signed, ExpiresAt: claims.Expires()}, nil
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenService) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Verify parses and validates a raw token string, returning the Identity it
// was issued for.
func (ts *TokenService) Verify(raw string) (Identity, error) {
	claims, err := ts.Validate(raw)
	if err != nil {
		return Identity{}, err
	}
	return claims.Identity()
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenService) Validate(raw string) (*JWTClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenMissing
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(raw, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		mapped := mapJWTError(err)
		ts.logger.Debug("token rejected", "reason", mapped.TextCode, "error", err.Error())
		return nil, mapped
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService validate could not decode or validate claims")
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

func mapJWTError(err error) *goerrors.Error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrTokenMalformed
	}
}
