package jwtware

import (
	"slices"
	"strings"

	"github.com/finguard/finguard-server/auth"
	"github.com/gofiber/fiber/v2"
)

var defaultTokenLookup = "header:" + fiber.HeaderAuthorization

// ValidationListener is invoked after a token has been verified but before
// the role check. Returning an error rejects the request.
type ValidationListener func(c *fiber.Ctx, identity auth.Identity) error

type Config struct {
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   fiber.ErrorHandler
	ContextKey     string
	// TokenLookup is a comma separated list of source:name pairs, e.g.
	// "header:Authorization,cookie:jwt,query:auth_token,param:token"
	TokenLookup string
	AuthScheme  string
	// Verifier is required
	Verifier auth.TokenVerifier
	// RequiredRole rejects tokens that do not carry the role
	RequiredRole        string
	ValidationListeners []ValidationListener
}

// New returns a fiber handler that resolves the bearer token into an
// auth.Identity. The identity is stored under ContextKey and on the user
// context so services can read it with auth.IdentityFromContext.
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	extractors := cfg.getExtractors()

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := ExtractRawToken(c, extractors)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		identity, err := cfg.Verifier.Verify(raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		for _, listener := range cfg.ValidationListeners {
			if listener == nil {
				continue
			}
			if err := listener(c, identity); err != nil {
				return cfg.ErrorHandler(c, err)
			}
		}

		if cfg.RequiredRole != "" && !slices.Contains(identity.Roles, cfg.RequiredRole) {
			return cfg.ErrorHandler(c, auth.ErrForbidden)
		}

		c.Locals(cfg.ContextKey, identity)
		c.SetUserContext(auth.WithIdentity(c.UserContext(), identity))

		return cfg.SuccessHandler(c)
	}
}

// IdentityFromLocals returns the identity stored by the middleware under key
func IdentityFromLocals(c *fiber.Ctx, key ...string) (auth.Identity, bool) {
	k := "user"
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}
	identity, ok := c.Locals(k).(auth.Identity)
	if !ok || identity.IsZero() {
		return auth.Identity{}, false
	}
	return identity, true
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = DefaultErrorHandler
	}

	if cfg.Verifier == nil {
		panic("AUTH: JWT middleware configuration: Verifier is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

// DefaultErrorHandler answers every token failure with the same 401 body so
// callers cannot tell an expired token from a forged one. Role failures get
// a 403.
func DefaultErrorHandler(c *fiber.Ctx, err error) error {
	if auth.HasTextCode(err, auth.TextCodeForbidden) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": fiber.Map{
				"message":   auth.ErrForbidden.Message,
				"text_code": auth.TextCodeForbidden,
			},
		})
	}

	c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": fiber.Map{
			"message":   auth.InvalidTokenMessage,
			"text_code": auth.TextCodeUnauthenticated,
		},
	})
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

// ExtractRawToken runs the extractors in order and returns the first token
// found. A malformed header wins over a later missing source.
func ExtractRawToken(c *fiber.Ctx, extractors []JWTExtractor) (string, error) {
	var firstErr error

	for _, extractor := range extractors {
		raw, err := extractor(c)
		if err == nil && raw != "" {
			return raw, nil
		}
		if firstErr == nil || (auth.HasTextCode(firstErr, auth.TextCodeTokenMissing) && !auth.HasTextCode(err, auth.TextCodeTokenMissing)) {
			firstErr = err
		}
	}

	if firstErr == nil {
		firstErr = auth.ErrTokenMissing
	}

	return "", firstErr
}

func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = strings.TrimSpace(authSchemes[0])
	}

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}

		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		switch source {
		case "header":
			extractors = append(extractors, jwtFromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(name))
		case "param":
			extractors = append(extractors, jwtFromParam(name))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(name))
		}
	}

	return extractors
}

type JWTExtractor func(c *fiber.Ctx) (string, error)

// jwtFromHeader returns a function that extracts token from the request header.
func jwtFromHeader(header string, authScheme string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		a := strings.TrimSpace(c.Get(header))
		if a == "" {
			return "", auth.ErrTokenMissing
		}

		l := len(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			if token := strings.TrimSpace(a[l:]); token != "" {
				return token, nil
			}
		}
		return "", auth.ErrTokenMalformed
	}
}

// jwtFromQuery returns a function that extracts token from the query string.
func jwtFromQuery(param string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", auth.ErrTokenMissing
		}
		return token, nil
	}
}

// jwtFromParam returns a function that extracts token from the url param string.
func jwtFromParam(param string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Params(param)
		if token == "" {
			return "", auth.ErrTokenMissing
		}
		return token, nil
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
func jwtFromCookie(name string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", auth.ErrTokenMissing
		}
		return token, nil
	}
}
