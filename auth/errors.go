package auth

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCreds      = "INVALID_CREDENTIALS"
	TextCodeDuplicateEmail    = "DUPLICATE_EMAIL"
	TextCodeTokenMissing      = "TOKEN_MISSING"
	TextCodeTokenMalformed    = "TOKEN_MALFORMED"
	TextCodeTokenBadSignature = "TOKEN_BAD_SIGNATURE"
	TextCodeTokenExpired      = "TOKEN_EXPIRED"
	TextCodeUnauthenticated   = "UNAUTHENTICATED"
	TextCodeForbidden         = "FORBIDDEN"
	TextCodeNotFound          = "NOT_FOUND"
	TextCodeIdentityNotFound  = "IDENTITY_NOT_FOUND"
	TextCodeEmptyPassword     = "EMPTY_PASSWORD"
)

// InvalidTokenMessage is the single message every token failure surfaces as.
const InvalidTokenMessage = "invalid or expired token"

// ErrInvalidCredentials is returned for an unknown email and for a wrong
// password alike.
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrDuplicateEmail is returned when the email is already registered
var ErrDuplicateEmail = goerrors.New("a user with this email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrTokenMissing no bearer token was presented
var ErrTokenMissing = goerrors.New(InvalidTokenMessage, goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMissing).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed the token could not be parsed or its claims are unusable
var ErrTokenMalformed = goerrors.New(InvalidTokenMessage, goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenBadSignature the signature does not match the configured key
var ErrTokenBadSignature = goerrors.New(InvalidTokenMessage, goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenBadSignature).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired the token is past its expiry
var ErrTokenExpired = goerrors.New(InvalidTokenMessage, goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthenticated the request carries no verified identity
var ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden the caller is authenticated but does not own the resource
var ErrForbidden = goerrors.New("you can only modify your own records", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrNotFound the target resource does not exist
var ErrNotFound = goerrors.New("resource not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNoEmptyString password must not be empty
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// HasTextCode reports whether err is a rich error with the given text code
func HasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// IsTokenError reports whether err is one of the bearer token failures.
func IsTokenError(err error) bool {
	return HasTextCode(err, TextCodeTokenMissing) ||
		HasTextCode(err, TextCodeTokenMalformed) ||
		HasTextCode(err, TextCodeTokenBadSignature) ||
		HasTextCode(err, TextCodeTokenExpired)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return HasTextCode(err, TextCodeTokenExpired)
}
