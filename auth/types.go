package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logger takes a message followed by alternating key value pairs
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// Identity is the verified caller of a request. ID is the canonical
// representation used for every ownership comparison.
type Identity struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Roles    []string  `json:"roles,omitempty"`
}

// IsZero reports whether the identity carries no user id.
func (i Identity) IsZero() bool {
	return i.ID == uuid.Nil
}

// Token is a signed bearer token and the instant it stops being valid.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenIssuer mints signed bearer tokens
type TokenIssuer interface {
	Issue(identity Identity, roles ...string) (Token, error)
}

// TokenVerifier validates raw bearer tokens and recovers the Identity
type TokenVerifier interface {
	Verify(raw string) (Identity, error)
}

// IdentityProvider ensure we have a store to retrieve auth identity
type IdentityProvider interface {
	Verify(ctx context.Context, email, password string) (Identity, error)
	FindIdentity(ctx context.Context, id uuid.UUID) (Identity, error)
}

// AccountRegisterer is the interface we need to handle new user registrations
type AccountRegisterer interface {
	Register(ctx context.Context, username, email, password string) (uuid.UUID, error)
}

// PasswordHasher hashes and compares passwords
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Compare(ctx context.Context, password, hash string) error
	CompareDummy(ctx context.Context, password string) error
}

type defLogger struct{}

func (d defLogger) Error(msg string, keyvals ...any) {
	fmt.Print("[ERR] AUTH " + line(msg, keyvals))
}

func (d defLogger) Warn(msg string, keyvals ...any) {
	fmt.Print("[WRN] AUTH " + line(msg, keyvals))
}

func (d defLogger) Info(msg string, keyvals ...any) {
	fmt.Print("[INF] AUTH " + line(msg, keyvals))
}

func (d defLogger) Debug(msg string, keyvals ...any) {
	fmt.Print("[DBG] AUTH " + line(msg, keyvals))
}

func line(msg string, keyvals []any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(keyvals); i += 2 {
		if i+1 < len(keyvals) {
			fmt.Fprintf(&b, " %v=%v", keyvals[i], keyvals[i+1])
		} else {
			fmt.Fprintf(&b, " %v", keyvals[i])
		}
	}
	b.WriteString("\n")
	return b.String()
}
