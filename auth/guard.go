package auth

import (
	"reflect"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ReadScope decides which records an authenticated caller may read
type ReadScope string

const (
	// ReadScopeOwner limits reads to the caller's own records
	ReadScopeOwner ReadScope = "owner"
	// ReadScopeGlobal lets any authenticated caller read every record
	ReadScopeGlobal ReadScope = "global"
)

// ParseReadScope validates a configured read scope. Empty means owner.
func ParseReadScope(s string) (ReadScope, error) {
	switch ReadScope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ReadScopeOwner:
		return ReadScopeOwner, nil
	case ReadScopeGlobal:
		return ReadScopeGlobal, nil
	default:
		return "", goerrors.New("unknown read scope", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"read_scope": s})
	}
}

// OwnedResource is anything that records the user who created it
type OwnedResource interface {
	OwnerID() uuid.UUID
}

// Guard decides whether a verified identity may act on an owned resource.
// It holds no mutable state.
type Guard struct {
	scope ReadScope
}

// NewGuard creates a Guard with the given read scope
func NewGuard(scope ReadScope) Guard {
	if scope == "" {
		scope = ReadScopeOwner
	}
	return Guard{scope: scope}
}

// ReadScope returns the configured read policy
func (g Guard) ReadScope() ReadScope {
	return g.scope
}

// AuthorizeMutation allows a write only when resource exists and is owned by
// requester. A nil resource means the caller could not resolve it.
func (g Guard) AuthorizeMutation(resource OwnedResource, requester Identity) error {
	if isNilResource(resource) {
		return ErrNotFound
	}

	if requester.IsZero() {
		return ErrUnauthenticated
	}

	if resource.OwnerID() != requester.ID {
		return ErrForbidden
	}

	return nil
}

// AuthorizeRead applies the read scope to a single record. Under owner scope
// another user's record is reported as not found.
func (g Guard) AuthorizeRead(resource OwnedResource, requester Identity) error {
	if isNilResource(resource) {
		return ErrNotFound
	}

	if requester.IsZero() {
		return ErrUnauthenticated
	}

	if g.scope == ReadScopeOwner && resource.OwnerID() != requester.ID {
		return ErrNotFound
	}

	return nil
}

// ReadOwnerFilter returns the owner id list queries must filter on, or false
// when the scope allows reading every record.
func (g Guard) ReadOwnerFilter(requester Identity) (uuid.UUID, bool) {
	if g.scope == ReadScopeGlobal {
		return uuid.Nil, false
	}
	return requester.ID, true
}

func isNilResource(resource OwnedResource) bool {
	if resource == nil {
		return true
	}
	v := reflect.ValueOf(resource)
	return v.Kind() == reflect.Ptr && v.IsNil()
}
