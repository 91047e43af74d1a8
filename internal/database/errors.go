package database

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err came from a unique constraint. Both
// SQLite drivers behind sqliteshim phrase it the same way. The whole wrap
// chain is checked since repository errors may carry their own message.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}

	for ; err != nil; err = errors.Unwrap(err) {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return true
		}
	}

	return false
}
