//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

// DefaultPasswordHashCost is the bcrypt work factor used when none is configured
const DefaultPasswordHashCost = bcrypt.DefaultCost

func passwordHashCost() int {
	// Reduce cost for race-enabled builds so test suites can run with strict timeouts.
	return DefaultPasswordHashCost
}
