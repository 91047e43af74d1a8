//go:build !race

package auth

// DefaultPasswordHashCost is the bcrypt work factor used when none is configured
const DefaultPasswordHashCost = 12

func passwordHashCost() int {
	return DefaultPasswordHashCost
}
