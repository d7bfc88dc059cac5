package auth

import "github.com/google/uuid"

// Principal is the caller identity every service method takes explicitly.
// The zero value is the anonymous caller.
type Principal struct {
	UserID uuid.UUID
	Email  string
}

var Anonymous = Principal{}

func (p Principal) Authenticated() bool {
	return p.UserID != uuid.Nil
}

func PrincipalFromClaims(c *Claims) Principal {
	return Principal{UserID: c.UserID, Email: c.Email}
}
