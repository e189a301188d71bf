package models

import "regexp"

// User represents a row in the "users" table and the record exchanged with
// the user service. ID is zero until the record has been persisted.
type User struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// HasID reports whether the record carries a persisted identifier.
func (u User) HasID() bool { return u.ID != 0 }

// CreateUserParams holds the fields required to create a new user.
// Keeping input types separate from the domain model prevents the caller from
// choosing its own identifier.
type CreateUserParams struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UpdateUserParams replaces the name and email of an existing user.
type UpdateUserParams struct {
	ID    int64
	Name  string
	Email string
}

// ErrorResponse is the body of every non-2xx response from the user service.
type ErrorResponse struct {
	Error string `json:"error"`
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail reports whether s has the shape local@domain.tld.
// No normalisation, length limit, or IDN handling is applied.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}
