package entity

import (
	"strings"
	"time"
)

// Principal is the authenticated caller attached to every operation
type Principal struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	EmployeeID string `json:"employee_id"`
	Role       Role   `json:"role"`
}

// HasRole reports whether the principal holds one of roles
func (p *Principal) HasRole(roles ...Role) bool {
	if p == nil {
		return false
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// User is a registered identity. PasswordHash never leaves the server.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	EmployeeID   string    `json:"employee_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Principal projects the user onto the identity carried by tokens
func (u *User) Principal() *Principal {
	return &Principal{
		ID:         u.ID,
		Name:       u.Name,
		EmployeeID: u.EmployeeID,
		Role:       u.Role,
	}
}

// NormalizeEmail lower-cases and trims an email so lookups are case-insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// containsASCIIFold folds A-Z only, matching SQLite's lower()
func containsASCIIFold(s, substr string) bool {
	return strings.Contains(asciiLower(s), asciiLower(substr))
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
