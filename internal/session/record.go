// Package session holds the locally persisted representation of the current
// login and the stores that keep it between invocations.
package session

import (
	"strings"
	"time"

	"github.com/usradm-dev/usradm/internal/models"
)

// StorageKey is the fixed key the record is stored under
const StorageKey = "user"

// UserInfo is the user as echoed back by the login endpoint
type UserInfo struct {
	ID    models.UserID `json:"id,omitempty"`
	Name  string        `json:"name"`
	Email string        `json:"email"`
	Role  string        `json:"role"`
}

// Record is the session record. Role is kept both on the user and at the
// top level because older readers look at either one; Normalize keeps them
// identical.
type Record struct {
	Token           string    `json:"token,omitempty"`
	User            *UserInfo `json:"user,omitempty"`
	Role            string    `json:"role,omitempty"`
	IsAuthenticated bool      `json:"isAuthenticated"`
	ExpiresAt       string    `json:"expires_at,omitempty"`
}

var expiryLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Normalize collapses the two role aliases into one canonical value and
// writes it back to both. user.role wins over the top-level role; a record
// with neither gets the default "user" role.
func (r *Record) Normalize() {
	role := ""
	if r.User != nil {
		role = strings.TrimSpace(r.User.Role)
	}
	if role == "" {
		role = strings.TrimSpace(r.Role)
	}
	if role == "" {
		role = models.RoleUser
	}

	r.Role = role
	if r.User == nil {
		r.User = &UserInfo{}
	}
	r.User.Role = role
}

// RoleName returns the canonical role of the record
func (r *Record) RoleName() string {
	if r == nil {
		return ""
	}
	if r.User != nil && r.User.Role != "" {
		return r.User.Role
	}
	return r.Role
}

// IsAdmin reports whether either role alias is admin. Records written by
// other clients may carry aliases that disagree, so neither one wins here.
func (r *Record) IsAdmin() bool {
	if r == nil {
		return false
	}
	if r.User != nil && strings.TrimSpace(r.User.Role) == models.RoleAdmin {
		return true
	}
	return strings.TrimSpace(r.Role) == models.RoleAdmin
}

// Expiry parses ExpiresAt. ok is false when the record carries no expiry or
// the value cannot be parsed.
func (r *Record) Expiry() (t time.Time, ok bool) {
	if r == nil || r.ExpiresAt == "" {
		return time.Time{}, false
	}
	for _, layout := range expiryLayouts {
		if t, err := time.ParseInLocation(layout, r.ExpiresAt, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Expired reports whether ExpiresAt lies before now. An unparseable expiry
// never expires the record.
func (r *Record) Expired(now time.Time) bool {
	t, ok := r.Expiry()
	if !ok {
		return false
	}
	return now.After(t)
}

// Valid reports whether the record represents a live login: it exists, it
// carries a token or the authenticated flag, and it has not expired.
func (r *Record) Valid(now time.Time) bool {
	if r == nil {
		return false
	}
	if r.Token == "" && !r.IsAuthenticated {
		return false
	}
	return !r.Expired(now)
}

// DisplayName returns the user's name, falling back to the email
func (r *Record) DisplayName() string {
	if r == nil || r.User == nil {
		return ""
	}
	if r.User.Name != "" {
		return r.User.Name
	}
	return r.User.Email
}

// Clone returns a deep copy of the record
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.User != nil {
		u := *r.User
		c.User = &u
	}
	return &c
}
