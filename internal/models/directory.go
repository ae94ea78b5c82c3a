package models

import (
	"fmt"
	"sort"
	"strings"
)

// FilterUsers keeps users whose name, email or role contains needle,
// case-insensitively. An empty needle keeps everyone.
func FilterUsers(users []User, needle string) []User {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return users
	}

	filtered := make([]User, 0, len(users))
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Name), needle) ||
			strings.Contains(strings.ToLower(u.Email), needle) ||
			strings.Contains(strings.ToLower(u.Role), needle) {
			filtered = append(filtered, u)
		}
	}
	return filtered
}

// SortKeys lists the fields SortUsers accepts
var SortKeys = []string{"id", "name", "email", "role"}

// CheckSortKey rejects a sort field SortUsers does not know. Empty is allowed.
func CheckSortKey(key string) error {
	if key == "" {
		return nil
	}
	for _, k := range SortKeys {
		if k == key {
			return nil
		}
	}
	return fmt.Errorf("invalid sort key '%s' (expected id, name, email or role)", key)
}

// SortUsers sorts users in place by key, keeping server order among equal
// values. Numeric IDs sort numerically. An unknown key leaves the order alone.
func SortUsers(users []User, key string) {
	var less func(a, b User) bool
	switch key {
	case "id":
		less = func(a, b User) bool { return lessID(a.ID.String(), b.ID.String()) }
	case "name":
		less = func(a, b User) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case "email":
		less = func(a, b User) bool { return strings.ToLower(a.Email) < strings.ToLower(b.Email) }
	case "role":
		less = func(a, b User) bool { return a.Role < b.Role }
	default:
		return
	}
	sort.SliceStable(users, func(i, j int) bool {
		return less(users[i], users[j])
	})
}

func lessID(a, b string) bool {
	if len(a) != len(b) && isDigits(a) && isDigits(b) {
		return len(a) < len(b)
	}
	return a < b
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
