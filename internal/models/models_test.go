package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserID_UnmarshalJSON(t *testing.T) {
	var users []User
	require.NoError(t, json.Unmarshal([]byte(`[{"id":7},{"id":"a-1"},{"id":null}]`), &users))

	assert.Equal(t, UserID("7"), users[0].ID)
	assert.Equal(t, UserID("a-1"), users[1].ID)
	assert.Equal(t, UserID(""), users[2].ID)

	var u User
	assert.Error(t, json.Unmarshal([]byte(`{"id":true}`), &u))
}

func TestUser_PasswordIsWriteOnly(t *testing.T) {
	data, err := json.Marshal(User{ID: "1", Name: "A", Email: "a@b.com"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "password")
}

func TestUserInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      UserInput
		wantErr string
	}{
		{"valid create", UserInput{Name: "A", Email: "a@b.com", Password: "pw", Create: true}, ""},
		{"valid update without password", UserInput{Name: "A", Email: "a@b.com"}, ""},
		{"blank name", UserInput{Name: "  ", Email: "a@b.com"}, "invalid name: field is required"},
		{"bad email", UserInput{Name: "A", Email: "nope"}, "invalid email: must be a valid email address"},
		{"create needs password", UserInput{Name: "A", Email: "a@b.com", Create: true}, "invalid password: field is required"},
		{"unknown role", UserInput{Name: "A", Email: "a@b.com", Role: "root"}, "invalid role: must be one of: user, admin, moderator"},
		{"role is case-insensitive", UserInput{Name: "A", Email: "a@b.com", Role: "Admin"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestFilterUsers(t *testing.T) {
	users := []User{
		{ID: "1", Name: "Alice", Email: "alice@example.com", Role: "admin"},
		{ID: "2", Name: "Bob", Email: "bob@example.com", Role: "user"},
		{ID: "3", Name: "Carol", Email: "carol@example.com", Role: "moderator"},
	}

	assert.Len(t, FilterUsers(users, ""), 3)
	assert.Equal(t, []User{users[1]}, FilterUsers(users, "BOB"))
	assert.Equal(t, []User{users[2]}, FilterUsers(users, "moder"))
	assert.Empty(t, FilterUsers(users, "zzz"))
}

func TestSortUsers(t *testing.T) {
	users := []User{{ID: "10", Name: "b"}, {ID: "9", Name: "C"}, {ID: "abc", Name: "a"}, {ID: "1", Name: "b"}}

	SortUsers(users, "id")
	assert.Equal(t, []UserID{"1", "9", "10", "abc"}, ids(users))

	SortUsers(users, "name")
	// Equal names keep their previous order
	assert.Equal(t, []UserID{"abc", "1", "10", "9"}, ids(users))

	SortUsers(users, "unknown")
	assert.Equal(t, []UserID{"abc", "1", "10", "9"}, ids(users))
}

func TestCheckSortKey(t *testing.T) {
	assert.NoError(t, CheckSortKey(""))
	assert.NoError(t, CheckSortKey("email"))
	assert.EqualError(t, CheckSortKey("age"), "invalid sort key 'age' (expected id, name, email or role)")
}

func ids(users []User) []UserID {
	out := make([]UserID, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}
