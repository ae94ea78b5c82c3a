package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Roles known to the users API. The server owns the set; the client never
// rejects a role it does not recognise when reading.
const (
	RoleUser      = "user"
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

// UserID is a user identifier. The API may send it as a JSON number or a
// JSON string; it is always kept as a string on the client.
type UserID string

// UnmarshalJSON accepts both numeric and string identifiers
func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
		*id = UserID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

func (id UserID) String() string {
	return string(id)
}

// User is a user record as returned by the users resource. The client only
// holds transient copies.
type User struct {
	ID       UserID `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Email    string `json:"email" yaml:"email"`
	Role     string `json:"role" yaml:"role"`
	Password string `json:"password,omitempty" yaml:"-"` // write-only
}

// UserInput is the body sent on create and update
type UserInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password,omitempty" validate:"required_if=Create true"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=user admin moderator"`

	// Create marks a create request, where a password is mandatory
	Create bool `json:"-"`
}

var validate = validator.New()

// Validate checks the input the way the create and edit forms do before
// anything is sent to the server.
func (in *UserInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid %s: %s", strings.ToLower(verrs[0].Field()), describeTag(verrs[0]))
		}
		return fmt.Errorf("invalid user input: %w", err)
	}
	return nil
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "field is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// ListResponse is the envelope the API wraps collections in
type ListResponse struct {
	Data []User `json:"data"`
}
