package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/usradm-dev/usradm/internal/models"
)

const usersPath = "/api/users"

// ListUsers returns all users. The API wraps the array under "data".
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var listResp models.ListResponse
	if err := c.do(ctx, http.MethodGet, usersPath, nil, &listResp); err != nil {
		return nil, err
	}
	if listResp.Data == nil {
		return []models.User{}, nil
	}
	return listResp.Data, nil
}

// GetUser returns a single user
func (c *Client) GetUser(ctx context.Context, id models.UserID) (*models.User, error) {
	raw, err := c.doRaw(ctx, http.MethodGet, userPath(id), nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

// CreateUser creates a new user
func (c *Client) CreateUser(ctx context.Context, in models.UserInput) (*models.User, error) {
	raw, err := c.doRaw(ctx, http.MethodPost, usersPath, in, nil)
	if err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

// UpdateUser replaces a user's fields
func (c *Client) UpdateUser(ctx context.Context, id models.UserID, in models.UserInput) (*models.User, error) {
	raw, err := c.doRaw(ctx, http.MethodPut, userPath(id), in, nil)
	if err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

// DeleteUser deletes a user by ID
func (c *Client) DeleteUser(ctx context.Context, id models.UserID) error {
	return c.do(ctx, http.MethodDelete, userPath(id), nil, nil)
}

func userPath(id models.UserID) string {
	return fmt.Sprintf("%s/%s", usersPath, url.PathEscape(id.String()))
}

// decodeUser accepts a bare user object, one wrapped under "data", or one
// wrapped under "user". An empty body yields nil.
func decodeUser(raw []byte) (*models.User, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
		User json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	body := raw
	switch {
	case len(envelope.Data) > 0 && envelope.Data[0] == '{':
		body = envelope.Data
	case len(envelope.User) > 0 && envelope.User[0] == '{':
		body = envelope.User
	}

	var user models.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &user, nil
}
