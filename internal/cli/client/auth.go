package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/usradm-dev/usradm/internal/session"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents the login response. Raw holds the full payload
// as sent by the server.
type LoginResponse struct {
	Status    string            `json:"status,omitempty"`
	Message   string            `json:"message,omitempty"`
	Token     string            `json:"token,omitempty"`
	User      *session.UserInfo `json:"user,omitempty"`
	Role      string            `json:"role,omitempty"`
	ExpiresAt string            `json:"expires_at,omitempty"`
	Raw       json.RawMessage   `json:"-"`
}

// Succeeded reports whether the payload describes a successful login
func (r *LoginResponse) Succeeded() bool {
	return r.Status == "success" || r.Token != ""
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// RefreshResponse represents the token refresh response
type RefreshResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// CSRFCookie asks the server for the anti-forgery cookie. The cookie jar
// keeps it for the requests that follow.
func (c *Client) CSRFCookie(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/sanctum/csrf-cookie", nil, nil)
}

// Login submits credentials and returns the server payload
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var loginResp LoginResponse
	raw, err := c.doRaw(ctx, http.MethodPost, "/api/login", LoginRequest{
		Email:    email,
		Password: password,
	}, &loginResp)
	if err != nil {
		return nil, err
	}

	loginResp.Raw = raw
	return &loginResp, nil
}

// Register submits a registration and returns the decoded payload
func (c *Client) Register(ctx context.Context, name, email, password string) (map[string]any, error) {
	payload := map[string]any{}
	err := c.do(ctx, http.MethodPost, "/api/register", RegisterRequest{
		Name:                 name,
		Email:                email,
		Password:             password,
		PasswordConfirmation: password,
	}, &payload)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Logout notifies the server that the session in ctx is over
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/logout", nil, nil)
}

// RefreshToken exchanges the session in ctx for a new token
func (c *Client) RefreshToken(ctx context.Context) (*RefreshResponse, error) {
	var refreshResp RefreshResponse
	if err := c.do(ctx, http.MethodPost, "/api/refresh-token", nil, &refreshResp); err != nil {
		return nil, err
	}
	return &refreshResp, nil
}
