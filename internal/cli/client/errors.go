package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed request
type Kind int

const (
	// KindNetwork means no response was received
	KindNetwork Kind = iota + 1
	// KindServer means the server answered with an error status
	KindServer
	// KindTimeout means the action's deadline passed first
	KindTimeout
	// KindSessionExpired means the server rejected the session credential
	KindSessionExpired
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindTimeout:
		return "timeout"
	case KindSessionExpired:
		return "session_expired"
	default:
		return "unknown"
	}
}

// Sentinels usable with errors.Is against any *Error
var (
	ErrNetwork        = errors.New("network failure")
	ErrTimeout        = errors.New("request timed out")
	ErrSessionExpired = errors.New("session expired")
)

const (
	msgNetwork        = "Cannot connect to the server. Check your network connection."
	msgTimeout        = "The server took too long to respond. Please try again later."
	msgSessionExpired = "Your session has expired. Please log in again."
	msgValidation     = "Validation failed. Please check your input."
	msgNotFound       = "Email is not registered. Check it or create a new account."
	msgUnauthorized   = "Incorrect email or password. Please try again."
	msgRateLimited    = "Too many attempts. Please try again later."
	msgServerError    = "The server encountered a problem. Please try again later."
	msgGeneric        = "Request failed. Please check your credentials."
)

// Error is returned for every failed API call. Message is ready for display.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 when no response arrived
	Message string // display message
	Body    []byte // raw response body, if any
	Err     error  // underlying transport error, if any
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrSessionExpired:
		return e.Kind == KindSessionExpired
	}
	return false
}

// Message returns the text to show the user for err
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if errors.Is(err, ErrSessionExpired) {
		return msgSessionExpired
	}
	return err.Error()
}

// SessionExpiredError builds the error signalled when a session can no
// longer be used
func SessionExpiredError(cause error) *Error {
	return &Error{Kind: KindSessionExpired, Message: msgSessionExpired, Err: cause}
}

// transportError classifies a failure where no response was received
func transportError(ctx context.Context, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: msgTimeout, Err: err}
	}
	return &Error{Kind: KindNetwork, Message: msgNetwork, Err: err}
}

// responseError builds the error for a non-2xx response. authenticated
// reports whether the request carried a session credential.
func responseError(status int, body []byte, authenticated bool) *Error {
	if authenticated && (status == http.StatusUnauthorized || status == http.StatusForbidden) {
		return &Error{Kind: KindSessionExpired, Status: status, Message: msgSessionExpired, Body: body}
	}

	msg, ok := structuredMessage(body)
	if !ok {
		msg = statusMessage(status)
	}
	return &Error{Kind: KindServer, Status: status, Message: msg, Body: body}
}

// structuredMessage extracts message, error, or the first field error from
// a JSON error payload, in that order of preference
func structuredMessage(body []byte) (string, bool) {
	var payload struct {
		Message string          `json:"message"`
		Error   string          `json:"error"`
		Errors  json.RawMessage `json:"errors"`
	}
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &payload) != nil {
		return "", false
	}

	if payload.Message != "" {
		return payload.Message, true
	}
	if payload.Error != "" {
		return payload.Error, true
	}
	if len(payload.Errors) == 0 || bytes.Equal(payload.Errors, []byte("null")) {
		return "", false
	}

	var s string
	if err := json.Unmarshal(payload.Errors, &s); err == nil {
		return s, s != ""
	}
	if msg, ok := firstFieldError(payload.Errors); ok {
		return msg, true
	}
	return msgValidation, true
}

// firstFieldError returns the first message of the first field of a
// validation errors object, in document order
func firstFieldError(raw json.RawMessage) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return "", false
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return "", false
	}
	if !dec.More() {
		return "", false
	}
	// field name
	if _, err := dec.Token(); err != nil {
		return "", false
	}

	var value json.RawMessage
	if err := dec.Decode(&value); err != nil {
		return "", false
	}

	var list []string
	if err := json.Unmarshal(value, &list); err == nil {
		if len(list) > 0 && list[0] != "" {
			return list[0], true
		}
		return "", false
	}
	var single string
	if err := json.Unmarshal(value, &single); err == nil && single != "" {
		return single, true
	}
	return "", false
}

func statusMessage(status int) string {
	switch {
	case status == http.StatusNotFound:
		return msgNotFound
	case status == http.StatusUnauthorized:
		return msgUnauthorized
	case status == http.StatusTooManyRequests:
		return msgRateLimited
	case status >= 500:
		return msgServerError
	default:
		return msgGeneric
	}
}
