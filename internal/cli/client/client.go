package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"

	"github.com/usradm-dev/usradm/internal/session"
)

const (
	xsrfCookieName = "XSRF-TOKEN"
	xsrfHeaderName = "X-XSRF-TOKEN"
	requestIDName  = "X-Request-ID"
)

// Client represents an HTTP client for the users API. It holds no session
// state of its own: the credential for each call comes from the session
// record carried in that call's context.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a new API client for baseURL (e.g. "http://127.0.0.1:8000")
func New(baseURL string, logger zerolog.Logger) *Client {
	// cookiejar.New never returns an error
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// No client-level timeout: every call is bounded by its context
		httpClient: &http.Client{Jar: jar},
		logger:     logger.With().Str("component", "api_client").Logger(),
	}
}

// do sends a request and decodes a 2xx JSON response into out (if non-nil).
// Non-2xx responses and transport failures come back as *Error.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	_, err := c.doRaw(ctx, method, path, body, out)
	return err
}

// doRaw is do, additionally returning the raw response body
func (c *Client) doRaw(ctx context.Context, method, path string, body, out any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := ulid.Make().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set(requestIDName, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if xsrf := c.xsrfToken(req.URL); xsrf != "" && method != http.MethodGet {
		req.Header.Set(xsrfHeaderName, xsrf)
	}

	authenticated := false
	if rec, ok := session.FromContext(ctx); ok {
		if rec.Token != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", rec.Token))
		}
		authenticated = rec.Token != "" || rec.IsAuthenticated
	}

	log := c.logger.With().Str("method", method).Str("path", path).Str("request_id", requestID).Logger()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiErr := transportError(ctx, err)
		log.Debug().Err(err).Str("kind", apiErr.Kind.String()).Msg("API request failed")
		return nil, apiErr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		apiErr := transportError(ctx, err)
		log.Debug().Err(err).Msg("Failed to read API response")
		return nil, apiErr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := responseError(resp.StatusCode, respBody, authenticated)
		log.Debug().Int("status", resp.StatusCode).Str("kind", apiErr.Kind.String()).Msg("API request rejected")
		return respBody, apiErr
	}

	log.Debug().Int("status", resp.StatusCode).Msg("API request completed")

	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return respBody, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return respBody, nil
}

// xsrfToken returns the decoded XSRF-TOKEN cookie for u, if the server set one
func (c *Client) xsrfToken(u *url.URL) string {
	if c.httpClient.Jar == nil {
		return ""
	}
	for _, cookie := range c.httpClient.Jar.Cookies(u) {
		if cookie.Name == xsrfCookieName {
			if v, err := url.QueryUnescape(cookie.Value); err == nil {
				return v
			}
			return cookie.Value
		}
	}
	return ""
}
