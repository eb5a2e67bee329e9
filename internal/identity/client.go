// Package identity calls the external credential verifier. Password storage
// and checking live outside this service; we only ask "are these credentials
// good" and read back the verdict.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrBadCredentials is returned when the verifier rejects the login.
var ErrBadCredentials = errors.New("invalid credentials")

// Client calls the identity provider microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, every verification succeeds — dev and
// test environments run without a provider.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Verify checks a login handle (matric number or email) and password against
// the provider.
func (c *Client) Verify(ctx context.Context, handle, password string) error {
	if c.Skip {
		return nil
	}
	if handle == "" || password == "" {
		return ErrBadCredentials
	}

	body, _ := json.Marshal(map[string]string{"handle": handle, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("identity service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrBadCredentials
	}
	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("identity service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Verified bool `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !out.Verified {
		return ErrBadCredentials
	}
	return nil
}

// Health pings the provider.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("identity service unhealthy: %s", resp.Status)
	}
	return nil
}
