// Package client is a Go consumer of the sysmanage REST API: bearer-token
// injection, a single silent refresh-and-retry on 401, and backend
// reachability monitoring.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// APIError carries the server's detail message for non-2xx responses.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api: %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("api: %d", e.StatusCode)
}

// Client talks to a sysmanage server with automatic token refresh.
type Client struct {
	baseURL string
	http    *http.Client

	mu      sync.Mutex
	access  string
	refresh string
}

// New builds a client for the given base URL (e.g. "https://host:8443").
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SetTokens seeds the token pair, e.g. from persisted credentials.
func (c *Client) SetTokens(access, refresh string) {
	c.mu.Lock()
	c.access, c.refresh = access, refresh
	c.mu.Unlock()
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login exchanges credentials for a token pair and stores it.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return err
	}
	c.SetTokens(tr.AccessToken, tr.RefreshToken)
	return nil
}

// refreshTokens rotates the refresh token. Callers hold no lock.
func (c *Client) refreshTokens(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.refresh
	c.mu.Unlock()
	if refresh == "" {
		return ErrUnauthorized
	}

	body, _ := json.Marshal(map[string]string{"refresh_token": refresh})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ErrUnauthorized
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return err
	}
	c.SetTokens(tr.AccessToken, tr.RefreshToken)
	return nil
}

// Do performs an API request with bearer injection. On 401 it refreshes the
// token pair once and retries; a second 401 surfaces ErrUnauthorized. 403 is
// never retried.
func (c *Client) Do(ctx context.Context, method, path string, reqBody, out any) error {
	resp, err := c.doOnce(ctx, method, path, reqBody)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		if err := c.refreshTokens(ctx); err != nil {
			return ErrUnauthorized
		}
		resp, err = c.doOnce(ctx, method, path, reqBody)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			_ = resp.Body.Close()
			return ErrUnauthorized
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return ErrForbidden
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) doOnce(ctx context.Context, method, path string, reqBody any) (*http.Response, error) {
	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.Lock()
	if c.access != "" {
		req.Header.Set("Authorization", "Bearer "+c.access)
	}
	c.mu.Unlock()

	return c.http.Do(req)
}

// apiError extracts the JSON "detail" field when present.
func apiError(resp *http.Response) error {
	out := &APIError{StatusCode: resp.StatusCode}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil {
		var payload struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(b, &payload) == nil && payload.Detail != "" {
			out.Detail = payload.Detail
		} else {
			out.Detail = strings.TrimSpace(string(b))
		}
	}
	return out
}

// Healthz probes the server health endpoint without auth.
func (c *Client) Healthz(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode}
	}
	return nil
}
