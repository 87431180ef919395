package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func tokenBody(access, refresh string) []byte {
	b, _ := json.Marshal(map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"expires_in":    900,
	})
	return b
}

func TestLoginStoresTokensAndInjectsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["username"] != "admin" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write(tokenBody("acc1", "ref1"))
		case "/api/whoami":
			if r.Header.Get("Authorization") != "Bearer acc1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"user":"admin"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.Login(context.Background(), "admin", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	var out map[string]string
	if err := c.Do(context.Background(), http.MethodGet, "/api/whoami", nil, &out); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if out["user"] != "admin" {
		t.Errorf("user = %q, want admin", out["user"])
	}
}

func TestRefreshRetryOn401(t *testing.T) {
	var refreshed bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/refresh":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["refresh_token"] != "ref-old" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			refreshed = true
			_, _ = w.Write(tokenBody("acc-new", "ref-new"))
		case "/api/hosts":
			if r.Header.Get("Authorization") == "Bearer acc-new" {
				_, _ = w.Write([]byte(`{"items":[]}`))
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetTokens("acc-expired", "ref-old")

	var out map[string]any
	if err := c.Do(context.Background(), http.MethodGet, "/api/hosts", nil, &out); err != nil {
		t.Fatalf("Do after refresh: %v", err)
	}
	if !refreshed {
		t.Error("refresh endpoint never hit")
	}
}

func TestSecond401ReturnsErrUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetTokens("bad", "also-bad")
	err := c.Do(context.Background(), http.MethodGet, "/api/hosts", nil, nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestForbiddenIsNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetTokens("acc", "ref")
	err := c.Do(context.Background(), http.MethodGet, "/api/users", nil, nil)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestAPIErrorDetailExtraction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"fqdn is required"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.Do(context.Background(), http.MethodPost, "/api/hosts", map[string]string{}, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Detail != "fqdn is required" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}
