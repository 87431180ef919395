// auth.go - local credential login, token refresh, optional OIDC SSO
package main

import (
	"context"
	"encoding/gob"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"sysmanage/common"
	"sysmanage/database"
	"sysmanage/middleware"
	"sysmanage/services"
)

func init() {
	gob.Register(middleware.User{})        // ensure scs can (de)serialize User
	gob.Register(map[string]interface{}{}) // for storing oauth temp data
}

var (
	oidcProv           *oidc.Provider
	oidcVerifier       *oidc.IDTokenVerifier
	oauthCfg           *oauth2.Config
	sessionManager     *scs.SessionManager
	authCfg            AuthConfig
	endSessionEndpoint string // discovered from .well-known
)

// ---- server-side id_token store (per-session) ----

type idTokenEntry struct {
	token string
	exp   time.Time
}
type idTokenStore struct {
	mu sync.RWMutex
	m  map[string]idTokenEntry // sid -> entry
}

func (s *idTokenStore) put(sid, token string, exp time.Time) {
	if sid == "" || token == "" {
		return
	}
	s.mu.Lock()
	if s.m == nil {
		s.m = make(map[string]idTokenEntry)
	}
	s.m[sid] = idTokenEntry{token: token, exp: exp}
	s.mu.Unlock()
}
func (s *idTokenStore) pop(sid string) string {
	if sid == "" {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.m[sid]
	if ok {
		delete(s.m, sid)
		if time.Now().Before(ent.exp) {
			return ent.token
		}
	}
	return ""
}
func (s *idTokenStore) sweep() {
	now := time.Now()
	s.mu.Lock()
	for k, v := range s.m {
		if now.After(v.exp) {
			delete(s.m, k)
		}
	}
	s.mu.Unlock()
}

var idtStore idTokenStore

type AuthConfig struct {
	Issuer        string
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	Scopes        []string
	AllowedDomain string
	SecureCookies bool
	CookieDomain  string

	PostLogoutRedirectURL string // used for RP-initiated logout
}

const cookieMaxAge = 7 * 24 * 3600 // 7d

// InitAuthFromEnv wires the session manager and, when OIDC_ISSUER_URL is
// set, the SSO flow. Local credential login works either way.
func InitAuthFromEnv() error {
	clientID, err := common.EnvOrFile("OIDC_CLIENT_ID", "OIDC_CLIENT_ID_FILE")
	if err != nil {
		return err
	}
	clientSecret, err := common.EnvOrFile("OIDC_CLIENT_SECRET", "OIDC_CLIENT_SECRET_FILE")
	if err != nil {
		return err
	}

	redirect := common.Env("OIDC_REDIRECT_URL", "")

	// Derive SecureCookies if COOKIE_SECURE is unset.
	secureStr := strings.TrimSpace(common.Env("SYSMANAGE_COOKIE_SECURE", ""))
	var secure bool
	if secureStr == "" {
		secure = strings.HasPrefix(strings.ToLower(redirect), "https://")
	} else {
		secure = common.IsTrueish(secureStr)
	}

	authCfg = AuthConfig{
		Issuer:                common.Env("OIDC_ISSUER_URL", ""),
		ClientID:              clientID,
		ClientSecret:          clientSecret,
		RedirectURL:           redirect,
		Scopes:                scopes(common.Env("OIDC_SCOPES", "openid email profile")),
		AllowedDomain:         strings.ToLower(common.Env("OIDC_ALLOWED_EMAIL_DOMAIN", "")),
		SecureCookies:         secure,
		CookieDomain:          common.Env("SYSMANAGE_COOKIE_DOMAIN", ""),
		PostLogoutRedirectURL: common.Env("OIDC_POST_LOGOUT_REDIRECT_URL", ""),
	}

	// ---- Session manager setup
	sessionManager = scs.New()
	sessionManager.Lifetime = time.Duration(cookieMaxAge) * time.Second
	sessionManager.Cookie.Name = common.SessionName
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.Secure = authCfg.SecureCookies
	sessionManager.Cookie.Path = "/"
	sessionManager.Cookie.Domain = authCfg.CookieDomain
	if authCfg.SecureCookies {
		sessionManager.Cookie.SameSite = http.SameSiteNoneMode
	} else {
		sessionManager.Cookie.SameSite = http.SameSiteLaxMode
	}
	common.SessionManager = sessionManager

	if authCfg.Issuer == "" {
		common.InfoLog("auth: OIDC not configured, local credentials only")
		return nil
	}
	if authCfg.ClientID == "" || authCfg.ClientSecret == "" || authCfg.RedirectURL == "" {
		return errors.New("OIDC_CLIENT_ID{/_FILE}, OIDC_CLIENT_SECRET{/_FILE}, OIDC_REDIRECT_URL are required when OIDC_ISSUER_URL is set")
	}

	// ---- OIDC wiring
	ctx := context.Background()
	oidcProv, err = oidc.NewProvider(ctx, authCfg.Issuer)
	if err != nil {
		return err
	}

	// Try to discover end_session_endpoint (not all providers expose it)
	var disc struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := oidcProv.Claims(&disc); err == nil {
		endSessionEndpoint = strings.TrimSpace(disc.EndSessionEndpoint)
	}
	if endSessionEndpoint == "" {
		common.InfoLog("auth: no end_session_endpoint found in discovery; RP-logout will fall back to local clear")
	}

	oidcVerifier = oidcProv.Verifier(&oidc.Config{ClientID: authCfg.ClientID})
	oauthCfg = &oauth2.Config{
		ClientID:     authCfg.ClientID,
		ClientSecret: authCfg.ClientSecret,
		Endpoint:     oidcProv.Endpoint(),
		RedirectURL:  authCfg.RedirectURL,
		Scopes:       authCfg.Scopes,
	}

	// start background sweeper for server-side id_tokens
	go func() {
		t := time.NewTicker(10 * time.Minute)
		defer t.Stop()
		for range t.C {
			idtStore.sweep()
		}
	}()

	return nil
}

func scopes(s string) []string { return strings.Fields(s) }

// tokenResponse is the body of a successful login or refresh.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func issueTokens(ctx context.Context, userID, username string) (*tokenResponse, error) {
	access, err := services.MintAccessToken(userID, username)
	if err != nil {
		return nil, err
	}
	refresh := services.NewRefreshToken()
	if err := database.StoreRefreshToken(ctx, userID, refresh, services.RefreshTokenTTL); err != nil {
		return nil, err
	}
	return &tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(services.AccessTokenTTL.Seconds()),
	}, nil
}

// LoginHandler exchanges local credentials for a token pair.
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	body.Username = strings.TrimSpace(body.Username)

	id, hash, err := database.GetUserCredentials(r.Context(), body.Username)
	if err != nil || bcrypt.CompareHashAndPassword([]byte(hash), []byte(body.Password)) != nil {
		// Same answer for unknown user and bad password.
		writeDetail(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	resp, err := issueTokens(r.Context(), id, body.Username)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	_ = database.RecordLogin(r.Context(), id)
	common.InfoLog("auth: login ok user=%s", body.Username)
	writeJSON(w, http.StatusOK, resp)
}

// RefreshHandler rotates a refresh token into a fresh pair. A consumed or
// expired token gets 401 and the client must log in again.
func RefreshHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSON(r, &body); err != nil || body.RefreshToken == "" {
		writeDetail(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	userID, err := database.ConsumeRefreshToken(r.Context(), body.RefreshToken)
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	u, err := database.GetUser(r.Context(), userID)
	if err != nil || !u.Active {
		writeDetail(w, http.StatusUnauthorized, "account unavailable")
		return
	}

	resp, err := issueTokens(r.Context(), u.ID, u.Username)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// TokenLogoutHandler revokes the caller's refresh tokens.
func TokenLogoutHandler(w http.ResponseWriter, r *http.Request) {
	u := middleware.CurrentUser(r.Context())
	if u.ID != "" {
		if err := database.RevokeUserRefreshTokens(r.Context(), u.ID); err != nil {
			writeDetail(w, http.StatusInternalServerError, "logout failed")
			return
		}
		services.Privileges.Invalidate(u.ID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- OIDC SSO flow (optional) ---

func SSOLoginHandler(w http.ResponseWriter, r *http.Request) {
	if oauthCfg == nil || oidcProv == nil {
		writeDetail(w, http.StatusNotFound, "sso not configured")
		return
	}

	// CSRF + replay protection
	state := services.RandHex(32)
	nonce := services.RandHex(32)

	oauthData := map[string]interface{}{
		"state": state,
		"nonce": nonce,
	}
	sessionManager.Put(r.Context(), "oauth_temp", oauthData)

	authURL := oauthCfg.AuthCodeURL(state, oidc.Nonce(nonce))
	http.Redirect(w, r, authURL, http.StatusFound)
}

func SSOCallbackHandler(w http.ResponseWriter, r *http.Request) {
	if oauthCfg == nil || oidcVerifier == nil {
		writeDetail(w, http.StatusNotFound, "sso not configured")
		return
	}

	oauthData, _ := sessionManager.Pop(r.Context(), "oauth_temp").(map[string]interface{})
	wantState, _ := oauthData["state"].(string)
	nonce, _ := oauthData["nonce"].(string)

	if r.URL.Query().Get("state") != wantState || wantState == "" {
		writeDetail(w, http.StatusBadRequest, "state mismatch")
		return
	}

	ctx := r.Context()
	tok, err := oauthCfg.Exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		writeDetail(w, http.StatusBadGateway, "code exchange failed")
		return
	}

	rawID, ok := tok.Extra("id_token").(string)
	if !ok {
		writeDetail(w, http.StatusBadGateway, "no id_token")
		return
	}
	idt, err := oidcVerifier.Verify(ctx, rawID)
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "id token verify failed")
		return
	}
	if idt.Nonce != nonce {
		writeDetail(w, http.StatusBadRequest, "nonce mismatch")
		return
	}

	var claims struct {
		Sub    string `json:"sub"`
		Email  string `json:"email"`
		Name   string `json:"name"`
		HD     string `json:"hd"`
		Domain string `json:"domain"`
		Exp    int64  `json:"exp"`
	}
	if err := idt.Claims(&claims); err != nil {
		writeDetail(w, http.StatusBadGateway, "claims parse failed")
		return
	}

	if authCfg.AllowedDomain != "" {
		d := strings.ToLower(domainForClaims(claims.Email, claims.HD, claims.Domain))
		if d != authCfg.AllowedDomain {
			writeDetail(w, http.StatusForbidden, "domain not allowed")
			return
		}
	}

	// SSO identities map onto local console users by email; unknown
	// identities are rejected rather than auto-provisioned.
	email := strings.ToLower(claims.Email)
	row, err := database.GetUserByEmail(ctx, email)
	if err != nil || !row.Active {
		writeDetail(w, http.StatusForbidden, "no local account for "+email)
		return
	}

	u := middleware.User{
		ID:       row.ID,
		Username: row.Username,
		Email:    email,
		Name:     claims.Name,
	}

	// Save minimal session + sid; store id_token server-side keyed by sid
	sid := sessionManager.GetString(r.Context(), "sid")
	if strings.TrimSpace(sid) == "" {
		sid = services.RandHex(32)
		sessionManager.Put(r.Context(), "sid", sid)
	}
	sessionManager.Put(r.Context(), "user", u)
	sessionManager.Put(r.Context(), "exp", time.Now().Add(7*24*time.Hour).Unix())

	// expiry = min(session 7d, token exp if present)
	exp := time.Now().Add(7 * 24 * time.Hour)
	if claims.Exp > 0 {
		if te := time.Unix(claims.Exp, 0); te.Before(exp) {
			exp = te
		}
	}
	idtStore.put(sid, rawID, exp)

	_ = database.RecordLogin(ctx, row.ID)
	common.InfoLog("auth: sso login ok sub=%s email=%s", claims.Sub, email)

	http.Redirect(w, r, "/", http.StatusFound)
}

func SSOLogoutHandler(w http.ResponseWriter, r *http.Request) {
	// retrieve sid/id_token for RP-initiated logout BEFORE clearing
	sid := sessionManager.GetString(r.Context(), "sid")
	rawID := idtStore.pop(sid) // empty if absent/expired

	if err := sessionManager.Destroy(r.Context()); err != nil {
		common.ErrorLog("auth: failed to destroy session: %v", err)
	}

	// If discovery had an end_session_endpoint and we have an id_token, do RP-initiated logout.
	if endSessionEndpoint != "" && strings.TrimSpace(rawID) != "" {
		u, _ := url.Parse(endSessionEndpoint)
		q := u.Query()
		q.Set("id_token_hint", rawID)
		if authCfg.PostLogoutRedirectURL != "" {
			q.Set("post_logout_redirect_uri", authCfg.PostLogoutRedirectURL)
		}
		if authCfg.ClientID != "" {
			q.Set("client_id", authCfg.ClientID)
		}
		u.RawQuery = q.Encode()
		common.InfoLog("auth: rp-logout redirecting to OP end_session_endpoint")
		http.Redirect(w, r, u.String(), http.StatusSeeOther) // 303
		return
	}

	if r.Header.Get("Accept") == "application/json" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// SessionHandler reports the browser session, if any.
func SessionHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := sessionManager.Get(r.Context(), "user").(middleware.User)
	exp := sessionManager.GetInt64(r.Context(), "exp")

	if !ok || exp == 0 || time.Now().Unix() > exp {
		writeJSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func domainForClaims(email, hd, dom string) string {
	if hd != "" {
		return hd
	}
	if dom != "" {
		return dom
	}
	i := strings.LastIndex(email, "@")
	if i > 0 {
		return email[i+1:]
	}
	return ""
}
