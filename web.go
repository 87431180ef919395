// web.go - router assembly and SPA serving
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sysmanage/common"
	"sysmanage/handlers"
	"sysmanage/middleware"
)

type Health struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
}

func makeRouter() http.Handler {
	r := chi.NewRouter()

	// CORS – locked down for credentials
	uiOrigin := strings.TrimSpace(common.Env("SYSMANAGE_UI_ORIGIN", ""))
	allowedOrigins := []string{}
	if uiOrigin != "" {
		allowedOrigins = append(allowedOrigins, uiOrigin)
	}
	// dev helpers
	allowedOrigins = append(allowedOrigins,
		"http://localhost:5173",
		"http://127.0.0.1:5173",
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins, // no "*"
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Host-ID"},
		AllowCredentials: true,
		MaxAge:           600,
	}))
	r.Use(sessionManager.LoadAndSave)
	r.Use(middleware.Metrics)

	// -------- API
	r.Route("/api", func(api chi.Router) {
		api.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, Health{Status: "ok", StartedAt: startedAt})
		})

		// Token endpoints are public by necessity.
		api.Post("/auth/login", LoginHandler)
		api.Post("/auth/refresh", RefreshHandler)
		api.Get("/session", SessionHandler)

		// Agent endpoints authenticate with per-host tokens.
		handlers.SetupAgentRoutes(api)

		// Everything below requires a bearer token or a browser session.
		api.Group(func(priv chi.Router) {
			priv.Use(middleware.RequireAuth)

			priv.Post("/auth/logout", TokenLogoutHandler)

			handlers.SetupHostRoutes(priv)
			handlers.SetupUpdateRoutes(priv)
			handlers.SetupUserRoutes(priv)
			handlers.SetupFirewallRoutes(priv)
			handlers.SetupRepoRoutes(priv)
			handlers.SetupChildHostRoutes(priv)
			handlers.SetupIntegrationRoutes(priv)
			handlers.SetupReportRoutes(priv)
			handlers.SetupCommandRoutes(priv)
			handlers.SetupSettingRoutes(priv)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	// -------- SSO endpoints (must come BEFORE SPA fallback)
	r.Get("/auth/sso/login", SSOLoginHandler)
	r.Get("/auth/sso/callback", SSOCallbackHandler)
	r.Post("/auth/sso/logout", SSOLogoutHandler)

	// -------- Static SPA (Vite)
	uiRoot := common.Env("SYSMANAGE_UI_DIR", "/app/ui/dist")
	fs := http.FileServer(http.Dir(uiRoot))

	// Serve built assets directly
	r.Get("/assets/*", func(w http.ResponseWriter, req *http.Request) {
		fs.ServeHTTP(w, req)
	})

	// SPA fallback (last)
	r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/api") || strings.HasPrefix(req.URL.Path, "/auth") {
			http.NotFound(w, req)
			return
		}
		path := filepath.Join(uiRoot, filepath.Clean(strings.TrimPrefix(req.URL.Path, "/")))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			http.ServeFile(w, req, path)
			return
		}
		http.ServeFile(w, req, filepath.Join(uiRoot, "index.html"))
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
