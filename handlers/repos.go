// repos.go - third-party repository management
package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"sysmanage/database"
	"sysmanage/middleware"
	"sysmanage/services"
)

var validRepoTypes = map[string]bool{
	"apt": true, "yum": true, "zypper": true, "brew": true, "pkg": true,
}

// SetupRepoRoutes configures third-party repository endpoints.
func SetupRepoRoutes(router chi.Router) {
	router.Get("/repositories", func(w http.ResponseWriter, r *http.Request) {
		items, err := database.ListRepos(r.Context())
		if err != nil {
			dbError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	})

	manage := router.With(middleware.RequirePermission("Manage Repositories"))

	manage.Post("/repositories", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name     string `json:"name"`
			RepoType string `json:"repo_type"`
			URL      string `json:"url"`
			KeyURL   string `json:"key_url,omitempty"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		body.RepoType = strings.ToLower(strings.TrimSpace(body.RepoType))
		if strings.TrimSpace(body.Name) == "" || strings.TrimSpace(body.URL) == "" {
			httpError(w, http.StatusBadRequest, "name and url are required")
			return
		}
		if !validRepoTypes[body.RepoType] {
			httpError(w, http.StatusBadRequest, "unsupported repo_type")
			return
		}
		repo, err := database.CreateRepo(r.Context(), body.Name, body.RepoType, body.URL, body.KeyURL)
		if err != nil {
			httpError(w, http.StatusConflict, "repository already exists")
			return
		}
		writeJSON(w, http.StatusCreated, repo)
	})

	manage.Put("/repositories/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name     string `json:"name"`
			RepoType string `json:"repo_type"`
			URL      string `json:"url"`
			KeyURL   string `json:"key_url,omitempty"`
			Enabled  bool   `json:"enabled"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		body.RepoType = strings.ToLower(strings.TrimSpace(body.RepoType))
		if !validRepoTypes[body.RepoType] {
			httpError(w, http.StatusBadRequest, "unsupported repo_type")
			return
		}
		id := parseIntDefault(chi.URLParam(r, "id"), 0)
		if err := database.UpdateRepo(r.Context(), id, body.Name, body.RepoType, body.URL, body.KeyURL, body.Enabled); err != nil {
			dbError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	manage.Delete("/repositories/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := database.DeleteRepo(r.Context(), parseIntDefault(chi.URLParam(r, "id"), 0)); err != nil {
			dbError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	router.Get("/hosts/{id}/repositories", func(w http.ResponseWriter, r *http.Request) {
		items, err := database.ListHostRepos(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			dbError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	})

	manage.Post("/hosts/{id}/repositories/{repoID}", func(w http.ResponseWriter, r *http.Request) {
		hostID := chi.URLParam(r, "id")
		repoID := parseIntDefault(chi.URLParam(r, "repoID"), 0)
		repo, err := database.GetRepo(r.Context(), repoID)
		if err != nil {
			dbError(w, err)
			return
		}
		if err := database.AssignRepoToHost(r.Context(), hostID, repoID); err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		cmdID, err := services.Agents.DispatchCommand(r.Context(), hostID, services.CmdEnableRepo,
			map[string]any{
				"repo_id":   repo.ID,
				"name":      repo.Name,
				"repo_type": repo.RepoType,
				"url":       repo.URL,
				"key_url":   repo.KeyURL,
			}, middleware.GetUserName(r.Context()))
		if err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"command_id": cmdID})
	})

	manage.Delete("/hosts/{id}/repositories/{repoID}", func(w http.ResponseWriter, r *http.Request) {
		hostID := chi.URLParam(r, "id")
		repoID := parseIntDefault(chi.URLParam(r, "repoID"), 0)
		if err := database.UnassignRepoFromHost(r.Context(), hostID, repoID); err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		cmdID, err := services.Agents.DispatchCommand(r.Context(), hostID, services.CmdRemoveRepo,
			map[string]any{"repo_id": repoID}, middleware.GetUserName(r.Context()))
		if err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"command_id": cmdID})
	})
}
