// settings.go - instance-wide key/value settings
package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"sysmanage/database"
	"sysmanage/middleware"
)

// SetupSettingRoutes configures the app settings endpoints. The keys are
// free-form; known ones include "auto_approve_hosts".
func SetupSettingRoutes(router chi.Router) {
	router.Get("/settings/{key}", func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		value, ok := database.GetAppSetting(r.Context(), key)
		if !ok {
			httpError(w, http.StatusNotFound, "setting not set")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
	})

	manage := router.With(middleware.RequirePermission("Manage Integrations"))

	manage.Put("/settings/{key}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Value string `json:"value"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		key := strings.TrimSpace(chi.URLParam(r, "key"))
		if key == "" {
			httpError(w, http.StatusBadRequest, "key is required")
			return
		}
		if err := database.SetAppSetting(r.Context(), key, body.Value); err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	manage.Delete("/settings/{key}", func(w http.ResponseWriter, r *http.Request) {
		if err := database.DelAppSetting(r.Context(), chi.URLParam(r, "key")); err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
