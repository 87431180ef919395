// integrations.go - third-party service integration settings
package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sysmanage/middleware"
	"sysmanage/services"
)

// SetupIntegrationRoutes configures integration settings endpoints.
func SetupIntegrationRoutes(router chi.Router) {
	router.Get("/integrations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"items": services.KnownIntegrations})
	})

	router.Get("/integrations/{name}", func(w http.ResponseWriter, r *http.Request) {
		is, err := services.GetIntegration(r.Context(), chi.URLParam(r, "name"))
		if err != nil {
			if errors.Is(err, services.ErrUnknownIntegration) {
				httpError(w, http.StatusNotFound, err.Error())
				return
			}
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, is)
	})

	router.With(middleware.RequirePermission("Manage Integrations")).
		Put("/integrations/{name}", func(w http.ResponseWriter, r *http.Request) {
			var settings map[string]any
			if !decodeBody(w, r, &settings) {
				return
			}
			name := chi.URLParam(r, "name")
			if err := services.PutIntegration(r.Context(), name, settings); err != nil {
				if errors.Is(err, services.ErrUnknownIntegration) {
					httpError(w, http.StatusNotFound, err.Error())
					return
				}
				httpError(w, http.StatusBadRequest, err.Error())
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

	router.Get("/integrations/{name}/status", func(w http.ResponseWriter, r *http.Request) {
		st, err := services.ProbeIntegration(r.Context(), chi.URLParam(r, "name"))
		if err != nil {
			if errors.Is(err, services.ErrUnknownIntegration) {
				httpError(w, http.StatusNotFound, err.Error())
				return
			}
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, st)
	})
}
