// updates.go - software update inventory and install orchestration
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sysmanage/database"
	"sysmanage/middleware"
	"sysmanage/services"
)

// SetupUpdateRoutes configures the software update endpoints.
func SetupUpdateRoutes(router chi.Router) {
	router.Get("/hosts/{id}/updates", func(w http.ResponseWriter, r *http.Request) {
		items, err := database.ListHostUpdates(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			dbError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	})

	router.With(middleware.RequirePermission("Apply Software Update")).
		Post("/hosts/{id}/updates/install", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Packages []string `json:"packages"`
			}
			if !decodeBody(w, r, &body) {
				return
			}
			if len(body.Packages) == 0 {
				httpError(w, http.StatusBadRequest, "packages is required")
				return
			}
			cmdID, err := services.RequestUpdateInstall(r.Context(), chi.URLParam(r, "id"),
				body.Packages, middleware.GetUserName(r.Context()))
			if err != nil {
				httpError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{"command_id": cmdID})
		})

	router.Get("/updates/summary", func(w http.ResponseWriter, r *http.Request) {
		items, err := database.SummarizeUpdates(r.Context())
		if err != nil {
			dbError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	})
}
