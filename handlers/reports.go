// reports.go - fleet inventory and update reports, JSON or CSV
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sysmanage/middleware"
	"sysmanage/services"
)

func csvHeader(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
}

// SetupReportRoutes configures the reporting endpoints.
func SetupReportRoutes(router chi.Router) {
	view := router.With(middleware.RequirePermission("View Report"))

	view.Get("/reports/hosts", func(w http.ResponseWriter, r *http.Request) {
		rows, err := services.BuildHostReport(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if r.URL.Query().Get("format") == "csv" {
			csvHeader(w, "hosts.csv")
			if err := services.WriteHostReportCSV(w, rows); err != nil {
				// Headers are out; nothing useful left to send.
				return
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": rows})
	})

	view.Get("/reports/updates", func(w http.ResponseWriter, r *http.Request) {
		rows, err := services.BuildUpdateReport(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if r.URL.Query().Get("format") == "csv" {
			csvHeader(w, "updates.csv")
			if err := services.WriteUpdateReportCSV(w, rows); err != nil {
				return
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": rows})
	})
}
