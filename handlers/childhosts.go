// childhosts.go - virtualization: child host provisioning and teardown
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sysmanage/common"
	"sysmanage/database"
	"sysmanage/middleware"
	"sysmanage/services"
)

// SetupChildHostRoutes configures child host (VM/container) endpoints.
func SetupChildHostRoutes(router chi.Router) {
	router.Get("/hosts/{id}/child-hosts", func(w http.ResponseWriter, r *http.Request) {
		items, err := database.ListChildHosts(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			dbError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	})

	router.With(middleware.RequirePermission("Create Child Host")).
		Post("/hosts/{id}/child-hosts", func(w http.ResponseWriter, r *http.Request) {
			var req services.ChildHostRequest
			if !decodeBody(w, r, &req) {
				return
			}
			parent, err := database.GetHost(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				dbError(w, err)
				return
			}
			if parent.ApprovalStatus != common.HostApproved {
				httpError(w, http.StatusConflict, "host not approved")
				return
			}
			if err := services.ValidateChildHostRequest(&req, parent.Platform); err != nil {
				httpError(w, http.StatusBadRequest, err.Error())
				return
			}
			child, err := services.ProvisionChildHost(r.Context(), parent, req, middleware.GetUserName(r.Context()))
			if err != nil {
				httpError(w, http.StatusInternalServerError, err.Error())
				return
			}
			common.InfoLog("virt: child %s (%s) requested on %s by %s",
				child.Name, child.VirtType, parent.FQDN, middleware.GetUserName(r.Context()))
			writeJSON(w, http.StatusAccepted, child)
		})

	router.Get("/hosts/{id}/child-hosts/{childID}", func(w http.ResponseWriter, r *http.Request) {
		child, err := database.GetChildHost(r.Context(), chi.URLParam(r, "childID"))
		if err != nil {
			dbError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, child)
	})

	router.With(middleware.RequirePermission("Delete Child Host")).
		Delete("/hosts/{id}/child-hosts/{childID}", func(w http.ResponseWriter, r *http.Request) {
			child, err := database.GetChildHost(r.Context(), chi.URLParam(r, "childID"))
			if err != nil {
				dbError(w, err)
				return
			}
			if err := services.TeardownChildHost(r.Context(), child, middleware.GetUserName(r.Context())); err != nil {
				httpError(w, http.StatusInternalServerError, err.Error())
				return
			}
			w.WriteHeader(http.StatusAccepted)
		})
}
