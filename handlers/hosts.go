// hosts.go - host inventory routes (listing, approval lifecycle, power ops)
package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"sysmanage/common"
	"sysmanage/database"
	"sysmanage/middleware"
	"sysmanage/services"
)

// SetupHostRoutes configures the host inventory endpoints.
func SetupHostRoutes(router chi.Router) {
	router.Get("/hosts", func(w http.ResponseWriter, r *http.Request) {
		items, err := database.ListHosts(r.Context())
		if err != nil {
			dbError(w, err)
			return
		}

		status := strings.TrimSpace(r.URL.Query().Get("status"))
		q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
		limit := clamp(parseIntDefault(r.URL.Query().Get("limit"), 200), 1, 1000)
		offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

		filtered := make([]common.Host, 0, len(items))
		for _, h := range items {
			if status != "" && !strings.EqualFold(h.ApprovalStatus, status) {
				continue
			}
			if q != "" {
				if !strings.Contains(strings.ToLower(h.FQDN), q) &&
					!strings.Contains(strings.ToLower(h.IPv4), q) {
					continue
				}
			}
			filtered = append(filtered, h)
		}
		lo := offset
		if lo > len(filtered) {
			lo = len(filtered)
		}
		hi := lo + limit
		if hi > len(filtered) {
			hi = len(filtered)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"items":  filtered[lo:hi],
			"total":  len(filtered),
			"limit":  limit,
			"offset": offset,
		})
	})

	// FQDN lookup used by tooling that only knows the hostname.
	router.Get("/hosts/by-fqdn/{fqdn}", func(w http.ResponseWriter, r *http.Request) {
		h, err := database.GetHostByFQDN(r.Context(), strings.ToLower(chi.URLParam(r, "fqdn")))
		if err != nil {
			dbError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h)
	})

	router.With(middleware.RequirePermission("View Host Details")).
		Get("/hosts/{id}", func(w http.ResponseWriter, r *http.Request) {
			h, err := database.GetHost(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				dbError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"host":            h,
				"agent_connected": services.Agents.Connected(h.ID),
			})
		})

	router.With(middleware.RequirePermission("Approve Host Registration")).
		Post("/hosts/{id}/approve", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			if err := database.SetHostApproval(r.Context(), id, common.HostApproved); err != nil {
				dbError(w, err)
				return
			}
			common.InfoLog("hosts: %s approved by %s", id, middleware.GetUserName(r.Context()))
			writeJSON(w, http.StatusOK, map[string]string{"status": common.HostApproved})
		})

	router.With(middleware.RequirePermission("Approve Host Registration")).
		Post("/hosts/{id}/reject", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			if err := database.SetHostApproval(r.Context(), id, common.HostRejected); err != nil {
				dbError(w, err)
				return
			}
			common.InfoLog("hosts: %s rejected by %s", id, middleware.GetUserName(r.Context()))
			writeJSON(w, http.StatusOK, map[string]string{"status": common.HostRejected})
		})

	router.With(middleware.RequirePermission("Delete Host")).
		Delete("/hosts/{id}", func(w http.ResponseWriter, r *http.Request) {
			if err := database.DeleteHost(r.Context(), chi.URLParam(r, "id")); err != nil {
				dbError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

	powerOp := func(permission, commandType string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			if _, err := database.GetHost(r.Context(), id); err != nil {
				dbError(w, err)
				return
			}
			// Power ops on a disconnected agent would just sit in the
			// queue; fail fast instead.
			if !services.Agents.Connected(id) {
				httpError(w, http.StatusConflict, services.ErrAgentOffline.Error())
				return
			}
			cmdID, err := services.Agents.DispatchCommand(r.Context(), id, commandType,
				map[string]any{}, middleware.GetUserName(r.Context()))
			if err != nil {
				httpError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{"command_id": cmdID})
		}
	}
	router.With(middleware.RequirePermission("Reboot Host")).
		Post("/hosts/{id}/reboot", powerOp("Reboot Host", services.CmdRebootHost))
	router.With(middleware.RequirePermission("Shutdown Host")).
		Post("/hosts/{id}/shutdown", powerOp("Shutdown Host", services.CmdShutdownHost))

	// Agent-collected OS accounts and groups
	router.Get("/hosts/{id}/users", func(w http.ResponseWriter, r *http.Request) {
		items, err := database.ListHostUsers(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			dbError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	})
	router.Get("/hosts/{id}/groups", func(w http.ResponseWriter, r *http.Request) {
		items, err := database.ListHostGroups(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			dbError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	})

	router.With(middleware.RequirePermission("Add Host User")).
		Post("/hosts/{id}/users", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Username string   `json:"username"`
				Groups   []string `json:"groups,omitempty"`
				Shell    string   `json:"shell,omitempty"`
			}
			if !decodeBody(w, r, &body) {
				return
			}
			if strings.TrimSpace(body.Username) == "" {
				httpError(w, http.StatusBadRequest, "username is required")
				return
			}
			cmdID, err := services.Agents.DispatchCommand(r.Context(), chi.URLParam(r, "id"),
				services.CmdCreateHostUser,
				map[string]any{"username": body.Username, "groups": body.Groups, "shell": body.Shell},
				middleware.GetUserName(r.Context()))
			if err != nil {
				httpError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{"command_id": cmdID})
		})

	router.With(middleware.RequirePermission("Delete Host User")).
		Delete("/hosts/{id}/users/{username}", func(w http.ResponseWriter, r *http.Request) {
			cmdID, err := services.Agents.DispatchCommand(r.Context(), chi.URLParam(r, "id"),
				services.CmdDeleteHostUser,
				map[string]any{"username": chi.URLParam(r, "username")},
				middleware.GetUserName(r.Context()))
			if err != nil {
				httpError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{"command_id": cmdID})
		})

	router.Get("/hosts/{id}/commands", func(w http.ResponseWriter, r *http.Request) {
		limit := clamp(parseIntDefault(r.URL.Query().Get("limit"), 50), 1, 500)
		items, err := database.ListHostCommands(r.Context(), chi.URLParam(r, "id"), limit)
		if err != nil {
			dbError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	})
}
