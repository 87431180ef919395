// firewall.go - firewall role CRUD, host assignment, antivirus status
package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"sysmanage/database"
	"sysmanage/middleware"
	"sysmanage/services"
)

func validFirewallRules(rules []database.FirewallRule) string {
	for _, r := range rules {
		switch strings.ToLower(r.Protocol) {
		case "tcp", "udp", "icmp":
		default:
			return "protocol must be tcp, udp or icmp"
		}
		switch strings.ToLower(r.Action) {
		case "allow", "deny":
		default:
			return "action must be allow or deny"
		}
		if strings.ToLower(r.Protocol) != "icmp" && strings.TrimSpace(r.Port) == "" {
			return "port is required for tcp/udp rules"
		}
	}
	return ""
}

// SetupFirewallRoutes configures firewall role and antivirus endpoints.
func SetupFirewallRoutes(router chi.Router) {
	router.Get("/firewall-roles", func(w http.ResponseWriter, r *http.Request) {
		items, err := database.ListFirewallRoles(r.Context())
		if err != nil {
			dbError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	})

	manage := router.With(middleware.RequirePermission("Manage Firewall Roles"))

	manage.Post("/firewall-roles", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name        string                  `json:"name"`
			Description string                  `json:"description,omitempty"`
			Rules       []database.FirewallRule `json:"rules"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if strings.TrimSpace(body.Name) == "" {
			httpError(w, http.StatusBadRequest, "name is required")
			return
		}
		if msg := validFirewallRules(body.Rules); msg != "" {
			httpError(w, http.StatusBadRequest, msg)
			return
		}
		fr, err := database.CreateFirewallRole(r.Context(), body.Name, body.Description, body.Rules)
		if err != nil {
			httpError(w, http.StatusConflict, "firewall role already exists")
			return
		}
		writeJSON(w, http.StatusCreated, fr)
	})

	router.Get("/firewall-roles/{id}", func(w http.ResponseWriter, r *http.Request) {
		fr, err := database.GetFirewallRole(r.Context(), parseIntDefault(chi.URLParam(r, "id"), 0))
		if err != nil {
			dbError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, fr)
	})

	manage.Put("/firewall-roles/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name        string                  `json:"name"`
			Description string                  `json:"description,omitempty"`
			Rules       []database.FirewallRule `json:"rules"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if msg := validFirewallRules(body.Rules); msg != "" {
			httpError(w, http.StatusBadRequest, msg)
			return
		}
		id := parseIntDefault(chi.URLParam(r, "id"), 0)
		if err := database.UpdateFirewallRole(r.Context(), id, body.Name, body.Description, body.Rules); err != nil {
			dbError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	manage.Delete("/firewall-roles/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := database.DeleteFirewallRole(r.Context(), parseIntDefault(chi.URLParam(r, "id"), 0)); err != nil {
			dbError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	router.Get("/hosts/{id}/firewall-roles", func(w http.ResponseWriter, r *http.Request) {
		items, err := database.ListHostFirewallRoles(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			dbError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	})

	manage.Post("/hosts/{id}/firewall-roles/{roleID}", func(w http.ResponseWriter, r *http.Request) {
		hostID := chi.URLParam(r, "id")
		roleID := parseIntDefault(chi.URLParam(r, "roleID"), 0)
		role, err := database.GetFirewallRole(r.Context(), roleID)
		if err != nil {
			dbError(w, err)
			return
		}
		if err := database.AssignFirewallRole(r.Context(), hostID, roleID); err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		cmdID, err := services.Agents.DispatchCommand(r.Context(), hostID, services.CmdApplyFirewall,
			map[string]any{"role_id": roleID, "rules": role.Rules},
			middleware.GetUserName(r.Context()))
		if err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"command_id": cmdID})
	})

	manage.Delete("/hosts/{id}/firewall-roles/{roleID}", func(w http.ResponseWriter, r *http.Request) {
		hostID := chi.URLParam(r, "id")
		roleID := parseIntDefault(chi.URLParam(r, "roleID"), 0)
		if err := database.UnassignFirewallRole(r.Context(), hostID, roleID); err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		cmdID, err := services.Agents.DispatchCommand(r.Context(), hostID, services.CmdRemoveFirewall,
			map[string]any{"role_id": roleID}, middleware.GetUserName(r.Context()))
		if err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"command_id": cmdID})
	})

	// Antivirus status is agent-reported; enable/disable goes out as a command.
	router.Get("/hosts/{id}/antivirus", func(w http.ResponseWriter, r *http.Request) {
		st, err := database.GetAntivirusStatus(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			dbError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	})

	manage.Post("/hosts/{id}/antivirus", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Enabled bool `json:"enabled"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		cmdID, err := services.Agents.DispatchCommand(r.Context(), chi.URLParam(r, "id"),
			services.CmdSetAntivirus, map[string]any{"enabled": body.Enabled},
			middleware.GetUserName(r.Context()))
		if err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"command_id": cmdID})
	})
}
