// agent.go - agent registration and the websocket command channel
package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"sysmanage/common"
	"sysmanage/database"
	"sysmanage/middleware"
	"sysmanage/services"
	"sysmanage/utils"
)

// registrationApproval decides the approval status after a register call.
// A known fqdn re-enters the approval queue unconditionally: registration
// rotated its token, so an operator has to vouch for it again. auto-approve
// only short-circuits the queue for hosts seen for the first time.
func registrationApproval(existed, autoApprove bool) string {
	if existed {
		return common.HostPending
	}
	if autoApprove {
		return common.HostApproved
	}
	return common.HostPending
}

// SetupAgentRoutes configures the agent-facing endpoints. These are mounted
// outside the console auth group: agents authenticate with their own token.
func SetupAgentRoutes(router chi.Router) {
	// Self-registration. The host starts pending until an operator approves
	// it; the returned token is shown exactly once.
	router.Post("/agent/register", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			FQDN            string `json:"fqdn"`
			IPv4            string `json:"ipv4,omitempty"`
			IPv6            string `json:"ipv6,omitempty"`
			Platform        string `json:"platform,omitempty"`
			PlatformRelease string `json:"platform_release,omitempty"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		body.FQDN = strings.ToLower(strings.TrimSpace(body.FQDN))
		if body.FQDN == "" {
			httpError(w, http.StatusBadRequest, "fqdn is required")
			return
		}

		token := services.RandHex(64)
		hostID, existed, err := database.RegisterHost(r.Context(), body.FQDN, body.IPv4, body.IPv6,
			body.Platform, body.PlatformRelease, database.HashToken(token))
		if err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if existed {
			common.WarnLog("agent: re-registration rotated token for fqdn=%s, approval reset to pending", body.FQDN)
		}

		autoApprove := false
		if auto, ok := database.GetAppSettingBool(r.Context(), "auto_approve_hosts"); ok && auto != nil {
			autoApprove = *auto
		}
		status := registrationApproval(existed, autoApprove)
		if status == common.HostApproved {
			if err := database.SetHostApproval(r.Context(), hostID, common.HostApproved); err != nil {
				status = common.HostPending
			}
		}

		common.InfoLog("agent: registration host=%s fqdn=%s status=%s", hostID, body.FQDN, status)
		writeJSON(w, http.StatusCreated, map[string]string{
			"host_id":         hostID,
			"token":           token,
			"approval_status": status,
		})
	})

	// Persistent command channel. Only approved hosts may connect.
	router.Get("/agent/connect", func(w http.ResponseWriter, r *http.Request) {
		hostID := strings.TrimSpace(r.Header.Get("X-Host-ID"))
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if hostID == "" || token == "" {
			httpError(w, http.StatusUnauthorized, "missing agent credentials")
			return
		}

		wantHash, err := database.GetHostAgentTokenHash(r.Context(), hostID)
		if err != nil {
			dbError(w, err)
			return
		}
		if wantHash == "" || wantHash != database.HashToken(token) {
			httpError(w, http.StatusUnauthorized, "invalid agent token")
			return
		}
		host, err := database.GetHost(r.Context(), hostID)
		if err != nil {
			dbError(w, err)
			return
		}
		if host.ApprovalStatus != common.HostApproved {
			httpError(w, http.StatusForbidden, "host not approved")
			return
		}

		ws, err := utils.WSUpgrader.Upgrade(w, r, nil)
		if err != nil {
			common.ErrorLog("agent: websocket upgrade failed host=%s: %v", hostID, err)
			return
		}
		middleware.AgentConnected(1)
		defer middleware.AgentConnected(-1)
		services.Agents.HandleAgentSocket(r.Context(), ws, hostID)
	})
}
