package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sysmanage/common"
	"sysmanage/database"
)

// Report kinds accepted from agents.
const (
	ReportUpdates   = "updates"
	ReportUsers     = "users"
	ReportAntivirus = "antivirus"
	ReportFirewall  = "firewall"
)

// ApplyReport ingests one agent report into the inventory. Replace-set
// semantics: rows present in the report are upserted, rows missing from it
// are pruned.
func ApplyReport(ctx context.Context, hostID, kind string, payload json.RawMessage) error {
	switch kind {
	case ReportUpdates:
		return applyUpdatesReport(ctx, hostID, payload)
	case ReportUsers:
		return applyUsersReport(ctx, hostID, payload)
	case ReportAntivirus:
		return applyAntivirusReport(ctx, hostID, payload)
	case ReportFirewall:
		return applyFirewallReport(ctx, hostID, payload)
	default:
		return fmt.Errorf("unknown report kind %q", kind)
	}
}

func applyUpdatesReport(ctx context.Context, hostID string, payload json.RawMessage) error {
	var rep struct {
		Updates []database.UpdateRow `json:"updates"`
	}
	if err := json.Unmarshal(payload, &rep); err != nil {
		return err
	}
	seen := make([]string, 0, len(rep.Updates))
	for _, u := range rep.Updates {
		if u.PackageName == "" || u.AvailableVersion == "" {
			continue
		}
		if err := database.UpsertHostUpdate(ctx, hostID, u); err != nil {
			return err
		}
		seen = append(seen, u.PackageName)
	}
	pruned, err := database.PruneMissingUpdates(ctx, hostID, seen)
	if err != nil {
		return err
	}
	common.DebugLog("updates: host=%s reported=%d pruned=%d", hostID, len(seen), pruned)
	return nil
}

func applyUsersReport(ctx context.Context, hostID string, payload json.RawMessage) error {
	var rep struct {
		Users  []database.HostUserRow  `json:"users"`
		Groups []database.HostGroupRow `json:"groups"`
	}
	if err := json.Unmarshal(payload, &rep); err != nil {
		return err
	}

	keepUsers := make([]string, 0, len(rep.Users))
	for _, u := range rep.Users {
		if u.Username == "" {
			continue
		}
		u.HostID = hostID
		if err := database.UpsertHostUser(ctx, u); err != nil {
			return err
		}
		keepUsers = append(keepUsers, u.Username)
	}
	if _, err := database.PruneMissingHostUsers(ctx, hostID, keepUsers); err != nil {
		return err
	}

	keepGroups := make([]string, 0, len(rep.Groups))
	for _, g := range rep.Groups {
		if g.GroupName == "" {
			continue
		}
		g.HostID = hostID
		if err := database.UpsertHostGroup(ctx, g); err != nil {
			return err
		}
		keepGroups = append(keepGroups, g.GroupName)
	}
	_, err := database.PruneMissingHostGroups(ctx, hostID, keepGroups)
	return err
}

func applyAntivirusReport(ctx context.Context, hostID string, payload json.RawMessage) error {
	var s database.AntivirusStatus
	if err := json.Unmarshal(payload, &s); err != nil {
		return err
	}
	s.HostID = hostID
	return database.UpsertAntivirusStatus(ctx, s)
}

func applyFirewallReport(ctx context.Context, hostID string, payload json.RawMessage) error {
	var rep struct {
		AppliedRoleIDs []int `json:"applied_role_ids"`
	}
	if err := json.Unmarshal(payload, &rep); err != nil {
		return err
	}
	for _, rid := range rep.AppliedRoleIDs {
		if err := database.MarkFirewallRoleApplied(ctx, hostID, rid); err != nil {
			return err
		}
	}
	return nil
}

// Command types dispatched to agents.
const (
	CmdInstallUpdates    = "install_updates"
	CmdCreateHostUser    = "create_host_user"
	CmdDeleteHostUser    = "delete_host_user"
	CmdApplyFirewall     = "apply_firewall_role"
	CmdRemoveFirewall    = "remove_firewall_role"
	CmdSetAntivirus      = "set_antivirus"
	CmdEnableRepo        = "enable_repo"
	CmdRemoveRepo        = "remove_repo"
	CmdProvisionChild    = "provision_child_host"
	CmdTeardownChild     = "teardown_child_host"
	CmdRebootHost        = "reboot_host"
	CmdShutdownHost      = "shutdown_host"
)

// applyCommandHooks advances dependent state once an agent reports a
// command outcome.
func applyCommandHooks(ctx context.Context, cmd *database.CommandRow, success bool, result map[string]any) error {
	switch cmd.CommandType {
	case CmdInstallUpdates:
		pkgs := stringSlice(cmd.Payload["packages"])
		status := "installed"
		if !success {
			status = "failed"
		}
		return database.SetUpdateStatus(ctx, cmd.HostID, pkgs, status)

	case CmdProvisionChild:
		childID, _ := cmd.Payload["child_host_id"].(string)
		if childID == "" {
			return nil
		}
		if success {
			return database.SetChildHostStatus(ctx, childID, common.ChildRunning, "")
		}
		return database.SetChildHostStatus(ctx, childID, common.ChildFailed, resultDetail(result))

	case CmdTeardownChild:
		childID, _ := cmd.Payload["child_host_id"].(string)
		if childID == "" {
			return nil
		}
		if success {
			return database.DeleteChildHost(ctx, childID)
		}
		return database.SetChildHostStatus(ctx, childID, common.ChildFailed, resultDetail(result))

	case CmdEnableRepo:
		repoID := intValue(cmd.Payload["repo_id"])
		status := "installed"
		if !success {
			status = "failed"
		}
		return database.SetHostRepoStatus(ctx, cmd.HostID, repoID, status)

	case CmdApplyFirewall:
		if !success {
			return nil
		}
		return database.MarkFirewallRoleApplied(ctx, cmd.HostID, intValue(cmd.Payload["role_id"]))
	}
	return nil
}

func resultDetail(result map[string]any) string {
	if result == nil {
		return ""
	}
	if d, ok := result["detail"].(string); ok {
		return d
	}
	return ""
}

// stringSlice copes with the []any shape JSON round-trips produce.
func stringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func intValue(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	}
	return 0
}

// RequestUpdateInstall marks the packages requested and dispatches the
// install command to the host's agent.
func RequestUpdateInstall(ctx context.Context, hostID string, packages []string, requestedBy string) (string, error) {
	if err := database.SetUpdateStatus(ctx, hostID, packages, "requested"); err != nil {
		return "", err
	}
	payload := map[string]any{"packages": packages}
	return Agents.DispatchCommand(ctx, hostID, CmdInstallUpdates, payload, requestedBy)
}

// SweepStaleState runs the periodic maintenance pass: inactive hosts,
// timed-out commands, dead refresh tokens.
func SweepStaleState(ctx context.Context, hostStaleAfter, commandTimeout time.Duration) {
	if n, err := database.MarkStaleHostsInactive(ctx, hostStaleAfter); err != nil {
		common.ErrorLog("sweep: stale hosts failed: %v", err)
	} else if n > 0 {
		common.InfoLog("sweep: marked %d hosts inactive", n)
	}
	if ids, err := database.TimeoutStaleCommands(ctx, commandTimeout); err != nil {
		common.ErrorLog("sweep: command timeouts failed: %v", err)
	} else if len(ids) > 0 {
		notifyCommandTimeouts(ids)
		common.WarnLog("sweep: timed out %d commands", len(ids))
	}
	if _, err := database.SweepRefreshTokens(ctx); err != nil {
		common.ErrorLog("sweep: refresh tokens failed: %v", err)
	}
}

// notifyCommandTimeouts unblocks any open command streams whose commands
// the sweep just flipped to timeout.
func notifyCommandTimeouts(ids []string) {
	for _, id := range ids {
		Agents.notify(CommandEvent{CommandID: id, Status: database.CommandTimeout})
	}
}
