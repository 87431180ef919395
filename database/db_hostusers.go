package database

import (
	"context"
	"encoding/json"
	"time"

	"sysmanage/common"
)

// HostUserRow is an OS account on a managed host, as reported by its agent.
type HostUserRow struct {
	HostID    string    `json:"host_id"`
	Username  string    `json:"username"`
	UID       int       `json:"uid"`
	HomeDir   string    `json:"home_dir,omitempty"`
	Shell     string    `json:"shell,omitempty"`
	IsSystem  bool      `json:"is_system"`
	Groups    []string  `json:"groups"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HostGroupRow is an OS group on a managed host.
type HostGroupRow struct {
	HostID    string    `json:"host_id"`
	GroupName string    `json:"group_name"`
	GID       int       `json:"gid"`
	IsSystem  bool      `json:"is_system"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpsertHostUser records one OS account from an agent report.
func UpsertHostUser(ctx context.Context, u HostUserRow) error {
	groupsB, _ := json.Marshal(u.Groups)
	_, err := common.DB.Exec(ctx, `
		INSERT INTO host_users (host_id, username, uid, home_dir, shell, is_system, groups)
		VALUES ($1,$2,$3,$4,$5,$6,$7::jsonb)
		ON CONFLICT (host_id, username) DO UPDATE
		  SET uid        = EXCLUDED.uid,
		      home_dir   = EXCLUDED.home_dir,
		      shell      = EXCLUDED.shell,
		      is_system  = EXCLUDED.is_system,
		      groups     = EXCLUDED.groups,
		      updated_at = now()
	`, u.HostID, u.Username, u.UID, u.HomeDir, u.Shell, u.IsSystem, string(groupsB))
	return err
}

// PruneMissingHostUsers removes accounts absent from the latest report.
func PruneMissingHostUsers(ctx context.Context, hostID string, keep []string) (int64, error) {
	if len(keep) == 0 {
		cmd, err := common.DB.Exec(ctx, `DELETE FROM host_users WHERE host_id=$1`, hostID)
		if err != nil {
			return 0, err
		}
		return cmd.RowsAffected(), nil
	}
	cmd, err := common.DB.Exec(ctx, `
		DELETE FROM host_users WHERE host_id=$1 AND NOT (username = ANY($2))
	`, hostID, keep)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// ListHostUsers returns OS accounts for a host.
func ListHostUsers(ctx context.Context, hostID string) ([]HostUserRow, error) {
	rows, err := common.DB.Query(ctx, `
		SELECT host_id, username, uid, home_dir, shell, is_system, groups, updated_at
		FROM host_users WHERE host_id=$1 ORDER BY username
	`, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HostUserRow
	for rows.Next() {
		var u HostUserRow
		var groupsB []byte
		if err := rows.Scan(&u.HostID, &u.Username, &u.UID, &u.HomeDir, &u.Shell,
			&u.IsSystem, &groupsB, &u.UpdatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(groupsB, &u.Groups)
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpsertHostGroup records one OS group from an agent report.
func UpsertHostGroup(ctx context.Context, g HostGroupRow) error {
	_, err := common.DB.Exec(ctx, `
		INSERT INTO host_groups (host_id, group_name, gid, is_system)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (host_id, group_name) DO UPDATE
		  SET gid = EXCLUDED.gid, is_system = EXCLUDED.is_system, updated_at = now()
	`, g.HostID, g.GroupName, g.GID, g.IsSystem)
	return err
}

// PruneMissingHostGroups removes groups absent from the latest report.
func PruneMissingHostGroups(ctx context.Context, hostID string, keep []string) (int64, error) {
	if len(keep) == 0 {
		cmd, err := common.DB.Exec(ctx, `DELETE FROM host_groups WHERE host_id=$1`, hostID)
		if err != nil {
			return 0, err
		}
		return cmd.RowsAffected(), nil
	}
	cmd, err := common.DB.Exec(ctx, `
		DELETE FROM host_groups WHERE host_id=$1 AND NOT (group_name = ANY($2))
	`, hostID, keep)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// ListHostGroups returns OS groups for a host.
func ListHostGroups(ctx context.Context, hostID string) ([]HostGroupRow, error) {
	rows, err := common.DB.Query(ctx, `
		SELECT host_id, group_name, gid, is_system, updated_at
		FROM host_groups WHERE host_id=$1 ORDER BY group_name
	`, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HostGroupRow
	for rows.Next() {
		var g HostGroupRow
		if err := rows.Scan(&g.HostID, &g.GroupName, &g.GID, &g.IsSystem, &g.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
