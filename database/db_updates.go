package database

import (
	"context"
	"time"

	"sysmanage/common"
)

// UpdateRow is one available package update on a host.
type UpdateRow struct {
	ID               int64     `json:"id"`
	HostID           string    `json:"host_id"`
	PackageName      string    `json:"package_name"`
	CurrentVersion   string    `json:"current_version,omitempty"`
	AvailableVersion string    `json:"available_version"`
	Source           string    `json:"source,omitempty"`
	IsSecurity       bool      `json:"is_security"`
	Status           string    `json:"status"` // available | requested | installing | installed | failed
	UpdatedAt        time.Time `json:"updated_at"`
}

// UpsertHostUpdate records one available update reported by an agent.
func UpsertHostUpdate(ctx context.Context, hostID string, u UpdateRow) error {
	_, err := common.DB.Exec(ctx, `
		INSERT INTO host_updates (host_id, package_name, current_version, available_version, source, is_security)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (host_id, package_name, available_version) DO UPDATE
		  SET current_version = EXCLUDED.current_version,
		      source          = EXCLUDED.source,
		      is_security     = EXCLUDED.is_security,
		      updated_at      = now()
	`, hostID, u.PackageName, u.CurrentVersion, u.AvailableVersion, u.Source, u.IsSecurity)
	return err
}

// PruneMissingUpdates removes rows not present in the latest agent report.
// Rows with an in-flight install are kept so their outcome is not lost.
func PruneMissingUpdates(ctx context.Context, hostID string, keepPackages []string) (int64, error) {
	if len(keepPackages) == 0 {
		cmd, err := common.DB.Exec(ctx, `
			DELETE FROM host_updates
			WHERE host_id=$1 AND status NOT IN ('requested','installing')
		`, hostID)
		if err != nil {
			return 0, err
		}
		return cmd.RowsAffected(), nil
	}
	cmd, err := common.DB.Exec(ctx, `
		DELETE FROM host_updates
		WHERE host_id=$1
		  AND status NOT IN ('requested','installing')
		  AND NOT (package_name = ANY($2))
	`, hostID, keepPackages)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// ListHostUpdates returns the update inventory for a host.
func ListHostUpdates(ctx context.Context, hostID string) ([]UpdateRow, error) {
	rows, err := common.DB.Query(ctx, `
		SELECT id, host_id, package_name, current_version, available_version,
		       source, is_security, status, updated_at
		FROM host_updates WHERE host_id=$1 ORDER BY package_name
	`, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UpdateRow
	for rows.Next() {
		var u UpdateRow
		if err := rows.Scan(&u.ID, &u.HostID, &u.PackageName, &u.CurrentVersion,
			&u.AvailableVersion, &u.Source, &u.IsSecurity, &u.Status, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SetUpdateStatus marks the named packages on a host with a new status.
func SetUpdateStatus(ctx context.Context, hostID string, packages []string, status string) error {
	_, err := common.DB.Exec(ctx, `
		UPDATE host_updates SET status=$3, updated_at=now()
		WHERE host_id=$1 AND package_name = ANY($2)
	`, hostID, packages, status)
	return err
}

// UpdateSummary aggregates fleet-wide update counts per host.
type UpdateSummary struct {
	HostID        string `json:"host_id"`
	FQDN          string `json:"fqdn"`
	TotalUpdates  int    `json:"total_updates"`
	SecurityCount int    `json:"security_updates"`
}

// SummarizeUpdates returns per-host update counts across the fleet.
func SummarizeUpdates(ctx context.Context) ([]UpdateSummary, error) {
	rows, err := common.DB.Query(ctx, `
		SELECT h.id, h.fqdn,
		       COUNT(u.id),
		       COUNT(u.id) FILTER (WHERE u.is_security)
		FROM hosts h
		LEFT JOIN host_updates u ON u.host_id = h.id AND u.status = 'available'
		GROUP BY h.id, h.fqdn
		ORDER BY h.fqdn
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UpdateSummary
	for rows.Next() {
		var s UpdateSummary
		if err := rows.Scan(&s.HostID, &s.FQDN, &s.TotalUpdates, &s.SecurityCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
