package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"sysmanage/common"
)

// FirewallRule is a single entry inside a firewall role.
type FirewallRule struct {
	Protocol string `json:"protocol"` // tcp | udp | icmp
	Port     string `json:"port"`     // "443", "8000-9000", "" for icmp
	Action   string `json:"action"`   // allow | deny
	Source   string `json:"source,omitempty"`
}

// FirewallRole is a named rule set assignable to hosts.
type FirewallRole struct {
	ID          int            `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Rules       []FirewallRule `json:"rules"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func scanFirewallRole(row pgx.Row) (*FirewallRole, error) {
	var fr FirewallRole
	var rulesB []byte
	err := row.Scan(&fr.ID, &fr.Name, &fr.Description, &rulesB, &fr.CreatedAt, &fr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(rulesB, &fr.Rules)
	return &fr, nil
}

// CreateFirewallRole inserts a named rule set.
func CreateFirewallRole(ctx context.Context, name, description string, rules []FirewallRule) (*FirewallRole, error) {
	rulesB, _ := json.Marshal(rules)
	var id int
	err := common.DB.QueryRow(ctx, `
		INSERT INTO firewall_roles (name, description, rules)
		VALUES ($1,$2,$3::jsonb) RETURNING id
	`, name, description, string(rulesB)).Scan(&id)
	if err != nil {
		return nil, err
	}
	return GetFirewallRole(ctx, id)
}

// GetFirewallRole fetches a role by id.
func GetFirewallRole(ctx context.Context, id int) (*FirewallRole, error) {
	return scanFirewallRole(common.DB.QueryRow(ctx, `
		SELECT id, name, description, rules, created_at, updated_at
		FROM firewall_roles WHERE id=$1
	`, id))
}

// ListFirewallRoles returns every rule set.
func ListFirewallRoles(ctx context.Context) ([]FirewallRole, error) {
	rows, err := common.DB.Query(ctx, `
		SELECT id, name, description, rules, created_at, updated_at
		FROM firewall_roles ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FirewallRole
	for rows.Next() {
		fr, err := scanFirewallRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *fr)
	}
	return out, rows.Err()
}

// UpdateFirewallRole replaces name/description/rules of a role.
func UpdateFirewallRole(ctx context.Context, id int, name, description string, rules []FirewallRule) error {
	rulesB, _ := json.Marshal(rules)
	cmd, err := common.DB.Exec(ctx, `
		UPDATE firewall_roles SET name=$2, description=$3, rules=$4::jsonb, updated_at=now()
		WHERE id=$1
	`, id, name, description, string(rulesB))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFirewallRole removes a role; host assignments cascade.
func DeleteFirewallRole(ctx context.Context, id int) error {
	cmd, err := common.DB.Exec(ctx, `DELETE FROM firewall_roles WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignFirewallRole attaches a role to a host, pending agent application.
func AssignFirewallRole(ctx context.Context, hostID string, roleID int) error {
	_, err := common.DB.Exec(ctx, `
		INSERT INTO host_firewall_roles (host_id, role_id)
		VALUES ($1,$2) ON CONFLICT DO NOTHING
	`, hostID, roleID)
	return err
}

// UnassignFirewallRole detaches a role from a host.
func UnassignFirewallRole(ctx context.Context, hostID string, roleID int) error {
	_, err := common.DB.Exec(ctx, `
		DELETE FROM host_firewall_roles WHERE host_id=$1 AND role_id=$2
	`, hostID, roleID)
	return err
}

// MarkFirewallRoleApplied records that the agent confirmed application.
func MarkFirewallRoleApplied(ctx context.Context, hostID string, roleID int) error {
	_, err := common.DB.Exec(ctx, `
		UPDATE host_firewall_roles SET applied=true, applied_at=now()
		WHERE host_id=$1 AND role_id=$2
	`, hostID, roleID)
	return err
}

// HostFirewallRole is a role assignment with application state.
type HostFirewallRole struct {
	Role      FirewallRole `json:"role"`
	Applied   bool         `json:"applied"`
	AppliedAt *time.Time   `json:"applied_at,omitempty"`
}

// ListHostFirewallRoles returns the roles assigned to a host.
func ListHostFirewallRoles(ctx context.Context, hostID string) ([]HostFirewallRole, error) {
	rows, err := common.DB.Query(ctx, `
		SELECT fr.id, fr.name, fr.description, fr.rules, fr.created_at, fr.updated_at,
		       hfr.applied, hfr.applied_at
		FROM host_firewall_roles hfr
		JOIN firewall_roles fr ON fr.id = hfr.role_id
		WHERE hfr.host_id=$1
		ORDER BY fr.name
	`, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HostFirewallRole
	for rows.Next() {
		var h HostFirewallRole
		var rulesB []byte
		if err := rows.Scan(&h.Role.ID, &h.Role.Name, &h.Role.Description, &rulesB,
			&h.Role.CreatedAt, &h.Role.UpdatedAt, &h.Applied, &h.AppliedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(rulesB, &h.Role.Rules)
		out = append(out, h)
	}
	return out, rows.Err()
}

// --- antivirus status ---

// AntivirusStatus is the agent-reported AV state of a host.
type AntivirusStatus struct {
	HostID    string     `json:"host_id"`
	Enabled   bool       `json:"enabled"`
	Product   string     `json:"product,omitempty"`
	Version   string     `json:"version,omitempty"`
	LastScan  *time.Time `json:"last_scan,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// UpsertAntivirusStatus stores the latest AV report for a host.
func UpsertAntivirusStatus(ctx context.Context, s AntivirusStatus) error {
	_, err := common.DB.Exec(ctx, `
		INSERT INTO antivirus_status (host_id, enabled, product, version, last_scan)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (host_id) DO UPDATE
		  SET enabled = EXCLUDED.enabled,
		      product = EXCLUDED.product,
		      version = EXCLUDED.version,
		      last_scan = EXCLUDED.last_scan,
		      updated_at = now()
	`, s.HostID, s.Enabled, s.Product, s.Version, s.LastScan)
	return err
}

// GetAntivirusStatus fetches the AV status for a host.
func GetAntivirusStatus(ctx context.Context, hostID string) (*AntivirusStatus, error) {
	var s AntivirusStatus
	err := common.DB.QueryRow(ctx, `
		SELECT host_id, enabled, product, version, last_scan, updated_at
		FROM antivirus_status WHERE host_id=$1
	`, hostID).Scan(&s.HostID, &s.Enabled, &s.Product, &s.Version, &s.LastScan, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
