package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"sysmanage/common"
)

var ErrNotFound = errors.New("not found")

const hostCols = `id, fqdn, ipv4, ipv6, platform, platform_release,
	approval_status, active, last_seen, os_details, created_at, updated_at`

func scanHost(row pgx.Row) (*common.Host, error) {
	var h common.Host
	var osB []byte
	err := row.Scan(&h.ID, &h.FQDN, &h.IPv4, &h.IPv6, &h.Platform, &h.PlatformRelease,
		&h.ApprovalStatus, &h.Active, &h.LastSeen, &osB, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(osB) > 0 {
		_ = json.Unmarshal(osB, &h.OSDetails)
	}
	return &h, nil
}

// RegisterHost inserts a pending host record for an agent registration, or
// refreshes facts on re-registration. Registration is unauthenticated and
// rotates the agent token, so a conflicting fqdn is demoted back to pending:
// a previously approved host must not stay trusted after anyone who knows
// its name replaced its credential. Returns the host id and whether the
// fqdn already existed.
func RegisterHost(ctx context.Context, fqdn, ipv4, ipv6, platform, release, tokenHash string) (string, bool, error) {
	id := uuid.NewString()
	var existed bool
	err := common.DB.QueryRow(ctx, `
		INSERT INTO hosts (id, fqdn, ipv4, ipv6, platform, platform_release, agent_token_hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (fqdn) DO UPDATE
		  SET ipv4             = EXCLUDED.ipv4,
		      ipv6             = EXCLUDED.ipv6,
		      platform         = EXCLUDED.platform,
		      platform_release = EXCLUDED.platform_release,
		      agent_token_hash = EXCLUDED.agent_token_hash,
		      approval_status  = $8,
		      updated_at       = now()
		RETURNING id, (xmax <> 0)
	`, id, fqdn, ipv4, ipv6, platform, release, tokenHash, common.HostPending).Scan(&id, &existed)
	return id, existed, err
}

// ListHosts returns all hosts ordered by fqdn.
func ListHosts(ctx context.Context) ([]common.Host, error) {
	rows, err := common.DB.Query(ctx, `SELECT `+hostCols+` FROM hosts ORDER BY fqdn`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.Host
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// GetHost fetches a host by id.
func GetHost(ctx context.Context, id string) (*common.Host, error) {
	return scanHost(common.DB.QueryRow(ctx, `SELECT `+hostCols+` FROM hosts WHERE id=$1`, id))
}

// GetHostByFQDN fetches a host by fqdn.
func GetHostByFQDN(ctx context.Context, fqdn string) (*common.Host, error) {
	return scanHost(common.DB.QueryRow(ctx, `SELECT `+hostCols+` FROM hosts WHERE fqdn=$1`, fqdn))
}

// GetHostAgentTokenHash returns the stored agent token hash for a host.
func GetHostAgentTokenHash(ctx context.Context, id string) (string, error) {
	var h string
	err := common.DB.QueryRow(ctx, `SELECT agent_token_hash FROM hosts WHERE id=$1`, id).Scan(&h)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return h, err
}

// SetHostApproval moves a host through the approval lifecycle.
func SetHostApproval(ctx context.Context, id, status string) error {
	cmd, err := common.DB.Exec(ctx, `
		UPDATE hosts SET approval_status=$2, updated_at=now() WHERE id=$1
	`, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchHost records an agent heartbeat, optionally refreshing OS facts.
func TouchHost(ctx context.Context, id string, osDetails map[string]any) error {
	if osDetails == nil {
		_, err := common.DB.Exec(ctx, `
			UPDATE hosts SET last_seen=now(), active=true, updated_at=now() WHERE id=$1
		`, id)
		return err
	}
	osB, _ := json.Marshal(osDetails)
	_, err := common.DB.Exec(ctx, `
		UPDATE hosts SET last_seen=now(), active=true, os_details=$2::jsonb, updated_at=now()
		WHERE id=$1
	`, id, string(osB))
	return err
}

// MarkStaleHostsInactive flips hosts whose last heartbeat is older than the
// cutoff to inactive. Returns the number of hosts flipped.
func MarkStaleHostsInactive(ctx context.Context, olderThan time.Duration) (int64, error) {
	cmd, err := common.DB.Exec(ctx, `
		UPDATE hosts SET active=false, updated_at=now()
		WHERE active AND (last_seen IS NULL OR last_seen < now() - $1::interval)
	`, olderThan.String())
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// DeleteHost removes a host; dependent rows cascade.
func DeleteHost(ctx context.Context, id string) error {
	cmd, err := common.DB.Exec(ctx, `DELETE FROM hosts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
