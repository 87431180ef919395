package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"sysmanage/common"
)

const childCols = `id, parent_host_id, name, virt_type, image, cpus, memory_mb,
	disk_gb, status, detail, created_at, updated_at`

func scanChild(row pgx.Row) (*common.ChildHost, error) {
	var c common.ChildHost
	err := row.Scan(&c.ID, &c.ParentHostID, &c.Name, &c.VirtType, &c.Image,
		&c.CPUs, &c.MemoryMB, &c.DiskGB, &c.Status, &c.Detail, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateChildHost inserts a child host record in the requested state.
func CreateChildHost(ctx context.Context, c common.ChildHost) (*common.ChildHost, error) {
	id := uuid.NewString()
	_, err := common.DB.Exec(ctx, `
		INSERT INTO child_hosts (id, parent_host_id, name, virt_type, image, cpus, memory_mb, disk_gb)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, id, c.ParentHostID, c.Name, c.VirtType, c.Image, c.CPUs, c.MemoryMB, c.DiskGB)
	if err != nil {
		return nil, err
	}
	return GetChildHost(ctx, id)
}

// GetChildHost fetches a child host by id.
func GetChildHost(ctx context.Context, id string) (*common.ChildHost, error) {
	return scanChild(common.DB.QueryRow(ctx, `SELECT `+childCols+` FROM child_hosts WHERE id=$1`, id))
}

// ListChildHosts returns the child hosts of a parent.
func ListChildHosts(ctx context.Context, parentID string) ([]common.ChildHost, error) {
	rows, err := common.DB.Query(ctx, `
		SELECT `+childCols+` FROM child_hosts WHERE parent_host_id=$1 ORDER BY name
	`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []common.ChildHost
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// SetChildHostStatus advances a child host through its lifecycle.
func SetChildHostStatus(ctx context.Context, id, status, detail string) error {
	cmd, err := common.DB.Exec(ctx, `
		UPDATE child_hosts SET status=$2, detail=$3, updated_at=now() WHERE id=$1
	`, id, status, detail)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteChildHost reaps a child host record after teardown.
func DeleteChildHost(ctx context.Context, id string) error {
	cmd, err := common.DB.Exec(ctx, `DELETE FROM child_hosts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
