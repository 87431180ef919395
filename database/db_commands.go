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

// Command statuses.
const (
	CommandQueued    = "queued"
	CommandSent      = "sent"
	CommandSucceeded = "succeeded"
	CommandFailed    = "failed"
	CommandTimeout   = "timeout"
)

// CommandRow is a durable agent command.
type CommandRow struct {
	ID          string         `json:"id"`
	HostID      string         `json:"host_id"`
	CommandType string         `json:"command_type"`
	Payload     map[string]any `json:"payload"`
	Status      string         `json:"status"`
	Result      map[string]any `json:"result,omitempty"`
	CreatedBy   string         `json:"created_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	SentAt      *time.Time     `json:"sent_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

const commandCols = `id, host_id, command_type, payload, status, result,
	created_by, created_at, sent_at, completed_at`

func scanCommand(row pgx.Row) (*CommandRow, error) {
	var c CommandRow
	var payloadB, resultB []byte
	err := row.Scan(&c.ID, &c.HostID, &c.CommandType, &payloadB, &c.Status, &resultB,
		&c.CreatedBy, &c.CreatedAt, &c.SentAt, &c.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(payloadB, &c.Payload)
	if len(resultB) > 0 {
		_ = json.Unmarshal(resultB, &c.Result)
	}
	return &c, nil
}

// InsertCommand queues a command for a host. Returns the command id.
func InsertCommand(ctx context.Context, hostID, commandType string, payload map[string]any, createdBy string) (string, error) {
	id := uuid.NewString()
	payloadB, _ := json.Marshal(payload)
	_, err := common.DB.Exec(ctx, `
		INSERT INTO agent_commands (id, host_id, command_type, payload, created_by)
		VALUES ($1,$2,$3,$4::jsonb,$5)
	`, id, hostID, commandType, string(payloadB), createdBy)
	return id, err
}

// GetCommand fetches a command by id.
func GetCommand(ctx context.Context, id string) (*CommandRow, error) {
	return scanCommand(common.DB.QueryRow(ctx, `SELECT `+commandCols+` FROM agent_commands WHERE id=$1`, id))
}

// ListQueuedCommands returns queued commands for a host, oldest first.
func ListQueuedCommands(ctx context.Context, hostID string) ([]CommandRow, error) {
	rows, err := common.DB.Query(ctx, `
		SELECT `+commandCols+` FROM agent_commands
		WHERE host_id=$1 AND status=$2 ORDER BY created_at
	`, hostID, CommandQueued)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CommandRow
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// MarkCommandSent stamps a command as delivered to its agent.
func MarkCommandSent(ctx context.Context, id string) error {
	_, err := common.DB.Exec(ctx, `
		UPDATE agent_commands SET status=$2, sent_at=now() WHERE id=$1 AND status=$3
	`, id, CommandSent, CommandQueued)
	return err
}

// CompleteCommand records the agent result for a command.
func CompleteCommand(ctx context.Context, id string, success bool, result map[string]any) error {
	status := CommandSucceeded
	if !success {
		status = CommandFailed
	}
	resultB, _ := json.Marshal(result)
	cmd, err := common.DB.Exec(ctx, `
		UPDATE agent_commands SET status=$2, result=$3::jsonb, completed_at=now()
		WHERE id=$1 AND status IN ($4,$5)
	`, id, status, string(resultB), CommandQueued, CommandSent)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TimeoutStaleCommands fails sent commands with no result before the
// cutoff. Returns the ids flipped so callers can notify watchers.
func TimeoutStaleCommands(ctx context.Context, olderThan time.Duration) ([]string, error) {
	rows, err := common.DB.Query(ctx, `
		UPDATE agent_commands SET status=$1, completed_at=now()
		WHERE status=$2 AND sent_at < now() - $3::interval
		RETURNING id
	`, CommandTimeout, CommandSent, olderThan.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListHostCommands returns recent commands for a host, newest first.
func ListHostCommands(ctx context.Context, hostID string, limit int) ([]CommandRow, error) {
	rows, err := common.DB.Query(ctx, `
		SELECT `+commandCols+` FROM agent_commands
		WHERE host_id=$1 ORDER BY created_at DESC LIMIT $2
	`, hostID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CommandRow
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
