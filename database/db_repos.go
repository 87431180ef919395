package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"sysmanage/common"
)

// RepoRow is a third-party package repository definition.
type RepoRow struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	RepoType  string    `json:"repo_type"` // apt | yum | zypper | brew | pkg
	URL       string    `json:"url"`
	KeyURL    string    `json:"key_url,omitempty"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const repoCols = `id, name, repo_type, url, key_url, enabled, created_at, updated_at`

func scanRepo(row pgx.Row) (*RepoRow, error) {
	var r RepoRow
	err := row.Scan(&r.ID, &r.Name, &r.RepoType, &r.URL, &r.KeyURL, &r.Enabled,
		&r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRepo inserts a repository definition.
func CreateRepo(ctx context.Context, name, repoType, url, keyURL string) (*RepoRow, error) {
	var id int
	err := common.DB.QueryRow(ctx, `
		INSERT INTO third_party_repos (name, repo_type, url, key_url)
		VALUES ($1,$2,$3,$4) RETURNING id
	`, name, repoType, url, keyURL).Scan(&id)
	if err != nil {
		return nil, err
	}
	return GetRepo(ctx, id)
}

// GetRepo fetches a repository by id.
func GetRepo(ctx context.Context, id int) (*RepoRow, error) {
	return scanRepo(common.DB.QueryRow(ctx, `SELECT `+repoCols+` FROM third_party_repos WHERE id=$1`, id))
}

// ListRepos returns all repository definitions.
func ListRepos(ctx context.Context) ([]RepoRow, error) {
	rows, err := common.DB.Query(ctx, `SELECT `+repoCols+` FROM third_party_repos ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RepoRow
	for rows.Next() {
		r, err := scanRepo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// UpdateRepo replaces mutable fields of a repository.
func UpdateRepo(ctx context.Context, id int, name, repoType, url, keyURL string, enabled bool) error {
	cmd, err := common.DB.Exec(ctx, `
		UPDATE third_party_repos
		SET name=$2, repo_type=$3, url=$4, key_url=$5, enabled=$6, updated_at=now()
		WHERE id=$1
	`, id, name, repoType, url, keyURL, enabled)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRepo removes a repository; host assignments cascade.
func DeleteRepo(ctx context.Context, id int) error {
	cmd, err := common.DB.Exec(ctx, `DELETE FROM third_party_repos WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignRepoToHost marks a repo for installation on a host.
func AssignRepoToHost(ctx context.Context, hostID string, repoID int) error {
	_, err := common.DB.Exec(ctx, `
		INSERT INTO host_third_party_repos (host_id, repo_id)
		VALUES ($1,$2) ON CONFLICT DO NOTHING
	`, hostID, repoID)
	return err
}

// UnassignRepoFromHost removes a repo assignment.
func UnassignRepoFromHost(ctx context.Context, hostID string, repoID int) error {
	_, err := common.DB.Exec(ctx, `
		DELETE FROM host_third_party_repos WHERE host_id=$1 AND repo_id=$2
	`, hostID, repoID)
	return err
}

// SetHostRepoStatus records the agent-reported install outcome.
func SetHostRepoStatus(ctx context.Context, hostID string, repoID int, status string) error {
	_, err := common.DB.Exec(ctx, `
		UPDATE host_third_party_repos SET status=$3 WHERE host_id=$1 AND repo_id=$2
	`, hostID, repoID, status)
	return err
}

// HostRepo is a repo assignment with its install status.
type HostRepo struct {
	Repo   RepoRow `json:"repo"`
	Status string  `json:"status"`
}

// ListHostRepos returns the repositories assigned to a host.
func ListHostRepos(ctx context.Context, hostID string) ([]HostRepo, error) {
	rows, err := common.DB.Query(ctx, `
		SELECT r.id, r.name, r.repo_type, r.url, r.key_url, r.enabled,
		       r.created_at, r.updated_at, hr.status
		FROM host_third_party_repos hr
		JOIN third_party_repos r ON r.id = hr.repo_id
		WHERE hr.host_id=$1
		ORDER BY r.name
	`, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HostRepo
	for rows.Next() {
		var h HostRepo
		if err := rows.Scan(&h.Repo.ID, &h.Repo.Name, &h.Repo.RepoType, &h.Repo.URL,
			&h.Repo.KeyURL, &h.Repo.Enabled, &h.Repo.CreatedAt, &h.Repo.UpdatedAt,
			&h.Status); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
