package database

import (
	"context"

	"sysmanage/common"
)

// SecurityRole is a named permission bit from the seeded catalog.
type SecurityRole struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Group string `json:"role_group"`
}

// ListSecurityRoles returns the full role catalog.
func ListSecurityRoles(ctx context.Context) ([]SecurityRole, error) {
	rows, err := common.DB.Query(ctx, `
		SELECT id, name, role_group FROM security_roles ORDER BY role_group, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SecurityRole
	for rows.Next() {
		var r SecurityRole
		if err := rows.Scan(&r.ID, &r.Name, &r.Group); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetUserRoleNames returns the role names granted to a user. Admins hold
// every role implicitly.
func GetUserRoleNames(ctx context.Context, userID string) ([]string, error) {
	var isAdmin bool
	if err := common.DB.QueryRow(ctx, `SELECT is_admin FROM users WHERE id=$1`, userID).Scan(&isAdmin); err != nil {
		return nil, err
	}
	if isAdmin {
		roles, err := ListSecurityRoles(ctx)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(roles))
		for _, r := range roles {
			names = append(names, r.Name)
		}
		return names, nil
	}

	rows, err := common.DB.Query(ctx, `
		SELECT sr.name
		FROM user_security_roles usr
		JOIN security_roles sr ON sr.id = usr.role_id
		WHERE usr.user_id=$1
		ORDER BY sr.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// SetUserRoles replaces a user's grants with the given role ids.
func SetUserRoles(ctx context.Context, userID string, roleIDs []int) error {
	tx, err := common.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM user_security_roles WHERE user_id=$1`, userID); err != nil {
		return err
	}
	for _, rid := range roleIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_security_roles (user_id, role_id) VALUES ($1,$2)
			ON CONFLICT DO NOTHING
		`, userID, rid); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
