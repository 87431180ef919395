package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"sysmanage/common"
)

// GetAppSetting retrieves an app setting value.
func GetAppSetting(ctx context.Context, key string) (string, bool) {
	var v string
	err := common.DB.QueryRow(ctx, `SELECT value FROM app_settings WHERE key=$1`, key).Scan(&v)
	if err != nil {
		return "", false
	}
	return v, true
}

// SetAppSetting sets an app setting value.
func SetAppSetting(ctx context.Context, key, value string) error {
	_, err := common.DB.Exec(ctx, `
		INSERT INTO app_settings (key, value) VALUES ($1,$2)
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()
	`, key, value)
	return err
}

// DelAppSetting deletes an app setting.
func DelAppSetting(ctx context.Context, key string) error {
	_, err := common.DB.Exec(ctx, `DELETE FROM app_settings WHERE key=$1`, key)
	return err
}

// GetAppSettingBool retrieves an app setting as a boolean pointer.
func GetAppSettingBool(ctx context.Context, key string) (*bool, bool) {
	if s, ok := GetAppSetting(ctx, key); ok {
		b := common.IsTrueish(s)
		return &b, true
	}
	return nil, false
}

// IntegrationSettings is the stored configuration of one integration.
type IntegrationSettings struct {
	Name      string         `json:"name"`
	Settings  map[string]any `json:"settings"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// GetIntegrationSettings fetches stored settings for an integration.
func GetIntegrationSettings(ctx context.Context, name string) (*IntegrationSettings, error) {
	var is IntegrationSettings
	var b []byte
	err := common.DB.QueryRow(ctx, `
		SELECT name, settings, updated_at FROM integration_settings WHERE name=$1
	`, name).Scan(&is.Name, &b, &is.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(b, &is.Settings)
	return &is, nil
}

// PutIntegrationSettings replaces stored settings for an integration.
func PutIntegrationSettings(ctx context.Context, name string, settings map[string]any) error {
	b, _ := json.Marshal(settings)
	_, err := common.DB.Exec(ctx, `
		INSERT INTO integration_settings (name, settings) VALUES ($1,$2::jsonb)
		ON CONFLICT (name) DO UPDATE SET settings=EXCLUDED.settings, updated_at=now()
	`, name, string(b))
	return err
}
