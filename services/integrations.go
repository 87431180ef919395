package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sysmanage/database"
)

// Known integration names. Each holds free-form settings plus a probe URL.
var KnownIntegrations = []string{"graylog", "grafana", "ubuntu_pro", "opentelemetry", "antivirus"}

var ErrUnknownIntegration = errors.New("unknown integration")

// probe key per integration: which settings field holds the health URL.
var probeURLKey = map[string]string{
	"graylog":       "api_url",
	"grafana":       "url",
	"opentelemetry": "collector_url",
}

func knownIntegration(name string) bool {
	for _, n := range KnownIntegrations {
		if n == name {
			return true
		}
	}
	return false
}

// GetIntegration fetches stored settings, defaulting to a disabled blank.
func GetIntegration(ctx context.Context, name string) (*database.IntegrationSettings, error) {
	if !knownIntegration(name) {
		return nil, ErrUnknownIntegration
	}
	is, err := database.GetIntegrationSettings(ctx, name)
	if errors.Is(err, database.ErrNotFound) {
		return &database.IntegrationSettings{Name: name, Settings: map[string]any{"enabled": false}}, nil
	}
	return is, err
}

// PutIntegration validates and stores settings for an integration.
func PutIntegration(ctx context.Context, name string, settings map[string]any) error {
	if !knownIntegration(name) {
		return ErrUnknownIntegration
	}
	if key, ok := probeURLKey[name]; ok {
		if raw, ok := settings[key].(string); ok && raw != "" {
			u, err := url.Parse(raw)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				return fmt.Errorf("%s: invalid %s", name, key)
			}
		}
	}
	return database.PutIntegrationSettings(ctx, name, settings)
}

// IntegrationStatus is the outcome of a reachability probe.
type IntegrationStatus struct {
	Name      string `json:"name"`
	Enabled   bool   `json:"enabled"`
	Reachable bool   `json:"reachable"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

var probeClient = &http.Client{Timeout: 5 * time.Second}

// ProbeIntegration checks whether the configured endpoint answers HTTP.
// Integrations without a probe URL report on stored state only.
func ProbeIntegration(ctx context.Context, name string) (*IntegrationStatus, error) {
	is, err := GetIntegration(ctx, name)
	if err != nil {
		return nil, err
	}
	st := &IntegrationStatus{Name: name}
	if enabled, ok := is.Settings["enabled"].(bool); ok {
		st.Enabled = enabled
	}

	key, probable := probeURLKey[name]
	if !probable {
		st.Detail = "no endpoint to probe"
		return st, nil
	}
	raw, _ := is.Settings[key].(string)
	if strings.TrimSpace(raw) == "" {
		st.Detail = "endpoint not configured"
		return st, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		st.Detail = err.Error()
		return st, nil
	}
	start := time.Now()
	resp, err := probeClient.Do(req)
	if err != nil {
		st.Detail = err.Error()
		return st, nil
	}
	defer resp.Body.Close()

	st.LatencyMS = time.Since(start).Milliseconds()
	st.Reachable = resp.StatusCode < 500
	if !st.Reachable {
		st.Detail = resp.Status
	}
	return st, nil
}
