package services

import (
	"context"
	"errors"
	"testing"
)

func TestUnknownIntegrationRejected(t *testing.T) {
	ctx := context.Background()
	if _, err := GetIntegration(ctx, "nagios"); !errors.Is(err, ErrUnknownIntegration) {
		t.Errorf("GetIntegration(nagios) err = %v", err)
	}
	if err := PutIntegration(ctx, "nagios", map[string]any{}); !errors.Is(err, ErrUnknownIntegration) {
		t.Errorf("PutIntegration(nagios) err = %v", err)
	}
	if _, err := ProbeIntegration(ctx, "nagios"); !errors.Is(err, ErrUnknownIntegration) {
		t.Errorf("ProbeIntegration(nagios) err = %v", err)
	}
}

func TestPutIntegrationValidatesProbeURL(t *testing.T) {
	ctx := context.Background()
	cases := []string{"ftp://graylog.local", "://broken", "javascript:alert(1)"}
	for _, raw := range cases {
		err := PutIntegration(ctx, "graylog", map[string]any{"api_url": raw})
		if err == nil || errors.Is(err, ErrUnknownIntegration) {
			t.Errorf("PutIntegration(api_url=%q) err = %v, want scheme rejection", raw, err)
		}
	}
}
