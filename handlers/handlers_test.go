package handlers

import (
	"net/http/httptest"
	"testing"

	"sysmanage/common"
	"sysmanage/database"
)

func TestClamp(t *testing.T) {
	cases := []struct{ v, lo, hi, want int }{
		{5, 1, 10, 5},
		{0, 1, 10, 1},
		{11, 1, 10, 10},
		{-3, 0, 1000, 0},
	}
	for _, c := range cases {
		if got := clamp(c.v, c.lo, c.hi); got != c.want {
			t.Errorf("clamp(%d, %d, %d) = %d, want %d", c.v, c.lo, c.hi, got, c.want)
		}
	}
}

func TestParseIntDefault(t *testing.T) {
	if got := parseIntDefault("42", 7); got != 42 {
		t.Errorf("parseIntDefault(42) = %d", got)
	}
	if got := parseIntDefault("", 7); got != 7 {
		t.Errorf("parseIntDefault(empty) = %d", got)
	}
	if got := parseIntDefault("abc", 7); got != 7 {
		t.Errorf("parseIntDefault(abc) = %d", got)
	}
}

func TestHTTPErrorShape(t *testing.T) {
	rec := httptest.NewRecorder()
	httpError(rec, 404, "not found")
	if rec.Code != 404 {
		t.Errorf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "{\"detail\":\"not found\"}\n" {
		t.Errorf("body = %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}
}

func TestRegistrationApproval(t *testing.T) {
	cases := []struct {
		name        string
		existed     bool
		autoApprove bool
		want        string
	}{
		{"new host", false, false, common.HostPending},
		{"new host with auto-approve", false, true, common.HostApproved},
		{"re-registration demotes to pending", true, false, common.HostPending},
		// A rotated token means anyone could have re-registered the fqdn;
		// auto-approve must not re-trust it without an operator.
		{"re-registration ignores auto-approve", true, true, common.HostPending},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := registrationApproval(c.existed, c.autoApprove); got != c.want {
				t.Errorf("registrationApproval(%v, %v) = %q, want %q", c.existed, c.autoApprove, got, c.want)
			}
		})
	}
}

func TestValidFirewallRules(t *testing.T) {
	cases := []struct {
		name  string
		rules []database.FirewallRule
		ok    bool
	}{
		{
			name: "allow tcp with port",
			rules: []database.FirewallRule{
				{Protocol: "tcp", Port: "443", Action: "allow"},
			},
			ok: true,
		},
		{
			name: "icmp needs no port",
			rules: []database.FirewallRule{
				{Protocol: "ICMP", Action: "deny"},
			},
			ok: true,
		},
		{
			name: "unknown protocol",
			rules: []database.FirewallRule{
				{Protocol: "sctp", Port: "80", Action: "allow"},
			},
		},
		{
			name: "unknown action",
			rules: []database.FirewallRule{
				{Protocol: "udp", Port: "53", Action: "drop"},
			},
		},
		{
			name: "tcp without port",
			rules: []database.FirewallRule{
				{Protocol: "tcp", Action: "allow"},
			},
		},
		{name: "empty set", rules: nil, ok: true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			msg := validFirewallRules(c.rules)
			if (msg == "") != c.ok {
				t.Errorf("validFirewallRules = %q, ok = %v", msg, c.ok)
			}
		})
	}
}
