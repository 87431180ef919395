package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnvDefault(t *testing.T) {
	t.Setenv("SYSMANAGE_TEST_KEY", "")
	if got := Env("SYSMANAGE_TEST_KEY", "fallback"); got != "fallback" {
		t.Errorf("Env = %q, want fallback", got)
	}
	t.Setenv("SYSMANAGE_TEST_KEY", "set")
	if got := Env("SYSMANAGE_TEST_KEY", "fallback"); got != "set" {
		t.Errorf("Env = %q, want set", got)
	}
}

func TestIsTrueish(t *testing.T) {
	for _, s := range []string{"1", "t", "true", "TRUE", "Yes", "on", " y "} {
		if !IsTrueish(s) {
			t.Errorf("IsTrueish(%q) = false", s)
		}
	}
	for _, s := range []string{"", "0", "false", "no", "off", "maybe"} {
		if IsTrueish(s) {
			t.Errorf("IsTrueish(%q) = true", s)
		}
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("SYSMANAGE_TEST_DUR", "90s")
	if got := EnvDuration("SYSMANAGE_TEST_DUR", "1m"); got != 90*time.Second {
		t.Errorf("EnvDuration = %v", got)
	}
	t.Setenv("SYSMANAGE_TEST_DUR", "not-a-duration")
	if got := EnvDuration("SYSMANAGE_TEST_DUR", "1m"); got != time.Minute {
		t.Errorf("EnvDuration fallback = %v", got)
	}
}

func TestReadSecretMaybeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret")
	if err := os.WriteFile(path, []byte("  s3cret-value \n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := ReadSecretMaybeFile("@" + path)
	if err != nil {
		t.Fatal(err)
	}
	if got != "s3cret-value" {
		t.Errorf("file secret = %q", got)
	}

	got, err = ReadSecretMaybeFile("inline-value")
	if err != nil || got != "inline-value" {
		t.Errorf("inline secret = %q, %v", got, err)
	}
}

func TestEnvOrFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jwt")
	if err := os.WriteFile(path, []byte("from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SYSMANAGE_TEST_SECRET", "")
	t.Setenv("SYSMANAGE_TEST_SECRET_FILE", path)
	got, err := EnvOrFile("SYSMANAGE_TEST_SECRET", "SYSMANAGE_TEST_SECRET_FILE")
	if err != nil || got != "from-file" {
		t.Errorf("EnvOrFile via _FILE = %q, %v", got, err)
	}

	// Direct value wins over the file path.
	t.Setenv("SYSMANAGE_TEST_SECRET", "direct")
	got, err = EnvOrFile("SYSMANAGE_TEST_SECRET", "SYSMANAGE_TEST_SECRET_FILE")
	if err != nil || got != "direct" {
		t.Errorf("EnvOrFile direct = %q, %v", got, err)
	}
}
