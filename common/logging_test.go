package common

import (
	"io"
	"os"
	"strings"
	"testing"
)

func TestSanitizeRedactsProtectedEnvValues(t *testing.T) {
	t.Setenv("SYSMANAGE_DB_PASS", "hunter2-very-secret")

	out := SanitizeForLogging("connecting with hunter2-very-secret as credential")
	if strings.Contains(out, "hunter2-very-secret") {
		t.Errorf("env secret leaked: %q", out)
	}
	if !strings.Contains(out, "***REDACTED***") {
		t.Errorf("no redaction marker: %q", out)
	}
}

func TestSanitizeRedactsKeyValueSecrets(t *testing.T) {
	out := SanitizeForLogging("login failed password=opensesame for bob")
	if strings.Contains(out, "opensesame") {
		t.Errorf("password value leaked: %q", out)
	}
	if !strings.Contains(out, "password=***REDACTED***") {
		t.Errorf("label lost: %q", out)
	}
}

func TestSanitizeRedactsConnectionStrings(t *testing.T) {
	out := SanitizeForLogging("dsn postgres://app:s3cret@db:5432/prod")
	if strings.Contains(out, "s3cret") {
		t.Errorf("dsn credential leaked: %q", out)
	}
}

func TestSanitizeLeavesPlainTextAlone(t *testing.T) {
	in := "agent: connected host=web-01"
	if out := SanitizeForLogging(in); out != in {
		t.Errorf("harmless line mangled: %q", out)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	fn()
	w.Close()
	os.Stdout = old
	b, _ := io.ReadAll(r)
	return string(b)
}

func TestNoticeLogKeepsGeneratedCredential(t *testing.T) {
	password := strings.Repeat("0a1b2c3d", 6)
	line := "bootstrap: generated admin password: " + password + " (set SYSMANAGE_ADMIN_PASS to override)"

	// The sanitizer eats this line, which is exactly why the bootstrap
	// announcement must not go through the leveled loggers.
	if out := SanitizeForLogging(line); strings.Contains(out, password) {
		t.Fatalf("sanitizer unexpectedly kept the credential: %q", out)
	}

	out := captureStdout(t, func() {
		NoticeLog("bootstrap: generated admin password: %s (set SYSMANAGE_ADMIN_PASS to override)", password)
	})
	if !strings.Contains(out, password) {
		t.Errorf("generated credential missing from notice output: %q", out)
	}
}

func TestShouldLog(t *testing.T) {
	t.Setenv("SYSMANAGE_LOG_LEVEL", "warn")
	if shouldLog("debug") {
		t.Error("debug should be suppressed at warn level")
	}
	if shouldLog("info") {
		t.Error("info should be suppressed at warn level")
	}
	if !shouldLog("warn") || !shouldLog("error") {
		t.Error("warn/error should pass at warn level")
	}

	t.Setenv("SYSMANAGE_LOG_LEVEL", "bogus")
	if !shouldLog("debug") {
		t.Error("unknown level should fail open")
	}
}
