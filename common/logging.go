package common

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"
)

// Log levels for hierarchical logging
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var logLevels = map[string]int{
	"debug": LevelDebug,
	"info":  LevelInfo,
	"warn":  LevelWarn,
	"error": LevelError,
	"fatal": LevelFatal,
}

// shouldLog determines if a message at the given level should be logged
func shouldLog(level string) bool {
	currentLevel := Env("SYSMANAGE_LOG_LEVEL", "info")

	currentLevelNum, ok1 := logLevels[strings.ToLower(currentLevel)]
	targetLevelNum, ok2 := logLevels[strings.ToLower(level)]

	if !ok1 || !ok2 {
		return true
	}

	return targetLevelNum >= currentLevelNum
}

// logOutput handles both text and JSON output based on SYSMANAGE_LOG_FORMAT
func logOutput(level string, format string, args ...interface{}) {
	// Ensure no secrets are accidentally logged
	emit(level, SanitizeForLogging(fmt.Sprintf(format, args...)))
}

func emit(level, message string) {
	if Env("SYSMANAGE_LOG_FORMAT", "text") == "json" {
		// JSON format for Loki/Grafana
		entry := map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			"level":     strings.ToLower(level),
			"message":   message,
		}
		if jsonBytes, err := json.Marshal(entry); err == nil {
			fmt.Println(string(jsonBytes))
		} else {
			fmt.Printf("%s: %s\n", level, message)
		}
	} else {
		fmt.Printf("%s/%s %s: %s\n",
			time.Now().Format("2006/01/02"),
			time.Now().Format("15:04:05"),
			level, message)
	}
}

// DebugLog logs debug messages only if log level allows it
func DebugLog(format string, args ...interface{}) {
	if shouldLog("debug") {
		logOutput("DEBUG", format, args...)
	}
}

// InfoLog logs info messages only if log level allows it
func InfoLog(format string, args ...interface{}) {
	if shouldLog("info") {
		logOutput("INFO", format, args...)
	}
}

// WarnLog logs warning messages only if log level allows it
func WarnLog(format string, args ...interface{}) {
	if shouldLog("warn") {
		logOutput("WARN", format, args...)
	}
}

// NoticeLog emits a message without secret sanitization and regardless of
// log level. The sanitizer would otherwise eat values we deliberately want
// an operator to see, like the generated initial admin password. Everything
// else goes through the leveled loggers.
func NoticeLog(format string, args ...interface{}) {
	emit("NOTICE", fmt.Sprintf(format, args...))
}

// ErrorLog logs error messages only if log level allows it
func ErrorLog(format string, args ...interface{}) {
	if shouldLog("error") {
		logOutput("ERROR", format, args...)
	}
}

// FatalLog logs fatal messages and exits (always shown)
func FatalLog(format string, args ...interface{}) {
	if Env("SYSMANAGE_LOG_FORMAT", "text") == "json" {
		message := SanitizeForLogging(fmt.Sprintf(format, args...))
		entry := map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			"level":     "fatal",
			"message":   message,
		}
		if jsonBytes, err := json.Marshal(entry); err == nil {
			fmt.Println(string(jsonBytes))
		}
		os.Exit(1)
	}
	log.Fatalf("FATAL: "+format, args...)
}

// Environment variables whose values must never appear in log output.
var protectedEnvVars = []string{
	"SYSMANAGE_SESSION_SECRET",
	"SYSMANAGE_JWT_SECRET",
	"SYSMANAGE_DB_PASS",
	"SYSMANAGE_DB_DSN",
	"OIDC_CLIENT_SECRET",
	"OIDC_CLIENT_ID",
	"POSTGRES_PASSWORD",
}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(password|passwd|pwd|secret|token|api[-_]?key|credential|bearer)[-_=:\s]*[^\s]+`),
	regexp.MustCompile(`(?i)(postgres|postgresql|mysql|redis|amqp)://[^@]+@[^\s]+`),
	regexp.MustCompile(`[a-zA-Z0-9]{40,}`),
}

// SanitizeForLogging removes potential secrets from a string before logging.
func SanitizeForLogging(line string) string {
	for _, envVar := range protectedEnvVars {
		if value := os.Getenv(envVar); value != "" && value != "true" && value != "false" {
			line = strings.ReplaceAll(line, value, "***REDACTED***")
		}
		if fileContent := os.Getenv(envVar + "_FILE"); fileContent != "" {
			line = strings.ReplaceAll(line, fileContent, "***REDACTED***")
		}
	}

	for _, re := range secretPatterns {
		line = re.ReplaceAllStringFunc(line, func(match string) string {
			// Keep the label but redact the value
			parts := strings.SplitN(match, "=", 2)
			if len(parts) == 2 {
				return parts[0] + "=***REDACTED***"
			}
			parts = strings.SplitN(match, ":", 2)
			if len(parts) == 2 {
				return parts[0] + ":***REDACTED***"
			}
			return "***REDACTED***"
		})
	}
	return line
}
