package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Env gets an environment variable with a default value.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvBool gets an environment variable as a boolean with a default value.
func EnvBool(key, def string) bool {
	return IsTrueish(Env(key, def))
}

// EnvInt gets an environment variable as an integer with a default value.
func EnvInt(key string, def int) int {
	if s := Env(key, ""); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// EnvDuration gets an environment variable as a duration with a default value.
func EnvDuration(key, def string) time.Duration {
	if d, err := time.ParseDuration(Env(key, def)); err == nil {
		return d
	}
	out, _ := time.ParseDuration(def)
	return out
}

// IsTrueish checks if a string represents a true value.
func IsTrueish(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	}
	return false
}

// ReadSecretMaybeFile resolves "@/path" style values to file contents.
func ReadSecretMaybeFile(v string) (string, error) {
	if strings.HasPrefix(v, "@") {
		b, err := os.ReadFile(strings.TrimPrefix(v, "@"))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return v, nil
}

// EnvOrFile reads a secret from valueKey (supports "@/path") or from the
// path named by fileKey. Empty string when neither is set.
func EnvOrFile(valueKey, fileKey string) (string, error) {
	if raw := os.Getenv(valueKey); raw != "" {
		return ReadSecretMaybeFile(raw)
	}
	if fp := strings.TrimSpace(os.Getenv(fileKey)); fp != "" {
		b, err := os.ReadFile(fp)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return "", nil
}
