package common

import (
	"os"

	"github.com/goccy/go-yaml"
)

// FileConfig is the optional on-disk configuration overlay. Values set here
// become process environment variables unless already set, so env always
// wins and the rest of the code only ever consults Env().
type FileConfig struct {
	API struct {
		Host string `yaml:"host"`
		Port string `yaml:"port"`
	} `yaml:"api"`
	Database struct {
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"database"`
	Security struct {
		JWTSecret     string `yaml:"jwt_secret"`
		SessionSecret string `yaml:"session_secret"`
	} `yaml:"security"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// LoadConfigFile applies /etc/sysmanage.yaml (or SYSMANAGE_CONFIG) onto the
// environment. A missing file is not an error.
func LoadConfigFile() error {
	path := Env("SYSMANAGE_CONFIG", "/etc/sysmanage.yaml")
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var fc FileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return err
	}

	setIfUnset := func(key, val string) {
		if val != "" && os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
	setIfUnset("SYSMANAGE_BIND_HOST", fc.API.Host)
	setIfUnset("SYSMANAGE_BIND_PORT", fc.API.Port)
	setIfUnset("SYSMANAGE_DB_HOST", fc.Database.Host)
	setIfUnset("SYSMANAGE_DB_PORT", fc.Database.Port)
	setIfUnset("SYSMANAGE_DB_USER", fc.Database.User)
	setIfUnset("SYSMANAGE_DB_PASS", fc.Database.Password)
	setIfUnset("SYSMANAGE_DB_NAME", fc.Database.Name)
	setIfUnset("SYSMANAGE_DB_SSLMODE", fc.Database.SSLMode)
	setIfUnset("SYSMANAGE_JWT_SECRET", fc.Security.JWTSecret)
	setIfUnset("SYSMANAGE_SESSION_SECRET", fc.Security.SessionSecret)
	setIfUnset("SYSMANAGE_LOG_LEVEL", fc.Logging.Level)
	setIfUnset("SYSMANAGE_LOG_FORMAT", fc.Logging.Format)
	return nil
}
