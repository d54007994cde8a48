// Package settings manages persistent user settings for the ztnc CLI.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the settings file.
const (
	EnvAPIURL    = "ZTNC_API_URL"
	EnvStateDir  = "ZTNC_STATE_DIR"
	EnvTokenFile = "ZTNC_TOKEN_FILE"
	EnvCachePath = "ZTNC_CACHE_PATH"
	EnvAuditLog  = "ZTNC_AUDIT_LOG"
)

// DefaultAPIURL is the controller's loopback management endpoint.
const DefaultAPIURL = "http://127.0.0.1:9993"

const (
	tokenFileName = "authtoken.secret"
	cacheFileName = "ztnc.cache"
)

// Settings holds persistent user preferences. Empty fields fall back to
// the platform defaults through the getters.
type Settings struct {
	// APIURL is the controller management API base URL
	APIURL string `yaml:"api_url,omitempty"`

	// StateDir is the controller's home directory (auth token, cache)
	StateDir string `yaml:"state_dir,omitempty"`

	// TokenFile overrides <state_dir>/authtoken.secret
	TokenFile string `yaml:"token_file,omitempty"`

	// CachePath overrides <state_dir>/ztnc.cache
	CachePath string `yaml:"cache_path,omitempty"`

	// AuditLogPath overrides ~/.ztnc/audit.log
	AuditLogPath string `yaml:"audit_log_path,omitempty"`
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ztnc"
	}
	return filepath.Join(home, ".ztnc")
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	return filepath.Join(configDir(), "settings.yaml")
}

// DefaultEnvPath returns the path of the optional KEY=value override file.
func DefaultEnvPath() string {
	return filepath.Join(configDir(), "env")
}

// Load reads settings from the default location and applies environment
// overrides, including those from the env file.
func Load() (*Settings, error) {
	if err := LoadEnvFile(DefaultEnvPath()); err != nil {
		return nil, err
	}
	s, err := LoadFrom(DefaultSettingsPath())
	if err != nil {
		return nil, err
	}
	s.ApplyEnv()
	return s, nil
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty settings if file doesn't exist
			return s, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, err
	}

	return s, nil
}

// LoadEnvFile loads KEY=value pairs from path into the process environment.
// Variables already set are left alone; a missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}

// ApplyEnv overlays any ZTNC_* environment variables onto s.
func (s *Settings) ApplyEnv() {
	for env, field := range map[string]*string{
		EnvAPIURL:    &s.APIURL,
		EnvStateDir:  &s.StateDir,
		EnvTokenFile: &s.TokenFile,
		EnvCachePath: &s.CachePath,
		EnvAuditLog:  &s.AuditLogPath,
	} {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetAPIURL returns the controller base URL (with fallback)
func (s *Settings) GetAPIURL() string {
	if s.APIURL != "" {
		return s.APIURL
	}
	return DefaultAPIURL
}

// GetStateDir returns the controller state directory (with fallback)
func (s *Settings) GetStateDir() string {
	if s.StateDir != "" {
		return s.StateDir
	}
	return PlatformStateDir()
}

// GetTokenFile returns the auth token path (with fallback)
func (s *Settings) GetTokenFile() string {
	if s.TokenFile != "" {
		return s.TokenFile
	}
	return filepath.Join(s.GetStateDir(), tokenFileName)
}

// GetCachePath returns the alias cache path (with fallback)
func (s *Settings) GetCachePath() string {
	if s.CachePath != "" {
		return s.CachePath
	}
	return filepath.Join(s.GetStateDir(), cacheFileName)
}

// GetAuditLogPath returns the audit log path (with fallback)
func (s *Settings) GetAuditLogPath() string {
	if s.AuditLogPath != "" {
		return s.AuditLogPath
	}
	return filepath.Join(configDir(), "audit.log")
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}

// Keys lists the setting names accepted by Get and Set, in display order.
var Keys = []string{"api_url", "state_dir", "token_file", "cache_path", "audit_log_path"}

// Get returns the effective value of key.
func (s *Settings) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return s.GetAPIURL(), nil
	case "state_dir":
		return s.GetStateDir(), nil
	case "token_file":
		return s.GetTokenFile(), nil
	case "cache_path":
		return s.GetCachePath(), nil
	case "audit_log_path":
		return s.GetAuditLogPath(), nil
	}
	return "", unknownKey(key)
}

// Set stores value under key. An empty value restores the default.
func (s *Settings) Set(key, value string) error {
	field := s.field(key)
	if field == nil {
		return unknownKey(key)
	}
	*field = value
	return nil
}

// IsSet reports whether key has an explicit value rather than a default.
func (s *Settings) IsSet(key string) bool {
	field := s.field(key)
	return field != nil && *field != ""
}

func (s *Settings) field(key string) *string {
	switch key {
	case "api_url":
		return &s.APIURL
	case "state_dir":
		return &s.StateDir
	case "token_file":
		return &s.TokenFile
	case "cache_path":
		return &s.CachePath
	case "audit_log_path":
		return &s.AuditLogPath
	}
	return nil
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown setting: %s (valid: %s)", key, strings.Join(Keys, ", "))
}
