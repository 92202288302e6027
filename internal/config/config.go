package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dl-alexandre/gdsync/internal/types"
)

const (
	// ConfigFileName is the name of the config file
	ConfigFileName = "config.json"
	// ConfigDirName is the directory under the user's home holding config,
	// encrypted tokens and the journal
	ConfigDirName = ".gdsync"
	// EnvPrefix is the prefix for environment variables
	EnvPrefix = "GDSYNC_"
	// JournalFileName is the default journal database name
	JournalFileName = "journal.db"
)

// SyncAccount is one configured remote account. FolderID is the root
// every path of the account is resolved under.
type SyncAccount struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FolderID string `json:"folderId"`
	// RefreshToken may be left empty when the token lives in the token store
	RefreshToken string   `json:"refreshToken,omitempty"`
	UserIDs      []string `json:"userIds,omitempty"`
}

// Target returns the account as a sync target
func (a SyncAccount) Target() types.SyncTarget {
	return types.SyncTarget{ID: a.ID, Name: a.Name}
}

// Config holds application configuration
type Config struct {
	// ClientID and ClientSecret identify the OAuth client shared by all
	// accounts
	ClientID     string `json:"clientId" env:"CLIENT_ID"`
	ClientSecret string `json:"clientSecret" env:"CLIENT_SECRET"`

	// DefaultTarget is the account used when --target is not given
	DefaultTarget string `json:"defaultTarget" env:"TARGET"`

	Accounts []SyncAccount `json:"accounts"`

	// DefaultOutputFormat is the default output format (json, table)
	DefaultOutputFormat types.OutputFormat `json:"defaultOutputFormat" env:"OUTPUT_FORMAT"`

	// RequestTimeout bounds each HTTP request in seconds
	RequestTimeout int `json:"requestTimeout" env:"REQUEST_TIMEOUT"`

	// UploadWorkers is the number of concurrent uploads for push
	UploadWorkers int `json:"uploadWorkers" env:"UPLOAD_WORKERS"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `json:"logLevel" env:"LOG_LEVEL"`
	LogFile  string `json:"logFile,omitempty" env:"LOG_FILE"`

	// JournalPath overrides the transfer journal location
	JournalPath string `json:"journalPath,omitempty" env:"JOURNAL"`

	ColorOutput bool `json:"colorOutput" env:"COLOR_OUTPUT"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultOutputFormat: types.OutputFormatJSON,
		RequestTimeout:      3600,
		UploadWorkers:       4,
		LogLevel:            "info",
		ColorOutput:         true,
	}
}

// Load reads path (or the default config path when empty) and applies
// environment overrides: env vars > config file > defaults. A missing file
// is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := DefaultConfig()
	if err := cfg.loadFromFile(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, c)
}

// loadFromEnv overwrites only the fields whose variables are set
func (c *Config) loadFromEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("error getting env configs: %w", err)
	}
	return nil
}

// Save writes the configuration to path (or the default path when empty)
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DefaultOutputFormat != types.OutputFormatJSON &&
		c.DefaultOutputFormat != types.OutputFormatTable {
		return fmt.Errorf("invalid output format: %s (must be 'json' or 'table')", c.DefaultOutputFormat)
	}

	if c.RequestTimeout < 1 || c.RequestTimeout > 86400 {
		return fmt.Errorf("request timeout must be between 1 and 86400 seconds, got: %d", c.RequestTimeout)
	}

	if c.UploadWorkers < 1 || c.UploadWorkers > 32 {
		return fmt.Errorf("upload workers must be between 1 and 32, got: %d", c.UploadWorkers)
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	isValid := false
	for _, level := range validLogLevels {
		if strings.EqualFold(c.LogLevel, level) {
			isValid = true
			break
		}
	}
	if !isValid {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	seen := make(map[string]bool, len(c.Accounts))
	for i, a := range c.Accounts {
		if strings.TrimSpace(a.ID) == "" {
			return fmt.Errorf("account %d has no id", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate account id: %s", a.ID)
		}
		seen[a.ID] = true
		if strings.TrimSpace(a.FolderID) == "" {
			return fmt.Errorf("account %s has no folderId", a.ID)
		}
	}

	if c.DefaultTarget != "" && !seen[c.DefaultTarget] {
		return fmt.Errorf("default target %s is not a configured account", c.DefaultTarget)
	}
	return nil
}

// SyncAccounts returns every configured account
func (c *Config) SyncAccounts() []SyncAccount {
	return c.Accounts
}

// UserSyncAccounts returns the accounts visible to userID. An account with
// no user list is visible to everyone.
func (c *Config) UserSyncAccounts(userID string) []SyncAccount {
	var out []SyncAccount
	for _, a := range c.Accounts {
		if len(a.UserIDs) == 0 {
			out = append(out, a)
			continue
		}
		for _, u := range a.UserIDs {
			if u == userID {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// SyncAccount looks up an account by ID. An empty id selects the default
// target, or the only account when exactly one is configured.
func (c *Config) SyncAccount(id string) (SyncAccount, bool) {
	if id == "" {
		id = c.DefaultTarget
	}
	if id == "" && len(c.Accounts) == 1 {
		return c.Accounts[0], true
	}
	for _, a := range c.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return SyncAccount{}, false
}

// GetRequestTimeout returns the request timeout as a duration
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// GetJournalPath returns the journal database path
func (c *Config) GetJournalPath() (string, error) {
	if c.JournalPath != "" {
		return c.JournalPath, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, JournalFileName), nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, ConfigFileName), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	if dir := os.Getenv(EnvPrefix + "CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ConfigDirName), nil
}
