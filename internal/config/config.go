package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server describes the analysis service endpoint.
type Server struct {
	BaseURL string `toml:"base_url"`
	// RequestTimeoutSeconds bounds each HTTP request; 0 leaves requests
	// to the transport.
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`
}

// Polling controls the status query cadence.
type Polling struct {
	IntervalMS int `toml:"interval_ms"`
}

// Credentials locates the auxiliary API key sent with each upload.
type Credentials struct {
	APIKey       string `toml:"api_key"`
	SSMParameter string `toml:"ssm_parameter"`
	GPGFile      string `toml:"gpg_file"`
}

// History selects where submitted sessions are recorded.
type History struct {
	Backend       string `toml:"backend"`
	SQLitePath    string `toml:"sqlite_path"`
	DynamoDBTable string `toml:"dynamodb_table"`
}

// Notify configures terminal-state notifications.
type Notify struct {
	WebhookURL     string `toml:"webhook_url"`
	WebhookSecret  string `toml:"webhook_secret"`
	EventBridgeBus string `toml:"eventbridge_bus"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Export configures where downloaded results and bundles go.
type Export struct {
	OutputDir string `toml:"output_dir"`
	S3Bucket  string `toml:"s3_bucket"`
	S3Prefix  string `toml:"s3_prefix"`
}

// Metrics toggles EMF metric lines.
type Metrics struct {
	Enabled bool `toml:"enabled"`
}

// Logging sets the default log level; HOOPCOACH_LOG_LEVEL and --log-level
// take precedence.
type Logging struct {
	Level string `toml:"level"`
}

// Config encapsulates all configuration values for hoopcoach.
type Config struct {
	Server      Server      `toml:"server"`
	Polling     Polling     `toml:"polling"`
	Credentials Credentials `toml:"credentials"`
	History     History     `toml:"history"`
	Notify      Notify      `toml:"notify"`
	Export      Export      `toml:"export"`
	Metrics     Metrics     `toml:"metrics"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. It returns the
// config, the resolved path, and whether that file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(ProjectConfigFile)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// PollInterval returns the configured query-to-query wait.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalMS) * time.Millisecond
}

// RequestTimeout returns the per-request HTTP timeout, 0 for none.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// NotifyTimeout returns the timeout for outgoing notifications.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notify.TimeoutSeconds) * time.Second
}

// NeedsAWS reports whether any configured feature talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.Credentials.SSMParameter != "" ||
		c.History.Backend == HistoryDynamoDB ||
		c.Notify.EventBridgeBus != "" ||
		c.Export.S3Bucket != ""
}

// Redacted returns non-secret settings for startup logging.
func (c *Config) Redacted() map[string]string {
	return map[string]string{
		"server":         c.Server.BaseURL,
		"pollIntervalMs": fmt.Sprint(c.Polling.IntervalMS),
		"history":        c.History.Backend,
		"webhook":        redactURL(c.Notify.WebhookURL),
		"eventBus":       c.Notify.EventBridgeBus,
		"s3Bucket":       c.Export.S3Bucket,
		"outputDir":      c.Export.OutputDir,
	}
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	if i := strings.Index(raw, "?"); i >= 0 {
		return raw[:i] + "?..."
	}
	return raw
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
