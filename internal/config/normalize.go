package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	c.applyEnv()
	c.normalizeServer()
	c.normalizeHistory()
	c.Export.S3Prefix = strings.Trim(strings.TrimSpace(c.Export.S3Prefix), "/")
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	var err error
	if c.Credentials.GPGFile, err = expandPath(strings.TrimSpace(c.Credentials.GPGFile)); err != nil {
		return fmt.Errorf("credentials.gpg_file: %w", err)
	}
	if c.History.SQLitePath, err = expandPath(strings.TrimSpace(c.History.SQLitePath)); err != nil {
		return fmt.Errorf("history.sqlite_path: %w", err)
	}
	if strings.TrimSpace(c.Export.OutputDir) == "" {
		c.Export.OutputDir = defaultOutputDir
	}
	if c.Export.OutputDir, err = expandPath(c.Export.OutputDir); err != nil {
		return fmt.Errorf("export.output_dir: %w", err)
	}
	if c.Polling.IntervalMS == 0 {
		c.Polling.IntervalMS = defaultPollIntervalMS
	}
	if c.Notify.TimeoutSeconds == 0 {
		c.Notify.TimeoutSeconds = defaultNotifyTimeout
	}
	return nil
}

// applyEnv layers environment overrides over file values. The API key is
// resolved later by the auth package, which also consults the environment.
func (c *Config) applyEnv() {
	overrides := []struct {
		env    string
		target *string
	}{
		{EnvServerURL, &c.Server.BaseURL},
		{EnvSSMAPIKeyParam, &c.Credentials.SSMParameter},
		{EnvWebhookSecret, &c.Notify.WebhookSecret},
		{EnvHistoryBackend, &c.History.Backend},
		{EnvDynamoDBTable, &c.History.DynamoDBTable},
		{EnvExportS3Bucket, &c.Export.S3Bucket},
		{EnvEventBridgeBus, &c.Notify.EventBridgeBus},
	}
	for _, o := range overrides {
		if value, ok := os.LookupEnv(o.env); ok && strings.TrimSpace(value) != "" {
			*o.target = strings.TrimSpace(value)
		}
	}
	if value, ok := os.LookupEnv(EnvMetricsEnabled); ok {
		if enabled, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			c.Metrics.Enabled = enabled
		}
	}
}

func (c *Config) normalizeServer() {
	c.Server.BaseURL = strings.TrimRight(strings.TrimSpace(c.Server.BaseURL), "/")
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = defaultBaseURL
	}
}

func (c *Config) normalizeHistory() {
	c.History.Backend = strings.ToLower(strings.TrimSpace(c.History.Backend))
	if c.History.Backend == "" {
		c.History.Backend = HistorySQLite
	}
	c.History.DynamoDBTable = strings.TrimSpace(c.History.DynamoDBTable)
}
