package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validatePolling(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	if err := c.validateNotify(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("server.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.base_url must be an http or https URL, got %q", c.Server.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("server.base_url has no host: %q", c.Server.BaseURL)
	}
	if c.Server.RequestTimeoutSeconds < 0 {
		return errors.New("server.request_timeout_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validatePolling() error {
	if c.Polling.IntervalMS < 0 {
		return errors.New("polling.interval_ms must be positive")
	}
	return nil
}

func (c *Config) validateHistory() error {
	switch c.History.Backend {
	case HistorySQLite:
		if c.History.SQLitePath == "" {
			return errors.New("history.sqlite_path must be set for the sqlite backend")
		}
	case HistoryDynamoDB:
		if c.History.DynamoDBTable == "" {
			return errors.New("history.dynamodb_table must be set for the dynamodb backend")
		}
	case HistoryNone:
	default:
		return fmt.Errorf("history.backend must be one of sqlite, dynamodb, none; got %q", c.History.Backend)
	}
	return nil
}

func (c *Config) validateNotify() error {
	if c.Notify.WebhookURL != "" {
		u, err := url.Parse(c.Notify.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("notify.webhook_url must be an http or https URL, got %q", c.Notify.WebhookURL)
		}
	}
	if c.Notify.TimeoutSeconds < 0 {
		return errors.New("notify.timeout_seconds must be >= 0")
	}
	return nil
}
