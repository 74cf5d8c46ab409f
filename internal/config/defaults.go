package config

// ProjectConfigFile is the fallback config in the working directory.
const ProjectConfigFile = "hoopcoach.toml"

const (
	defaultConfigPath     = "~/.config/hoopcoach/config.toml"
	defaultBaseURL        = "http://localhost:8080"
	defaultPollIntervalMS = 2000
	defaultGPGFile        = "~/.hoopcoach/credentials.gpg"
	defaultSQLitePath     = "~/.local/share/hoopcoach/history.db"
	defaultOutputDir      = "."
	defaultNotifyTimeout  = 10
	defaultLogLevel       = "info"
)

// History backends.
const (
	HistorySQLite   = "sqlite"
	HistoryDynamoDB = "dynamodb"
	HistoryNone     = "none"
)

// Environment variables layered over the file.
const (
	EnvServerURL      = "HOOPCOACH_SERVER_URL"
	EnvAPIKey         = "HOOPCOACH_API_KEY"
	EnvSSMAPIKeyParam = "HOOPCOACH_SSM_API_KEY_PARAM"
	EnvWebhookSecret  = "HOOPCOACH_WEBHOOK_SECRET"
	EnvHistoryBackend = "HOOPCOACH_HISTORY"
	EnvDynamoDBTable  = "HOOPCOACH_DYNAMODB_TABLE"
	EnvExportS3Bucket = "HOOPCOACH_S3_BUCKET"
	EnvMetricsEnabled = "HOOPCOACH_METRICS"
	EnvEventBridgeBus = "HOOPCOACH_EVENT_BUS"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			BaseURL: defaultBaseURL,
		},
		Polling: Polling{
			IntervalMS: defaultPollIntervalMS,
		},
		Credentials: Credentials{
			GPGFile: defaultGPGFile,
		},
		History: History{
			Backend:    HistorySQLite,
			SQLitePath: defaultSQLitePath,
		},
		Notify: Notify{
			TimeoutSeconds: defaultNotifyTimeout,
		},
		Export: Export{
			OutputDir: defaultOutputDir,
		},
		Logging: Logging{
			Level: defaultLogLevel,
		},
	}
}
