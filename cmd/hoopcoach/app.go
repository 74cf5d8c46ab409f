package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/hoopcoach/internal/auth"
	"github.com/fpang/hoopcoach/internal/awsboot"
	"github.com/fpang/hoopcoach/internal/coachapi"
	"github.com/fpang/hoopcoach/internal/config"
	"github.com/fpang/hoopcoach/internal/logging"
	"github.com/fpang/hoopcoach/internal/notify"
	"github.com/fpang/hoopcoach/internal/store"
)

// awsLoader is swapped in tests so no real credential chain is consulted.
var awsLoader awsboot.Loader

// app carries the resolved configuration and shared clients of one run.
type app struct {
	cfg         *config.Config
	configPath  string
	configFound bool
	api         *coachapi.Client
	aws         *awsboot.Clients
	out         io.Writer
}

// loadApp loads configuration, applies persistent flags and sets up
// logging. It is the first thing every command does.
func loadApp(cmd *cobra.Command) (*app, error) {
	start := time.Now()

	cfg, path, found, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}
	if serverFlag != "" {
		cfg.Server.BaseURL = strings.TrimRight(serverFlag, "/")
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	level := logLevelFlag
	if level == "" {
		level = logging.EnvOrDefault(logging.LevelEnvVar, cfg.Logging.Level)
	}
	logging.InitWithLevel(level)

	a := &app{
		cfg:         cfg,
		configPath:  path,
		configFound: found,
		api:         coachapi.NewClient(cfg.Server.BaseURL, cfg.RequestTimeout()),
		aws:         awsboot.New(awsLoader),
		out:         cmd.OutOrStdout(),
	}

	startup := logging.NewStartupLogger(cmd.Name()).
		Version(version()).
		Feature("history", cfg.History.Backend != config.HistoryNone).
		Feature("webhook", cfg.Notify.WebhookURL != "").
		Feature("eventbridge", cfg.Notify.EventBridgeBus != "").
		Feature("s3Export", cfg.Export.S3Bucket != "").
		Feature("metrics", cfg.Metrics.Enabled).
		InitDuration(time.Since(start))
	if found {
		startup.ConfigPath(path)
	}
	for k, v := range cfg.Redacted() {
		startup.Config(k, v)
	}
	startup.Log()

	return a, nil
}

// credential resolves the API key sent with uploads. A missing key is not
// fatal; the service falls back to canned commentary without one.
func (a *app) credential(ctx context.Context) string {
	opts := auth.Options{
		Explicit:     a.cfg.Credentials.APIKey,
		SSMParameter: a.cfg.Credentials.SSMParameter,
		GPGFile:      a.cfg.Credentials.GPGFile,
	}
	if opts.SSMParameter != "" {
		client, err := a.aws.SSM(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Parameter Store unavailable, skipping")
		} else {
			opts.SSM = client
		}
	}

	key, source, err := auth.GetAPIKey(ctx, opts)
	if err != nil {
		log.Warn().Err(err).Msg("No API key found, the service will use fallback commentary")
		return ""
	}
	log.Debug().Stringer("source", source).Msg("API key resolved")
	return key
}

// openHistory opens the configured history backend. It returns nil when
// history is disabled.
func (a *app) openHistory(ctx context.Context) (store.SessionStore, error) {
	switch a.cfg.History.Backend {
	case config.HistoryNone:
		return nil, nil
	case config.HistoryDynamoDB:
		client, err := a.aws.DynamoDB(ctx)
		if err != nil {
			return nil, err
		}
		return store.NewDynamoStore(client, a.cfg.History.DynamoDBTable), nil
	default:
		s, err := store.OpenSQLite(ctx, a.cfg.History.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// notifier builds the configured notification fan-out, or nil when no
// destination is configured.
func (a *app) notifier(ctx context.Context) notify.Notifier {
	var fan notify.Fanout
	if a.cfg.Notify.WebhookURL != "" {
		fan = append(fan, notify.NewWebhook(a.cfg.Notify.WebhookURL, a.cfg.Notify.WebhookSecret,
			notify.WithTimeout(a.cfg.NotifyTimeout())))
	}
	if a.cfg.Notify.EventBridgeBus != "" {
		client, err := a.aws.EventBridge(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("EventBridge unavailable, skipping")
		} else {
			fan = append(fan, notify.NewEventBridge(client, a.cfg.Notify.EventBridgeBus))
		}
	}
	if len(fan) == 0 {
		return nil
	}
	return fan
}

// printf writes user-facing output.
func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func closeStore(s store.SessionStore) {
	if s == nil {
		return
	}
	if err := s.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close history store")
	}
}
