package logging

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects the command identity, configuration, and feature
// flags, then emits a single structured zerolog event summarising how the
// client was configured for this run.
type StartupLogger struct {
	command      string
	version      string
	configPath   string
	initDuration time.Duration

	features map[string]bool
	config   map[string]string
}

// NewStartupLogger creates a StartupLogger for the given command name
// (e.g. "analyze", "history").
func NewStartupLogger(command string) *StartupLogger {
	return &StartupLogger{
		command:  command,
		features: make(map[string]bool),
		config:   make(map[string]string),
	}
}

// Version sets the build version baked into the binary.
func (s *StartupLogger) Version(v string) *StartupLogger {
	s.version = v
	return s
}

// ConfigPath records which config file was loaded, if any.
func (s *StartupLogger) ConfigPath(p string) *StartupLogger {
	s.configPath = p
	return s
}

// Feature registers a boolean feature flag (e.g. "history", "webhook").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
// Never pass credentials here.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	if value != "" {
		s.config[key] = value
	}
	return s
}

// InitDuration records how long setup took before the command started.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// EnvOrDefault returns the value of the named environment variable, or
// defaultVal if the variable is empty or unset.
func EnvOrDefault(envVar, defaultVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultVal
}

// Log emits a single structured DEBUG event with all collected information.
func (s *StartupLogger) Log() {
	s.event(log.Debug()).Msg("hoopcoach starting")
}

func (s *StartupLogger) event(evt *zerolog.Event) *zerolog.Event {
	client := zerolog.Dict().
		Str("command", s.command).
		Str("goVersion", runtime.Version()).
		Str("os", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Str("logLevel", zerolog.GlobalLevel().String())
	if s.version != "" {
		client = client.Str("version", s.version)
	}
	if s.configPath != "" {
		client = client.Str("configPath", s.configPath)
	}
	evt = evt.Dict("client", client)

	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}

	if len(s.config) > 0 {
		evt = evt.Dict("config", dictFromMap(s.config))
	}

	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}
	return evt
}

// dictFromMap converts a map[string]string into a zerolog.Event (Dict).
func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
