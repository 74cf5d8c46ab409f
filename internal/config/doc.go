// Package config loads the hoopcoach TOML configuration.
//
// The file is looked up at ~/.config/hoopcoach/config.toml and then at
// ./hoopcoach.toml. Missing files are not an error: Default values apply,
// environment overrides are layered on top, and the result is validated.
package config
