// Package auth resolves the auxiliary API key sent with each upload.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

const (
	// EnvAPIKey is checked first among environment sources.
	EnvAPIKey = "HOOPCOACH_API_KEY"
	// EnvGeminiAPIKey is accepted because the analysis backend forwards
	// the key to Gemini.
	EnvGeminiAPIKey = "GEMINI_API_KEY"

	credentialDir  = ".hoopcoach"
	credentialFile = "credentials.gpg"
	passphraseFile = ".gpg-passphrase"
)

// gpgBinary is the decryption command.
var gpgBinary = "gpg"

// Source records where an API key came from.
type Source int

const (
	SourceNone Source = iota
	SourceExplicit
	SourceEnv
	SourceSSM
	SourceGPG
)

func (s Source) String() string {
	switch s {
	case SourceExplicit:
		return "explicit"
	case SourceEnv:
		return "env"
	case SourceSSM:
		return "ssm"
	case SourceGPG:
		return "gpg"
	default:
		return "none"
	}
}

// KeyError reports why no API key could be resolved.
type KeyError struct {
	Type    KeyErrorType
	Message string
	Err     error
}

// KeyErrorType categorizes key lookup failures.
type KeyErrorType int

const (
	// ErrTypeNoKey indicates no source produced a key.
	ErrTypeNoKey KeyErrorType = iota
	// ErrTypeSSM indicates the Parameter Store lookup failed.
	ErrTypeSSM
	// ErrTypeGPG indicates the encrypted credentials file could not be read.
	ErrTypeGPG
)

func (e *KeyError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// ParameterStore is the SSM call used for key lookup. *ssm.Client
// satisfies it.
type ParameterStore interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Options lists the key sources to consult.
type Options struct {
	// Explicit is a key from a flag or the config file.
	Explicit string
	// SSMParameter names a SecureString parameter; SSM is skipped when
	// empty or when SSM is nil.
	SSMParameter string
	SSM          ParameterStore
	// GPGFile overrides ~/.hoopcoach/credentials.gpg.
	GPGFile string
}

// GetAPIKey retrieves the API key from available sources.
// Priority order:
//  1. Options.Explicit
//  2. HOOPCOACH_API_KEY, then GEMINI_API_KEY
//  3. SSM Parameter Store (Options.SSMParameter)
//  4. GPG-encrypted file (Options.GPGFile or ~/.hoopcoach/credentials.gpg)
//
// When every source comes up empty it returns a *KeyError of type
// ErrTypeNoKey wrapping the last lookup failure.
func GetAPIKey(ctx context.Context, opts Options) (string, Source, error) {
	if key := strings.TrimSpace(opts.Explicit); key != "" {
		log.Debug().Msg("Using API key from flag or config")
		return key, SourceExplicit, nil
	}

	for _, env := range []string{EnvAPIKey, EnvGeminiAPIKey} {
		if key := strings.TrimSpace(os.Getenv(env)); key != "" {
			log.Debug().Str("envVar", env).Msg("Using API key from environment variable")
			return key, SourceEnv, nil
		}
	}

	var lastErr error
	if opts.SSMParameter != "" && opts.SSM != nil {
		key, err := getFromSSM(ctx, opts.SSM, opts.SSMParameter)
		if err == nil && key != "" {
			return key, SourceSSM, nil
		}
		if err != nil {
			log.Warn().Err(err).Str("param", opts.SSMParameter).Msg("Failed to read API key from SSM")
			lastErr = err
		}
	}

	key, err := getFromGPG(ctx, opts.GPGFile)
	if err == nil && key != "" {
		log.Debug().Msg("Using API key from GPG encrypted file")
		return key, SourceGPG, nil
	}
	if err != nil {
		log.Debug().Err(err).Msg("GPG credentials unavailable")
		lastErr = err
	}

	return "", SourceNone, &KeyError{
		Type:    ErrTypeNoKey,
		Message: "API key not found; set " + EnvAPIKey + " or [credentials] in the config file",
		Err:     lastErr,
	}
}

func getFromSSM(ctx context.Context, client ParameterStore, name string) (string, error) {
	start := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", &KeyError{Type: ErrTypeSSM, Message: "SSM GetParameter " + name, Err: err}
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", &KeyError{Type: ErrTypeSSM, Message: "SSM parameter " + name + " has no value"}
	}
	log.Debug().Str("param", name).Dur("elapsed", time.Since(start)).Msg("API key loaded from SSM")
	return strings.TrimSpace(*result.Parameter.Value), nil
}

// getFromGPG decrypts the API key from the GPG-encrypted credentials file.
func getFromGPG(ctx context.Context, credPath string) (string, error) {
	if credPath == "" {
		var err error
		if credPath, err = getCredentialPath(); err != nil {
			return "", &KeyError{Type: ErrTypeGPG, Message: "locate credentials", Err: err}
		}
	}

	if _, err := os.Stat(credPath); errors.Is(err, os.ErrNotExist) {
		return "", &KeyError{Type: ErrTypeGPG, Message: "GPG credentials file not found at " + credPath}
	}

	log.Debug().Str("file", credPath).Msg("Decrypting GPG credentials")

	// Passphrase file allows non-interactive decryption.
	args := []string{"--decrypt", "--quiet"}
	if passphrasePath, ok := findPassphraseFile(); ok {
		args = append(args, "--pinentry-mode", "loopback", "--passphrase-file", passphrasePath)
	}
	args = append(args, credPath)

	output, err := exec.CommandContext(ctx, gpgBinary, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &KeyError{Type: ErrTypeGPG, Message: "GPG decryption failed: " + strings.TrimSpace(string(exitErr.Stderr))}
		}
		return "", &KeyError{Type: ErrTypeGPG, Message: "GPG decryption failed", Err: err}
	}

	return strings.TrimSpace(string(output)), nil
}

// getCredentialPath returns the default credentials file location.
func getCredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, credentialDir, credentialFile), nil
}

// findPassphraseFile looks for .gpg-passphrase next to the executable,
// then in the working directory. Files readable by group or others are
// skipped.
func findPassphraseFile() (string, bool) {
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}

	for _, dir := range dirs {
		path := filepath.Join(dir, passphraseFile)
		fi, err := os.Stat(path)
		if err != nil {
			continue
		}
		if mode := fi.Mode().Perm(); mode&0o077 != 0 {
			log.Warn().
				Str("passphrase_file", path).
				Str("permissions", fmt.Sprintf("%04o", mode)).
				Msg("Passphrase file has insecure permissions (should be 0600); skipping")
			continue
		}
		log.Debug().Str("passphrase_file", path).Msg("Using passphrase file for GPG decryption")
		return path, true
	}
	return "", false
}
