package cli

import (
	"errors"
	"path/filepath"

	"github.com/fpang/hoopcoach/internal/auth"
	"github.com/fpang/hoopcoach/internal/coachapi"
	"github.com/fpang/hoopcoach/internal/filehandler"
	"github.com/fpang/hoopcoach/internal/session"
)

// ValidateAndResolveVideo loads the file at path, resolves it to an
// absolute path and checks it against the upload rules.
func ValidateAndResolveVideo(path string) (filehandler.ValidInput, error) {
	if abs, err := filepath.Abs(path); err == nil && path != "" {
		path = abs
	}
	return filehandler.ValidateFile(path)
}

// DescribeError turns a typed error into the message shown to the user.
func DescribeError(err error) string {
	if err == nil {
		return ""
	}

	var validationErr *filehandler.ValidationError
	if errors.As(err, &validationErr) {
		switch validationErr.Type {
		case filehandler.ErrTypeNoInput:
			return "No file selected"
		default:
			return validationErr.Message
		}
	}

	var submitErr *coachapi.SubmissionError
	if errors.As(err, &submitErr) {
		return session.MsgSubmissionFailed
	}

	var pollErr *coachapi.PollError
	if errors.As(err, &pollErr) {
		if pollErr.Type == coachapi.ErrTypeServerReported && pollErr.Message != "" {
			return pollErr.Message
		}
		if pollErr.Type == coachapi.ErrTypeServerReported {
			return session.MsgProcessingFailed
		}
		return session.MsgStatusCheckFailed
	}

	var keyErr *auth.KeyError
	if errors.As(err, &keyErr) {
		switch keyErr.Type {
		case auth.ErrTypeNoKey:
			return "No API key configured. Set HOOPCOACH_API_KEY or configure [credentials]."
		case auth.ErrTypeSSM:
			return "Failed to read the API key from Parameter Store: " + keyErr.Message
		case auth.ErrTypeGPG:
			return "Failed to decrypt the API key file: " + keyErr.Message
		}
	}

	if errors.Is(err, session.ErrIllegalTransition) {
		return "A session is already in progress"
	}
	return err.Error()
}
