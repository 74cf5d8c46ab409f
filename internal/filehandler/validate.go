package filehandler

import (
	"fmt"
	"mime"
	"strings"
)

// MaxUploadSize is the largest video the analysis service accepts (100 MiB).
const MaxUploadSize int64 = 100 * 1024 * 1024

// AllowedVideoTypes is the MIME allow-list for uploads. It mirrors the
// container types the analysis service can decode.
var AllowedVideoTypes = map[string]bool{
	"video/mp4":       true,
	"video/avi":       true,
	"video/mov":       true,
	"video/quicktime": true,
	"video/x-msvideo": true,
}

// Input describes a file the user selected for analysis.
type Input struct {
	Name      string
	SizeBytes int64
	MIMEType  string
}

// ValidInput is an Input that passed Validate. Path is the local file the
// submission client streams; it may be empty for inputs that did not come
// from disk.
type ValidInput struct {
	Input
	Path string
}

// ValidationError represents a specific type of input validation failure.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
}

// ValidationErrorType categorizes validation failures.
type ValidationErrorType int

const (
	// ErrTypeUnsupportedType indicates the MIME type is not on the allow-list.
	ErrTypeUnsupportedType ValidationErrorType = iota
	// ErrTypeTooLarge indicates the file exceeds MaxUploadSize.
	ErrTypeTooLarge
	// ErrTypeNoInput indicates no file was selected.
	ErrTypeNoInput
)

func (t ValidationErrorType) String() string {
	switch t {
	case ErrTypeUnsupportedType:
		return "unsupported_type"
	case ErrTypeTooLarge:
		return "too_large"
	case ErrTypeNoInput:
		return "no_input"
	default:
		return "unknown"
	}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks an input against the size limit and the MIME allow-list.
// Size is checked first, so an oversized file is reported as TooLarge
// whatever its type. Validate has no side effects.
func Validate(in Input) (ValidInput, error) {
	if in.SizeBytes > MaxUploadSize {
		return ValidInput{}, &ValidationError{
			Type:    ErrTypeTooLarge,
			Message: fmt.Sprintf("File size must be less than 100MB (got %s)", FormatFileSize(in.SizeBytes)),
		}
	}
	if !IsAllowedType(in.MIMEType) {
		return ValidInput{}, &ValidationError{
			Type:    ErrTypeUnsupportedType,
			Message: "Please select a valid video file (MP4, AVI, MOV)",
		}
	}
	if strings.TrimSpace(in.Name) == "" {
		return ValidInput{}, &ValidationError{
			Type:    ErrTypeNoInput,
			Message: "Please select a video file",
		}
	}
	return ValidInput{Input: in}, nil
}

// IsAllowedType reports whether a MIME type is on the upload allow-list.
// Comparison ignores case and media type parameters.
func IsAllowedType(mimeType string) bool {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mimeType))
	}
	return AllowedVideoTypes[mt]
}
