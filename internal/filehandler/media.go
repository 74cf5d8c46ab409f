// Package filehandler selects and validates the video a user submits for
// analysis. Validation is pure; LoadInputFile and PickVideoFile are the
// only functions that touch the filesystem or the desktop.
package filehandler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// SupportedVideoExtensions maps video file extensions to MIME types.
// Not every entry is on the upload allow-list; Validate decides that.
var SupportedVideoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

// GetMIMEType returns the MIME type for a given file extension.
func GetMIMEType(ext string) (string, error) {
	if mimeType, ok := SupportedVideoExtensions[strings.ToLower(ext)]; ok {
		return mimeType, nil
	}
	return "", fmt.Errorf("unsupported file extension: %s", ext)
}

// IsVideo returns true if the file extension corresponds to a video.
func IsVideo(ext string) bool {
	_, ok := SupportedVideoExtensions[strings.ToLower(ext)]
	return ok
}

// LoadInputFile stats a local file and describes it as an Input. The MIME
// type is derived from the extension; unknown extensions get
// application/octet-stream so Validate reports them as unsupported.
func LoadInputFile(filePath string) (Input, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return Input{}, fmt.Errorf("file not found: %s", filePath)
		}
		return Input{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return Input{}, fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	mimeType, err := GetMIMEType(filepath.Ext(filePath))
	if err != nil {
		mimeType = "application/octet-stream"
	}

	in := Input{
		Name:      filepath.Base(filePath),
		SizeBytes: info.Size(),
		MIMEType:  mimeType,
	}
	log.Debug().
		Str("path", filePath).
		Str("mime_type", in.MIMEType).
		Int64("size_bytes", in.SizeBytes).
		Msg("Input file loaded")
	return in, nil
}

// ValidateFile loads and validates a local file in one step.
func ValidateFile(filePath string) (ValidInput, error) {
	in, err := LoadInputFile(filePath)
	if err != nil {
		return ValidInput{}, err
	}
	valid, err := Validate(in)
	if err != nil {
		return ValidInput{}, err
	}
	valid.Path = filePath
	return valid, nil
}

// Open opens the file behind a ValidInput for streaming.
func (v ValidInput) Open() (*os.File, error) {
	if v.Path == "" {
		return nil, fmt.Errorf("input %q has no local path", v.Name)
	}
	return os.Open(v.Path)
}
