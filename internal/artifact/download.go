package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fpang/hoopcoach/internal/coachapi"
	"github.com/rs/zerolog/log"
)

// Downloader streams the analyzed video of a session.
type Downloader interface {
	Download(ctx context.Context, id string, w io.Writer) (string, int64, error)
}

// SaveDownload downloads the analyzed video of sessionID. When outPath is
// empty the file is written to dir under the name the server suggests.
// The body is written to a temporary file first and renamed into place, so
// an interrupted download never leaves a truncated video behind.
func SaveDownload(ctx context.Context, d Downloader, sessionID, dir, outPath string) (string, int64, error) {
	if dir == "" {
		dir = "."
	}
	if outPath != "" {
		dir = filepath.Dir(outPath)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".hoopcoach-download-*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	name, n, err := d.Download(ctx, sessionID, tmp)
	if cerr := tmp.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to close download: %w", cerr)
	}
	if err != nil {
		os.Remove(tmpPath)
		return "", 0, err
	}

	dest := outPath
	if dest == "" {
		dest = filepath.Join(dir, SafeName(name, coachapi.DefaultArtifactName(sessionID)))
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("failed to move download into place: %w", err)
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("path", dest).
		Int64("bytes", n).
		Msg("Analyzed video saved")
	return dest, n, nil
}

// SafeName reduces a server-supplied file name to its base name, falling
// back when nothing usable remains.
func SafeName(name, fallback string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == "/" || name == ".." {
		return fallback
	}
	return name
}
