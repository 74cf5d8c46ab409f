// Package artifact saves and packages the output of a completed analysis
// session: the rendered video downloaded from the service, a zstd
// compressed result bundle, and an optional copy of that bundle in S3.
package artifact

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fpang/hoopcoach/internal/cli"
	"github.com/fpang/hoopcoach/internal/coachapi"
	"github.com/klauspost/compress/zstd"
)

// ZipMethodZstd is the zip compression method id for zstd (APPNOTE 6.3.7).
const ZipMethodZstd uint16 = 93

const (
	InsightsEntry   = "insights.json"
	CommentaryEntry = "commentary.txt"
)

// Manifest is the insights.json entry of a bundle.
type Manifest struct {
	SessionID  string              `json:"sessionId"`
	FileName   string              `json:"fileName,omitempty"`
	VideoEntry string              `json:"videoEntry,omitempty"`
	VideoInfo  *coachapi.VideoInfo `json:"videoInfo,omitempty"`
	Insights   []coachapi.Insight  `json:"insights"`
	CreatedAt  time.Time           `json:"createdAt"`
}

// Bundle describes the contents of one result bundle. Video may be nil,
// in which case only the insight entries are written.
type Bundle struct {
	Manifest  Manifest
	Video     io.Reader
	VideoName string
	ModTime   time.Time
}

// BundleName is the default file name of the bundle for a session.
func BundleName(sessionID string) string {
	return "hoopcoach_" + sessionID + ".zip"
}

// WriteBundle writes b as a zip archive to w. JSON and text entries are
// compressed with zstd; the video is stored as-is since it is already
// compressed.
func WriteBundle(w io.Writer, b Bundle) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(ZipMethodZstd, func(out io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(12)))
	})

	modTime := b.ModTime
	if modTime.IsZero() {
		modTime = time.Now()
	}

	m := b.Manifest
	if m.Insights == nil {
		m.Insights = []coachapi.Insight{}
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = modTime.UTC()
	}

	if b.Video != nil {
		name := b.VideoName
		if name == "" {
			name = coachapi.DefaultArtifactName(m.SessionID)
		}
		name = filepath.Base(name)
		m.VideoEntry = name
		if err := addEntry(zw, name, zip.Store, modTime, b.Video); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := addEntry(zw, InsightsEntry, ZipMethodZstd, modTime, strings.NewReader(string(data))); err != nil {
		return err
	}
	if err := addEntry(zw, CommentaryEntry, ZipMethodZstd, modTime, strings.NewReader(Commentary(m.Insights))); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize bundle: %w", err)
	}
	return nil
}

// CreateBundle writes b to path and returns the bundle size in bytes.
// A partially written file is removed on failure.
func CreateBundle(path string, b Bundle) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create bundle directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create bundle: %w", err)
	}
	if err := WriteBundle(f, b); err != nil {
		f.Close()
		os.Remove(path)
		return 0, err
	}
	info, err := f.Stat()
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("failed to finalize bundle: %w", err)
	}
	return info.Size(), nil
}

// Commentary renders insights as one "[M:SS] action - feedback" line each.
func Commentary(insights []coachapi.Insight) string {
	var sb strings.Builder
	for _, in := range insights {
		fmt.Fprintf(&sb, "[%s] %s - %s\n", cli.FormatTimestamp(in.TimestampSeconds), in.Action, in.Feedback)
	}
	return sb.String()
}

func addEntry(zw *zip.Writer, name string, method uint16, modTime time.Time, r io.Reader) error {
	header := &zip.FileHeader{
		Name:   name,
		Method: method,
	}
	header.Modified = modTime
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create zip entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("failed to write zip entry %s: %w", name, err)
	}
	return nil
}
