package filehandler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestIsVideo(t *testing.T) {
	tests := []struct {
		ext      string
		expected bool
	}{
		{".mp4", true},
		{".MP4", true},
		{".mov", true},
		{".MOV", true},
		{".avi", true},
		{".webm", true},
		{".mkv", true},
		{".jpg", false},
		{".txt", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := IsVideo(tt.ext); got != tt.expected {
				t.Errorf("IsVideo(%q) = %v, want %v", tt.ext, got, tt.expected)
			}
		})
	}
}

func TestLoadInputFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layup.MOV")
	if err := os.WriteFile(path, make([]byte, 2048), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	in, err := LoadInputFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Name != "layup.MOV" {
		t.Errorf("expected name layup.MOV, got %s", in.Name)
	}
	if in.SizeBytes != 2048 {
		t.Errorf("expected size 2048, got %d", in.SizeBytes)
	}
	if in.MIMEType != "video/quicktime" {
		t.Errorf("expected video/quicktime, got %s", in.MIMEType)
	}
}

func TestLoadInputFileUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("hi"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	in, err := LoadInputFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.MIMEType != "application/octet-stream" {
		t.Errorf("expected octet-stream, got %s", in.MIMEType)
	}
}

func TestLoadInputFileErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadInputFile(filepath.Join(dir, "missing.mp4")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadInputFile(dir); err == nil {
		t.Error("expected error for directory")
	}
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "drill.mp4")
	if err := os.WriteFile(good, []byte("data"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	v, err := ValidateFile(good)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Path != good {
		t.Errorf("expected path %s, got %s", good, v.Path)
	}
	f, err := v.Open()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	f.Close()

	mkv := filepath.Join(dir, "game.mkv")
	if err := os.WriteFile(mkv, []byte("data"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err = ValidateFile(mkv)
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Type != ErrTypeUnsupportedType {
		t.Errorf("expected UnsupportedType for mkv, got %v", err)
	}
}

func TestOpenWithoutPath(t *testing.T) {
	v := ValidInput{Input: Input{Name: "x.mp4"}}
	if _, err := v.Open(); err == nil {
		t.Error("expected error opening input without path")
	}
}
