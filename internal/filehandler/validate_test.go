package filehandler

import (
	"errors"
	"testing"
)

func validationType(t *testing.T, err error) ValidationErrorType {
	t.Helper()
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %T (%v)", err, err)
	}
	return vErr.Type
}

func TestValidateAcceptsAllowedTypes(t *testing.T) {
	for mt := range AllowedVideoTypes {
		t.Run(mt, func(t *testing.T) {
			v, err := Validate(Input{Name: "clip", SizeBytes: 1024, MIMEType: mt})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Name != "clip" || v.MIMEType != mt {
				t.Errorf("unexpected valid input: %+v", v)
			}
		})
	}
}

func TestValidateSizeBoundary(t *testing.T) {
	if _, err := Validate(Input{Name: "a.mp4", SizeBytes: MaxUploadSize, MIMEType: "video/mp4"}); err != nil {
		t.Errorf("exactly 100 MiB should be accepted, got %v", err)
	}
	_, err := Validate(Input{Name: "a.mp4", SizeBytes: MaxUploadSize + 1, MIMEType: "video/mp4"})
	if got := validationType(t, err); got != ErrTypeTooLarge {
		t.Errorf("expected TooLarge, got %v", got)
	}
}

func TestValidateTooLargeRegardlessOfType(t *testing.T) {
	for _, mt := range []string{"video/mp4", "image/png", "", "application/pdf"} {
		_, err := Validate(Input{Name: "big", SizeBytes: 200 * 1024 * 1024, MIMEType: mt})
		if got := validationType(t, err); got != ErrTypeTooLarge {
			t.Errorf("mime %q: expected TooLarge, got %v", mt, got)
		}
	}
}

func TestValidateUnsupportedType(t *testing.T) {
	for _, mt := range []string{"video/webm", "video/x-matroska", "image/jpeg", "text/plain", "", "video"} {
		_, err := Validate(Input{Name: "clip", SizeBytes: 10, MIMEType: mt})
		if got := validationType(t, err); got != ErrTypeUnsupportedType {
			t.Errorf("mime %q: expected UnsupportedType, got %v", mt, got)
		}
	}
}

func TestValidateNormalizesMIME(t *testing.T) {
	for _, mt := range []string{"VIDEO/MP4", "video/mp4; codecs=avc1", " video/quicktime "} {
		if _, err := Validate(Input{Name: "clip", SizeBytes: 10, MIMEType: mt}); err != nil {
			t.Errorf("mime %q should be accepted, got %v", mt, err)
		}
	}
}

func TestValidateNoInput(t *testing.T) {
	_, err := Validate(Input{Name: "  ", SizeBytes: 10, MIMEType: "video/mp4"})
	if got := validationType(t, err); got != ErrTypeNoInput {
		t.Errorf("expected NoInput, got %v", got)
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 Bytes"},
		{512, "512 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{100 * 1024 * 1024, "100 MB"},
		{1288490189, "1.2 GB"},
	}
	for _, tt := range tests {
		if got := FormatFileSize(tt.in); got != tt.want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
