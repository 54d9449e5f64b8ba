package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/skillsenselab/memovox/errors"
)

func TestChangeExtension(t *testing.T) {
	tests := []struct {
		path string
		ext  string
		want string
	}{
		{"uploads/memo.webm", ".16kHz.ogg", "uploads/memo.16kHz.ogg"},
		{"memo", ".ogg", "memo.ogg"},
		{"a/b.c/memo.wav", ".ogg", "a/b.c/memo.ogg"},
	}
	for _, tt := range tests {
		if got := ChangeExtension(tt.path, tt.ext); got != tt.want {
			t.Errorf("ChangeExtension(%q, %q) = %q, want %q", tt.path, tt.ext, got, tt.want)
		}
	}
}

// fake ffmpeg: a shell script that writes its last argument.
func writeFakeBinary(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestToRecognitionFormat(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := writeFakeBinary(t, dir, "ffmpeg", `for last; do :; done; touch "$last"`)

	c := &Converter{FFmpegBinary: ffmpeg}
	out, err := c.ToRecognitionFormat(context.Background(), filepath.Join(dir, "memo.webm"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(dir, "memo.16kHz.ogg"); out != want {
		t.Errorf("output path = %q, want %q", out, want)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("converted file missing: %v", err)
	}
}

func TestToRecognitionFormat_Failure(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := writeFakeBinary(t, dir, "ffmpeg", `echo "memo.webm: Invalid data found" >&2; exit 1`)

	c := &Converter{FFmpegBinary: ffmpeg}
	_, err := c.ToRecognitionFormat(context.Background(), filepath.Join(dir, "memo.webm"))
	if err == nil {
		t.Fatal("expected error")
	}
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != apperrors.ErrCodeConversionFailed {
		t.Errorf("code = %s", appErr.Code)
	}
}

func TestProbeDuration(t *testing.T) {
	dir := t.TempDir()
	ffprobe := writeFakeBinary(t, dir, "ffprobe", `echo "42.5"`)

	c := &Converter{FFprobeBinary: ffprobe}
	if got := c.ProbeDuration(context.Background(), "memo.ogg"); got != 42.5 {
		t.Errorf("duration = %v, want 42.5", got)
	}
}

func TestProbeDuration_Unparseable(t *testing.T) {
	dir := t.TempDir()
	ffprobe := writeFakeBinary(t, dir, "ffprobe", `echo "N/A"`)

	c := &Converter{FFprobeBinary: ffprobe}
	if got := c.ProbeDuration(context.Background(), "memo.ogg"); got != 0 {
		t.Errorf("duration = %v, want 0", got)
	}
}
