// Package media normalizes uploaded audio for recognition: conversion to a
// fixed 16 kHz mono Vorbis format via ffmpeg, and a best-effort duration
// probe via ffprobe.
package media

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "github.com/skillsenselab/memovox/errors"
	"github.com/skillsenselab/memovox/process"
)

// Converter shells out to ffmpeg/ffprobe.
type Converter struct {
	// FFmpegBinary overrides the ffmpeg executable. Defaults to "ffmpeg".
	FFmpegBinary string
	// FFprobeBinary overrides the ffprobe executable. Defaults to "ffprobe".
	FFprobeBinary string
}

// ToRecognitionFormat converts the source audio to 16 kHz mono OGG/Vorbis,
// the input format the recognizer expects. The converted file is written next
// to the source with a ".16kHz.ogg" extension and its path is returned.
func (c *Converter) ToRecognitionFormat(ctx context.Context, audioPath string) (string, error) {
	outputPath := ChangeExtension(audioPath, ".16kHz.ogg")

	result, err := process.Run(ctx, process.Command{
		Binary: c.ffmpeg(),
		Args: []string{
			"-y",
			"-i", audioPath,
			"-ar", "16000",
			"-ac", "1",
			"-c:a", "libvorbis",
			outputPath,
		},
	})
	if err != nil {
		detail := err.Error()
		if result != nil && len(result.Stderr) > 0 {
			detail = lastLine(string(result.Stderr))
		}
		return "", apperrors.ConversionFailed(fmt.Errorf("%s", detail)).WithDetail("path", audioPath)
	}

	return outputPath, nil
}

// ProbeDuration returns the audio duration in seconds, or 0 when ffprobe
// fails or reports something unparseable. Callers treat 0 as "unknown".
func (c *Converter) ProbeDuration(ctx context.Context, audioPath string) float64 {
	result, err := process.Run(ctx, process.Command{
		Binary: c.ffprobe(),
		Args: []string{
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			audioPath,
		},
	})
	if err != nil {
		return 0
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(result.Stdout)), 64)
	if err != nil || duration < 0 {
		return 0
	}
	return duration
}

func (c *Converter) ffmpeg() string {
	if c.FFmpegBinary != "" {
		return c.FFmpegBinary
	}
	return "ffmpeg"
}

func (c *Converter) ffprobe() string {
	if c.FFprobeBinary != "" {
		return c.FFprobeBinary
	}
	return "ffprobe"
}

// ChangeExtension swaps the file extension, keeping directory and base name.
func ChangeExtension(path, newExt string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + newExt
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
