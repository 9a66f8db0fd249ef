// Package ffmpeg provides FFmpeg/FFprobe binary detection and wrapper
// functionality for the transcoding pipeline.
package ffmpeg

import (
	"fmt"

	"github.com/jmylchreest/hlsforge/internal/util"
)

// Binaries holds resolved paths to the media engine executables.
type Binaries struct {
	FFmpegPath  string `json:"ffmpeg_path"`
	FFprobePath string `json:"ffprobe_path"`
}

// FindBinaries resolves ffmpeg and ffprobe paths.
//
// Explicit paths take precedence; empty values fall back to the
// HLSFORGE_FFMPEG_BINARY / HLSFORGE_FFPROBE_BINARY environment variables,
// then ./ffmpeg, then PATH. Both binaries are required: ffprobe drives the
// prober and ffmpeg everything else.
func FindBinaries(ffmpegPath, ffprobePath string) (Binaries, error) {
	var b Binaries

	if ffmpegPath != "" {
		b.FFmpegPath = ffmpegPath
	} else {
		p, err := util.FindBinary("ffmpeg", "HLSFORGE_FFMPEG_BINARY")
		if err != nil {
			return Binaries{}, fmt.Errorf("ffmpeg not found: %w", err)
		}
		b.FFmpegPath = p
	}

	if ffprobePath != "" {
		b.FFprobePath = ffprobePath
	} else {
		p, err := util.FindBinary("ffprobe", "HLSFORGE_FFPROBE_BINARY")
		if err != nil {
			return Binaries{}, fmt.Errorf("ffprobe not found: %w", err)
		}
		b.FFprobePath = p
	}

	return b, nil
}
