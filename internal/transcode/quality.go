// Package transcode implements the adaptive multi-bitrate HLS transcoding
// pipeline: quality ladder selection, parallel per-quality encoding,
// thumbnail sprite generation, playlist assembly, and the job worker pool
// that orchestrates them.
package transcode

import (
	"fmt"

	"github.com/jmylchreest/hlsforge/internal/ffmpeg"
)

// QualityProfile is one row of the fixed quality table.
type QualityProfile struct {
	Name             string `json:"name"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	VideoBitrateKbps int    `json:"video_bitrate_kbps"`
	AudioBitrateKbps int    `json:"audio_bitrate_kbps"`
	MaxRateKbps      int    `json:"max_rate_kbps"`
	BufferSizeKbps   int    `json:"buffer_size_kbps"`
}

// qualityTable is static configuration, ordered best quality first. It is
// never derived from job state.
var qualityTable = []QualityProfile{
	{Name: "1440p", Width: 2560, Height: 1440, VideoBitrateKbps: 8000, AudioBitrateKbps: 192, MaxRateKbps: 8560, BufferSizeKbps: 12000},
	{Name: "1080p", Width: 1920, Height: 1080, VideoBitrateKbps: 5000, AudioBitrateKbps: 192, MaxRateKbps: 5350, BufferSizeKbps: 7500},
	{Name: "720p", Width: 1280, Height: 720, VideoBitrateKbps: 2800, AudioBitrateKbps: 128, MaxRateKbps: 2996, BufferSizeKbps: 4200},
	{Name: "480p", Width: 854, Height: 480, VideoBitrateKbps: 1400, AudioBitrateKbps: 96, MaxRateKbps: 1498, BufferSizeKbps: 2100},
}

// QualityTable returns a copy of the full quality table.
func QualityTable() []QualityProfile {
	out := make([]QualityProfile, len(qualityTable))
	copy(out, qualityTable)
	return out
}

// SelectLadder filters the quality table to profiles that fit within the
// source resolution. The result is never empty: when the source is smaller
// than every table entry the ladder is forced to the single
// lowest-resolution profile, so the pipeline always attempts at least one
// quality. This stage cannot fail.
func SelectLadder(meta ffmpeg.MediaMetadata) []QualityProfile {
	var ladder []QualityProfile
	for _, q := range qualityTable {
		if q.Width <= meta.Width && q.Height <= meta.Height {
			ladder = append(ladder, q)
		}
	}

	if len(ladder) == 0 {
		ladder = []QualityProfile{qualityTable[len(qualityTable)-1]}
	}

	return ladder
}

// Bandwidth returns the declared HLS bandwidth in bits per second.
func (q QualityProfile) Bandwidth() int {
	return q.VideoBitrateKbps * 1000
}

// Resolution returns the WxH string used in playlist attributes.
func (q QualityProfile) Resolution() string {
	return fmt.Sprintf("%dx%d", q.Width, q.Height)
}

// Level returns the H.264 level for this profile's resolution. Resolutions
// beyond 1080 lines need a higher level for compliant decoder negotiation.
func (q QualityProfile) Level() string {
	if q.Height > 1080 {
		return "5.1"
	}
	return "4.1"
}
