package transcode

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatVTTTimestamp(t *testing.T) {
	tests := []struct {
		seconds  float64
		expected string
	}{
		{0, "00:00:00.000"},
		{2, "00:00:02.000"},
		{59.5, "00:00:59.500"},
		{61, "00:01:01.000"},
		{3600, "01:00:00.000"},
		{3725.25, "01:02:05.250"},
		{-1, "00:00:00.000"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatVTTTimestamp(tt.seconds))
	}
}

func TestWriteSpriteVTT(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thumbnails.vtt")
	plan := SpritePlan{Index: 0, FirstThumb: 0, Count: 12, Cols: 4, Rows: 3}

	require.NoError(t, writeSpriteVTT(path, "sprite.jpg", plan, 2, 24, 160, 90))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	lines := strings.Split(strings.TrimSpace(content), "\n")

	assert.Equal(t, "WEBVTT", lines[0])
	assert.Contains(t, content, "00:00:00.000 --> 00:00:02.000")
	assert.Contains(t, content, "sprite.jpg#xywh=0,0,160,90")

	// Fifth thumbnail starts the second row of the 4-column grid.
	assert.Contains(t, content, "00:00:08.000 --> 00:00:10.000")
	assert.Contains(t, content, "sprite.jpg#xywh=0,90,160,90")

	// 12 cues, 3 lines each plus the header.
	cueCount := strings.Count(content, "-->")
	assert.Equal(t, 12, cueCount)
}

func TestWriteSpriteVTTGlobalOffsets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thumbnails_1.vtt")
	plan := SpritePlan{Index: 1, FirstThumb: 100, Count: 100, Cols: 10, Rows: 10}

	require.NoError(t, writeSpriteVTT(path, "sprite_1.jpg", plan, 2, 600, 160, 90))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	// First cue of the second sprite starts at thumbnail 100, i.e. 200s in,
	// but points at tile (0,0) of its own sprite image.
	assert.Contains(t, content, "00:03:20.000 --> 00:03:22.000")
	assert.Contains(t, content, "sprite_1.jpg#xywh=0,0,160,90")
}

func TestWriteSpriteVTTClampsFinalCue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thumbnails.vtt")
	plan := SpritePlan{Index: 0, FirstThumb: 0, Count: 3, Cols: 2, Rows: 2}

	// Duration 5s with a 2s interval: last cue ends at 5, not 6.
	require.NoError(t, writeSpriteVTT(path, "sprite.jpg", plan, 2, 5, 160, 90))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "00:00:04.000 --> 00:00:05.000")
}
