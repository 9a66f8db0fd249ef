package transcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hlsforge/internal/ffmpeg"
)

func TestSelectLadder(t *testing.T) {
	tests := []struct {
		name     string
		width    int
		height   int
		expected []string
	}{
		{"1080p source", 1920, 1080, []string{"1080p", "720p", "480p"}},
		{"1440p source", 2560, 1440, []string{"1440p", "1080p", "720p", "480p"}},
		{"720p source", 1280, 720, []string{"720p", "480p"}},
		{"exactly 480p", 854, 480, []string{"480p"}},
		{"4k source", 3840, 2160, []string{"1440p", "1080p", "720p", "480p"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ladder := SelectLadder(ffmpeg.MediaMetadata{Width: tt.width, Height: tt.height})
			names := make([]string, len(ladder))
			for i, q := range ladder {
				names[i] = q.Name
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestSelectLadderTinySourceForcesSmallest(t *testing.T) {
	ladder := SelectLadder(ffmpeg.MediaMetadata{Width: 640, Height: 360})
	require.Len(t, ladder, 1)
	assert.Equal(t, "480p", ladder[0].Name)
}

func TestSelectLadderNeverEmpty(t *testing.T) {
	ladder := SelectLadder(ffmpeg.MediaMetadata{})
	assert.NotEmpty(t, ladder)
}

func TestQualityProfileHelpers(t *testing.T) {
	q := QualityProfile{Name: "1080p", Width: 1920, Height: 1080, VideoBitrateKbps: 5000}
	assert.Equal(t, 5000000, q.Bandwidth())
	assert.Equal(t, "1920x1080", q.Resolution())
	assert.Equal(t, "4.1", q.Level())

	hi := QualityProfile{Name: "1440p", Width: 2560, Height: 1440, VideoBitrateKbps: 8000}
	assert.Equal(t, "5.1", hi.Level())
}

func TestQualityTableReturnsCopy(t *testing.T) {
	a := QualityTable()
	a[0].Name = "mutated"
	b := QualityTable()
	assert.Equal(t, "1440p", b[0].Name)
}
