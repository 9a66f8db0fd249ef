package transcode

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hlsforge/internal/models"
	"github.com/jmylchreest/hlsforge/internal/observability"
)

func TestComputeInterval(t *testing.T) {
	tests := []struct {
		name       string
		duration   float64
		configured int
		expected   int
	}{
		{"ten minute video", 600, 0, 2},
		{"short clip clamps low", 60, 0, 1},
		{"two hour movie clamps high", 7200, 0, 10},
		{"forty minute episode", 2400, 0, 8},
		{"configured override wins", 600, 5, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ComputeInterval(tt.duration, tt.configured))
		})
	}
}

func TestGridFor(t *testing.T) {
	tests := []struct {
		count int
		cols  int
		rows  int
	}{
		{100, 10, 10},
		{64, 8, 8},
		{80, 8, 10},
		{50, 8, 7},
		{9, 3, 3},
		{10, 4, 3},
		{1, 1, 1},
	}

	for _, tt := range tests {
		cols, rows := GridFor(tt.count)
		assert.Equal(t, tt.cols, cols, "cols for %d", tt.count)
		assert.Equal(t, tt.rows, rows, "rows for %d", tt.count)
		assert.GreaterOrEqual(t, cols*rows, tt.count)
	}
}

// A ten minute video at the adaptive interval produces 300 thumbnails
// split across three full 10x10 sprites.
func TestPlanSpritesTenMinuteVideo(t *testing.T) {
	interval := ComputeInterval(600, 0)
	require.Equal(t, 2, interval)

	plans := PlanSprites(600/interval, 100)
	require.Len(t, plans, 3)
	for i, plan := range plans {
		assert.Equal(t, i, plan.Index)
		assert.Equal(t, i*100, plan.FirstThumb)
		assert.Equal(t, 100, plan.Count)
		assert.Equal(t, 10, plan.Cols)
		assert.Equal(t, 10, plan.Rows)
	}
}

func TestPlanSpritesPartialTrailingSprite(t *testing.T) {
	plans := PlanSprites(250, 100)
	require.Len(t, plans, 3)
	assert.Equal(t, 100, plans[0].Count)
	assert.Equal(t, 100, plans[1].Count)
	assert.Equal(t, 50, plans[2].Count)
	assert.Equal(t, 200, plans[2].FirstThumb)
	assert.Equal(t, 8, plans[2].Cols)
}

func TestPlanSpritesEmpty(t *testing.T) {
	assert.Nil(t, PlanSprites(0, 100))
}

func TestSpriteFileNaming(t *testing.T) {
	assert.Equal(t, "sprite.jpg", spriteFileName(0, 1))
	assert.Equal(t, "thumbnails.vtt", vttFileName(0, 1))

	assert.Equal(t, "sprite_0.jpg", spriteFileName(0, 3))
	assert.Equal(t, "sprite_2.jpg", spriteFileName(2, 3))
	assert.Equal(t, "thumbnails_1.vtt", vttFileName(1, 3))
}

func spriteTestJob(t *testing.T) *Job {
	t.Helper()
	return NewJob(models.NewULID(), filepath.Join(t.TempDir(), "src.mp4"), t.TempDir(), "user-1")
}

func TestGenerateWritesSpritesAndCues(t *testing.T) {
	// The stub creates its output file so every sprite succeeds.
	stub := writeStub(t, t.TempDir(), "ffmpeg", `#!/bin/sh
out=""
for arg in "$@"; do out="$arg"; done
: > "$out"
`)

	opts := SpriteOptions{IntervalSeconds: 10, PerSprite: 25, TileWidth: 160, TileHeight: 90}
	gen := NewSpriteGenerator(stub, opts, observability.NewLogger(testLoggingConfig()))
	job := spriteTestJob(t)

	var calls []int
	count, err := gen.Generate(context.Background(), job, 1000, func(done, total int) {
		assert.Equal(t, 4, total)
		calls = append(calls, done)
	})
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Len(t, calls, 4)

	dir := filepath.Join(job.OutputDir, "thumbnails")
	for i := 0; i < 4; i++ {
		assert.FileExists(t, filepath.Join(dir, spriteFileName(i, 4)))
		assert.FileExists(t, filepath.Join(dir, vttFileName(i, 4)))
	}
}

// A failed sprite must not take down the cue files of sprites that
// already rendered.
func TestGeneratePartialFailureKeepsCompletedCues(t *testing.T) {
	stub := writeStub(t, t.TempDir(), "ffmpeg", `#!/bin/sh
out=""
for arg in "$@"; do out="$arg"; done
case "$out" in
	*sprite_1.jpg) exit 1 ;;
esac
: > "$out"
`)

	opts := SpriteOptions{IntervalSeconds: 10, PerSprite: 25, TileWidth: 160, TileHeight: 90}
	gen := NewSpriteGenerator(stub, opts, observability.NewLogger(testLoggingConfig()))
	job := spriteTestJob(t)

	count, err := gen.Generate(context.Background(), job, 1000, nil)
	require.Error(t, err)
	assert.Equal(t, 3, count)

	dir := filepath.Join(job.OutputDir, "thumbnails")
	for _, i := range []int{0, 2, 3} {
		assert.FileExists(t, filepath.Join(dir, spriteFileName(i, 4)))
		assert.FileExists(t, filepath.Join(dir, vttFileName(i, 4)))
	}
	assert.NoFileExists(t, filepath.Join(dir, spriteFileName(1, 4)))
	assert.NoFileExists(t, filepath.Join(dir, vttFileName(1, 4)))
}
