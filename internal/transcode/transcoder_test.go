package transcode

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hlsforge/internal/ffmpeg"
	"github.com/jmylchreest/hlsforge/internal/models"
	"github.com/jmylchreest/hlsforge/internal/observability"
)

func TestBuildCommandSoftware(t *testing.T) {
	tr := NewTranscoder("/usr/bin/ffmpeg", ffmpeg.SoftwareProfile(), 4, observability.NewLogger(testLoggingConfig()))
	q := QualityProfile{Name: "720p", Width: 1280, Height: 720, VideoBitrateKbps: 2800, AudioBitrateKbps: 128, MaxRateKbps: 2996, BufferSizeKbps: 4200}

	args := tr.buildCommand(q, "/in/src.mp4", "/out/ep1").Args()
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-progress pipe:1")
	assert.Contains(t, joined, "-i /in/src.mp4")
	assert.Contains(t, joined, "-c:v libx264")
	assert.Contains(t, joined, "-preset fast")
	assert.Contains(t, joined, "-b:v 2800k")
	assert.Contains(t, joined, "-maxrate 2996k")
	assert.Contains(t, joined, "-bufsize 4200k")
	assert.Contains(t, joined, "-level 4.1")
	assert.Contains(t, joined, "-vf scale=1280:720")
	assert.NotContains(t, joined, "hwupload")
	assert.Contains(t, joined, "-c:a aac")
	assert.Contains(t, joined, "-force_key_frames expr:gte(t,n_forced*4)")
	assert.Contains(t, joined, "-sc_threshold 0")
	assert.Contains(t, joined, "-f hls")
	assert.Contains(t, joined, "-hls_time 4")
	assert.Contains(t, joined, "-hls_playlist_type vod")
	assert.Contains(t, joined, "-hls_segment_filename /out/ep1/720p_%03d.ts")
	assert.Equal(t, "/out/ep1/720p.m3u8", args[len(args)-1])
}

func TestBuildCommandVAAPIUploadsAfterScale(t *testing.T) {
	profile := ffmpeg.EncoderProfile{
		Kind:       ffmpeg.EncoderVAAPI,
		Codec:      "h264_vaapi",
		GlobalArgs: []string{"-vaapi_device", "/dev/dri/renderD128"},
	}
	tr := NewTranscoder("/usr/bin/ffmpeg", profile, 4, observability.NewLogger(testLoggingConfig()))
	q := QualityProfile{Name: "480p", Width: 854, Height: 480, VideoBitrateKbps: 1400, AudioBitrateKbps: 96, MaxRateKbps: 1498, BufferSizeKbps: 2100}

	args := tr.buildCommand(q, "/in/src.mp4", "/out/ep1").Args()
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-vaapi_device /dev/dri/renderD128 ")
	assert.Contains(t, joined, "-vf scale=854:480,format=nv12,hwupload")

	// Device selection must come before the input.
	deviceIdx := indexOf(args, "-vaapi_device")
	inputIdx := indexOf(args, "-i")
	require.NotEqual(t, -1, deviceIdx)
	require.NotEqual(t, -1, inputIdx)
	assert.Less(t, deviceIdx, inputIdx)
}

func indexOf(args []string, want string) int {
	for i, a := range args {
		if a == want {
			return i
		}
	}
	return -1
}

func TestTailWriterKeepsTail(t *testing.T) {
	w := &tailWriter{}
	_, err := w.Write([]byte(strings.Repeat("a", stderrTailLimit)))
	require.NoError(t, err)
	_, err = w.Write([]byte("the actual error"))
	require.NoError(t, err)

	out := w.String()
	assert.LessOrEqual(t, len(out), stderrTailLimit)
	assert.True(t, strings.HasSuffix(out, "the actual error"))
}

func TestRunAllQualitiesFailed(t *testing.T) {
	tr := NewTranscoder("/nonexistent/ffmpeg", ffmpeg.SoftwareProfile(), 4, observability.NewLogger(testLoggingConfig()))
	job := NewJob(models.NewULID(), "/nonexistent/src.mp4", t.TempDir(), "user-1")
	tasks := job.initTasks([]QualityProfile{
		{Name: "720p", Width: 1280, Height: 720, VideoBitrateKbps: 2800, AudioBitrateKbps: 128, MaxRateKbps: 2996, BufferSizeKbps: 4200},
		{Name: "480p", Width: 854, Height: 480, VideoBitrateKbps: 1400, AudioBitrateKbps: 96, MaxRateKbps: 1498, BufferSizeKbps: 2100},
	})

	succeeded, err := tr.Run(context.Background(), job, tasks, 600, func() {})
	assert.Nil(t, succeeded)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAllQualitiesFailed))

	var encErr *EncodeError
	assert.True(t, errors.As(err, &encErr))

	for _, task := range tasks {
		outcome, taskErr := task.Outcome()
		assert.Equal(t, OutcomeFailed, outcome)
		assert.Error(t, taskErr)
	}
}
