package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jmylchreest/hlsforge/internal/ffmpeg"
	"github.com/jmylchreest/hlsforge/internal/observability"
)

// stderrTailLimit bounds how much encoder stderr is kept for error detail.
const stderrTailLimit = 4 * 1024

// tailWriter retains the last stderrTailLimit bytes written to it.
type tailWriter struct {
	mu  sync.Mutex
	buf []byte
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	if len(w.buf) > stderrTailLimit {
		w.buf = w.buf[len(w.buf)-stderrTailLimit:]
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.TrimSpace(string(w.buf))
}

// Transcoder runs one ffmpeg subprocess per quality in parallel and waits
// for every one to settle. The job fails only when no quality succeeds.
type Transcoder struct {
	ffmpegPath     string
	encoder        ffmpeg.EncoderProfile
	segmentSeconds int
	logger         *slog.Logger
}

// NewTranscoder creates a transcoder using the detected encoder profile.
func NewTranscoder(ffmpegPath string, encoder ffmpeg.EncoderProfile, segmentSeconds int, logger *slog.Logger) *Transcoder {
	if segmentSeconds <= 0 {
		segmentSeconds = 4
	}
	return &Transcoder{
		ffmpegPath:     ffmpegPath,
		encoder:        encoder,
		segmentSeconds: segmentSeconds,
		logger:         observability.WithComponent(logger, "transcoder"),
	}
}

// videoFilter builds the scale filter chain for a quality. Hardware upload
// happens after the software scale so VAAPI sees frames in the format it
// expects.
func (t *Transcoder) videoFilter(q QualityProfile) string {
	filter := fmt.Sprintf("scale=%d:%d", q.Width, q.Height)
	if t.encoder.Kind == ffmpeg.EncoderVAAPI {
		filter += ",format=nv12,hwupload"
	}
	return filter
}

// buildCommand assembles the full encode invocation for one quality.
// Keyframes are forced on segment boundaries so every variant cuts
// segments at identical timestamps.
func (t *Transcoder) buildCommand(q QualityProfile, sourcePath, outputDir string) *ffmpeg.CommandBuilder {
	playlist := filepath.Join(outputDir, q.Name+".m3u8")
	segments := filepath.Join(outputDir, q.Name+"_%03d.ts")

	b := ffmpeg.NewCommandBuilder(t.ffmpegPath).
		HideBanner().
		Overwrite().
		GlobalArgs("-nostats", "-progress", "pipe:1").
		GlobalArgs(t.encoder.GlobalArgs...).
		Input(sourcePath).
		OutputArgs("-c:v", t.encoder.Codec)
	if t.encoder.Preset != "" {
		b.OutputArgs("-preset", t.encoder.Preset)
	}
	b.OutputArgs(t.encoder.ExtraArgs...).
		OutputArgs(
			"-b:v", fmt.Sprintf("%dk", q.VideoBitrateKbps),
			"-maxrate", fmt.Sprintf("%dk", q.MaxRateKbps),
			"-bufsize", fmt.Sprintf("%dk", q.BufferSizeKbps),
			"-level", q.Level(),
			"-vf", t.videoFilter(q),
			"-c:a", "aac",
			"-b:a", fmt.Sprintf("%dk", q.AudioBitrateKbps),
			"-ac", "2",
			"-force_key_frames", fmt.Sprintf("expr:gte(t,n_forced*%d)", t.segmentSeconds),
			"-sc_threshold", "0",
			"-f", "hls",
			"-hls_time", fmt.Sprintf("%d", t.segmentSeconds),
			"-hls_playlist_type", "vod",
			"-hls_segment_filename", segments,
		).
		Output(playlist)
	return b
}

// encodeOne runs a single quality to completion, streaming progress from
// the subprocess. The command is registered with the job's arena for its
// whole lifetime so a timeout can kill it.
func (t *Transcoder) encodeOne(ctx context.Context, job *Job, task *EncodeTask, durationSeconds float64, onProgress func()) error {
	q := task.Profile
	cmd := t.buildCommand(q, job.SourcePath, job.OutputDir).Build(ctx)

	stderr := &tailWriter{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &EncodeError{Quality: q.Name, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return &EncodeError{Quality: q.Name, Err: err}
	}
	job.Arena.Register(cmd, q.Name)
	defer job.Arena.Deregister(cmd)

	scanErr := ffmpeg.ScanProgress(stdout, func(processedSeconds float64) {
		task.SetPercent(ffmpeg.PercentOf(processedSeconds, durationSeconds))
		onProgress()
	})

	waitErr := cmd.Wait()
	if waitErr != nil {
		return &EncodeError{Quality: q.Name, Err: waitErr, Detail: stderr.String()}
	}
	if scanErr != nil {
		t.logger.Warn("progress stream ended early", "quality", q.Name, "error", scanErr)
	}
	return nil
}

// Run encodes every quality in the ladder concurrently and waits for all
// of them to settle. Failed qualities are logged and excluded from the
// returned set. An error is returned only when every quality failed.
func (t *Transcoder) Run(ctx context.Context, job *Job, tasks []*EncodeTask, durationSeconds float64, onProgress func()) ([]QualityProfile, error) {
	log := observability.WithJobID(t.logger, job.ID)
	log.Info("starting parallel encode",
		"qualities", len(tasks),
		"encoder", t.encoder.Codec,
	)

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task *EncodeTask) {
			defer wg.Done()
			err := t.encodeOne(ctx, job, task, durationSeconds, onProgress)
			task.finish(err)
			if err != nil {
				log.Error("quality encode failed", "quality", task.Profile.Name, "error", err)
			} else {
				log.Info("quality encode complete", "quality", task.Profile.Name)
			}
		}(task)
	}
	wg.Wait()

	var succeeded []QualityProfile
	var failures []error
	for _, task := range tasks {
		outcome, err := task.Outcome()
		if outcome == OutcomeSucceeded {
			succeeded = append(succeeded, task.Profile)
		} else if err != nil {
			failures = append(failures, err)
		}
	}

	if len(succeeded) == 0 {
		if ctx.Err() != nil {
			failures = append(failures, ctx.Err())
		}
		return nil, errors.Join(ErrAllQualitiesFailed, errors.Join(failures...))
	}
	return succeeded, nil
}
