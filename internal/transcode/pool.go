package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jmylchreest/hlsforge/internal/config"
	"github.com/jmylchreest/hlsforge/internal/ffmpeg"
	"github.com/jmylchreest/hlsforge/internal/models"
	"github.com/jmylchreest/hlsforge/internal/observability"
	"github.com/jmylchreest/hlsforge/internal/repository"
)

// Stage boundaries of the overall job percentage. Each stage maps into its
// own sub-range so the job-level value only ever moves forward.
const (
	percentProbeDone      = 10.0
	percentTranscodeStart = 20.0
	percentTranscodeEnd   = 75.0
	percentThumbnailsEnd  = 90.0
	percentFinalizing     = 95.0
	percentComplete       = 100.0
)

// Pool is the job orchestrator: a bounded set of workers draining a
// bounded queue, each worker driving one job through the full pipeline.
type Pool struct {
	cfg     config.TranscodeConfig
	storage config.StorageConfig
	repo    repository.EpisodeRepository

	binaries ffmpeg.Binaries
	detector *ffmpeg.Detector
	prober   *ffmpeg.Prober
	sprites  *SpriteGenerator

	sink    ProgressSink
	metrics *observability.Metrics
	logger  *slog.Logger

	queue chan *Job

	mu       sync.Mutex
	jobs     map[string]*Job
	shutdown bool

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewPool wires the pipeline together. Call Start before submitting.
func NewPool(
	cfg config.TranscodeConfig,
	storage config.StorageConfig,
	repo repository.EpisodeRepository,
	binaries ffmpeg.Binaries,
	sink ProgressSink,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Pool {
	if sink == nil {
		sink = NopSink{}
	}
	spriteOpts := SpriteOptions{
		IntervalSeconds: int(cfg.ThumbnailInterval / time.Second),
		PerSprite:       cfg.ThumbnailsPerSprite,
		TileWidth:       cfg.ThumbnailWidth,
		TileHeight:      cfg.ThumbnailHeight,
	}
	return &Pool{
		cfg:      cfg,
		storage:  storage,
		repo:     repo,
		binaries: binaries,
		detector: ffmpeg.NewDetector(binaries.FFmpegPath, logger),
		prober:   ffmpeg.NewProber(binaries.FFprobePath, 30*time.Second, cfg.MetadataCacheTTL),
		sprites:  NewSpriteGenerator(binaries.FFmpegPath, spriteOpts, logger),
		sink:     sink,
		metrics:  metrics,
		logger:   observability.WithComponent(logger, "pool"),
		queue:    make(chan *Job, cfg.QueueCapacity),
		jobs:     make(map[string]*Job),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.cfg.MaxConcurrentJobs; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Info("worker pool started",
		"workers", p.cfg.MaxConcurrentJobs,
		"queue_capacity", p.cfg.QueueCapacity,
	)
}

// Shutdown stops accepting jobs, cancels running ones, and waits for the
// workers to drain. Running subprocesses are killed through the job
// arenas by context cancellation.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return nil
	}
	p.shutdown = true
	close(p.queue)
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit enqueues a transcode job for an episode. Returns ErrQueueFull
// when the queue is at capacity and ErrShuttingDown after Shutdown.
func (p *Pool) Submit(ctx context.Context, episode *models.Episode, requestingUserID string) (*Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown {
		return nil, ErrShuttingDown
	}
	if len(p.queue) >= cap(p.queue) {
		return nil, ErrQueueFull
	}

	job := NewJob(
		episode.ID,
		episode.SourcePath,
		p.storage.OutputDir(episode.ID.String()),
		requestingUserID,
	)

	if err := p.repo.MarkProcessing(ctx, episode.ID, job.ID); err != nil {
		return nil, fmt.Errorf("marking episode processing: %w", err)
	}

	p.jobs[job.ID] = job
	p.queue <- job

	if p.metrics != nil {
		p.metrics.JobsSubmitted.Inc()
	}
	p.logger.Info("job queued", "job_id", job.ID, "episode_id", episode.ID.String())
	return job, nil
}

// Status returns a snapshot of a job by ID.
func (p *Pool) Status(jobID string) (Status, error) {
	p.mu.Lock()
	job, ok := p.jobs[jobID]
	p.mu.Unlock()
	if !ok {
		return Status{}, ErrJobNotFound
	}
	return job.Snapshot(), nil
}

// worker drains the queue until it closes or the context is cancelled.
func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.logger.With("worker", id)
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			p.runJob(ctx, job, log)
		}
	}
}

// publish emits a progress event, keeping the job-level percentage
// monotonically non-decreasing.
func (p *Pool) publish(job *Job, stage Stage, percent float64, message, quality string) {
	effective := job.SetPercent(percent)
	job.setMessage(message)
	p.sink.Publish(job.RequestingUserID, ProgressEvent{
		JobID:     job.ID,
		EpisodeID: job.EpisodeID.String(),
		Stage:     stage,
		Percent:   effective,
		Message:   message,
		Quality:   quality,
	})
}

// runJob drives one job through the pipeline state machine. The episode's
// terminal status write is the last database write for the job.
func (p *Pool) runJob(ctx context.Context, job *Job, log *slog.Logger) {
	log = observability.WithJobID(log, job.ID)
	started := time.Now()
	if p.metrics != nil {
		p.metrics.JobsActive.Inc()
		defer p.metrics.JobsActive.Dec()
	}

	jobCtx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	defer cancel()
	// Whatever path the job exits through, no subprocess survives it.
	defer job.Arena.KillAll()

	// Terminal status writes must land even when the job or pool context
	// is already cancelled.
	terminalCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), 10*time.Second)
	}

	fail := func(stage Stage, err error) {
		msg := err.Error()
		if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %v", ErrJobTimeout, p.cfg.JobTimeout, err)
			msg = err.Error()
		}
		log.Error("job failed", "stage", string(stage), "error", err)
		job.setState(StateError)
		tctx, tcancel := terminalCtx()
		defer tcancel()
		if dbErr := p.repo.MarkError(tctx, job.EpisodeID, msg); dbErr != nil {
			log.Error("recording episode failure", "error", dbErr)
		}
		p.publish(job, StageError, job.Percent(), msg, "")
		if p.metrics != nil {
			p.metrics.JobsFailed.Inc()
		}
	}

	// Probe.
	job.setState(StateProbing)
	p.publish(job, StageProbe, 0, "probing source media", "")

	encoder := p.detector.Detect(jobCtx)
	meta, err := p.prober.Probe(jobCtx, job.SourcePath, job.EpisodeID.String())
	if err != nil {
		fail(StageProbe, err)
		return
	}
	p.publish(job, StageProbe, percentProbeDone, "source probed", "")

	ladder := SelectLadder(meta)
	tasks := job.initTasks(ladder)

	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		fail(StageProbe, fmt.Errorf("creating output dir: %w", err))
		return
	}

	// Transcode. Overall progress for this stage is the unweighted mean of
	// the per-quality task percentages mapped into the stage sub-range.
	job.setState(StateTranscoding)
	p.publish(job, StageTranscode, percentTranscodeStart, "transcoding", "")

	transcoder := NewTranscoder(p.binaries.FFmpegPath, encoder, int(p.cfg.SegmentDuration/time.Second), p.logger)

	var lastPublished float64
	var progressMu sync.Mutex
	onProgress := func() {
		mean := job.taskMeanPercent()
		overall := percentTranscodeStart + mean*(percentTranscodeEnd-percentTranscodeStart)/100
		progressMu.Lock()
		publish := overall-lastPublished >= 1
		if publish {
			lastPublished = overall
		}
		progressMu.Unlock()
		if publish {
			p.publish(job, StageTranscode, overall, "transcoding", "")
		} else {
			job.SetPercent(overall)
		}
	}

	succeeded, err := transcoder.Run(jobCtx, job, tasks, meta.DurationSeconds, onProgress)
	if p.metrics != nil {
		for _, t := range tasks {
			if outcome, _ := t.Outcome(); outcome == OutcomeFailed {
				p.metrics.EncodeFailures.WithLabelValues(t.Profile.Name).Inc()
			}
		}
	}
	if err != nil {
		fail(StageTranscode, err)
		return
	}
	p.publish(job, StageTranscode, percentTranscodeEnd, "transcoding complete", "")

	// Thumbnails. Never fatal: a failure here degrades seek previews, not
	// playback.
	job.setState(StateThumbnailing)
	p.publish(job, StageThumbnails, percentTranscodeEnd, "generating thumbnails", "")

	onSprite := func(done, total int) {
		pct := percentTranscodeEnd + float64(done)/float64(total)*(percentThumbnailsEnd-percentTranscodeEnd)
		p.publish(job, StageThumbnails, pct, "generating thumbnails", "")
	}
	if _, thumbErr := p.sprites.Generate(jobCtx, job, meta.DurationSeconds, onSprite); thumbErr != nil {
		if jobCtx.Err() != nil {
			fail(StageThumbnails, jobCtx.Err())
			return
		}
		log.Warn("thumbnail generation failed", "error", thumbErr)
	}
	p.publish(job, StageThumbnails, percentThumbnailsEnd, "thumbnails done", "")

	// Finalize: master playlist plus the terminal ready write.
	job.setState(StateFinalizing)
	p.publish(job, StageFinalize, percentFinalizing, "assembling master playlist", "")

	if _, err := AssembleMaster(job.OutputDir, succeeded); err != nil {
		fail(StageFinalize, err)
		return
	}

	qualities := make([]string, len(succeeded))
	for i, q := range succeeded {
		qualities[i] = q.Name
	}
	hlsURL := p.storage.PublicPlaylistPath(job.EpisodeID.String())
	readyCtx, readyCancel := terminalCtx()
	err = p.repo.MarkReady(readyCtx, job.EpisodeID, hlsURL, qualities, meta.DurationSeconds)
	readyCancel()
	if err != nil {
		fail(StageFinalize, fmt.Errorf("recording episode ready: %w", err))
		return
	}

	// Cleanup. The terminal status is already written; nothing here may
	// fail the job.
	job.setState(StateCleaningUp)
	p.publish(job, StageCleanup, percentFinalizing, "cleaning up", "")
	if p.storage.DeleteSourceOnSuccess {
		cctx, ccancel := terminalCtx()
		if err := os.Remove(job.SourcePath); err != nil && !os.IsNotExist(err) {
			log.Warn("removing source file", "error", err)
		} else if err := p.repo.ClearSourcePath(cctx, job.EpisodeID); err != nil {
			log.Warn("clearing source path", "error", err)
		}
		ccancel()
	}

	job.setState(StateComplete)
	p.publish(job, StageComplete, percentComplete, "complete", "")
	if p.metrics != nil {
		p.metrics.JobsCompleted.Inc()
		p.metrics.JobDuration.Observe(time.Since(started).Seconds())
	}
	log.Info("job complete",
		"episode_id", job.EpisodeID.String(),
		"qualities", qualities,
		"duration", time.Since(started),
	)
}
