package transcode

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/hlsforge/internal/models"
)

// JobState represents the orchestrator state machine per job.
type JobState string

const (
	StateQueued       JobState = "queued"
	StateProbing      JobState = "probing"
	StateTranscoding  JobState = "transcoding"
	StateThumbnailing JobState = "generating-thumbnails"
	StateFinalizing   JobState = "finalizing"
	StateCleaningUp   JobState = "cleaning-up"
	StateComplete     JobState = "complete"
	StateError        JobState = "error"
)

// IsTerminal returns true for complete and error.
func (s JobState) IsTerminal() bool {
	return s == StateComplete || s == StateError
}

// Stage identifies the pipeline stage a progress event belongs to.
type Stage string

const (
	StageProbe      Stage = "probe"
	StageTranscode  Stage = "transcode"
	StageThumbnails Stage = "thumbnails"
	StageFinalize   Stage = "finalize"
	StageCleanup    Stage = "cleanup"
	StageComplete   Stage = "complete"
	StageError      Stage = "error"
)

// ProgressEvent is emitted to the progress sink at stage transitions and
// while encode tasks advance. Transient; never persisted.
type ProgressEvent struct {
	JobID     string  `json:"job_id"`
	EpisodeID string  `json:"episode_id"`
	Stage     Stage   `json:"stage"`
	Percent   float64 `json:"percent"`
	Message   string  `json:"message,omitempty"`
	Quality   string  `json:"quality,omitempty"`
}

// ProgressSink receives progress events for a requesting user.
// Delivery is fire-and-forget; implementations must not block.
type ProgressSink interface {
	Publish(userID string, event ProgressEvent)
}

// NopSink discards all events.
type NopSink struct{}

// Publish implements ProgressSink.
func (NopSink) Publish(string, ProgressEvent) {}

// TaskOutcome is the write-once terminal result of one encode task.
type TaskOutcome int

const (
	OutcomePending TaskOutcome = iota
	OutcomeSucceeded
	OutcomeFailed
)

// EncodeTask is the per-quality unit of work inside a job. Created once the
// ladder is selected; the set is never resized afterward. Each task is
// owned by its encode subprocess until that subprocess exits.
type EncodeTask struct {
	Profile QualityProfile

	mu      sync.Mutex
	percent float64
	outcome TaskOutcome
	err     error
}

// SetPercent records encode progress for this task. Values never decrease.
func (t *EncodeTask) SetPercent(pct float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pct > t.percent {
		t.percent = pct
	}
}

// Percent returns the task's current progress.
func (t *EncodeTask) Percent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percent
}

// finish records the terminal outcome. Write-once: later calls are ignored.
func (t *EncodeTask) finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.outcome != OutcomePending {
		return
	}
	if err != nil {
		t.outcome = OutcomeFailed
		t.err = err
		return
	}
	t.outcome = OutcomeSucceeded
	t.percent = 100
}

// Outcome returns the task's terminal state and error, if any.
func (t *EncodeTask) Outcome() (TaskOutcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome, t.err
}

// Job is one unit of transcoding work, owned exclusively by the pool for
// its lifetime.
type Job struct {
	ID               string
	EpisodeID        models.ULID
	SourcePath       string
	OutputDir        string
	RequestingUserID string
	SubmittedAt      time.Time

	// Arena tracks every subprocess the job owns so the timeout path can
	// terminate all of them.
	Arena *Arena

	mu      sync.Mutex
	state   JobState
	percent float64
	message string
	tasks   []*EncodeTask
}

// NewJob creates a queued job with a fresh handle.
func NewJob(episodeID models.ULID, sourcePath, outputDir, requestingUserID string) *Job {
	return &Job{
		ID:               uuid.NewString(),
		EpisodeID:        episodeID,
		SourcePath:       sourcePath,
		OutputDir:        outputDir,
		RequestingUserID: requestingUserID,
		SubmittedAt:      time.Now(),
		Arena:            NewArena(),
		state:            StateQueued,
	}
}

// setState transitions the job state and returns the current progress.
func (j *Job) setState(s JobState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = s
}

// State returns the current job state.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// SetPercent raises the job's overall progress. The overall percentage is
// monotonically non-decreasing within a job; attempts to lower it are
// ignored. Returns the effective value.
func (j *Job) SetPercent(pct float64) float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	if pct > j.percent {
		j.percent = pct
	}
	return j.percent
}

// Percent returns the job's overall progress.
func (j *Job) Percent() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.percent
}

// setMessage records the latest human-readable status message.
func (j *Job) setMessage(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.message = msg
}

// initTasks creates the encode task set for the selected ladder.
func (j *Job) initTasks(ladder []QualityProfile) []*EncodeTask {
	tasks := make([]*EncodeTask, len(ladder))
	for i, q := range ladder {
		tasks[i] = &EncodeTask{Profile: q}
	}
	j.mu.Lock()
	j.tasks = tasks
	j.mu.Unlock()
	return tasks
}

// taskMeanPercent returns the unweighted mean of all encode task
// percentages, the aggregate for the transcode stage.
func (j *Job) taskMeanPercent() float64 {
	j.mu.Lock()
	tasks := j.tasks
	j.mu.Unlock()

	if len(tasks) == 0 {
		return 0
	}
	var sum float64
	for _, t := range tasks {
		sum += t.Percent()
	}
	return sum / float64(len(tasks))
}

// Status is a point-in-time snapshot of a job for polling clients.
type Status struct {
	JobID       string             `json:"job_id"`
	EpisodeID   string             `json:"episode_id"`
	State       JobState           `json:"state"`
	Percent     float64            `json:"percent"`
	Message     string             `json:"message,omitempty"`
	SubmittedAt time.Time          `json:"submitted_at"`
	Processes   []SubprocessStatus `json:"processes,omitempty"`
}

// Snapshot captures the job's current externally visible state.
func (j *Job) Snapshot() Status {
	j.mu.Lock()
	st := Status{
		JobID:       j.ID,
		EpisodeID:   j.EpisodeID.String(),
		State:       j.state,
		Percent:     j.percent,
		Message:     j.message,
		SubmittedAt: j.SubmittedAt,
	}
	j.mu.Unlock()

	st.Processes = j.Arena.Stats()
	return st
}
