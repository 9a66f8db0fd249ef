package transcode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hlsforge/internal/models"
)

func TestJobPercentNeverDecreases(t *testing.T) {
	job := NewJob(models.NewULID(), "/tmp/src.mp4", "/tmp/out", "user-1")

	assert.Equal(t, 42.0, job.SetPercent(42))
	assert.Equal(t, 42.0, job.SetPercent(10))
	assert.Equal(t, 42.0, job.Percent())
	assert.Equal(t, 90.0, job.SetPercent(90))
}

func TestJobStateMachine(t *testing.T) {
	job := NewJob(models.NewULID(), "/tmp/src.mp4", "/tmp/out", "user-1")
	assert.Equal(t, StateQueued, job.State())
	assert.False(t, job.State().IsTerminal())

	job.setState(StateTranscoding)
	assert.Equal(t, StateTranscoding, job.State())

	job.setState(StateComplete)
	assert.True(t, job.State().IsTerminal())
	assert.True(t, StateError.IsTerminal())
}

func TestEncodeTaskOutcomeIsWriteOnce(t *testing.T) {
	task := &EncodeTask{Profile: QualityProfile{Name: "720p"}}

	outcome, err := task.Outcome()
	assert.Equal(t, OutcomePending, outcome)
	assert.NoError(t, err)

	failure := errors.New("encoder exploded")
	task.finish(failure)
	task.finish(nil)

	outcome, err = task.Outcome()
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, failure, err)
}

func TestEncodeTaskSuccessSnapsToHundred(t *testing.T) {
	task := &EncodeTask{Profile: QualityProfile{Name: "720p"}}
	task.SetPercent(97.3)
	task.finish(nil)
	assert.Equal(t, 100.0, task.Percent())
}

func TestTaskMeanPercentIsUnweighted(t *testing.T) {
	job := NewJob(models.NewULID(), "/tmp/src.mp4", "/tmp/out", "user-1")
	tasks := job.initTasks([]QualityProfile{
		{Name: "1080p"}, {Name: "720p"}, {Name: "480p"},
	})

	tasks[0].SetPercent(30)
	tasks[1].SetPercent(60)
	tasks[2].SetPercent(90)
	assert.InDelta(t, 60.0, job.taskMeanPercent(), 0.001)
}

func TestTaskMeanPercentNoTasks(t *testing.T) {
	job := NewJob(models.NewULID(), "/tmp/src.mp4", "/tmp/out", "user-1")
	assert.Equal(t, 0.0, job.taskMeanPercent())
}

func TestJobSnapshot(t *testing.T) {
	episodeID := models.NewULID()
	job := NewJob(episodeID, "/tmp/src.mp4", "/tmp/out", "user-1")
	job.setState(StateProbing)
	job.SetPercent(10)
	job.setMessage("probing source media")

	st := job.Snapshot()
	require.NotEmpty(t, st.JobID)
	assert.Equal(t, episodeID.String(), st.EpisodeID)
	assert.Equal(t, StateProbing, st.State)
	assert.Equal(t, 10.0, st.Percent)
	assert.Equal(t, "probing source media", st.Message)
	assert.Empty(t, st.Processes)
}
