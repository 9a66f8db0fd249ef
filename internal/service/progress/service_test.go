package progress

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hlsforge/internal/transcode"
)

func newTestService() *Service {
	return NewService(slog.Default())
}

func event(jobID string, stage transcode.Stage, pct float64) transcode.ProgressEvent {
	return transcode.ProgressEvent{JobID: jobID, Stage: stage, Percent: pct}
}

func TestPublishDeliversToMatchingSubscriber(t *testing.T) {
	svc := newTestService()
	sub := svc.Subscribe(Filter{UserID: "user-1"})
	defer svc.Unsubscribe(sub.ID)

	svc.Publish("user-1", event("job-a", transcode.StageTranscode, 40))

	ev := <-sub.Events
	assert.Equal(t, "job-a", ev.JobID)
	assert.Equal(t, 40.0, ev.Percent)
}

func TestPublishFiltersByUser(t *testing.T) {
	svc := newTestService()
	sub := svc.Subscribe(Filter{UserID: "user-1"})
	defer svc.Unsubscribe(sub.ID)

	svc.Publish("user-2", event("job-b", transcode.StageProbe, 10))
	assert.Empty(t, sub.Events)
}

func TestPublishFiltersByJob(t *testing.T) {
	svc := newTestService()
	sub := svc.Subscribe(Filter{JobID: "job-a"})
	defer svc.Unsubscribe(sub.ID)

	svc.Publish("user-1", event("job-b", transcode.StageProbe, 10))
	svc.Publish("user-1", event("job-a", transcode.StageProbe, 10))

	require.Len(t, sub.Events, 1)
	ev := <-sub.Events
	assert.Equal(t, "job-a", ev.JobID)
}

func TestSubscribeReplaysLatestEvent(t *testing.T) {
	svc := newTestService()
	svc.Publish("user-1", event("job-a", transcode.StageTranscode, 30))
	svc.Publish("user-1", event("job-a", transcode.StageTranscode, 55))

	sub := svc.Subscribe(Filter{UserID: "user-1"})
	defer svc.Unsubscribe(sub.ID)

	require.Len(t, sub.Events, 1)
	ev := <-sub.Events
	assert.Equal(t, 55.0, ev.Percent)
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	svc := newTestService()
	sub := svc.Subscribe(Filter{})
	defer svc.Unsubscribe(sub.ID)

	for i := 0; i < subscriberBuffer+10; i++ {
		svc.Publish("user-1", event("job-a", transcode.StageTranscode, float64(i)))
	}
	assert.Len(t, sub.Events, subscriberBuffer)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	svc := newTestService()
	sub := svc.Subscribe(Filter{})
	svc.Unsubscribe(sub.ID)

	_, open := <-sub.Events
	assert.False(t, open)

	// Publishing after unsubscribe must not panic.
	svc.Publish("user-1", event("job-a", transcode.StageComplete, 100))
}

func TestForgetDropsReplay(t *testing.T) {
	svc := newTestService()
	svc.Publish("user-1", event("job-a", transcode.StageComplete, 100))
	svc.Forget("job-a")

	sub := svc.Subscribe(Filter{})
	defer svc.Unsubscribe(sub.ID)
	assert.Empty(t, sub.Events)
}
