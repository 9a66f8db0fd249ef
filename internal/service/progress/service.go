// Package progress fans transcode progress events out to subscribed
// clients, typically SSE connections held open by the HTTP layer.
package progress

import (
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/hlsforge/internal/transcode"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// cannot keep up loses events rather than blocking the pipeline.
const subscriberBuffer = 100

// Filter restricts which events a subscriber receives. Zero values match
// everything.
type Filter struct {
	// UserID limits events to jobs submitted by this user.
	UserID string
	// JobID limits events to a single job.
	JobID string
}

// matches reports whether an event passes the filter.
func (f Filter) matches(userID string, event transcode.ProgressEvent) bool {
	if f.UserID != "" && f.UserID != userID {
		return false
	}
	if f.JobID != "" && f.JobID != event.JobID {
		return false
	}
	return true
}

// Subscriber is one registered event consumer.
type Subscriber struct {
	ID     string
	Filter Filter
	Events chan transcode.ProgressEvent
}

// Service implements transcode.ProgressSink and broadcasts every published
// event to matching subscribers. Publishing never blocks.
type Service struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	// latest retains the most recent event per job so late subscribers can
	// render current state immediately.
	latest map[string]trackedEvent
	logger *slog.Logger
}

type trackedEvent struct {
	userID string
	event  transcode.ProgressEvent
}

// NewService creates an empty broadcaster.
func NewService(logger *slog.Logger) *Service {
	return &Service{
		subscribers: make(map[string]*Subscriber),
		latest:      make(map[string]trackedEvent),
		logger:      logger.With("component", "progress_service"),
	}
}

// Publish implements transcode.ProgressSink. Events are delivered to every
// matching subscriber with a non-blocking send.
func (s *Service) Publish(userID string, event transcode.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest[event.JobID] = trackedEvent{userID: userID, event: event}

	for _, sub := range s.subscribers {
		if !sub.Filter.matches(userID, event) {
			continue
		}
		select {
		case sub.Events <- event:
		default:
			s.logger.Warn("subscriber event channel full, dropping event",
				"subscriber_id", sub.ID,
				"job_id", event.JobID,
			)
		}
	}
}

// Subscribe registers a new subscriber. The latest event of every matching
// job is replayed into the channel so the client starts from current state.
func (s *Service) Subscribe(filter Filter) *Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &Subscriber{
		ID:     ulid.Make().String(),
		Filter: filter,
		Events: make(chan transcode.ProgressEvent, subscriberBuffer),
	}
	s.subscribers[sub.ID] = sub

	for _, tracked := range s.latest {
		if sub.Filter.matches(tracked.userID, tracked.event) {
			select {
			case sub.Events <- tracked.event:
			default:
			}
		}
	}

	s.logger.Debug("subscriber added", "subscriber_id", sub.ID)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Service) Unsubscribe(subscriberID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.subscribers[subscriberID]; ok {
		close(sub.Events)
		delete(s.subscribers, subscriberID)
		s.logger.Debug("subscriber removed", "subscriber_id", subscriberID)
	}
}

// Forget drops the retained latest event for a job. Called once a job's
// terminal event has been visible long enough to be irrelevant.
func (s *Service) Forget(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.latest, jobID)
}
