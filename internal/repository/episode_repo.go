// Package repository provides data access for hlsforge entities.
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/jmylchreest/hlsforge/internal/models"
)

// ErrAlreadyProcessing indicates a transcode job already owns the
// episode. Concurrent submissions lose the conditional status update and
// receive this.
var ErrAlreadyProcessing = errors.New("episode is already being processed")

// EpisodeRepository persists episode asset state.
type EpisodeRepository interface {
	Create(ctx context.Context, episode *models.Episode) error
	GetByID(ctx context.Context, id models.ULID) (*models.Episode, error)
	MarkProcessing(ctx context.Context, id models.ULID, jobID string) error
	MarkReady(ctx context.Context, id models.ULID, hlsURL string, qualities []string, durationSeconds float64) error
	MarkError(ctx context.Context, id models.ULID, message string) error
	ClearSourcePath(ctx context.Context, id models.ULID) error
}

// episodeRepo implements EpisodeRepository using GORM.
type episodeRepo struct {
	db *gorm.DB
}

// NewEpisodeRepository creates a new EpisodeRepository.
func NewEpisodeRepository(db *gorm.DB) EpisodeRepository {
	return &episodeRepo{db: db}
}

// Create creates a new episode record.
func (r *episodeRepo) Create(ctx context.Context, episode *models.Episode) error {
	if err := r.db.WithContext(ctx).Create(episode).Error; err != nil {
		return fmt.Errorf("creating episode: %w", err)
	}
	return nil
}

// GetByID retrieves an episode by ID. Returns nil when not found.
func (r *episodeRepo) GetByID(ctx context.Context, id models.ULID) (*models.Episode, error) {
	var episode models.Episode
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&episode).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting episode by ID: %w", err)
	}
	return &episode, nil
}

// MarkProcessing records that a transcode job now owns the episode. The
// update is conditional on the episode not already being in the
// processing state, so exactly one of any concurrent submissions claims
// ownership.
func (r *episodeRepo) MarkProcessing(ctx context.Context, id models.ULID, jobID string) error {
	res := r.db.WithContext(ctx).Model(&models.Episode{}).
		Where("id = ? AND status <> ?", id, models.EpisodeStatusProcessing).
		Updates(map[string]any{
			"status": models.EpisodeStatusProcessing,
			"job_id": jobID,
		})
	if res.Error != nil {
		return fmt.Errorf("updating episode %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Episode{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("updating episode %s: %w", id, err)
		}
		if count > 0 {
			return fmt.Errorf("updating episode %s: %w", id, ErrAlreadyProcessing)
		}
		return fmt.Errorf("updating episode %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// MarkReady records terminal success. This is the last write of a
// successful job.
func (r *episodeRepo) MarkReady(ctx context.Context, id models.ULID, hlsURL string, qualities []string, durationSeconds float64) error {
	updates := map[string]any{
		"status":           models.EpisodeStatusReady,
		"hls_url":          hlsURL,
		"qualities":        models.StringList(qualities),
		"duration_seconds": durationSeconds,
		"error_message":    "",
	}
	return r.update(ctx, id, updates)
}

// MarkError records terminal failure. This is the last write of a failed job.
func (r *episodeRepo) MarkError(ctx context.Context, id models.ULID, message string) error {
	updates := map[string]any{
		"status":        models.EpisodeStatusError,
		"error_message": message,
	}
	return r.update(ctx, id, updates)
}

// ClearSourcePath empties the source path after the uploaded file has been
// deleted.
func (r *episodeRepo) ClearSourcePath(ctx context.Context, id models.ULID) error {
	return r.update(ctx, id, map[string]any{"source_path": ""})
}

func (r *episodeRepo) update(ctx context.Context, id models.ULID, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Episode{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("updating episode %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("updating episode %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}
