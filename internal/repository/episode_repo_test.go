package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/hlsforge/internal/models"
)

func setupEpisodeTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.Episode{}))
	return db
}

func createTestEpisode(t *testing.T, repo EpisodeRepository) *models.Episode {
	t.Helper()
	ep := &models.Episode{
		Title:      "Test Episode",
		SourcePath: "/uploads/test.mp4",
	}
	require.NoError(t, repo.Create(context.Background(), ep))
	require.False(t, ep.ID.IsZero())
	return ep
}

func TestEpisodeRepo_CreateAndGet(t *testing.T) {
	repo := NewEpisodeRepository(setupEpisodeTestDB(t))
	ep := createTestEpisode(t, repo)

	got, err := repo.GetByID(context.Background(), ep.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Test Episode", got.Title)
	assert.Equal(t, models.EpisodeStatusUploaded, got.Status)
}

func TestEpisodeRepo_GetByID_NotFound(t *testing.T) {
	repo := NewEpisodeRepository(setupEpisodeTestDB(t))

	got, err := repo.GetByID(context.Background(), models.NewULID())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEpisodeRepo_StatusLifecycle(t *testing.T) {
	repo := NewEpisodeRepository(setupEpisodeTestDB(t))
	ep := createTestEpisode(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.MarkProcessing(ctx, ep.ID, "job-123"))
	got, err := repo.GetByID(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EpisodeStatusProcessing, got.Status)
	assert.Equal(t, "job-123", got.JobID)

	require.NoError(t, repo.MarkReady(ctx, ep.ID, "/hls/abc/master.m3u8", []string{"1080p", "720p"}, 600))
	got, err = repo.GetByID(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EpisodeStatusReady, got.Status)
	assert.Equal(t, "/hls/abc/master.m3u8", got.HLSURL)
	assert.Equal(t, models.StringList{"1080p", "720p"}, got.Qualities)
	assert.InDelta(t, 600, got.DurationSeconds, 1e-9)
}

func TestEpisodeRepo_MarkError(t *testing.T) {
	repo := NewEpisodeRepository(setupEpisodeTestDB(t))
	ep := createTestEpisode(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.MarkError(ctx, ep.ID, "all qualities failed"))
	got, err := repo.GetByID(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EpisodeStatusError, got.Status)
	assert.Equal(t, "all qualities failed", got.ErrorMessage)
}

func TestEpisodeRepo_MarkProcessing_NotFound(t *testing.T) {
	repo := NewEpisodeRepository(setupEpisodeTestDB(t))
	err := repo.MarkProcessing(context.Background(), models.NewULID(), "job-x")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrAlreadyProcessing))
}

// Only one of two competing submissions may claim an episode; the loser
// sees ErrAlreadyProcessing and the winner's job ID sticks.
func TestEpisodeRepo_MarkProcessing_Conditional(t *testing.T) {
	repo := NewEpisodeRepository(setupEpisodeTestDB(t))
	ep := createTestEpisode(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.MarkProcessing(ctx, ep.ID, "job-1"))
	err := repo.MarkProcessing(ctx, ep.ID, "job-2")
	assert.True(t, errors.Is(err, ErrAlreadyProcessing))

	got, err := repo.GetByID(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, "job-1", got.JobID)

	// A terminal status releases the claim for resubmission.
	require.NoError(t, repo.MarkError(ctx, ep.ID, "boom"))
	assert.NoError(t, repo.MarkProcessing(ctx, ep.ID, "job-3"))
}

func TestEpisodeRepo_ClearSourcePath(t *testing.T) {
	repo := NewEpisodeRepository(setupEpisodeTestDB(t))
	ep := createTestEpisode(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.ClearSourcePath(ctx, ep.ID))
	got, err := repo.GetByID(ctx, ep.ID)
	require.NoError(t, err)
	assert.Empty(t, got.SourcePath)
}
