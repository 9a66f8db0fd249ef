package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/hlsforge/internal/ffmpeg"
	"github.com/jmylchreest/hlsforge/internal/observability"
)

const (
	// targetThumbnailCount drives the adaptive interval: roughly this many
	// thumbnails regardless of video length.
	targetThumbnailCount = 300

	minThumbnailInterval = 1
	maxThumbnailInterval = 10

	// spriteConcurrency limits how many sprite encodes run at once.
	spriteConcurrency = 2
)

// SpriteOptions configures thumbnail sprite generation.
type SpriteOptions struct {
	// IntervalSeconds fixes the capture interval. Zero selects the adaptive
	// interval from the video duration.
	IntervalSeconds int
	// PerSprite caps thumbnails per sprite sheet.
	PerSprite int
	// TileWidth and TileHeight are the dimensions of each thumbnail tile.
	TileWidth  int
	TileHeight int
}

// DefaultSpriteOptions returns the production defaults.
func DefaultSpriteOptions() SpriteOptions {
	return SpriteOptions{
		PerSprite:  100,
		TileWidth:  160,
		TileHeight: 90,
	}
}

// ComputeInterval returns the capture interval in seconds. Adaptive mode
// aims for targetThumbnailCount thumbnails, clamped so short videos are
// not oversampled and long videos stay seekable.
func ComputeInterval(durationSeconds float64, configured int) int {
	if configured > 0 {
		return configured
	}
	interval := int(math.Round(durationSeconds / targetThumbnailCount))
	if interval < minThumbnailInterval {
		interval = minThumbnailInterval
	}
	if interval > maxThumbnailInterval {
		interval = maxThumbnailInterval
	}
	return interval
}

// GridFor returns the tile grid for a sprite holding count thumbnails.
// Full sprites use a fixed 10x10 grid; partially filled trailing sprites
// use a denser packing.
func GridFor(count int) (cols, rows int) {
	switch {
	case count >= 100:
		cols = 10
	case count >= 64:
		cols = 8
	default:
		cols = int(math.Ceil(math.Sqrt(float64(count))))
	}
	if cols < 1 {
		cols = 1
	}
	rows = (count + cols - 1) / cols
	return cols, rows
}

// SpritePlan is the layout of one sprite sheet.
type SpritePlan struct {
	Index int
	// FirstThumb is the global index of the sprite's first thumbnail.
	FirstThumb int
	Count      int
	Cols       int
	Rows       int
}

// PlanSprites splits total thumbnails into sprite sheets of at most
// perSprite tiles each.
func PlanSprites(total, perSprite int) []SpritePlan {
	if total <= 0 {
		return nil
	}
	if perSprite <= 0 {
		perSprite = 100
	}
	var plans []SpritePlan
	for first := 0; first < total; first += perSprite {
		count := perSprite
		if remaining := total - first; remaining < count {
			count = remaining
		}
		cols, rows := GridFor(count)
		plans = append(plans, SpritePlan{
			Index:      len(plans),
			FirstThumb: first,
			Count:      count,
			Cols:       cols,
			Rows:       rows,
		})
	}
	return plans
}

// spriteFileName returns the sprite image name. A single sprite keeps the
// unsuffixed name.
func spriteFileName(index, totalSprites int) string {
	if totalSprites == 1 {
		return "sprite.jpg"
	}
	return fmt.Sprintf("sprite_%d.jpg", index)
}

// vttFileName returns the cue file name matching spriteFileName.
func vttFileName(index, totalSprites int) string {
	if totalSprites == 1 {
		return "thumbnails.vtt"
	}
	return fmt.Sprintf("thumbnails_%d.vtt", index)
}

// SpriteGenerator produces thumbnail sprite sheets and their WebVTT cue
// files. Generation failures never fail the job; playback degrades to no
// seek previews.
type SpriteGenerator struct {
	ffmpegPath string
	opts       SpriteOptions
	logger     *slog.Logger
}

// NewSpriteGenerator creates a sprite generator.
func NewSpriteGenerator(ffmpegPath string, opts SpriteOptions, logger *slog.Logger) *SpriteGenerator {
	if opts.PerSprite <= 0 {
		opts.PerSprite = 100
	}
	if opts.TileWidth <= 0 || opts.TileHeight <= 0 {
		opts.TileWidth, opts.TileHeight = 160, 90
	}
	return &SpriteGenerator{
		ffmpegPath: ffmpegPath,
		opts:       opts,
		logger:     observability.WithComponent(logger, "sprites"),
	}
}

// generateSprite renders one sprite sheet covering the plan's time window.
func (g *SpriteGenerator) generateSprite(ctx context.Context, job *Job, plan SpritePlan, interval, totalSprites int, dir string) error {
	startSeconds := plan.FirstThumb * interval
	spanSeconds := plan.Count * interval
	outPath := filepath.Join(dir, spriteFileName(plan.Index, totalSprites))

	cmd := ffmpeg.NewCommandBuilder(g.ffmpegPath).
		HideBanner().
		Overwrite().
		InputArgs("-ss", fmt.Sprintf("%d", startSeconds), "-t", fmt.Sprintf("%d", spanSeconds)).
		Input(job.SourcePath).
		OutputArgs(
			"-vf", fmt.Sprintf("fps=1/%d,scale=%d:%d,tile=%dx%d",
				interval, g.opts.TileWidth, g.opts.TileHeight, plan.Cols, plan.Rows),
			"-frames:v", "1",
			"-q:v", "4",
		).
		Output(outPath).
		Build(ctx)

	stderr := &tailWriter{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting sprite %d: %w", plan.Index, err)
	}
	job.Arena.Register(cmd, fmt.Sprintf("sprite_%d", plan.Index))
	defer job.Arena.Deregister(cmd)

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("sprite %d: %w: %s", plan.Index, err, stderr.String())
	}
	return nil
}

// Generate renders all sprite sheets and cue files under
// {OutputDir}/thumbnails. Returns the number of sprites written.
func (g *SpriteGenerator) Generate(ctx context.Context, job *Job, durationSeconds float64, onSprite func(done, total int)) (int, error) {
	interval := ComputeInterval(durationSeconds, g.opts.IntervalSeconds)
	total := int(math.Ceil(durationSeconds / float64(interval)))
	plans := PlanSprites(total, g.opts.PerSprite)
	if len(plans) == 0 {
		return 0, nil
	}

	dir := filepath.Join(job.OutputDir, "thumbnails")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating thumbnails dir: %w", err)
	}

	log := observability.WithJobID(g.logger, job.ID)
	log.Info("generating thumbnail sprites",
		"interval_seconds", interval,
		"thumbnails", total,
		"sprites", len(plans),
	)

	var eg errgroup.Group
	eg.SetLimit(spriteConcurrency)
	var mu sync.Mutex
	done := 0
	for _, plan := range plans {
		plan := plan
		eg.Go(func() error {
			if err := g.generateSprite(ctx, job, plan, interval, len(plans), dir); err != nil {
				return err
			}
			// Each sprite's cue file lands with its image, so a later
			// failure still leaves usable previews for the completed
			// sprites.
			vttPath := filepath.Join(dir, vttFileName(plan.Index, len(plans)))
			sprite := spriteFileName(plan.Index, len(plans))
			if err := writeSpriteVTT(vttPath, sprite, plan, interval, durationSeconds, g.opts.TileWidth, g.opts.TileHeight); err != nil {
				return err
			}
			mu.Lock()
			done++
			d := done
			mu.Unlock()
			if onSprite != nil {
				onSprite(d, len(plans))
			}
			return nil
		})
	}
	err := eg.Wait()
	mu.Lock()
	completed := done
	mu.Unlock()
	return completed, err
}
