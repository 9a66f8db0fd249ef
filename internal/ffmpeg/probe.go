package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// Fallback dimensions applied when the container reports no video stream.
// Lenient on purpose: audio-only or oddly muxed sources still get a ladder.
const (
	fallbackWidth  = 1920
	fallbackHeight = 1080
)

// MediaMetadata contains the probed facts about a source file.
type MediaMetadata struct {
	DurationSeconds float64 `json:"duration_seconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
}

// ProbeError indicates the source file could not be inspected. It is always
// fatal to the owning job: without metadata there is no quality ladder.
type ProbeError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	return fmt.Sprintf("probing %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProbeError) Unwrap() error {
	return e.Err
}

// probeResult mirrors the subset of ffprobe JSON output we consume.
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// cacheEntry is one cached metadata record with its expiry.
type cacheEntry struct {
	meta    MediaMetadata
	expires time.Time
}

// Prober extracts source metadata via ffprobe with a time-bounded cache
// keyed by episode ID. Metadata never changes for a given source file, so
// the TTL is long (days); the cache is write-once per key in practice and
// safe for concurrent readers.
type Prober struct {
	ffprobePath string
	timeout     time.Duration
	ttl         time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry

	// runFn is replaceable in tests.
	runFn func(ctx context.Context, sourcePath string) ([]byte, error)
}

// NewProber creates a media prober.
func NewProber(ffprobePath string, timeout, cacheTTL time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cacheTTL <= 0 {
		cacheTTL = 72 * time.Hour
	}
	p := &Prober{
		ffprobePath: ffprobePath,
		timeout:     timeout,
		ttl:         cacheTTL,
		cache:       make(map[string]cacheEntry),
	}
	p.runFn = p.run
	return p
}

// Probe returns metadata for the source, consulting the cache first. On a
// cache hit the file system is not touched at all.
func (p *Prober) Probe(ctx context.Context, sourcePath, episodeID string) (MediaMetadata, error) {
	if meta, ok := p.cached(episodeID); ok {
		return meta, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	output, err := p.runFn(ctx, sourcePath)
	if err != nil {
		return MediaMetadata{}, &ProbeError{Path: sourcePath, Err: err}
	}

	meta, err := parseProbeOutput(output)
	if err != nil {
		return MediaMetadata{}, &ProbeError{Path: sourcePath, Err: err}
	}

	p.store(episodeID, meta)
	return meta, nil
}

// cached returns a non-expired cache entry.
func (p *Prober) cached(episodeID string) (MediaMetadata, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entry, ok := p.cache[episodeID]
	if !ok || time.Now().After(entry.expires) {
		return MediaMetadata{}, false
	}
	return entry.meta, true
}

// store records a cache entry with the configured TTL.
func (p *Prober) store(episodeID string, meta MediaMetadata) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache[episodeID] = cacheEntry{meta: meta, expires: time.Now().Add(p.ttl)}
}

// run invokes ffprobe against the source file.
func (p *Prober) run(ctx context.Context, sourcePath string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		sourcePath,
	)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("probe timeout after %v", p.timeout)
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return output, nil
}

// parseProbeOutput extracts duration and the first video stream's
// dimensions from ffprobe JSON output.
func parseProbeOutput(output []byte) (MediaMetadata, error) {
	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return MediaMetadata{}, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	meta := MediaMetadata{
		Width:  fallbackWidth,
		Height: fallbackHeight,
	}

	if result.Format.Duration != "" {
		dur, err := strconv.ParseFloat(result.Format.Duration, 64)
		if err != nil {
			return MediaMetadata{}, fmt.Errorf("parsing duration %q: %w", result.Format.Duration, err)
		}
		meta.DurationSeconds = dur
	}

	for _, stream := range result.Streams {
		if stream.CodecType == "video" && stream.Width > 0 && stream.Height > 0 {
			meta.Width = stream.Width
			meta.Height = stream.Height
			break
		}
	}

	return meta, nil
}
