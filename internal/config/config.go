// Package config provides configuration management for hlsforge using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort          = 8080
	defaultServerTimeout       = 30 * time.Second
	defaultShutdownTimeout     = 10 * time.Second
	defaultMaxConcurrentJobs   = 2
	defaultJobTimeout          = 2 * time.Hour
	defaultQueueCapacity       = 64
	defaultSegmentDuration     = 4 * time.Second
	defaultProbeTimeout        = 30 * time.Second
	defaultMetadataCacheTTL    = 72 * time.Hour
	defaultThumbsPerSprite     = 100
	defaultThumbnailWidth      = 160
	defaultThumbnailHeight     = 90
	defaultTargetThumbnails    = 300
	defaultMinThumbnailGapSecs = 1
	defaultMaxThumbnailGapSecs = 10
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	FFmpeg    FFmpegConfig    `mapstructure:"ffmpeg"`
	Transcode TranscodeConfig `mapstructure:"transcode"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	// BaseDir is the root under which per-episode output directories live.
	BaseDir string `mapstructure:"base_dir"`
	// PublicPrefix is prepended to playlist paths handed back to clients.
	PublicPrefix string `mapstructure:"public_prefix"`
	// DeleteSourceOnSuccess removes the uploaded source file after a job
	// completes successfully.
	DeleteSourceOnSuccess bool `mapstructure:"delete_source_on_success"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// FFmpegConfig holds FFmpeg binary configuration.
type FFmpegConfig struct {
	BinaryPath   string        `mapstructure:"binary_path"` // Path to ffmpeg binary (empty = auto-detect)
	ProbePath    string        `mapstructure:"probe_path"`  // Path to ffprobe binary (empty = auto-detect)
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// TranscodeConfig holds transcoding pipeline configuration.
type TranscodeConfig struct {
	// MaxConcurrentJobs bounds how many jobs run at once; further
	// submissions queue.
	MaxConcurrentJobs int `mapstructure:"max_concurrent_jobs"`
	// QueueCapacity bounds how many jobs may wait behind the running ones.
	QueueCapacity int `mapstructure:"queue_capacity"`
	// JobTimeout is the per-job deadline; on expiry every subprocess the
	// job owns is terminated.
	JobTimeout time.Duration `mapstructure:"job_timeout"`
	// SegmentDuration is the HLS segment length.
	SegmentDuration time.Duration `mapstructure:"segment_duration"`
	// MetadataCacheTTL is how long probed source metadata stays cached.
	MetadataCacheTTL time.Duration `mapstructure:"metadata_cache_ttl"`
	// ThumbnailInterval forces a fixed seconds-between-thumbnails value.
	// Zero selects the adaptive interval.
	ThumbnailInterval time.Duration `mapstructure:"thumbnail_interval"`
	// ThumbnailsPerSprite caps how many tiles a single sprite sheet holds.
	ThumbnailsPerSprite int `mapstructure:"thumbnails_per_sprite"`
	// ThumbnailWidth and ThumbnailHeight are the per-tile dimensions.
	ThumbnailWidth  int `mapstructure:"thumbnail_width"`
	ThumbnailHeight int `mapstructure:"thumbnail_height"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with HLSFORGE_ and use underscores for
// nesting. Example: HLSFORGE_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/hlsforge")
		v.AddConfigPath("$HOME/.hlsforge")
	}

	v.SetEnvPrefix("HLSFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults
// are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	// Database defaults
	v.SetDefault("database.dsn", "hlsforge.db")
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data/hls")
	v.SetDefault("storage.public_prefix", "/hls")
	v.SetDefault("storage.delete_source_on_success", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// FFmpeg defaults
	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")
	v.SetDefault("ffmpeg.probe_timeout", defaultProbeTimeout)

	// Transcode defaults
	v.SetDefault("transcode.max_concurrent_jobs", defaultMaxConcurrentJobs)
	v.SetDefault("transcode.queue_capacity", defaultQueueCapacity)
	v.SetDefault("transcode.job_timeout", defaultJobTimeout)
	v.SetDefault("transcode.segment_duration", defaultSegmentDuration)
	v.SetDefault("transcode.metadata_cache_ttl", defaultMetadataCacheTTL)
	v.SetDefault("transcode.thumbnail_interval", time.Duration(0))
	v.SetDefault("transcode.thumbnails_per_sprite", defaultThumbsPerSprite)
	v.SetDefault("transcode.thumbnail_width", defaultThumbnailWidth)
	v.SetDefault("transcode.thumbnail_height", defaultThumbnailHeight)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Transcode.MaxConcurrentJobs < 1 {
		return fmt.Errorf("transcode.max_concurrent_jobs must be at least 1")
	}
	if c.Transcode.QueueCapacity < 1 {
		return fmt.Errorf("transcode.queue_capacity must be at least 1")
	}
	if c.Transcode.JobTimeout <= 0 {
		return fmt.Errorf("transcode.job_timeout must be positive")
	}
	if c.Transcode.SegmentDuration < time.Second {
		return fmt.Errorf("transcode.segment_duration must be at least 1s")
	}
	if c.Transcode.ThumbnailsPerSprite < 1 {
		return fmt.Errorf("transcode.thumbnails_per_sprite must be at least 1")
	}
	if c.Transcode.ThumbnailWidth < 1 || c.Transcode.ThumbnailHeight < 1 {
		return fmt.Errorf("transcode.thumbnail dimensions must be positive")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// OutputDir returns the output directory for a given episode identifier.
func (c *StorageConfig) OutputDir(episodeID string) string {
	return filepath.Join(c.BaseDir, episodeID)
}

// PublicPlaylistPath returns the externally visible path to an episode's
// master playlist.
func (c *StorageConfig) PublicPlaylistPath(episodeID string) string {
	return fmt.Sprintf("%s/%s/master.m3u8", strings.TrimSuffix(c.PublicPrefix, "/"), episodeID)
}
