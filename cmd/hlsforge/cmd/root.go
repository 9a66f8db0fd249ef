// Package cmd implements the CLI commands for hlsforge.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/hlsforge/internal/config"
	"github.com/jmylchreest/hlsforge/internal/observability"
	"github.com/jmylchreest/hlsforge/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "hlsforge",
	Short:   "Adaptive multi-bitrate HLS transcoding service",
	Version: version.Short(),
	Long: `hlsforge turns uploaded episode video files into adaptive multi-bitrate
HLS packages: per-quality variant playlists, thumbnail seek sprites, and a
master playlist, driven by a bounded worker pool around ffmpeg.`,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initLogging()
	}

	// Logging flags are applied only when explicitly set so the priority
	// stays: CLI flag > env var > config file > default.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., /etc/hlsforge, $HOME/.hlsforge)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
}

// loadConfig reads the full configuration, honoring the --config flag.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

func initLogging() error {
	// The full config is loaded later per command; for logging only the
	// env vars matter this early.
	viper.SetEnvPrefix("HLSFORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	level := viper.GetString("logging.level")
	format := viper.GetString("logging.format")

	if rootCmd.PersistentFlags().Changed("log-level") {
		level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}
	if level == "" {
		level = "info"
	}
	if format == "" {
		format = "json"
	}

	logger := observability.NewLoggerWithWriter(config.LoggingConfig{
		Level:  strings.ToLower(level),
		Format: strings.ToLower(format),
	}, os.Stderr)
	observability.SetDefault(logger)
	return nil
}
