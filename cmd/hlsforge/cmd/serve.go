package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/hlsforge/internal/database"
	"github.com/jmylchreest/hlsforge/internal/ffmpeg"
	internalhttp "github.com/jmylchreest/hlsforge/internal/http"
	"github.com/jmylchreest/hlsforge/internal/http/handlers"
	"github.com/jmylchreest/hlsforge/internal/observability"
	"github.com/jmylchreest/hlsforge/internal/repository"
	"github.com/jmylchreest/hlsforge/internal/service/progress"
	"github.com/jmylchreest/hlsforge/internal/transcode"
	"github.com/jmylchreest/hlsforge/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the hlsforge server",
	Long: `Start the hlsforge HTTP server and transcode worker pool.

The server provides:
- REST API for registering episodes and submitting transcode jobs
- Job status polling and SSE progress streaming
- Health check and Prometheus metrics endpoints`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("base-dir", "", "Base directory for HLS output")
	serveCmd.Flags().Int("workers", 0, "Maximum concurrent transcode jobs")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	// Flags override config and env only when explicitly set.
	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Server.Host, _ = f.GetString("host")
	}
	if f.Changed("port") {
		cfg.Server.Port, _ = f.GetInt("port")
	}
	if f.Changed("base-dir") {
		cfg.Storage.BaseDir, _ = f.GetString("base-dir")
	}
	if f.Changed("workers") {
		cfg.Transcode.MaxConcurrentJobs, _ = f.GetInt("workers")
	}

	logger := slog.Default()
	logger.Info("starting hlsforge", slog.String("version", version.Short()))

	binaries, err := ffmpeg.FindBinaries(cfg.FFmpeg.BinaryPath, cfg.FFmpeg.ProbePath)
	if err != nil {
		return fmt.Errorf("locating ffmpeg binaries: %w", err)
	}
	logger.Info("ffmpeg binaries located",
		slog.String("ffmpeg", binaries.FFmpegPath),
		slog.String("ffprobe", binaries.FFprobePath),
	)

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	episodeRepo := repository.NewEpisodeRepository(db)
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	progressService := progress.NewService(logger)

	pool := transcode.NewPool(
		cfg.Transcode,
		cfg.Storage,
		episodeRepo,
		binaries,
		progressService,
		metrics,
		logger,
	)
	pool.Start(context.Background())

	server := internalhttp.NewServer(cfg.Server, logger)
	server.MountRoot(handlers.NewHealthHandler(version.Version, db))
	server.MountAPI(
		handlers.NewEpisodeHandler(episodeRepo, pool, logger),
		handlers.NewJobHandler(pool),
		handlers.NewEventsHandler(progressService, logger),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("error", err))
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Error("pool shutdown", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}
