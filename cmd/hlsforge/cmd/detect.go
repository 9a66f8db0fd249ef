package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/hlsforge/internal/ffmpeg"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect the usable video encoder",
	Long: `Probe the local ffmpeg installation for hardware encoders (NVENC,
Quick Sync, VAAPI) and print the profile that transcode jobs would use.
Falls back to libx264 software encoding when no hardware encoder works.`,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	binaries, err := ffmpeg.FindBinaries(cfg.FFmpeg.BinaryPath, cfg.FFmpeg.ProbePath)
	if err != nil {
		return fmt.Errorf("locating ffmpeg binaries: %w", err)
	}

	detector := ffmpeg.NewDetector(binaries.FFmpegPath, slog.Default())
	profile := detector.Detect(cmd.Context())

	out, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
