package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// EncoderKind identifies the encode backend family.
type EncoderKind string

const (
	// EncoderNVENC is NVIDIA hardware encoding.
	EncoderNVENC EncoderKind = "nvenc"
	// EncoderQSV is Intel Quick Sync hardware encoding.
	EncoderQSV EncoderKind = "qsv"
	// EncoderVAAPI is VA-API hardware encoding (Linux).
	EncoderVAAPI EncoderKind = "vaapi"
	// EncoderSoftware is libx264 software encoding.
	EncoderSoftware EncoderKind = "software"
)

// EncoderProfile describes one encode backend: the codec to pass to ffmpeg,
// its preset, and backend-specific extra arguments. Exactly one profile is
// selected per process lifetime and shared read-only by all jobs.
type EncoderProfile struct {
	Kind EncoderKind `json:"kind"`
	// Codec is the ffmpeg video encoder name.
	Codec string `json:"codec"`
	// Preset is passed as -preset when non-empty.
	Preset string `json:"preset,omitempty"`
	// GlobalArgs are placed before the input (device selection flags).
	GlobalArgs []string `json:"global_args,omitempty"`
	// ExtraArgs are placed with the output options.
	ExtraArgs []string `json:"extra_args,omitempty"`
}

// IsHardware returns true for GPU-backed profiles.
func (p EncoderProfile) IsHardware() bool {
	return p.Kind != EncoderSoftware
}

// SoftwareProfile returns the libx264 fallback profile. It is the result of
// detection whenever no hardware encoder is usable.
func SoftwareProfile() EncoderProfile {
	return EncoderProfile{
		Kind:      EncoderSoftware,
		Codec:     "libx264",
		Preset:    "fast",
		ExtraArgs: []string{"-profile:v", "high", "-pix_fmt", "yuv420p"},
	}
}

// candidate pairs a hardware encoder name with the profile selected when it
// proves usable. Order is the detection priority.
var hardwareCandidates = []struct {
	encoder string
	profile EncoderProfile
}{
	{
		encoder: "h264_nvenc",
		profile: EncoderProfile{
			Kind:      EncoderNVENC,
			Codec:     "h264_nvenc",
			Preset:    "p5",
			ExtraArgs: []string{"-rc", "vbr", "-pix_fmt", "yuv420p"},
		},
	},
	{
		encoder: "h264_qsv",
		profile: EncoderProfile{
			Kind:      EncoderQSV,
			Codec:     "h264_qsv",
			Preset:    "medium",
			ExtraArgs: []string{"-pix_fmt", "nv12"},
		},
	},
	{
		encoder: "h264_vaapi",
		profile: EncoderProfile{
			Kind:       EncoderVAAPI,
			Codec:      "h264_vaapi",
			GlobalArgs: []string{"-vaapi_device", "/dev/dri/renderD128"},
		},
	},
}

// Detector selects the encoder profile for this process.
//
// Detection is single-flight: the first caller performs the probe and every
// concurrent or later caller receives the same memoized result without
// re-probing. A failed probe is not fatal; it resolves to the software
// fallback profile.
type Detector struct {
	ffmpegPath string
	logger     *slog.Logger

	once    sync.Once
	profile EncoderProfile

	// probeFn is replaceable in tests.
	probeFn func(ctx context.Context) (EncoderProfile, error)
}

// NewDetector creates an encoder capability detector.
func NewDetector(ffmpegPath string, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Detector{
		ffmpegPath: ffmpegPath,
		logger:     logger.With(slog.String("component", "encoder_detector")),
	}
	d.probeFn = d.probe
	return d
}

// Detect returns the encoder profile for this process, probing the host on
// first invocation. Safe for concurrent use.
func (d *Detector) Detect(ctx context.Context) EncoderProfile {
	d.once.Do(func() {
		profile, err := d.probeFn(ctx)
		if err != nil {
			d.logger.Warn("encoder detection failed, using software fallback",
				slog.String("error", err.Error()))
			profile = SoftwareProfile()
		}
		d.profile = profile
		d.logger.Info("encoder selected",
			slog.String("kind", string(profile.Kind)),
			slog.String("codec", profile.Codec))
	})
	return d.profile
}

// probe queries ffmpeg for available encoders and verifies hardware
// candidates in priority order with a short null encode.
func (d *Detector) probe(ctx context.Context) (EncoderProfile, error) {
	cmd := exec.CommandContext(ctx, d.ffmpegPath, "-encoders", "-hide_banner")
	output, err := cmd.Output()
	if err != nil {
		return EncoderProfile{}, fmt.Errorf("listing encoders: %w", err)
	}

	available := parseEncoderList(string(output))

	for _, c := range hardwareCandidates {
		if !available[c.encoder] {
			continue
		}
		if d.testEncoder(ctx, c.profile) {
			return c.profile, nil
		}
		d.logger.Debug("hardware encoder listed but unusable",
			slog.String("encoder", c.encoder))
	}

	return SoftwareProfile(), nil
}

// testEncoder verifies an encoder actually works by encoding a tiny null
// source. Listed hardware encoders routinely fail at runtime when the
// device or driver is absent.
func (d *Detector) testEncoder(ctx context.Context, profile EncoderProfile) bool {
	args := []string{"-hide_banner"}
	args = append(args, profile.GlobalArgs...)
	args = append(args, "-f", "lavfi", "-i", "nullsrc=s=320x240:d=0.1")
	if profile.Kind == EncoderVAAPI {
		args = append(args, "-vf", "format=nv12,hwupload")
	}
	args = append(args, "-c:v", profile.Codec)
	args = append(args, profile.ExtraArgs...)
	args = append(args, "-t", "0.01", "-f", "null", "-")

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	return cmd.Run() == nil
}

// parseEncoderList extracts encoder names from `ffmpeg -encoders` output.
func parseEncoderList(output string) map[string]bool {
	encoders := make(map[string]bool)
	inList := false

	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "------") {
			inList = true
			continue
		}
		if !inList {
			continue
		}

		// Format: " V....D encoder_name  description"
		line = strings.TrimLeft(line, " ")
		if len(line) < 8 {
			continue
		}
		if line[0] != 'V' && line[0] != 'A' && line[0] != 'S' {
			continue
		}

		fields := strings.Fields(strings.TrimSpace(line[6:]))
		if len(fields) >= 1 && fields[0] != "" {
			encoders[fields[0]] = true
		}
	}

	return encoders
}
