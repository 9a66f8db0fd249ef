package ffmpeg

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// ScanProgress reads `-progress pipe:N` key=value records from r and calls
// fn with the media seconds processed each time an out_time figure arrives.
// It returns when r reaches EOF, which happens when the subprocess exits,
// or with the scanner's error when the pipe read fails.
//
// ffmpeg emits both out_time_us and out_time_ms; both carry microseconds
// (the _ms name is a long-standing quirk), so either is accepted.
func ScanProgress(r io.Reader, fn func(outTimeSeconds float64)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || us < 0 {
				continue
			}
			fn(float64(us) / 1e6)
		}
	}
	return scanner.Err()
}

// PercentOf maps processed media seconds against a total duration into a
// 0-100 percentage, clamped.
func PercentOf(processedSeconds, durationSeconds float64) float64 {
	if durationSeconds <= 0 {
		return 0
	}
	pct := processedSeconds / durationSeconds * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
