package transcode

import (
	"bufio"
	"fmt"
	"math"
	"os"
)

// formatVTTTimestamp renders seconds as HH:MM:SS.mmm.
func formatVTTTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int64(math.Round(seconds * 1000))
	h := millis / 3_600_000
	millis %= 3_600_000
	m := millis / 60_000
	millis %= 60_000
	s := millis / 1000
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// writeSpriteVTT writes the WebVTT cue file for one sprite sheet. Each cue
// covers one interval of the video and points into the sprite image via a
// media fragment. Cue times use the global thumbnail index so the files of
// a multi-sprite video chain together seamlessly.
func writeSpriteVTT(path, spriteFile string, plan SpritePlan, interval int, durationSeconds float64, tileW, tileH int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating vtt file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "WEBVTT")

	for i := 0; i < plan.Count; i++ {
		global := plan.FirstThumb + i
		start := float64(global * interval)
		end := float64((global + 1) * interval)
		if end > durationSeconds {
			end = durationSeconds
		}
		if end <= start {
			break
		}

		x := (i % plan.Cols) * tileW
		y := (i / plan.Cols) * tileH

		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s --> %s\n", formatVTTTimestamp(start), formatVTTTimestamp(end))
		fmt.Fprintf(w, "%s#xywh=%d,%d,%d,%d\n", spriteFile, x, y, tileW, tileH)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing vtt file: %w", err)
	}
	return nil
}
