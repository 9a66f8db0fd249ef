package transcode

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// AssembleMaster writes master.m3u8 referencing every successful quality's
// variant playlist, ordered by descending bandwidth so players start from
// the best variant. Callers must only invoke this with at least one
// succeeded quality.
func AssembleMaster(outputDir string, succeeded []QualityProfile) (string, error) {
	if len(succeeded) == 0 {
		return "", fmt.Errorf("no qualities to assemble")
	}

	variants := make([]QualityProfile, len(succeeded))
	copy(variants, succeeded)
	sort.Slice(variants, func(i, j int) bool {
		return variants[i].Bandwidth() > variants[j].Bandwidth()
	})

	path := filepath.Join(outputDir, "master.m3u8")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating master playlist: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "#EXTM3U")
	fmt.Fprintln(w, "#EXT-X-VERSION:3")
	for _, q := range variants {
		fmt.Fprintf(w, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%s\n", q.Bandwidth(), q.Resolution())
		fmt.Fprintf(w, "%s.m3u8\n", q.Name)
	}

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("writing master playlist: %w", err)
	}
	return path, nil
}
