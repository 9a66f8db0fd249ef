// Package util provides shared utility functions.
package util

import (
	"fmt"
	"os"
	"os/exec"
)

// FindBinary locates an executable by name. The search order is:
//
//  1. The path named by envVar, when set and executable
//  2. ./name relative to the working directory
//  3. name on PATH
//
// Returns the resolved path or an error when nothing usable is found.
func FindBinary(name, envVar string) (string, error) {
	if envVar != "" {
		if p := os.Getenv(envVar); p != "" && isExecutableFile(p) {
			return p, nil
		}
	}

	if local := "./" + name; isExecutableFile(local) {
		return local, nil
	}

	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}

	return "", fmt.Errorf("binary %s not found", name)
}

// isExecutableFile reports whether path names a regular file with any
// executable bit set.
func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}
