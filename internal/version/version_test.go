package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, Commit, info.Commit)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}

func TestStringDevBuild(t *testing.T) {
	s := String()
	assert.Contains(t, s, ApplicationName)
	assert.Contains(t, s, Version)
}

func TestStringWithCommit(t *testing.T) {
	origCommit := Commit
	defer func() { Commit = origCommit }()

	Commit = "abcdef1234567890"
	s := String()
	assert.Contains(t, s, "abcdef12")
	assert.NotContains(t, s, "abcdef123")
}

func TestShort(t *testing.T) {
	s := Short()
	assert.Contains(t, s, ApplicationName)
	assert.Contains(t, s, Version)
}
