package transcode

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startSleep(t *testing.T) *exec.Cmd {
	t.Helper()
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	return cmd
}

func TestArenaRegisterDeregister(t *testing.T) {
	arena := NewArena()
	assert.Equal(t, 0, arena.Len())

	cmd := startSleep(t)
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	arena.Register(cmd, "720p")
	assert.Equal(t, 1, arena.Len())

	arena.Deregister(cmd)
	assert.Equal(t, 0, arena.Len())
}

func TestArenaKillAll(t *testing.T) {
	arena := NewArena()
	first := startSleep(t)
	second := startSleep(t)
	arena.Register(first, "1080p")
	arena.Register(second, "720p")

	arena.KillAll()

	err := first.Wait()
	assert.Error(t, err)
	err = second.Wait()
	assert.Error(t, err)
}

func TestArenaKillAllIdempotent(t *testing.T) {
	arena := NewArena()
	cmd := startSleep(t)
	arena.Register(cmd, "480p")

	arena.KillAll()
	require.Error(t, cmd.Wait())
	arena.Deregister(cmd)

	// Killing with nothing registered is a no-op.
	arena.KillAll()
}

func TestArenaStats(t *testing.T) {
	arena := NewArena()
	assert.Nil(t, arena.Stats())

	cmd := startSleep(t)
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()
	arena.Register(cmd, "sprite_0")

	stats := arena.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, cmd.Process.Pid, stats[0].PID)
	assert.Equal(t, "sprite_0", stats[0].Label)

	started, err := time.Parse(time.RFC3339, stats[0].StartedAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), started, time.Minute)
}

func TestArenaRegisterIgnoresUnstarted(t *testing.T) {
	arena := NewArena()
	arena.Register(exec.Command("sleep", "1"), "never-started")
	arena.Register(nil, "nil")
	assert.Equal(t, 0, arena.Len())
}
