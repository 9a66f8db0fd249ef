package transcode

import (
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// SubprocessStatus describes one tracked ffmpeg subprocess.
type SubprocessStatus struct {
	PID        int     `json:"pid"`
	Label      string  `json:"label"`
	StartedAt  string  `json:"started_at"`
	CPUPercent float64 `json:"cpu_percent,omitempty"`
	MemoryRSS  uint64  `json:"memory_rss_bytes,omitempty"`
}

type trackedProcess struct {
	cmd       *exec.Cmd
	label     string
	startedAt time.Time
}

// Arena tracks the set of live subprocesses belonging to one job so the
// timeout and shutdown paths can terminate every one of them. A process
// is registered after Start succeeds and deregistered after Wait returns.
type Arena struct {
	mu    sync.Mutex
	procs map[int]*trackedProcess
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{procs: make(map[int]*trackedProcess)}
}

// Register adds a started command to the arena. The label identifies the
// work the process is doing (quality name, sprite index).
func (a *Arena) Register(cmd *exec.Cmd, label string) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.procs[cmd.Process.Pid] = &trackedProcess{
		cmd:       cmd,
		label:     label,
		startedAt: time.Now(),
	}
}

// Deregister removes a command once it has been waited on.
func (a *Arena) Deregister(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.procs, cmd.Process.Pid)
}

// Len returns the number of live tracked processes.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.procs)
}

// KillAll sends SIGKILL to every tracked process. Used on job timeout and
// pool shutdown. Safe to call multiple times; already-exited processes
// are ignored.
func (a *Arena) KillAll() {
	a.mu.Lock()
	procs := make([]*trackedProcess, 0, len(a.procs))
	for _, p := range a.procs {
		procs = append(procs, p)
	}
	a.mu.Unlock()

	for _, p := range procs {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Signal(syscall.SIGKILL)
		}
	}
}

// Stats samples CPU and memory usage for every tracked process. Sampling
// failures for an individual process are ignored; the process may have
// exited between listing and sampling.
func (a *Arena) Stats() []SubprocessStatus {
	a.mu.Lock()
	snapshot := make(map[int]*trackedProcess, len(a.procs))
	for pid, p := range a.procs {
		snapshot[pid] = p
	}
	a.mu.Unlock()

	if len(snapshot) == 0 {
		return nil
	}

	out := make([]SubprocessStatus, 0, len(snapshot))
	for pid, p := range snapshot {
		st := SubprocessStatus{
			PID:       pid,
			Label:     p.label,
			StartedAt: p.startedAt.Format(time.RFC3339),
		}
		if proc, err := process.NewProcess(int32(pid)); err == nil {
			if cpu, err := proc.CPUPercent(); err == nil {
				st.CPUPercent = cpu
			}
			if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
				st.MemoryRSS = mem.RSS
			}
		}
		out = append(out, st)
	}
	return out
}
