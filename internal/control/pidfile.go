// Package control implements the daemon's single-instance pid-file
// lock. The signal-mapped reload/shutdown/dump-state/clean operations
// of the control surface (spec §4.6) live in cmd/lmapd, not here.
// Liveness checking is grounded on
// github.com/shirou/gopsutil/v4/process, which the teacher's retrieval
// pack already carries for process introspection.
package control

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// PIDFile guards a run_path against more than one live daemon instance.
type PIDFile struct {
	path string
}

// NewPIDFile returns a PIDFile at path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Acquire reads an existing pid file (if any), refuses to start if the
// recorded pid is alive (gopsutil's process.PidExists, the
// liveness-check analogue of POSIX kill(pid, 0)), and otherwise writes
// the current process's pid.
func (p *PIDFile) Acquire() error {
	if existing, ok := p.readExisting(); ok {
		alive, err := process.PidExists(int32(existing))
		if err == nil && alive {
			return fmt.Errorf("control: daemon already running with pid %d (%s)", existing, p.path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("control: mkdir run path: %w", err)
	}
	if err := os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return fmt.Errorf("control: write pid file: %w", err)
	}
	return nil
}

// Release removes the pid file on clean shutdown.
func (p *PIDFile) Release() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("control: remove pid file: %w", err)
	}
	return nil
}

func (p *PIDFile) readExisting() (int, bool) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
