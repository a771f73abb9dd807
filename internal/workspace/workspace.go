// Package workspace implements the content-addressed filesystem queue
// described in spec §4.2: per-Schedule/per-Action directory trees, the
// `_incoming` staging area, atomic meta/data pair promotion, safe name
// encoding and disk accounting.
//
// Directory creation and safe-filename conventions are grounded on the
// teacher's cmd/logging.go / cmd/logger.go log-directory helpers
// (os.MkdirAll(..., 0700-class modes) plus a SafeName-style filename
// builder); reserved-name and meta/data pair matching uses
// github.com/bmatcuk/doublestar/v4, the teacher's own glob-matching
// dependency.
package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/lmap-agent/lmapd/internal/logger"
	"github.com/lmap-agent/lmapd/internal/model"
)

const incomingDirName = "_incoming"

// dirMode is the permission mode for every Workspace directory (§4.2: "all with mode 0700").
const dirMode = 0o700

// Workspace roots a queue at a single directory on disk.
type Workspace struct {
	Root string
	log  logger.Logger
}

// New returns a Workspace rooted at root.
func New(root string, log logger.Logger) *Workspace {
	return &Workspace{Root: root, log: log}
}

// ScheduleDir returns the absolute base directory for a Schedule.
func (w *Workspace) ScheduleDir(scheduleName string) string {
	return filepath.Join(w.Root, SafeName(scheduleName))
}

// IncomingDir returns the absolute `_incoming` staging directory for a Schedule.
func (w *Workspace) IncomingDir(scheduleName string) string {
	return filepath.Join(w.ScheduleDir(scheduleName), incomingDirName)
}

// ActionDir returns the absolute workspace directory for an Action within a Schedule.
func (w *Workspace) ActionDir(scheduleName, actionName string) string {
	return filepath.Join(w.ScheduleDir(scheduleName), SafeName(actionName))
}

// ensureDir creates dir (and parents) with dirMode if it does not
// already exist. EEXIST is not an error, matching §4.2's "create if absent".
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, dirMode); err != nil && !os.IsExist(err) {
		return fmt.Errorf("workspace: mkdir %s: %w", dir, err)
	}
	return nil
}

// EnsureSchedule ensures a Schedule's base directory and its `_incoming` child exist.
func (w *Workspace) EnsureSchedule(scheduleName string) error {
	if err := ensureDir(w.ScheduleDir(scheduleName)); err != nil {
		return err
	}
	return ensureDir(w.IncomingDir(scheduleName))
}

// EnsureAction ensures an Action's workspace directory exists.
func (w *Workspace) EnsureAction(scheduleName, actionName string) error {
	return ensureDir(w.ActionDir(scheduleName, actionName))
}

// CleanAll removes every entry inside the queue root, recursively.
// Used on startup with -z and on operator (USR2) request.
func (w *Workspace) CleanAll() error {
	entries, err := os.ReadDir(w.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("workspace: read queue root: %w", err)
	}
	for _, e := range entries {
		p := filepath.Join(w.Root, e.Name())
		if err := os.RemoveAll(p); err != nil {
			w.log.Warn("workspace: clean-all failed to remove entry", "path", p, "error", err)
		}
	}
	return nil
}

// isReservedName reports whether name is reserved (begins with "_"),
// matched with doublestar so the reserved-name rule composes with any
// future glob-style reservations without a new string-prefix check.
func isReservedName(name string) bool {
	ok, _ := doublestar.Match("_*", name)
	return ok
}

// ScheduleClean removes regular files directly within a Schedule's
// base directory whose names do not begin with "_"; subdirectories
// (including `_incoming`) are preserved. Called when a Schedule
// finishes a fully-successful cycle (at least one succeeded Action,
// none failed).
func (w *Workspace) ScheduleClean(scheduleName string) error {
	dir := w.ScheduleDir(scheduleName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("workspace: read schedule dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || isReservedName(e.Name()) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if err := os.Remove(p); err != nil {
			w.log.Warn("workspace: schedule-clean failed", "path", p, "error", err)
		}
	}
	return nil
}

// ActionClean empties an Action's workspace (files and subdirectories)
// while preserving the directory itself.
func (w *Workspace) ActionClean(scheduleName, actionName string) error {
	dir := w.ActionDir(scheduleName, actionName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("workspace: read action dir %s: %w", dir, err)
	}
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(p); err != nil {
			w.log.Warn("workspace: action-clean failed", "path", p, "error", err)
		}
	}
	return nil
}

// Update walks every Schedule/Action workspace directory given and
// sums the on-disk block size (512-byte blocks) of regular files
// encountered, returning a byte total per directory.
func (w *Workspace) Update(dirs map[string]string) map[string]int64 {
	totals := make(map[string]int64, len(dirs))
	for key, dir := range dirs {
		var total int64
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			total += blockSize(info)
			return nil
		})
		totals[key] = total
	}
	return totals
}

// RefreshStorage implements §4.2's `update`: it walks every Schedule
// and Action workspace directory in lmap and writes the summed
// on-disk size back onto Schedule.Storage / Action.Storage.
func (w *Workspace) RefreshStorage(lmap *model.Lmap) {
	for _, sched := range lmap.Schedules {
		dirs := map[string]string{sched.Name: w.ScheduleDir(sched.Name)}
		for _, a := range sched.Actions {
			dirs[sched.Name+"/"+a.Name] = w.ActionDir(sched.Name, a.Name)
		}
		totals := w.Update(dirs)
		sched.Storage = totals[sched.Name]
		for _, a := range sched.Actions {
			a.Storage = totals[sched.Name+"/"+a.Name]
		}
	}
}

// ResultFileBase returns the shared basename (without extension) for
// an Action invocation's meta/data file pair, per §4.2:
// "<action.last_invocation>-<safe(schedule)>-<safe(action)>".
func ResultFileBase(invocationUnixSeconds int64, scheduleName, actionName string) string {
	return fmt.Sprintf("%d-%s-%s", invocationUnixSeconds, SafeName(scheduleName), SafeName(actionName))
}

// MetaPath and DataPath return the full paths of a result file pair
// within an Action's own workspace directory.
func (w *Workspace) MetaPath(scheduleName, actionName, base string) string {
	return filepath.Join(w.ActionDir(scheduleName, actionName), base+".meta")
}

func (w *Workspace) DataPath(scheduleName, actionName, base string) string {
	return filepath.Join(w.ActionDir(scheduleName, actionName), base+".data")
}

// metaDataPairs scans dir for "<base>.meta" files with a matching
// "<base>.data" regular-file companion, returning the bases found.
// Files without a complete pair are skipped — the caller decides
// whether to wait for a following cycle or treat the file as an
// orphan, per the call site's semantics (§4.2 Action/Schedule move
// have different rules for what "incomplete" means).
func metaDataPairs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("workspace: read %s: %w", dir, err)
	}
	var bases []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ok, _ := doublestar.Match("*.meta", e.Name())
		if !ok {
			continue
		}
		base := strings.TrimSuffix(e.Name(), ".meta")
		dataInfo, err := os.Stat(filepath.Join(dir, base+".data"))
		if err != nil || dataInfo.IsDir() {
			continue
		}
		metaInfo, err := e.Info()
		if err != nil || metaInfo.IsDir() {
			continue
		}
		bases = append(bases, base)
	}
	return bases, nil
}
