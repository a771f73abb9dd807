package workspace

import (
	"os"
	"path/filepath"
)

// linkFile promotes src to dst with a hardlink-equivalent, same-filesystem
// move: link then unlink, so a crash between the two leaves the data
// reachable from at least one of the two paths rather than copied and
// doubled on disk.
func linkFile(src, dst string) error {
	if err := os.Link(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// MoveAction runs an Action's completed result pair (base.meta,
// base.data, both inside the Action's own workspace) out to each of
// its destination Schedules, per §4.2 "Action move". Each destination
// Schedule name maps to the directory the pair should land in: the
// owning Schedule's own base directory when the destination equals
// the owner, otherwise the destination's `_incoming`.
//
// Link failures and name collisions are logged and do not abort
// remaining destinations, matching the spec's "log and continue with
// siblings" failure semantics.
func (w *Workspace) MoveAction(scheduleName, actionName, base string, destinations []string) {
	srcMeta := w.MetaPath(scheduleName, actionName, base)
	srcData := w.DataPath(scheduleName, actionName, base)

	// the first destination moves the pair; later ones hard-link it
	// from the first destination's copy, leaving that copy in place.
	link := linkFile
	for _, dest := range destinations {
		var destDir string
		if dest == scheduleName {
			destDir = w.ScheduleDir(scheduleName)
		} else {
			destDir = w.IncomingDir(dest)
		}

		dstMeta := filepath.Join(destDir, base+".meta")
		dstData := filepath.Join(destDir, base+".data")

		if err := link(srcMeta, dstMeta); err != nil {
			w.log.Warn("workspace: action-move meta link failed", "from", srcMeta, "to", dstMeta, "error", err)
			continue
		}
		if err := link(srcData, dstData); err != nil {
			w.log.Warn("workspace: action-move data link failed", "from", srcData, "to", dstData, "error", err)
			continue
		}
		// Subsequent destinations need srcMeta/srcData again; since the
		// first destination already unlinked them from the Action
		// workspace, re-link from the just-created copy in destDir so
		// every destination still receives the full pair.
		srcMeta, srcData = dstMeta, dstData
		link = os.Link
	}
}

// MoveSchedule atomically promotes every complete `.meta`/`.data` pair
// waiting in a Schedule's `_incoming` staging area into its active
// input area (the Schedule's base directory), per §4.2 "Schedule
// move". Incomplete pairs are left behind for a later cycle.
func (w *Workspace) MoveSchedule(scheduleName string) error {
	incoming := w.IncomingDir(scheduleName)
	bases, err := metaDataPairs(incoming)
	if err != nil {
		return err
	}
	active := w.ScheduleDir(scheduleName)

	for _, base := range bases {
		srcMeta := filepath.Join(incoming, base+".meta")
		srcData := filepath.Join(incoming, base+".data")
		dstMeta := filepath.Join(active, base+".meta")
		dstData := filepath.Join(active, base+".data")

		if err := os.Link(srcMeta, dstMeta); err != nil {
			w.log.Warn("workspace: schedule-move meta link failed", "base", base, "error", err)
			continue
		}
		if err := os.Link(srcData, dstData); err != nil {
			w.log.Warn("workspace: schedule-move data link failed", "base", base, "error", err)
			// roll back the meta link to avoid a partial promotion
			if rmErr := os.Remove(dstMeta); rmErr != nil {
				w.log.Warn("workspace: schedule-move rollback failed", "path", dstMeta, "error", rmErr)
			}
			continue
		}
		if err := os.Remove(srcMeta); err != nil {
			w.log.Warn("workspace: schedule-move unlink meta failed", "path", srcMeta, "error", err)
		}
		if err := os.Remove(srcData); err != nil {
			w.log.Warn("workspace: schedule-move unlink data failed", "path", srcData, "error", err)
		}
	}
	return nil
}
