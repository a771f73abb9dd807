package workspace

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/lmap-agent/lmapd/internal/csvcodec"
	"github.com/lmap-agent/lmapd/internal/model"
)

const metaDelim = ';'

// ProductVersion is rendered into every meta file's magic line.
const ProductVersion = "lmap-agent version 1.0.0"

// MetaStartInfo carries everything needed to render the "start of
// Action" section of a meta file, per §4.2's numbered line list.
type MetaStartInfo struct {
	Schedule *model.Schedule
	Action   *model.Action
	Task     *model.Task

	TaskOptions   []model.Option
	ActionOptions []model.Option

	ScheduleTags []string
	ActionTags   []string

	ScheduleInvocation time.Time
	ActionInvocation   time.Time

	CycleNumber *time.Time
}

// WriteMetaStart creates (or truncates) the meta file at path and
// writes the start-of-Action section: magic, schedule/action/task
// identity, option triples, tag lines, event/start epochs and the
// optional cycle-number line.
func WriteMetaStart(path string, info MetaStartInfo) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("workspace: open meta %s: %w", path, err)
	}
	defer f.Close()
	return writeMetaStart(f, info)
}

func writeMetaStart(w io.Writer, info MetaStartInfo) error {
	cw := csvcodec.NewWriter(w, metaDelim)

	if err := cw.KeyValue("magic", ProductVersion); err != nil {
		return err
	}
	if err := cw.KeyValue("schedule", info.Schedule.Name); err != nil {
		return err
	}
	if err := cw.KeyValue("action", info.Action.Name); err != nil {
		return err
	}
	if err := cw.KeyValue("task", info.Task.Name); err != nil {
		return err
	}

	if err := writeOptions(cw, info.TaskOptions); err != nil {
		return err
	}
	if err := writeOptions(cw, info.ActionOptions); err != nil {
		return err
	}

	if err := writeTags(cw, info.Task.Tags); err != nil {
		return err
	}
	if err := writeTags(cw, info.ScheduleTags); err != nil {
		return err
	}
	if err := writeTags(cw, info.ActionTags); err != nil {
		return err
	}

	if err := cw.KeyValue("event", strconv.FormatInt(info.ScheduleInvocation.Unix(), 10)); err != nil {
		return err
	}
	if err := cw.KeyValue("start", strconv.FormatInt(info.ActionInvocation.Unix(), 10)); err != nil {
		return err
	}

	if info.CycleNumber != nil {
		if err := cw.KeyValue("cycle-number", formatCycleNumber(*info.CycleNumber)); err != nil {
			return err
		}
	}
	return nil
}

// writeOptions renders each Option as up to three lines
// (option-id/option-name/option-value), omitting name/value lines
// whose pointer is nil, preserving declaration order.
func writeOptions(cw *csvcodec.Writer, opts []model.Option) error {
	for _, o := range opts {
		if err := cw.KeyValue("option-id", o.ID); err != nil {
			return err
		}
		if o.Name != nil {
			if err := cw.KeyValue("option-name", *o.Name); err != nil {
				return err
			}
		}
		if o.Value != nil {
			if err := cw.KeyValue("option-value", *o.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeTags(cw *csvcodec.Writer, tags []string) error {
	for _, t := range tags {
		if err := cw.KeyValue("tag", t); err != nil {
			return err
		}
	}
	return nil
}

// formatCycleNumber renders t as YYYYMMDD.HHMMSS in UTC, per §4.2.
func formatCycleNumber(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%04d%02d%02d.%02d%02d%02d",
		u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second())
}

// AppendMetaEnd opens the meta file at path in append mode and writes
// the end-of-Action section: completion epoch and exit status.
func AppendMetaEnd(path string, completion time.Time, status int) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("workspace: append meta %s: %w", path, err)
	}
	defer f.Close()

	cw := csvcodec.NewWriter(f, metaDelim)
	if err := cw.KeyValue("end", strconv.FormatInt(completion.Unix(), 10)); err != nil {
		return err
	}
	return cw.KeyValue("status", strconv.Itoa(status))
}
