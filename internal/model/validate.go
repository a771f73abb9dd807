package model

import (
	"github.com/google/uuid"

	"github.com/lmap-agent/lmapd/internal/identifier"
	"github.com/lmap-agent/lmapd/internal/merr"
)

// Validate checks every invariant from spec §3 and returns an
// *merr.Aggregate (via ErrOrNil) naming every offending entity, rather
// than failing on the first problem — matching the teacher's practice
// of collecting every DAG-load error before refusing to start.
func (l *Lmap) Validate() error {
	var agg merr.Aggregate

	if l.Agent.ReportAgentID && l.Agent.AgentID == uuid.Nil {
		agg.Addf("agent", "report_agent_id set without agent_id")
	}
	if l.Agent.ReportGroupID && l.Agent.GroupID == "" {
		agg.Addf("agent", "report_group_id set without group_id")
	}
	if l.Agent.ReportMeasurementPoint && l.Agent.MeasurementPoint == "" {
		agg.Addf("agent", "report_measurement_point set without measurement_point")
	}

	if dup := uniqueTaskNames(l.Tasks); dup != "" {
		agg.Addf("task", "duplicate name %q", dup)
	}
	if dup := uniqueEventNames(l.Events); dup != "" {
		agg.Addf("event", "duplicate name %q", dup)
	}
	if dup := uniqueScheduleNames(l.Schedules); dup != "" {
		agg.Addf("schedule", "duplicate name %q", dup)
	}
	if dup := uniqueSuppressionNames(l.Suppressions); dup != "" {
		agg.Addf("suppression", "duplicate name %q", dup)
	}

	for _, t := range referencedTasks(l) {
		found := false
		for _, ct := range l.Capability.Tasks {
			if ct.Program == t.Program {
				found = true
				break
			}
		}
		if !found {
			agg.Addf("task:"+t.Name, "program %q matches no capability task", t.Program)
		}
	}

	for _, e := range l.Events {
		if e.Type == EventCalendar {
			if e.Months == 0 || e.DaysOfMonth == 0 || e.DaysOfWeek == 0 ||
				e.Hours == 0 || e.Minutes == 0 || e.Seconds == 0 {
				agg.Addf("event:"+e.Name, "calendar event has an empty bitset field")
			}
			if e.TimezoneOffset != nil {
				if err := identifier.TimezoneOffsetMinutes(*e.TimezoneOffset); err != nil {
					agg.Addf("event:"+e.Name, "%v", err)
				}
			}
		}
		if e.StartEpoch != nil && e.EndEpoch != nil && e.EndEpoch.Before(*e.StartEpoch) {
			agg.Addf("event:"+e.Name, "end is before start")
		}
	}

	for _, s := range l.Schedules {
		if s.Start == "" || l.EventByName(s.Start) == nil {
			agg.Addf("schedule:"+s.Name, "start event %q not found", s.Start)
		}
		if s.End != "" && l.EventByName(s.End) == nil {
			agg.Addf("schedule:"+s.Name, "end event %q not found", s.End)
		}
		if s.End != "" && s.Duration != nil {
			agg.Addf("schedule:"+s.Name, "both end and duration set")
		}
		if dup := uniqueActionNames(s.Actions); dup != "" {
			agg.Addf("schedule:"+s.Name, "duplicate action name %q", dup)
		}
		for _, a := range s.Actions {
			if l.TaskByName(a.Task) == nil {
				agg.Addf("action:"+s.Name+"/"+a.Name, "task %q not found", a.Task)
			}
			for _, d := range a.Destinations {
				if l.ScheduleByName(d) == nil {
					agg.Addf("action:"+s.Name+"/"+a.Name, "destination schedule %q not found", d)
				}
			}
		}
	}

	for _, sup := range l.Suppressions {
		if l.EventByName(sup.Start) == nil {
			agg.Addf("suppression:"+sup.Name, "start event %q not found", sup.Start)
		}
		if l.EventByName(sup.End) == nil {
			agg.Addf("suppression:"+sup.Name, "end event %q not found", sup.End)
		}
	}

	return agg.ErrOrNil()
}

// referencedTasks returns the Tasks actually reachable from some
// Action's task reference, since §3's capability-match invariant
// binds only a "Task referenced by any Action" — an unreferenced Task
// entry with a stale program is not itself invalid.
func referencedTasks(l *Lmap) []*Task {
	seen := make(map[string]bool)
	var out []*Task
	for _, s := range l.Schedules {
		for _, a := range s.Actions {
			t := l.TaskByName(a.Task)
			if t == nil || seen[t.Name] {
				continue
			}
			seen[t.Name] = true
			out = append(out, t)
		}
	}
	return out
}

func uniqueTaskNames(ts []*Task) string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name
	}
	return identifier.UniqueNames(names)
}

func uniqueEventNames(es []*Event) string {
	names := make([]string, len(es))
	for i, e := range es {
		names[i] = e.Name
	}
	return identifier.UniqueNames(names)
}

func uniqueScheduleNames(ss []*Schedule) string {
	names := make([]string, len(ss))
	for i, s := range ss {
		names[i] = s.Name
	}
	return identifier.UniqueNames(names)
}

func uniqueSuppressionNames(ss []*Suppression) string {
	names := make([]string, len(ss))
	for i, s := range ss {
		names[i] = s.Name
	}
	return identifier.UniqueNames(names)
}

func uniqueActionNames(as []*Action) string {
	names := make([]string, len(as))
	for i, a := range as {
		names[i] = a.Name
	}
	return identifier.UniqueNames(names)
}
