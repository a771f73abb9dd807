package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalLmap() *Lmap {
	l := &Lmap{
		Capability: Capability{Tasks: []CapabilityTask{{Program: "/bin/true"}}},
		Tasks:      []*Task{{Name: "t", Program: "/bin/true"}},
		Events:     []*Event{{Name: "bang", Type: EventImmediate}},
	}
	sched := NewSchedule("s")
	sched.Start = "bang"
	sched.Actions = append(sched.Actions, NewAction("a", "t"))
	l.Schedules = append(l.Schedules, sched)
	return l
}

func TestValidateMinimalOK(t *testing.T) {
	l := minimalLmap()
	require.NoError(t, l.Validate())
}

func TestValidateMissingEventRef(t *testing.T) {
	l := minimalLmap()
	l.Schedules[0].Start = "nonexistent"
	err := l.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start event")
}

func TestValidateTaskProgramNotInCapability(t *testing.T) {
	l := minimalLmap()
	l.Tasks[0].Program = "/bin/false"
	err := l.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matches no capability task")
}

func TestValidateIgnoresUnreferencedTaskProgram(t *testing.T) {
	l := minimalLmap()
	l.Tasks = append(l.Tasks, &Task{Name: "unused", Program: "/bin/false"})
	require.NoError(t, l.Validate())
}

func TestValidateDuplicateNames(t *testing.T) {
	l := minimalLmap()
	l.Tasks = append(l.Tasks, &Task{Name: "t", Program: "/bin/true"})
	err := l.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate name")
}

func TestValidateEndBeforeStart(t *testing.T) {
	l := minimalLmap()
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.Events = append(l.Events, &Event{
		Name: "w", Type: EventPeriodic, Interval: 60,
		StartEpoch: &start, EndEpoch: &end,
	})
	err := l.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end is before start")
}

func TestValidateCalendarEmptyBitset(t *testing.T) {
	l := minimalLmap()
	l.Events = append(l.Events, &Event{
		Name: "cal", Type: EventCalendar,
		Months: 0, DaysOfMonth: 1, DaysOfWeek: 1, Hours: 1, Minutes: 1, Seconds: 1,
	})
	err := l.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty bitset")
}

func TestScheduleSetEndAndDuration(t *testing.T) {
	s := NewSchedule("s")
	s.SetEnd("e")
	assert.Equal(t, "e", s.End)
	assert.Nil(t, s.Duration)

	s.SetDuration(60)
	assert.Equal(t, "", s.End)
	require.NotNil(t, s.Duration)
	assert.EqualValues(t, 60, *s.Duration)
}

func TestActionAndScheduleStateIsConcurrencySafe(t *testing.T) {
	a := NewAction("a", "t")
	a.SetState(StateRunning)
	assert.Equal(t, StateRunning, a.State())

	s := NewSchedule("s")
	s.SetState(StateSuppressed)
	assert.Equal(t, StateSuppressed, s.State())
}
