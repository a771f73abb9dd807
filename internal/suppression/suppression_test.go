package suppression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmap-agent/lmapd/internal/logger"
	"github.com/lmap-agent/lmapd/internal/model"
)

type recordingKiller struct {
	killed []string
}

func (k *recordingKiller) KillAction(sched *model.Schedule, a *model.Action) {
	k.killed = append(k.killed, sched.Name+"/"+a.Name)
	a.PID = 0
}

func TestFireStartSuppressesMatchingScheduleAndAction(t *testing.T) {
	killer := &recordingKiller{}
	eng := New(logger.New(logger.WithQuiet()), killer)

	a := model.NewAction("a1", "t")
	a.SuppressionTags = []string{"red"}
	sched := model.NewSchedule("s1")
	sched.SuppressionTags = []string{"red"}
	sched.Actions = []*model.Action{a}
	lmap := &model.Lmap{Schedules: []*model.Schedule{sched}}

	sp := model.NewSuppression("sp")
	sp.Match = []string{"red"}
	sp.StopRunning = true

	eng.FireStart(sp, lmap)

	assert.Equal(t, model.SuppressionActive, sp.GetState())
	assert.Equal(t, model.StateSuppressed, sched.State())
	assert.EqualValues(t, 1, sched.CntActiveSuppressions)
	assert.Equal(t, model.StateSuppressed, a.State())
	assert.EqualValues(t, 1, a.CntActiveSuppressions)
}

func TestFireStartKillsRunningActionWhenStopRunning(t *testing.T) {
	killer := &recordingKiller{}
	eng := New(logger.New(logger.WithQuiet()), killer)

	a := model.NewAction("a1", "t")
	a.SetState(model.StateRunning)
	a.PID = 1234
	a.SuppressionTags = []string{"red"}
	sched := model.NewSchedule("s1")
	sched.SuppressionTags = []string{"red"}
	sched.Actions = []*model.Action{a}
	lmap := &model.Lmap{Schedules: []*model.Schedule{sched}}

	sp := model.NewSuppression("sp")
	sp.Match = []string{"red"}
	sp.StopRunning = true

	eng.FireStart(sp, lmap)

	require.Len(t, killer.killed, 1)
	assert.Equal(t, "s1/a1", killer.killed[0])
	assert.Equal(t, model.StateSuppressed, a.State())
}

func TestFireEndReturnsToEnabledAtZero(t *testing.T) {
	killer := &recordingKiller{}
	eng := New(logger.New(logger.WithQuiet()), killer)

	a := model.NewAction("a1", "t")
	a.SuppressionTags = []string{"red"}
	sched := model.NewSchedule("s1")
	sched.SuppressionTags = []string{"red"}
	sched.Actions = []*model.Action{a}
	lmap := &model.Lmap{Schedules: []*model.Schedule{sched}}

	sp := model.NewSuppression("sp")
	sp.Match = []string{"red"}

	eng.FireStart(sp, lmap)
	eng.FireEnd(sp, lmap)

	assert.Equal(t, model.SuppressionEnabled, sp.GetState())
	assert.Equal(t, model.StateEnabled, sched.State())
	assert.EqualValues(t, 0, sched.CntActiveSuppressions)
	assert.Equal(t, model.StateEnabled, a.State())
}

func TestFireStartIgnoresReportTagsOnSchedule(t *testing.T) {
	killer := &recordingKiller{}
	eng := New(logger.New(logger.WithQuiet()), killer)

	sched := model.NewSchedule("s1")
	sched.Tags = []string{"red"}
	sched.SuppressionTags = []string{"blue"}
	lmap := &model.Lmap{Schedules: []*model.Schedule{sched}}

	sp := model.NewSuppression("sp")
	sp.Match = []string{"red"}

	eng.FireStart(sp, lmap)

	assert.Equal(t, model.StateEnabled, sched.State())
	assert.EqualValues(t, 0, sched.CntActiveSuppressions)
}

func TestInertSuppressionIsNoop(t *testing.T) {
	killer := &recordingKiller{}
	eng := New(logger.New(logger.WithQuiet()), killer)

	sched := model.NewSchedule("s1")
	lmap := &model.Lmap{Schedules: []*model.Schedule{sched}}

	sp := &model.Suppression{Name: "sp"} // no Match list: inert
	eng.FireStart(sp, lmap)

	assert.Equal(t, model.StateEnabled, sched.State())
}
