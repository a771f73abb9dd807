package codec

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmap-agent/lmapd/internal/model"
)

func TestJSONConfigRoundTrip(t *testing.T) {
	name := "count"
	value := "5"
	l := &model.Lmap{
		Agent: model.Agent{AgentID: uuid.New(), GroupID: "g1"},
		Capability: model.Capability{
			Tasks: []model.CapabilityTask{{Program: "/bin/true"}},
		},
		Tasks: []*model.Task{{
			Name: "t", Program: "/bin/true",
			Options: []model.Option{{ID: "1", Name: &name, Value: &value}},
		}},
		Events: []*model.Event{{Name: "bang", Type: model.EventImmediate}},
	}
	sched := model.NewSchedule("s")
	sched.Start = "bang"
	sched.Actions = []*model.Action{model.NewAction("a", "t")}
	l.Schedules = []*model.Schedule{sched}

	c := NewJSON()
	var buf bytes.Buffer
	require.NoError(t, c.EncodeConfig(&buf, l))

	decoded, err := c.DecodeConfig(&buf)
	require.NoError(t, err)

	assert.Equal(t, l.Agent.AgentID, decoded.Agent.AgentID)
	assert.Equal(t, "g1", decoded.Agent.GroupID)
	require.Len(t, decoded.Tasks, 1)
	assert.Equal(t, "/bin/true", decoded.Tasks[0].Program)
	require.Len(t, decoded.Schedules, 1)
	assert.Equal(t, "bang", decoded.Schedules[0].Start)
	require.Len(t, decoded.Schedules[0].Actions, 1)
	assert.Equal(t, "a", decoded.Schedules[0].Actions[0].Name)
}

func TestJSONEncodeState(t *testing.T) {
	l := &model.Lmap{Agent: model.Agent{AgentID: uuid.New()}}
	sched := model.NewSchedule("s")
	sched.CntInvocations = 3
	l.Schedules = []*model.Schedule{sched}

	var buf bytes.Buffer
	require.NoError(t, NewJSON().EncodeState(&buf, l))
	assert.Contains(t, buf.String(), `"cnt-invocations": 3`)
}

func TestJSONEncodeReport(t *testing.T) {
	results := []*model.Result{{
		Schedule: "s", Action: "a", Task: "t",
		Event: time.Unix(1700000000, 0), Start: time.Unix(1700000001, 0),
		Status: 0,
		Tables: []model.Table{{Rows: []model.Row{{Values: []model.Value{"1", "2"}}}}},
	}}
	var buf bytes.Buffer
	require.NoError(t, NewJSON().EncodeReport(&buf, results))
	assert.Contains(t, buf.String(), `"schedule": "s"`)
}
