package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmap-agent/lmapd/internal/model"
)

func TestWriteMetaStartAndAppendMetaEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1700000000-s-a.meta")

	name := "count"
	value := "5"
	cycle := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	info := MetaStartInfo{
		Schedule:           &model.Schedule{Name: "s"},
		Action:             &model.Action{Name: "a"},
		Task:               &model.Task{Name: "t", Tags: []string{"task-tag"}},
		TaskOptions:        []model.Option{{ID: "opt1", Name: &name, Value: &value}},
		ActionOptions:      nil,
		ScheduleTags:       []string{"sched-tag"},
		ActionTags:         []string{"act-tag"},
		ScheduleInvocation: time.Unix(1700000000, 0),
		ActionInvocation:   time.Unix(1700000001, 0),
		CycleNumber:        &cycle,
	}
	require.NoError(t, WriteMetaStart(path, info))
	require.NoError(t, AppendMetaEnd(path, time.Unix(1700000010, 0), 0))

	res, err := readOneResultFromMetaOnly(t, path)
	require.NoError(t, err)
	assert.Equal(t, "s", res.Schedule)
	assert.Equal(t, "a", res.Action)
	assert.Equal(t, "t", res.Task)
	assert.Equal(t, []string{"task-tag", "sched-tag", "act-tag"}, res.Tags)
	assert.Equal(t, 0, res.Status)
	assert.NotNil(t, res.CycleNumber)
	assert.Equal(t, cycle, *res.CycleNumber)
	require.Len(t, res.Options, 1)
	assert.Equal(t, "opt1", res.Options[0].ID)
	assert.Equal(t, "count", *res.Options[0].Name)
	assert.Equal(t, "5", *res.Options[0].Value)
}

func readOneResultFromMetaOnly(t *testing.T, path string) (*model.Result, error) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	return parseMeta(f)
}
