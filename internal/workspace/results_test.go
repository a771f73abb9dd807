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

func TestReadResultsReconstitutesMetaAndData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1700000000-s-a.meta")
	require.NoError(t, WriteMetaStart(path, MetaStartInfo{
		Schedule:           &model.Schedule{Name: "s"},
		Action:             &model.Action{Name: "a"},
		Task:               &model.Task{Name: "t"},
		ScheduleInvocation: time.Unix(1700000000, 0),
		ActionInvocation:   time.Unix(1700000001, 0),
	}))
	require.NoError(t, AppendMetaEnd(path, time.Unix(1700000005, 0), 0))

	dataPath := filepath.Join(dir, "1700000000-s-a.data")
	require.NoError(t, os.WriteFile(dataPath, []byte("a,b,c\n1,2,3\n"), 0o600))

	results, err := ReadResults(dir)
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, "s", res.Schedule)
	assert.Equal(t, "a", res.Action)
	assert.Equal(t, 0, res.Status)
	require.Len(t, res.Tables, 1)
	require.Len(t, res.Tables[0].Rows, 2)
	assert.Equal(t, []model.Value{"a", "b", "c"}, res.Tables[0].Rows[0].Values)
	assert.Equal(t, []model.Value{"1", "2", "3"}, res.Tables[0].Rows[1].Values)
}
