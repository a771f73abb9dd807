package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmap-agent/lmapd/internal/logger"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	return New(t.TempDir(), logger.New(logger.WithQuiet()))
}

func TestEnsureScheduleAndAction(t *testing.T) {
	w := newTestWorkspace(t)
	require.NoError(t, w.EnsureSchedule("daily"))
	require.NoError(t, w.EnsureAction("daily", "ping"))

	info, err := os.Stat(w.IncomingDir("daily"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	info, err = os.Stat(w.ActionDir("daily", "ping"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// re-ensuring is not an error
	require.NoError(t, w.EnsureSchedule("daily"))
}

func TestCleanAllRemovesEverything(t *testing.T) {
	w := newTestWorkspace(t)
	require.NoError(t, w.EnsureSchedule("daily"))
	require.NoError(t, os.WriteFile(filepath.Join(w.ScheduleDir("daily"), "leftover"), []byte("x"), 0o600))

	require.NoError(t, w.CleanAll())

	entries, err := os.ReadDir(w.Root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScheduleCleanPreservesReservedAndDirs(t *testing.T) {
	w := newTestWorkspace(t)
	require.NoError(t, w.EnsureSchedule("daily"))
	require.NoError(t, w.EnsureAction("daily", "ping"))
	dir := w.ScheduleDir("daily")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "input.data"), []byte("x"), 0o600))

	require.NoError(t, w.ScheduleClean("daily"))

	_, err := os.Stat(filepath.Join(dir, "input.data"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(w.IncomingDir("daily"))
	assert.NoError(t, err)
	_, err = os.Stat(w.ActionDir("daily", "ping"))
	assert.NoError(t, err)
}

func TestActionCleanEmptiesButKeepsDir(t *testing.T) {
	w := newTestWorkspace(t)
	require.NoError(t, w.EnsureAction("daily", "ping"))
	dir := w.ActionDir("daily", "ping")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1-x-y.data"), []byte("x"), 0o600))

	require.NoError(t, w.ActionClean("daily", "ping"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpdateSumsBlockSizes(t *testing.T) {
	w := newTestWorkspace(t)
	require.NoError(t, w.EnsureAction("daily", "ping"))
	dir := w.ActionDir("daily", "ping")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), make([]byte, 600), 0o600))

	totals := w.Update(map[string]string{"daily/ping": dir})
	assert.EqualValues(t, 1024, totals["daily/ping"])
}

func TestResultFileBaseAndPaths(t *testing.T) {
	w := newTestWorkspace(t)
	base := ResultFileBase(1700000000, "daily", "ping")
	assert.Equal(t, "1700000000-daily-ping", base)
	assert.Equal(t, filepath.Join(w.ActionDir("daily", "ping"), base+".meta"), w.MetaPath("daily", "ping", base))
	assert.Equal(t, filepath.Join(w.ActionDir("daily", "ping"), base+".data"), w.DataPath("daily", "ping", base))
}
