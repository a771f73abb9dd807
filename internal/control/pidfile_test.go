package control

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireWritesPidAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "lmapd.pid")
	p := NewPIDFile(path)
	require.NoError(t, p.Acquire())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, p.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAcquireSucceedsWhenStaleOwnerIsDead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lmapd.pid")
	// pid 1 may or may not be reachable from a sandbox, but a very
	// large, almost certainly unused pid should read as not alive.
	require.NoError(t, os.WriteFile(path, []byte("999999"), 0o600))

	p := NewPIDFile(path)
	require.NoError(t, p.Acquire())
}
