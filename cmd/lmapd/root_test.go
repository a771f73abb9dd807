package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmap-agent/lmapd/internal/event"
	"github.com/lmap-agent/lmapd/internal/logger"
	"github.com/lmap-agent/lmapd/internal/model"
)

func TestArmReferencedSkipsUnknownAndDuplicateNames(t *testing.T) {
	lmap := &model.Lmap{Events: []*model.Event{{Name: "bang", Type: model.EventImmediate}}}
	eng := event.New(logger.New(logger.WithQuiet()), 1<<16)
	armed := make(map[string]bool)

	armReferenced(eng, lmap, armed, "bang")
	armReferenced(eng, lmap, armed, "bang") // duplicate, no-op
	armReferenced(eng, lmap, armed, "missing")

	assert.True(t, armed["bang"])
	assert.False(t, armed["missing"])
}

func TestDiscoverYAMLConfigReturnsEmptyWhenAbsent(t *testing.T) {
	// Running from a clean temp working directory (no lmapd.yaml
	// anywhere on the search path) should not error, just return "".
	cwd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { _ = os.Chdir(cwd) }()
	require.NoError(t, os.Chdir(t.TempDir()))

	assert.Equal(t, "", discoverYAMLConfig())
}
