package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/config"
	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/control"
)

func setupControlTest(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg = &config.Config{Paths: config.PathsConfig{DataDir: dir}}
	controlCompany = "aire"
	return cfg.Paths.ControlDir("aire")
}

func TestPauseCommandDropsSentinel(t *testing.T) {
	ctrlDir := setupControlTest(t)

	require.NoError(t, pauseCmd.RunE(pauseCmd, nil))

	_, err := os.Stat(filepath.Join(ctrlDir, "PAUSE"))
	assert.NoError(t, err)

	cs, err := control.NewFileStore(ctrlDir)
	require.NoError(t, err)
	assert.Equal(t, control.SignalPause, cs.Poll())
}

func TestPauseThenResumeClearsBoth(t *testing.T) {
	ctrlDir := setupControlTest(t)

	require.NoError(t, pauseCmd.RunE(pauseCmd, nil))
	require.NoError(t, resumeCmd.RunE(resumeCmd, nil))

	cs, err := control.NewFileStore(ctrlDir)
	require.NoError(t, err)
	assert.Equal(t, control.SignalResume, cs.Poll())
	// Both sentinels consumed by the poll.
	assert.Equal(t, control.SignalContinue, cs.Poll())
}

func TestStopCommandWinsOverPause(t *testing.T) {
	ctrlDir := setupControlTest(t)

	require.NoError(t, pauseCmd.RunE(pauseCmd, nil))
	require.NoError(t, stopCmd.RunE(stopCmd, nil))

	cs, err := control.NewFileStore(ctrlDir)
	require.NoError(t, err)
	assert.Equal(t, control.SignalStop, cs.Poll())
}

func TestClearCommandRemovesAllSentinels(t *testing.T) {
	ctrlDir := setupControlTest(t)

	require.NoError(t, pauseCmd.RunE(pauseCmd, nil))
	require.NoError(t, stopCmd.RunE(stopCmd, nil))
	require.NoError(t, clearCmd.RunE(clearCmd, nil))

	cs, err := control.NewFileStore(ctrlDir)
	require.NoError(t, err)
	assert.Equal(t, control.SignalContinue, cs.Poll())
}

func TestControlCommandsAreIdempotent(t *testing.T) {
	setupControlTest(t)

	require.NoError(t, pauseCmd.RunE(pauseCmd, nil))
	require.NoError(t, pauseCmd.RunE(pauseCmd, nil))
	require.NoError(t, clearCmd.RunE(clearCmd, nil))
	require.NoError(t, clearCmd.RunE(clearCmd, nil))
}

func TestStatusCommandWithoutSnapshot(t *testing.T) {
	setupControlTest(t)
	assert.NoError(t, statusCmd.RunE(statusCmd, nil))
}
