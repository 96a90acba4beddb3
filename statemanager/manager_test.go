package statemanager

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLifecycle(t *testing.T) {
	m := New()
	m.Register("poll")

	m.BeginRun("poll")
	snap := m.Snapshot()
	require.Len(t, snap, 1)
	assert.True(t, snap[0].Running)
	assert.Equal(t, int64(1), snap[0].Runs)

	m.EndRun("poll", nil)
	snap = m.Snapshot()
	assert.False(t, snap[0].Running)
	assert.NotNil(t, snap[0].LastOK)
	assert.Empty(t, snap[0].LastError)
}

func TestFailureThenRecovery(t *testing.T) {
	m := New()

	m.BeginRun("executor")
	m.EndRun("executor", errors.New("rpc down"))
	assert.False(t, m.Healthy())

	snap := m.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "rpc down", snap[0].LastError)
	assert.Equal(t, int64(1), snap[0].Failures)

	m.BeginRun("executor")
	m.EndRun("executor", nil)
	assert.True(t, m.Healthy())
	assert.Empty(t, m.Snapshot()[0].LastError)
}

func TestSnapshotOrderIsRegistrationOrder(t *testing.T) {
	m := New()
	for _, name := range []string{"discovery", "poll", "executor"} {
		m.Register(name)
	}
	snap := m.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "discovery", snap[0].Name)
	assert.Equal(t, "poll", snap[1].Name)
	assert.Equal(t, "executor", snap[2].Name)
}
