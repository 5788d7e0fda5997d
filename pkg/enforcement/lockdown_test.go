package enforcement_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/enforcement"
)

func lockdownAction(operation string) enforcement.Action {
	return enforcement.Action{
		ActionType: enforcement.LockdownActionType,
		Target:     "system",
		Parameters: map[string]any{
			"operation":    operation,
			"reason":       "crisis response",
			"requested_by": "SovereignOwner",
		},
	}
}

func readLockdownState(t *testing.T, path string) enforcement.LockdownState {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var state enforcement.LockdownState
	require.NoError(t, json.Unmarshal(data, &state))
	return state
}

func TestLockdownSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockdown_state.json")
	e := enforcement.NewLockdownEffector(path)

	result, err := e.Execute(lockdownAction("SET"), nil, false)
	require.NoError(t, err)
	assert.Equal(t, enforcement.OutcomeSuccess, result.Outcome)

	state := readLockdownState(t, path)
	assert.True(t, state.Locked)
	assert.Equal(t, "crisis response", state.Reason)
	assert.Equal(t, "SovereignOwner", state.RequestedBy)
}

func TestLockdownClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockdown_state.json")
	e := enforcement.NewLockdownEffector(path)

	_, err := e.Execute(lockdownAction("SET"), nil, false)
	require.NoError(t, err)
	result, err := e.Execute(lockdownAction("CLEAR"), nil, false)
	require.NoError(t, err)

	assert.Equal(t, enforcement.OutcomeSuccess, result.Outcome)
	assert.False(t, readLockdownState(t, path).Locked)
}

func TestLockdownToggle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockdown_state.json")
	e := enforcement.NewLockdownEffector(path)

	result, err := e.Execute(lockdownAction("TOGGLE"), nil, false)
	require.NoError(t, err)
	assert.Equal(t, enforcement.OutcomeSuccess, result.Outcome)
	assert.True(t, readLockdownState(t, path).Locked)

	result, err = e.Execute(lockdownAction("TOGGLE"), nil, false)
	require.NoError(t, err)
	assert.Equal(t, enforcement.OutcomeSuccess, result.Outcome)
	assert.False(t, readLockdownState(t, path).Locked)
}

func TestLockdownNoopWhenUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockdown_state.json")
	e := enforcement.NewLockdownEffector(path)

	// CLEAR against the default unlocked state changes nothing.
	result, err := e.Execute(lockdownAction("CLEAR"), nil, false)
	require.NoError(t, err)
	assert.Equal(t, enforcement.OutcomeNoop, result.Outcome)
	assert.NoFileExists(t, path)
}

func TestLockdownDryRunDoesNotWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockdown_state.json")
	e := enforcement.NewLockdownEffector(path)

	result, err := e.Execute(lockdownAction("SET"), nil, true)
	require.NoError(t, err)
	assert.Equal(t, enforcement.OutcomeSuccess, result.Outcome)
	assert.Equal(t, true, result.Details["dry_run"])
	assert.NoFileExists(t, path)
}

func TestLockdownUnsupportedOperation(t *testing.T) {
	e := enforcement.NewLockdownEffector(filepath.Join(t.TempDir(), "lockdown_state.json"))

	result, err := e.Execute(lockdownAction("EXPLODE"), nil, false)
	require.NoError(t, err)
	assert.Equal(t, enforcement.OutcomeNotApplicable, result.Outcome)
	assert.Equal(t, "EXPLODE", result.Details["provided_operation"])
}

func TestLockdownMissingOperation(t *testing.T) {
	e := enforcement.NewLockdownEffector(filepath.Join(t.TempDir(), "lockdown_state.json"))

	action := enforcement.Action{ActionType: enforcement.LockdownActionType, Parameters: map[string]any{}}
	result, err := e.Execute(action, nil, false)
	require.NoError(t, err)
	assert.Equal(t, enforcement.OutcomeNotApplicable, result.Outcome)
}

func TestLockdownRecoversFromCorruptStateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockdown_state.json")
	require.NoError(t, os.WriteFile(path, []byte("{corrupt"), 0o600))
	e := enforcement.NewLockdownEffector(path)

	result, err := e.Execute(lockdownAction("SET"), nil, false)
	require.NoError(t, err)
	assert.Equal(t, enforcement.OutcomeSuccess, result.Outcome)
	assert.True(t, readLockdownState(t, path).Locked)
}
