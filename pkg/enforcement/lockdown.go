package enforcement

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LockdownActionType is the action_type handled by LockdownEffector.
const LockdownActionType = "lockdown_state"

// LockdownState is the file-backed lockdown flag.
type LockdownState struct {
	Locked      bool   `json:"locked"`
	UpdatedAt   string `json:"updated_at"`
	Reason      string `json:"reason"`
	RequestedBy string `json:"requested_by"`
}

func defaultLockdownState() LockdownState {
	return LockdownState{
		Locked:    false,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// LockdownEffector implements a local-only, file-backed lockdown control.
//
// Parameters:
//
//	operation:    "SET" | "CLEAR" | "TOGGLE"
//	reason:       optional human-readable explanation
//	requested_by: optional identity label
//
// With dryRun the file is never modified; the effector only reports what
// would have happened.
type LockdownEffector struct {
	statePath string
}

// NewLockdownEffector creates an effector persisting state at the given
// path.
func NewLockdownEffector(statePath string) *LockdownEffector {
	return &LockdownEffector{statePath: statePath}
}

// ActionType implements Effector.
func (e *LockdownEffector) ActionType() string {
	return LockdownActionType
}

// Execute implements Effector.
func (e *LockdownEffector) Execute(action Action, _ Context, dryRun bool) (EffectorResult, error) {
	operation := ""
	if v, ok := action.Parameters["operation"].(string); ok {
		operation = strings.ToUpper(strings.TrimSpace(v))
	}

	switch operation {
	case "SET", "CLEAR", "TOGGLE":
	default:
		return EffectorResult{
			Outcome: OutcomeNotApplicable,
			Action:  action,
			Details: map[string]any{
				"reason":               "unsupported or missing operation",
				"supported_operations": []string{"SET", "CLEAR", "TOGGLE"},
				"provided_operation":   operation,
			},
		}, nil
	}

	current := e.readState()

	newLocked := current.Locked
	switch operation {
	case "SET":
		newLocked = true
	case "CLEAR":
		newLocked = false
	case "TOGGLE":
		newLocked = !current.Locked
	}

	if newLocked == current.Locked {
		return EffectorResult{
			Outcome: OutcomeNoop,
			Action:  action,
			Details: map[string]any{
				"previous_state": current,
				"new_state":      current,
				"operation":      operation,
				"dry_run":        dryRun,
				"note":           "lockdown state unchanged",
			},
		}, nil
	}

	updated := LockdownState{
		Locked:      newLocked,
		UpdatedAt:   time.Now().UTC().Format(time.RFC3339),
		Reason:      stringParam(action.Parameters, "reason", current.Reason),
		RequestedBy: stringParam(action.Parameters, "requested_by", current.RequestedBy),
	}

	if !dryRun {
		if err := e.writeState(updated); err != nil {
			return EffectorResult{
				Outcome: OutcomeFailed,
				Action:  action,
				Details: map[string]any{
					"reason":             "failed to write updated lockdown state",
					"operation":          operation,
					"previous_state":     current,
					"intended_new_state": updated,
					"error":              err.Error(),
				},
			}, nil
		}
	}

	return EffectorResult{
		Outcome: OutcomeSuccess,
		Action:  action,
		Details: map[string]any{
			"operation":      operation,
			"previous_state": current,
			"new_state":      updated,
			"dry_run":        dryRun,
		},
	}, nil
}

// readState loads the current state. A missing file is the default
// unlocked state; a corrupt file recovers to unlocked with the problem
// surfaced in the state's reason, not swallowed.
func (e *LockdownEffector) readState() LockdownState {
	data, err := os.ReadFile(e.statePath)
	if err != nil {
		return defaultLockdownState()
	}
	var state LockdownState
	if err := json.Unmarshal(data, &state); err != nil {
		recovered := defaultLockdownState()
		recovered.Reason = "recovered from invalid lockdown state file"
		return recovered
	}
	return state
}

func (e *LockdownEffector) writeState(state LockdownState) error {
	if dir := filepath.Dir(e.statePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.WriteFile(e.statePath, data, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

func stringParam(params map[string]any, key, fallback string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
