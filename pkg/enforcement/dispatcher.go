// Package enforcement turns governance decisions into concrete, auditable
// side effects without ever expanding authority beyond what was decided.
//
// The layering is strict: the dispatcher routes declared actions to
// registered effectors and returns structured results; the gate decides
// whether execution may happen at all; persistence of either is the
// ledger's job. decision ≠ enforcement ≠ logging.
package enforcement

import (
	"fmt"
	"sort"
)

// Outcome classifies the result of one enforcement action.
type Outcome string

const (
	OutcomeSuccess        Outcome = "SUCCESS"
	OutcomeNoop           Outcome = "NOOP"
	OutcomeNotApplicable  Outcome = "NOT_APPLICABLE"
	OutcomeNotImplemented Outcome = "NOT_IMPLEMENTED"
	OutcomeFailed         Outcome = "FAILED"
)

// Action is a declarative description of a single enforcement effect. The
// caller constructs actions explicitly; the dispatcher never invents them.
type Action struct {
	ActionType string         `json:"action_type"`
	Target     string         `json:"target,omitempty"`
	Parameters map[string]any `json:"parameters"`
}

// Context carries decision-derived data into effectors. The dispatcher
// treats it as opaque so the schema can evolve without touching routing.
type Context map[string]any

// EffectorResult is the outcome of one effector handling one action.
type EffectorResult struct {
	Outcome Outcome        `json:"outcome"`
	Action  Action         `json:"action"`
	Details map[string]any `json:"details"`
}

// Request is a complete enforcement request for a single decision.
type Request struct {
	DecisionReference map[string]any `json:"decision_reference"`
	Context           Context        `json:"context"`
	Actions           []Action       `json:"actions"`
	DryRun            bool           `json:"dry_run"`
}

// Result aggregates the action results for one dispatched request.
type Result struct {
	DecisionReference map[string]any   `json:"decision_reference"`
	Context           Context          `json:"context"`
	DryRun            bool             `json:"dry_run"`
	ActionResults     []EffectorResult `json:"action_results"`
}

// Effector performs one concrete enforcement side effect for one
// action_type.
//
// Implementations must honor dryRun as "compute the would-be effect,
// perform no observable mutation", must not log (return structured details
// instead), and long-running work must enforce its own timeouts before
// returning.
type Effector interface {
	ActionType() string
	Execute(action Action, ctx Context, dryRun bool) (EffectorResult, error)
}

// Dispatcher routes declared actions to registered effectors.
type Dispatcher struct {
	effectors map[string]Effector
}

// NewDispatcher creates a dispatcher with the given effectors registered.
func NewDispatcher(effectors ...Effector) (*Dispatcher, error) {
	d := &Dispatcher{effectors: make(map[string]Effector)}
	for _, e := range effectors {
		if err := d.Register(e); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Register wires an effector for its declared action type, replacing any
// previous registration for that type.
func (d *Dispatcher) Register(e Effector) error {
	if e.ActionType() == "" {
		return fmt.Errorf("enforcement: effector action type must be non-empty")
	}
	d.effectors[e.ActionType()] = e
	return nil
}

// RegisteredActionTypes lists all action types with a registered effector.
func (d *Dispatcher) RegisteredActionTypes() []string {
	types := make([]string, 0, len(d.effectors))
	for t := range d.effectors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Dispatch executes every declared action against the registered
// effectors and returns one result per action, echoing the decision
// reference and context unchanged.
//
// An unregistered action type is NOT_IMPLEMENTED, not an error. An
// effector error or panic becomes FAILED with diagnostic details; the
// dispatcher never propagates a failure to its caller and a failing
// action never prevents dispatch of its siblings.
func (d *Dispatcher) Dispatch(req Request) Result {
	results := make([]EffectorResult, 0, len(req.Actions))
	for _, action := range req.Actions {
		results = append(results, d.dispatchOne(action, req.Context, req.DryRun))
	}
	return Result{
		DecisionReference: req.DecisionReference,
		Context:           req.Context,
		DryRun:            req.DryRun,
		ActionResults:     results,
	}
}

func (d *Dispatcher) dispatchOne(action Action, ctx Context, dryRun bool) (out EffectorResult) {
	effector, ok := d.effectors[action.ActionType]
	if !ok {
		return EffectorResult{
			Outcome: OutcomeNotImplemented,
			Action:  action,
			Details: map[string]any{
				"reason":      "no effector registered for action_type",
				"action_type": action.ActionType,
			},
		}
	}

	defer func() {
		if r := recover(); r != nil {
			out = EffectorResult{
				Outcome: OutcomeFailed,
				Action:  action,
				Details: map[string]any{
					"reason":      "panic in effector",
					"action_type": action.ActionType,
					"panic":       fmt.Sprintf("%v", r),
				},
			}
		}
	}()

	result, err := effector.Execute(action, ctx, dryRun)
	if err != nil {
		return EffectorResult{
			Outcome: OutcomeFailed,
			Action:  action,
			Details: map[string]any{
				"reason":      "effector returned an error",
				"action_type": action.ActionType,
				"error":       err.Error(),
			},
		}
	}
	return result
}
