package enforcement

import (
	"errors"
	"fmt"
	"time"

	"github.com/wardenhq/warden/pkg/contracts"
	"github.com/wardenhq/warden/pkg/delegation"
)

// GateResult classifies what the gate did with a decision.
type GateResult string

const (
	GateExecuted GateResult = "EXECUTED"
	GateBlocked  GateResult = "BLOCKED"
	GatePaused   GateResult = "PAUSED"
)

// ErrMissingCorrelationID is returned when enforcement is attempted
// without a decision carrying a correlation id. This is a hard
// precondition: it is rejected before any effector is touched.
var ErrMissingCorrelationID = errors.New("enforcement: decision with correlation id is required")

// EnforcementRecord describes what the gate did with one decision.
type EnforcementRecord struct {
	DecisionCorrelationID string     `json:"decision_correlation_id"`
	Timestamp             string     `json:"timestamp"`
	ActionIdentifier      string     `json:"action_identifier"`
	EnforcementResult     GateResult `json:"enforcement_result"`
	EnforcementReason     string     `json:"enforcement_reason"`
	PolicyIDs             []string   `json:"policy_ids"`
}

// Gate enforces governance decisions with an independent delegation
// re-check. Enforcement does not trust that upstream delegation logic was
// applied correctly; the re-check can only block, never grant.
type Gate struct {
	registry           *delegation.Registry
	primaryAuthorities map[string]bool
	now                func() time.Time
}

// NewGate creates a gate. primaryAuthorities are identity labels allowed
// to execute ALLOW decisions without a delegation grant.
func NewGate(registry *delegation.Registry, primaryAuthorities []string) *Gate {
	primaries := make(map[string]bool, len(primaryAuthorities))
	for _, p := range primaryAuthorities {
		primaries[p] = true
	}
	return &Gate{
		registry:           registry,
		primaryAuthorities: primaries,
		now:                func() time.Time { return time.Now().UTC() },
	}
}

// Enforce applies the decision outcome:
//
//   - DENY → BLOCKED, unconditionally, no execution.
//   - REQUIRE_ADDITIONAL_APPROVAL → PAUSED, unconditionally, no execution.
//   - ALLOW → execute only if the identity is a primary authority or holds
//     a currently valid, in-scope delegation grant for the requested
//     action; otherwise BLOCKED even though the decision said ALLOW.
//
// execute runs at most once, and only on the EXECUTED path.
func (g *Gate) Enforce(decision contracts.DecisionRecord, actionIdentifier string, execute func()) (EnforcementRecord, error) {
	if decision.DecisionCorrelationID == "" {
		return EnforcementRecord{}, ErrMissingCorrelationID
	}

	now := g.now()
	base := EnforcementRecord{
		DecisionCorrelationID: decision.DecisionCorrelationID,
		Timestamp:             now.Format("2006-01-02T15:04:05Z"),
		ActionIdentifier:      actionIdentifier,
		PolicyIDs:             decision.PolicyIDs,
	}

	switch decision.Decision {
	case contracts.OutcomeDeny:
		base.EnforcementResult = GateBlocked
		base.EnforcementReason = "action blocked by governance decision"
		return base, nil

	case contracts.OutcomeRequireAdditionalApproval:
		base.EnforcementResult = GatePaused
		base.EnforcementReason = "action paused pending additional policy-defined approval"
		return base, nil

	case contracts.OutcomeAllow:
		// Fall through to the delegation re-check below.

	default:
		return EnforcementRecord{}, fmt.Errorf("enforcement: invalid decision outcome %q", decision.Decision)
	}

	if g.primaryAuthorities[decision.IdentityLabel] {
		execute()
		base.EnforcementResult = GateExecuted
		base.EnforcementReason = "action executed under primary authority with explicit governance authorization"
		return base, nil
	}

	applicable, err := g.registry.FindApplicable(
		decision.IdentityLabel, decision.RequestedPermissionName, decision.SystemState, now)
	if err != nil {
		return EnforcementRecord{}, fmt.Errorf("enforcement: delegation re-check failed: %w", err)
	}
	if len(applicable) == 0 {
		base.EnforcementResult = GateBlocked
		base.EnforcementReason = fmt.Sprintf(
			"action blocked: no valid, in-scope delegation grant for identity %q and action %q",
			decision.IdentityLabel, decision.RequestedPermissionName)
		return base, nil
	}

	execute()
	base.EnforcementResult = GateExecuted
	base.EnforcementReason = "action executed under valid, in-scope delegation grant with explicit governance authorization"
	return base, nil
}
