// Package authority implements the resolution engine that turns
// (identity, requested permission, system state, delegation context) into
// a governance decision.
//
// Evaluation is fail-closed: the first failing step of the pipeline
// short-circuits to DENY. Unknown identities, permissions, or states are
// normal DENY outcomes with descriptive reasons, never errors.
package authority

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/pkg/contracts"
	"github.com/wardenhq/warden/pkg/delegation"
)

// ErrNilIdentity is returned when the caller violates the function
// contract by passing a zero identity. This is the only error path;
// everything else is an ordinary DENY.
var ErrNilIdentity = errors.New("authority: identity is required")

// Engine evaluates governance decisions. It is stateless and safe for
// concurrent use; Resolve is a pure function of its inputs.
type Engine struct{}

// NewEngine creates a resolution engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Resolve evaluates one governance decision.
//
// Policies are considered in caller-supplied order and the first match
// wins. The engine does not sort or rank them; reordering the input can
// change outcomes for ambiguous configurations.
//
// Delegation is layered on top of the role/policy pipeline and never
// increases permissiveness: a policy conditioned on delegation resolves to
// DENY without an applicable grant, and an approval requirement survives
// even under valid delegation. Attribution fields are carried into the
// record purely for audit traceability.
func (e *Engine) Resolve(
	identity contracts.Identity,
	requestedPermission string,
	systemState string,
	rolesByName map[string]contracts.Role,
	policies []contracts.Policy,
	delCtx delegation.Context,
) (contracts.DecisionRecord, error) {
	if identity.ID == "" && identity.DisplayName == "" {
		return contracts.DecisionRecord{}, ErrNilIdentity
	}

	at := delCtx.DecisionTime
	if at.IsZero() {
		at = time.Now().UTC()
	}

	deny := func(policyIDs []string, reason string) contracts.DecisionRecord {
		return e.record(identity, requestedPermission, systemState, contracts.OutcomeDeny, policyIDs, reason, at, "", delCtx)
	}

	// 1. Identity must be active.
	if !identity.IsActive() {
		return deny(nil, fmt.Sprintf("identity %q is not active (status: %s)", identity.DisplayName, identity.Status)), nil
	}

	// 2. At least one currently valid credential.
	validClaims := identity.ValidClaimTypes(at)
	if len(validClaims) == 0 {
		return deny(nil, "identity has no currently valid credentials"), nil
	}

	// 3. Roles whose required credential claim types are all held.
	var survivingRoles []contracts.Role
	for _, name := range identity.RoleNames {
		role, ok := rolesByName[name]
		if !ok {
			continue
		}
		if credentialsSatisfy(role, validClaims) {
			survivingRoles = append(survivingRoles, role)
		}
	}
	if len(survivingRoles) == 0 {
		return deny(nil, "no role is backed by currently valid credentials"), nil
	}

	// 4. Roles that actually grant the requested permission.
	var grantingRoles []contracts.Role
	for _, role := range survivingRoles {
		if role.HasPermission(requestedPermission) {
			grantingRoles = append(grantingRoles, role)
		}
	}
	if len(grantingRoles) == 0 {
		return deny(nil, fmt.Sprintf("no assigned role grants permission %q", requestedPermission)), nil
	}

	// 5–6. First applicable policy in caller-supplied order.
	for _, policy := range policies {
		if !policyApplies(policy, grantingRoles, requestedPermission) {
			continue
		}
		if policy.Condition.RequiredSystemState != "" && policy.Condition.RequiredSystemState != systemState {
			continue
		}

		if policy.Condition.RequiresDelegation && !delCtx.IsDelegated {
			reason := fmt.Sprintf(
				"policy %s requires delegated authority and no active, in-scope delegation exists for identity %q",
				policy.ID, identity.DisplayName)
			return e.record(identity, requestedPermission, systemState, contracts.OutcomeDeny,
				[]string{policy.ID}, reason, at, policy.PolicyVersionID, delCtx), nil
		}

		if policy.Condition.MinimumApprovals > 1 {
			reason := fmt.Sprintf(
				"policy %s grants permission %q in state %s but requires %d approvals before execution",
				policy.ID, requestedPermission, systemState, policy.Condition.MinimumApprovals)
			return e.record(identity, requestedPermission, systemState, contracts.OutcomeRequireAdditionalApproval,
				[]string{policy.ID}, reason, at, policy.PolicyVersionID, delCtx), nil
		}

		reason := fmt.Sprintf("policy %s grants permission %q in state %s", policy.ID, requestedPermission, systemState)
		return e.record(identity, requestedPermission, systemState, contracts.OutcomeAllow,
			[]string{policy.ID}, reason, at, policy.PolicyVersionID, delCtx), nil
	}

	// 7. Nothing survived.
	return deny(nil, "no matching policy for current state"), nil
}

func credentialsSatisfy(role contracts.Role, validClaims map[string]bool) bool {
	for _, required := range role.RequiredCredentialTypes {
		if !validClaims[required] {
			return false
		}
	}
	return true
}

func policyApplies(policy contracts.Policy, roles []contracts.Role, permission string) bool {
	if !policy.AllowsPermission(permission) {
		return false
	}
	for _, role := range roles {
		if policy.AppliesToRole(role.Name) {
			return true
		}
	}
	return false
}

func (e *Engine) record(
	identity contracts.Identity,
	permission, systemState string,
	outcome contracts.Outcome,
	policyIDs []string,
	reason string,
	at time.Time,
	policyVersionID string,
	delCtx delegation.Context,
) contracts.DecisionRecord {
	if policyIDs == nil {
		policyIDs = []string{}
	}
	rec := contracts.DecisionRecord{
		IdentityLabel:           identity.DisplayName,
		RequestedPermissionName: permission,
		SystemState:             systemState,
		Decision:                outcome,
		PolicyIDs:               policyIDs,
		Reason:                  reason,
		Timestamp:               at.UTC().Format("2006-01-02T15:04:05Z"),
		DecisionCorrelationID:   uuid.NewString(),
		PolicyVersionID:         policyVersionID,
	}
	if delCtx.IsDelegated {
		rec.DelegateIdentityLabel = identity.DisplayName
		rec.PrincipalIdentityLabels = delCtx.PrincipalIdentityLabels
		rec.DelegationIDs = delCtx.DelegationIDs()
	}
	return rec
}
