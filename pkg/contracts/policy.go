package contracts

// PolicyCondition constrains when a policy may grant its permissions.
type PolicyCondition struct {
	// RequiredSystemState, when set, limits the policy to a single
	// system state (e.g. "CRISIS").
	RequiredSystemState string `json:"required_system_state,omitempty" yaml:"required_system_state,omitempty"`

	// MinimumApprovals above 1 turns an otherwise-granting match into
	// REQUIRE_ADDITIONAL_APPROVAL.
	MinimumApprovals int `json:"minimum_approvals" yaml:"minimum_approvals"`

	// RequiresDelegation marks policies whose standing requirement is
	// delegated authority: without an applicable delegation the match
	// resolves to DENY.
	RequiresDelegation bool `json:"requires_delegation,omitempty" yaml:"requires_delegation,omitempty"`
}

// Policy connects roles to permissions under a condition. Policies are
// immutable inputs to a single resolution call; the engine evaluates them
// in caller-supplied order and selects the first match. That ordering
// dependency is a documented contract (see pkg/authority).
type Policy struct {
	ID                  string          `json:"id" yaml:"id"`
	Name                string          `json:"name,omitempty" yaml:"name,omitempty"`
	Description         string          `json:"description,omitempty" yaml:"description,omitempty"`
	ApplicableRoleNames []string        `json:"applicable_role_names,omitempty" yaml:"applicable_role_names,omitempty"`
	PermissionNames     []string        `json:"permission_names,omitempty" yaml:"permission_names,omitempty"`
	Condition           PolicyCondition `json:"condition" yaml:"condition"`

	// PolicyVersionID, when present, is carried into audit records for
	// fallback correlation with enforcement events.
	PolicyVersionID string `json:"policy_version_id,omitempty" yaml:"policy_version_id,omitempty"`
}

// AppliesToRole reports whether the policy covers the named role.
func (p Policy) AppliesToRole(roleName string) bool {
	for _, r := range p.ApplicableRoleNames {
		if r == roleName {
			return true
		}
	}
	return false
}

// AllowsPermission reports whether the policy covers the named permission.
func (p Policy) AllowsPermission(name string) bool {
	for _, n := range p.PermissionNames {
		if n == name {
			return true
		}
	}
	return false
}
