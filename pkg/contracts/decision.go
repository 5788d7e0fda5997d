package contracts

// Outcome is the verdict of one authority resolution call.
type Outcome string

const (
	OutcomeAllow                     Outcome = "ALLOW"
	OutcomeDeny                      Outcome = "DENY"
	OutcomeRequireAdditionalApproval Outcome = "REQUIRE_ADDITIONAL_APPROVAL"

	// OutcomeDefer is reserved for future escalation flows. The engine
	// never emits it today.
	OutcomeDefer Outcome = "DEFER"
)

// DecisionRecord is the immutable result of one authority resolution call.
// Created once, never mutated; ownership transfers to the audit ledger on
// append. Field names match the persisted audit-ledger schema.
//
//nolint:govet // fieldalignment: struct layout matches the ledger schema
type DecisionRecord struct {
	IdentityLabel           string   `json:"identity_label"`
	RequestedPermissionName string   `json:"requested_permission_name"`
	SystemState             string   `json:"system_state"`
	Decision                Outcome  `json:"decision"`
	PolicyIDs               []string `json:"policy_ids"`
	Reason                  string   `json:"reason"`
	Timestamp               string   `json:"timestamp"` // ISO-8601 UTC

	DecisionCorrelationID string `json:"decision_correlation_id,omitempty"`
	PolicyVersionID       string `json:"policy_version_id,omitempty"`

	// Delegation attribution. Audit traceability only; these fields never
	// feed back into the decision predicate.
	DelegateIdentityLabel   string   `json:"delegate_identity_label,omitempty"`
	PrincipalIdentityLabels []string `json:"principal_identity_labels,omitempty"`
	DelegationIDs           []string `json:"delegation_ids,omitempty"`
}
