package delegation

import (
	"sort"
	"time"
)

// Context is the resolved delegation context for a single decision
// evaluation. Only IsDelegated and the principal set feed the authority
// engine; the full grant list exists for audit attribution.
type Context struct {
	IdentityLabel           string
	IsDelegated             bool
	PrincipalIdentityLabels []string
	ApplicableDelegations   []Delegation
	DecisionTime            time.Time
}

// DelegationIDs returns the ids of all applicable delegations, for audit
// attribution.
func (c Context) DelegationIDs() []string {
	if len(c.ApplicableDelegations) == 0 {
		return nil
	}
	ids := make([]string, 0, len(c.ApplicableDelegations))
	for _, d := range c.ApplicableDelegations {
		ids = append(ids, d.DelegationID)
	}
	return ids
}

// Resolve determines whether the actor is exercising delegated authority
// for the requested action in the given system state.
//
// decisionTimestamp is tolerant: an empty or unparseable value falls back
// to the current UTC time. The fallback only affects which delegations are
// checked, never whether authority is expanded.
func (r *Registry) Resolve(actorLabel, action, systemState, decisionTimestamp string) (Context, error) {
	decisionTime := time.Now().UTC()
	if ts := ParseTimestamp(decisionTimestamp); ts != nil {
		decisionTime = *ts
	}

	applicable, err := r.FindApplicable(actorLabel, action, systemState, decisionTime)
	if err != nil {
		return Context{}, err
	}

	seen := make(map[string]bool)
	var principals []string
	for _, d := range applicable {
		if d.PrincipalIdentityLabel == "" || seen[d.PrincipalIdentityLabel] {
			continue
		}
		seen[d.PrincipalIdentityLabel] = true
		principals = append(principals, d.PrincipalIdentityLabel)
	}
	sort.Strings(principals)

	return Context{
		IdentityLabel:           actorLabel,
		IsDelegated:             len(applicable) > 0,
		PrincipalIdentityLabels: principals,
		ApplicableDelegations:   applicable,
		DecisionTime:            decisionTime,
	}, nil
}
