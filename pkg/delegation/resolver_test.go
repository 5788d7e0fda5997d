package delegation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/delegation"
)

func TestResolveNotDelegated(t *testing.T) {
	registry := delegation.NewRegistry(writeRegistry(t, activeGrant))

	ctx, err := registry.Resolve("SomeoneElse", "initiate_lockdown", "CRISIS", "2026-06-01T12:00:00Z")
	require.NoError(t, err)
	assert.False(t, ctx.IsDelegated)
	assert.Empty(t, ctx.PrincipalIdentityLabels)
	assert.Empty(t, ctx.DelegationIDs())
	assert.Equal(t, "SomeoneElse", ctx.IdentityLabel)
}

func TestResolveDelegated(t *testing.T) {
	registry := delegation.NewRegistry(writeRegistry(t, activeGrant))

	ctx, err := registry.Resolve("TrustedDelegate", "initiate_lockdown", "CRISIS", "2026-06-01T12:00:00Z")
	require.NoError(t, err)
	assert.True(t, ctx.IsDelegated)
	assert.Equal(t, []string{"SovereignOwner"}, ctx.PrincipalIdentityLabels)
	assert.Equal(t, []string{"DEL-001"}, ctx.DelegationIDs())
	assert.Equal(t, mustTime(t, "2026-06-01T12:00:00Z"), ctx.DecisionTime)
}

func TestResolvePrincipalsSortedAndDeduplicated(t *testing.T) {
	grantB := `{"delegation_id":"DEL-010","principal_identity_label":"Zeta","delegate_identity_label":"TrustedDelegate","delegation_scope":{"actions":["initiate_lockdown"],"system_states":["CRISIS"]},"policy_ids":[],"created_reason":"b"}`
	grantC := `{"delegation_id":"DEL-011","principal_identity_label":"Alpha","delegate_identity_label":"TrustedDelegate","delegation_scope":{"actions":["initiate_lockdown"],"system_states":["CRISIS"]},"policy_ids":[],"created_reason":"c"}`
	grantDup := `{"delegation_id":"DEL-012","principal_identity_label":"Alpha","delegate_identity_label":"TrustedDelegate","delegation_scope":{"actions":["initiate_lockdown"],"system_states":["CRISIS"]},"policy_ids":[],"created_reason":"dup"}`
	registry := delegation.NewRegistry(writeRegistry(t, grantB, grantC, grantDup))

	ctx, err := registry.Resolve("TrustedDelegate", "initiate_lockdown", "CRISIS", "2026-06-01T12:00:00Z")
	require.NoError(t, err)
	assert.True(t, ctx.IsDelegated)
	assert.Equal(t, []string{"Alpha", "Zeta"}, ctx.PrincipalIdentityLabels)
	assert.Len(t, ctx.DelegationIDs(), 3)
}

func TestResolveTimestampFallsBackToNow(t *testing.T) {
	registry := delegation.NewRegistry(writeRegistry(t, activeGrant))

	before := time.Now().UTC()
	ctx, err := registry.Resolve("TrustedDelegate", "initiate_lockdown", "CRISIS", "garbage-timestamp")
	require.NoError(t, err)
	after := time.Now().UTC()

	assert.False(t, ctx.DecisionTime.Before(before))
	assert.False(t, ctx.DecisionTime.After(after))
}
