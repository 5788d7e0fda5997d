package policysource_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/contracts"
	"github.com/wardenhq/warden/pkg/policysource"
)

func goodPolicy(id string) contracts.Policy {
	return contracts.Policy{
		ID:                  id,
		ApplicableRoleNames: []string{"Owner"},
		PermissionNames:     []string{"initiate_lockdown"},
		Condition:           contracts.PolicyCondition{MinimumApprovals: 1},
		PolicyVersionID:     "v1",
	}
}

func TestValidatePoliciesPass(t *testing.T) {
	result := policysource.ValidatePolicies([]contracts.Policy{goodPolicy("POL-001"), goodPolicy("POL-002")}, "")
	assert.True(t, result.OK())
	assert.Empty(t, result.Errors)
}

func TestValidatePoliciesMissingID(t *testing.T) {
	p := goodPolicy("")
	result := policysource.ValidatePolicies([]contracts.Policy{p}, "")
	assert.False(t, result.OK())
	assert.Contains(t, strings.Join(result.Errors, "\n"), "missing an id")
}

func TestValidatePoliciesDuplicateID(t *testing.T) {
	result := policysource.ValidatePolicies([]contracts.Policy{goodPolicy("POL-001"), goodPolicy("POL-001")}, "")
	assert.False(t, result.OK())
	assert.Contains(t, strings.Join(result.Errors, "\n"), "duplicate policy id: POL-001")
}

func TestValidatePoliciesWarnings(t *testing.T) {
	p := goodPolicy("POL-001")
	p.PolicyVersionID = ""
	p.PermissionNames = nil
	p.Condition.MinimumApprovals = 0

	result := policysource.ValidatePolicies([]contracts.Policy{p}, "")
	assert.True(t, result.OK(), "warnings alone must not fail validation")
	joined := strings.Join(result.Warnings, "\n")
	assert.Contains(t, joined, "no policy_version_id")
	assert.Contains(t, joined, "grants no permissions")
	assert.Contains(t, joined, "minimum_approvals < 1")
}

func TestValidatePoliciesSchemaRejectsNegativeApprovals(t *testing.T) {
	p := goodPolicy("POL-001")
	p.Condition.MinimumApprovals = -2

	result := policysource.ValidatePolicies([]contracts.Policy{p}, "")
	assert.False(t, result.OK())
	assert.Contains(t, strings.Join(result.Errors, "\n"), "schema validation failed")
}

func TestValidatePoliciesChangeLogConsistency(t *testing.T) {
	dir := t.TempDir()
	changeLog := filepath.Join(dir, "policy_change_log.jsonl")
	content := `{"timestamp":"2026-01-01T00:00:00Z","policy_id":"POL-001","policy_version":"v1","change_type":"CREATE"}` + "\n" +
		`{"timestamp":"2026-02-01T00:00:00Z","policy_id":"POL-001","policy_version":"v2","change_type":"REWRITE"}` + "\n"
	require.NoError(t, os.WriteFile(changeLog, []byte(content), 0o600))

	result := policysource.ValidatePolicies([]contracts.Policy{goodPolicy("POL-001"), goodPolicy("POL-002")}, changeLog)
	assert.False(t, result.OK())
	assert.Contains(t, strings.Join(result.Errors, "\n"), `invalid change_type "REWRITE"`)
	assert.Contains(t, strings.Join(result.Warnings, "\n"), "no change log entry found for policy POL-002")
}

func TestValidatePoliciesMissingChangeLogIsWarning(t *testing.T) {
	result := policysource.ValidatePolicies(
		[]contracts.Policy{goodPolicy("POL-001")},
		filepath.Join(t.TempDir(), "absent.jsonl"))
	assert.True(t, result.OK())
	assert.Contains(t, strings.Join(result.Warnings, "\n"), "change log not found")
}
