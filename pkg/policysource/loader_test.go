package policysource_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/policysource"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const jsonDoc = `{
  "roles": [
    {"name": "Owner", "required_credential_types": ["owner_key"], "permissions": ["initiate_lockdown"]}
  ],
  "identities": [
    {
      "id": "id-1",
      "display_name": "SovereignOwner",
      "status": "active",
      "credentials": [{"id": "c1", "claim_type": "owner_key", "issued_at": "2026-01-01T00:00:00Z", "status": "valid"}],
      "role_names": ["Owner"]
    }
  ],
  "policies": [
    {
      "id": "POL-001",
      "applicable_role_names": ["Owner"],
      "permission_names": ["initiate_lockdown"],
      "condition": {"required_system_state": "CRISIS", "minimum_approvals": 1},
      "policy_version_id": "v1"
    }
  ]
}`

func TestLoadDocumentJSON(t *testing.T) {
	doc, err := policysource.LoadDocument(writeFile(t, "governance.json", jsonDoc))
	require.NoError(t, err)

	assert.Len(t, doc.Roles, 1)
	assert.Len(t, doc.Identities, 1)
	require.Len(t, doc.Policies, 1)
	assert.Equal(t, "POL-001", doc.Policies[0].ID)
	assert.Equal(t, "CRISIS", doc.Policies[0].Condition.RequiredSystemState)
}

func TestLoadDocumentJSONCTolerantOfComments(t *testing.T) {
	commented := "// governance definitions\n" + jsonDoc
	doc, err := policysource.LoadDocument(writeFile(t, "governance.jsonc", commented))
	require.NoError(t, err)
	assert.Len(t, doc.Policies, 1)
}

func TestLoadDocumentYAML(t *testing.T) {
	yamlDoc := `
roles:
  - name: Owner
    required_credential_types: [owner_key]
    permissions: [initiate_lockdown]
policies:
  - id: POL-001
    applicable_role_names: [Owner]
    permission_names: [initiate_lockdown]
    condition:
      required_system_state: CRISIS
      minimum_approvals: 1
`
	doc, err := policysource.LoadDocument(writeFile(t, "governance.yaml", yamlDoc))
	require.NoError(t, err)
	require.Len(t, doc.Policies, 1)
	assert.Equal(t, "CRISIS", doc.Policies[0].Condition.RequiredSystemState)
	assert.Len(t, doc.Roles, 1)
}

func TestLoadDocumentBareList(t *testing.T) {
	bare := `[{"id": "POL-010", "permission_names": ["x"], "condition": {"minimum_approvals": 1}}]`
	doc, err := policysource.LoadDocument(writeFile(t, "policies.json", bare))
	require.NoError(t, err)
	assert.Empty(t, doc.Roles)
	require.Len(t, doc.Policies, 1)
	assert.Equal(t, "POL-010", doc.Policies[0].ID)
}

func TestLoadDocumentMissingFile(t *testing.T) {
	_, err := policysource.LoadDocument(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestRolesByNameAndFindIdentity(t *testing.T) {
	doc, err := policysource.LoadDocument(writeFile(t, "governance.json", jsonDoc))
	require.NoError(t, err)

	roles := doc.RolesByName()
	require.Contains(t, roles, "Owner")
	assert.True(t, roles["Owner"].HasPermission("initiate_lockdown"))

	identity, ok := doc.FindIdentity("SovereignOwner")
	require.True(t, ok)
	assert.Equal(t, "id-1", identity.ID)

	_, ok = doc.FindIdentity("Nobody")
	assert.False(t, ok)
}

func TestLoadScenariosJSONList(t *testing.T) {
	scenarios, err := policysource.LoadScenarios(writeFile(t, "scenarios.json",
		`[{"name": "owner crisis", "identity_label": "SovereignOwner", "requested_permission_name": "initiate_lockdown", "system_state": "CRISIS"}]`))
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "owner crisis", scenarios[0].Name)
}

func TestLoadScenariosWrappedObject(t *testing.T) {
	scenarios, err := policysource.LoadScenarios(writeFile(t, "scenarios.json",
		`{"scenarios": [{"name": "s1", "identity_label": "A", "requested_permission_name": "p", "system_state": "NORMAL"}]}`))
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "NORMAL", scenarios[0].SystemState)
}

func TestLoadScenariosYAML(t *testing.T) {
	content := `
scenarios:
  - name: s1
    identity_label: SovereignOwner
    requested_permission_name: initiate_lockdown
    system_state: CRISIS
`
	scenarios, err := policysource.LoadScenarios(writeFile(t, "scenarios.yaml", content))
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "SovereignOwner", scenarios[0].IdentityLabel)
}
