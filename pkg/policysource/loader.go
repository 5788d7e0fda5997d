// Package policysource loads governance definitions (roles, identities,
// policies) and decision scenarios from configuration files. It is a thin
// read-only collaborator of the core: nothing here evaluates or enforces.
package policysource

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/wardenhq/warden/pkg/contracts"
)

// Document is the parsed governance configuration. A bare JSON/YAML list
// is accepted as a policies-only document.
type Document struct {
	Roles      []contracts.Role     `json:"roles" yaml:"roles"`
	Identities []contracts.Identity `json:"identities" yaml:"identities"`
	Policies   []contracts.Policy   `json:"policies" yaml:"policies"`
}

// RolesByName indexes the document's roles for the authority engine.
func (d Document) RolesByName() map[string]contracts.Role {
	out := make(map[string]contracts.Role, len(d.Roles))
	for _, r := range d.Roles {
		out[r.Name] = r
	}
	return out
}

// FindIdentity returns the identity with the given display name.
func (d Document) FindIdentity(label string) (contracts.Identity, bool) {
	for _, id := range d.Identities {
		if id.DisplayName == label {
			return id, true
		}
	}
	return contracts.Identity{}, false
}

// Scenario is one decision request tuple supplied by a scenario source.
type Scenario struct {
	Name                    string `json:"name" yaml:"name"`
	IdentityLabel           string `json:"identity_label" yaml:"identity_label"`
	RequestedPermissionName string `json:"requested_permission_name" yaml:"requested_permission_name"`
	SystemState             string `json:"system_state" yaml:"system_state"`
	DecisionTimestamp       string `json:"decision_timestamp,omitempty" yaml:"decision_timestamp,omitempty"`
}

// LoadDocument reads a governance configuration file. The format follows
// the extension: .yaml/.yml parse as YAML, everything else as JSON with
// JSONC comments tolerated.
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("policysource: read %s: %w", path, err)
	}

	if isYAML(path) {
		var doc Document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return Document{}, fmt.Errorf("policysource: parse %s: %w", path, err)
		}
		return doc, nil
	}

	data = jsonc.ToJSON(data)

	// Bare list form: a list of policies with no surrounding object.
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var policies []contracts.Policy
		if err := json.Unmarshal(data, &policies); err != nil {
			return Document{}, fmt.Errorf("policysource: parse %s: %w", path, err)
		}
		return Document{Policies: policies}, nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("policysource: parse %s: %w", path, err)
	}
	return doc, nil
}

// LoadScenarios reads decision request tuples from a JSON, JSONC, or YAML
// file holding a list of scenarios or {"scenarios": [...]}.
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policysource: read %s: %w", path, err)
	}

	if isYAML(path) {
		var wrapper struct {
			Scenarios []Scenario `yaml:"scenarios"`
		}
		if err := yaml.Unmarshal(data, &wrapper); err == nil && len(wrapper.Scenarios) > 0 {
			return wrapper.Scenarios, nil
		}
		var scenarios []Scenario
		if err := yaml.Unmarshal(data, &scenarios); err != nil {
			return nil, fmt.Errorf("policysource: parse %s: %w", path, err)
		}
		return scenarios, nil
	}

	data = jsonc.ToJSON(data)
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var scenarios []Scenario
		if err := json.Unmarshal(data, &scenarios); err != nil {
			return nil, fmt.Errorf("policysource: parse %s: %w", path, err)
		}
		return scenarios, nil
	}

	var wrapper struct {
		Scenarios []Scenario `json:"scenarios"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("policysource: parse %s: %w", path, err)
	}
	return wrapper.Scenarios, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
