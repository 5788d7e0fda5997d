package policysource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/wardenhq/warden/pkg/contracts"
)

// policySchema is the structural contract for persisted policy records.
// Schema validation runs on the serialized form so it catches problems a
// lenient decoder would paper over (wrong types, negative approvals).
const policySchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id"],
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "name": {"type": "string"},
      "applicable_role_names": {"type": "array", "items": {"type": "string"}},
      "permission_names": {"type": "array", "items": {"type": "string"}},
      "policy_version_id": {"type": "string"},
      "condition": {
        "type": "object",
        "properties": {
          "required_system_state": {"type": "string"},
          "minimum_approvals": {"type": "integer", "minimum": 0},
          "requires_delegation": {"type": "boolean"}
        }
      }
    }
  }
}`

var compiledPolicySchema = jsonschema.MustCompileString("policies.schema.json", policySchema)

// ValidationResult collects structural problems found in a policy
// configuration. Errors fail validation; warnings do not.
type ValidationResult struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// OK reports whether validation passed.
func (r ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// changeLogEntry is one line of the policy change log.
type changeLogEntry struct {
	Timestamp     string `json:"timestamp"`
	PolicyID      string `json:"policy_id"`
	PolicyVersion string `json:"policy_version"`
	ChangeType    string `json:"change_type"`
}

var allowedChangeTypes = map[string]bool{
	"CREATE":    true,
	"UPDATE":    true,
	"DEPRECATE": true,
}

// ValidatePolicies runs static validation over a policy set and, when a
// change log path is given and exists, cross-checks it for consistency.
func ValidatePolicies(policies []contracts.Policy, changeLogPath string) ValidationResult {
	var result ValidationResult

	if err := validateAgainstSchema(policies); err != nil {
		result.errorf("policy schema validation failed: %v", err)
	}

	seen := make(map[string]bool)
	for i, p := range policies {
		label := fmt.Sprintf("policy at index %d", i)
		if p.ID == "" {
			result.errorf("%s is missing an id", label)
			continue
		}
		if seen[p.ID] {
			result.errorf("duplicate policy id: %s", p.ID)
		}
		seen[p.ID] = true

		if p.PolicyVersionID == "" {
			result.warnf("%s (%s) has no policy_version_id", label, p.ID)
		}
		if len(p.PermissionNames) == 0 {
			result.warnf("%s (%s) grants no permissions", label, p.ID)
		}
		if p.Condition.MinimumApprovals < 1 {
			result.warnf("%s (%s) has minimum_approvals < 1; treated as 1", label, p.ID)
		}
	}

	if changeLogPath == "" {
		return result
	}
	if _, err := os.Stat(changeLogPath); os.IsNotExist(err) {
		result.warnf("policy change log not found at %s; skipping consistency checks", changeLogPath)
		return result
	}

	entries, err := loadChangeLog(changeLogPath)
	if err != nil {
		result.errorf("failed to load policy change log %s: %v", changeLogPath, err)
		return result
	}

	logged := make(map[string]bool)
	for i, e := range entries {
		label := fmt.Sprintf("change log entry at line %d", i+1)
		if e.Timestamp == "" || e.PolicyID == "" || e.PolicyVersion == "" || e.ChangeType == "" {
			result.errorf("%s is missing one of timestamp, policy_id, policy_version, change_type", label)
		}
		if e.ChangeType != "" && !allowedChangeTypes[e.ChangeType] {
			result.errorf("%s has invalid change_type %q (expected CREATE, UPDATE, or DEPRECATE)", label, e.ChangeType)
		}
		logged[e.PolicyID] = true
	}

	for _, p := range policies {
		if p.ID != "" && !logged[p.ID] {
			result.warnf("no change log entry found for policy %s; consider adding a CREATE entry", p.ID)
		}
	}
	return result
}

func validateAgainstSchema(policies []contracts.Policy) error {
	raw, err := json.Marshal(policies)
	if err != nil {
		return fmt.Errorf("marshal policies: %w", err)
	}
	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return fmt.Errorf("decode policies: %w", err)
	}
	return compiledPolicySchema.Validate(generic)
}

func loadChangeLog(path string) ([]changeLogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []changeLogEntry
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e changeLogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("invalid JSON on line %d: %w", i+1, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
