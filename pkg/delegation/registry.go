// Package delegation provides a read-only registry of delegated authority
// and a resolver that determines whether an actor is exercising authority
// on behalf of a principal.
//
// The registry never executes governed actions, never writes delegation
// records, and never changes policies or system state.
package delegation

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ParseErrorMode names the policy for malformed registry lines.
type ParseErrorMode int

const (
	// SkipAndWarn skips malformed lines with a warning. This is the
	// availability-favoring default for the decision read path: a missing
	// record can only deny authority, never expand it.
	SkipAndWarn ParseErrorMode = iota

	// Abort fails the load on the first malformed line. Used by strict
	// callers and tests.
	Abort
)

// Scope bounds a delegation to specific actions and system states. Empty
// lists mean unrestricted on that axis.
type Scope struct {
	Actions      []string `json:"actions"`
	SystemStates []string `json:"system_states"`
}

// Delegation is a time-bounded, scope-bounded grant letting a delegate act
// for a principal. Records are immutable once loaded.
type Delegation struct {
	DelegationID           string     `json:"delegation_id"`
	PrincipalIdentityLabel string     `json:"principal_identity_label"`
	DelegateIdentityLabel  string     `json:"delegate_identity_label"`
	DelegationScope        Scope      `json:"delegation_scope"`
	ValidFrom              *time.Time `json:"valid_from,omitempty"`
	ValidUntil             *time.Time `json:"valid_until,omitempty"`
	PolicyIDs              []string   `json:"policy_ids"`
	CreatedTimestamp       *time.Time `json:"created_timestamp,omitempty"`
	CreatedReason          string     `json:"created_reason"`
	RevokedTimestamp       *time.Time `json:"revoked_timestamp,omitempty"`
	RevokedReason          string     `json:"revoked_reason,omitempty"`
}

// IsActive reports whether the delegation is active at the given instant:
// not revoked and inside its validity window.
func (d Delegation) IsActive(now time.Time) bool {
	if d.RevokedTimestamp != nil && !d.RevokedTimestamp.After(now) {
		return false
	}
	if d.ValidFrom != nil && now.Before(*d.ValidFrom) {
		return false
	}
	if d.ValidUntil != nil && now.After(*d.ValidUntil) {
		return false
	}
	return true
}

// Allows reports whether the delegation, in principle, lets the delegate
// request the given action in the given system state at the given time.
// Non-empty scope lists must include the requested action and state.
func (d Delegation) Allows(action, systemState string, now time.Time) bool {
	if !d.IsActive(now) {
		return false
	}
	if len(d.DelegationScope.Actions) > 0 && !contains(d.DelegationScope.Actions, action) {
		return false
	}
	if len(d.DelegationScope.SystemStates) > 0 && !contains(d.DelegationScope.SystemStates, systemState) {
		return false
	}
	return true
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

// registryRecord is the persisted JSONL shape; timestamps are tolerant
// ISO-8601 strings rather than strict RFC 3339.
type registryRecord struct {
	DelegationID           string   `json:"delegation_id"`
	PrincipalIdentityLabel string   `json:"principal_identity_label"`
	DelegateIdentityLabel  string   `json:"delegate_identity_label"`
	DelegationScope        Scope    `json:"delegation_scope"`
	ValidFrom              string   `json:"valid_from,omitempty"`
	ValidUntil             string   `json:"valid_until,omitempty"`
	PolicyIDs              []string `json:"policy_ids"`
	CreatedTimestamp       string   `json:"created_timestamp,omitempty"`
	CreatedReason          string   `json:"created_reason"`
	RevokedTimestamp       string   `json:"revoked_timestamp,omitempty"`
	RevokedReason          string   `json:"revoked_reason,omitempty"`
}

// ParseTimestamp parses an ISO-8601-like timestamp, accepting both "Z" and
// numeric offsets, with or without sub-second precision. Returns nil when
// the value is empty or unparseable.
func ParseTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

// Registry is a pure read model over a JSONL delegation file.
type Registry struct {
	path       string
	onParseErr ParseErrorMode
	logger     *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithParseErrorMode overrides the malformed-line policy.
func WithParseErrorMode(mode ParseErrorMode) Option {
	return func(r *Registry) { r.onParseErr = mode }
}

// WithLogger overrides the warning logger used by SkipAndWarn.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates a registry reading from the given JSONL path.
func NewRegistry(path string, opts ...Option) *Registry {
	r := &Registry{
		path:       path,
		onParseErr: SkipAndWarn,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads all delegation records. A missing file means no delegations.
// Malformed lines are handled per the configured ParseErrorMode.
func (r *Registry) Load() ([]Delegation, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("delegation registry: open %s: %w", r.path, err)
	}
	defer func() { _ = f.Close() }()

	var out []Delegation
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec registryRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			if r.onParseErr == Abort {
				return nil, fmt.Errorf("delegation registry: invalid JSON on line %d: %w", lineNo, err)
			}
			r.logger.Warn("skipping malformed delegation record",
				"path", r.path, "line", lineNo, "error", err)
			continue
		}
		out = append(out, Delegation{
			DelegationID:           rec.DelegationID,
			PrincipalIdentityLabel: rec.PrincipalIdentityLabel,
			DelegateIdentityLabel:  rec.DelegateIdentityLabel,
			DelegationScope:        rec.DelegationScope,
			ValidFrom:              ParseTimestamp(rec.ValidFrom),
			ValidUntil:             ParseTimestamp(rec.ValidUntil),
			PolicyIDs:              rec.PolicyIDs,
			CreatedTimestamp:       ParseTimestamp(rec.CreatedTimestamp),
			CreatedReason:          rec.CreatedReason,
			RevokedTimestamp:       ParseTimestamp(rec.RevokedTimestamp),
			RevokedReason:          rec.RevokedReason,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("delegation registry: read %s: %w", r.path, err)
	}
	return out, nil
}

// FindApplicable returns every currently active delegation granted to the
// delegate whose scope covers the action and state. No ordering guarantee:
// callers must not rely on slice order for precedence.
func (r *Registry) FindApplicable(delegateLabel, action, systemState string, now time.Time) ([]Delegation, error) {
	all, err := r.Load()
	if err != nil {
		return nil, err
	}
	var applicable []Delegation
	for _, d := range all {
		if d.DelegateIdentityLabel != delegateLabel {
			continue
		}
		if d.Allows(action, systemState, now) {
			applicable = append(applicable, d)
		}
	}
	return applicable, nil
}

// ListActive returns all delegations active at the given instant,
// regardless of scope. Used by the oversight CLI.
func (r *Registry) ListActive(now time.Time) ([]Delegation, error) {
	all, err := r.Load()
	if err != nil {
		return nil, err
	}
	var active []Delegation
	for _, d := range all {
		if d.IsActive(now) {
			active = append(active, d)
		}
	}
	return active, nil
}
