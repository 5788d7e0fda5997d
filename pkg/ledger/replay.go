package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Entry pairs a parsed ledger record with the raw line it came from.
type Entry struct {
	Record map[string]any
	Raw    string
}

// ChainStatus classifies one entry during replay.
type ChainStatus string

const (
	StatusLegacy ChainStatus = "LEGACY"
	StatusOK     ChainStatus = "OK"
	StatusFailed ChainStatus = "FAILED"
)

// AnnotatedEntry is an Entry with its position and integrity verdict.
type AnnotatedEntry struct {
	Entry
	Index  int
	Status ChainStatus
	Error  string
}

// readLines returns the file's lines and whether the file ends with a
// newline, so callers can distinguish a truncated in-flight write from a
// corrupt line.
func readLines(path string) ([]string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, true, nil
	}
	endsWithNewline := data[len(data)-1] == '\n'
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	return lines, endsWithNewline, nil
}

// LoadEntries reads all committed entries from a ledger file.
//
// A trailing line without a final newline that fails to parse is treated
// as not yet committed (a reader racing the writer mid-append) and is
// skipped. Any other unparseable line is an error.
func LoadEntries(path string) ([]Entry, error) {
	lines, endsWithNewline, err := readLines(path)
	if err != nil {
		return nil, fmt.Errorf("ledger: read %s: %w", path, err)
	}

	var entries []Entry
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			if i == len(lines)-1 && !endsWithNewline {
				continue
			}
			return nil, fmt.Errorf("ledger: invalid JSON on line %d of %s: %w", i+1, path, err)
		}
		entries = append(entries, Entry{Record: record, Raw: line})
	}
	return entries, nil
}

// LoadEntriesLenient is LoadEntries for read paths that favor
// availability: malformed lines are dropped instead of failing the load.
// Used when correlating against the enforcement ledger, where a bad
// historical line must not block review of the rest. A missing file is an
// empty trail; any other read failure is warned so an unreadable trail
// stays distinguishable from an empty one.
func LoadEntriesLenient(path string) []Entry {
	lines, _, err := readLines(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("skipping unreadable ledger file", "path", path, "error", err)
		}
		return nil
	}
	var entries []Entry
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			continue
		}
		entries = append(entries, Entry{Record: record, Raw: line})
	}
	return entries
}

// AnnotateChain verifies the hash chain across already-loaded entries and
// attaches a per-entry status. The chain is defined only over hashed
// entries; LEGACY entries never advance the expected prev_hash.
func AnnotateChain(entries []Entry) []AnnotatedEntry {
	annotated := make([]AnnotatedEntry, 0, len(entries))

	var expectedPrev any
	for i, entry := range entries {
		out := AnnotatedEntry{Entry: entry, Index: i, Status: StatusLegacy}

		rawHash, hashed := entry.Record["entry_hash"]
		if hashed {
			storedHash, hashOK := hashField(rawHash)
			storedPrev, prevOK := hashField(entry.Record["prev_hash"])
			expected, err := recomputeEntryHash(entry.Record)
			switch {
			case !hashOK || !prevOK:
				out.Status = StatusFailed
				out.Error = "malformed hash field: entry_hash and prev_hash must be strings"
			case storedPrev != expectedPrev:
				out.Status = StatusFailed
				out.Error = fmt.Sprintf("prev_hash mismatch: chain broken (expected %v, got %v)", expectedPrev, storedPrev)
			case err != nil:
				out.Status = StatusFailed
				out.Error = fmt.Sprintf("hash recomputation failed: %v", err)
			case storedHash != expected:
				out.Status = StatusFailed
				out.Error = fmt.Sprintf("entry_hash mismatch: content altered (expected=%v, got=%v)", expected, storedHash)
			default:
				out.Status = StatusOK
			}
			expectedPrev = storedHash
		}

		annotated = append(annotated, out)
	}
	return annotated
}

// CorrelationKey joins decisions with enforcement events. When a
// correlation id is present it alone identifies the pair; the fallback
// tuple exists because records written before correlation ids must remain
// joinable, at reduced precision.
type CorrelationKey struct {
	ID              string
	Timestamp       string
	Identity        string
	RequestedAction string
	PolicyVersionID string
}

func getString(record map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := record[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// DecisionCorrelationKey builds the key for an audit-ledger decision
// record.
func DecisionCorrelationKey(record map[string]any) CorrelationKey {
	if id := getString(record, "decision_correlation_id"); id != "" {
		return CorrelationKey{ID: id}
	}
	return CorrelationKey{
		Timestamp:       getString(record, "timestamp"),
		Identity:        getString(record, "identity_label", "identity"),
		RequestedAction: getString(record, "requested_permission_name", "requested_action"),
		PolicyVersionID: getString(record, "policy_version_id"),
	}
}

// EnforcementCorrelationKey builds the key for an enforcement-ledger
// record, whose decision reference lives under payload.decision_reference.
func EnforcementCorrelationKey(record map[string]any) CorrelationKey {
	payload, _ := record["payload"].(map[string]any)
	ref, _ := payload["decision_reference"].(map[string]any)
	if ref == nil {
		return CorrelationKey{}
	}
	if id := getString(ref, "decision_correlation_id"); id != "" {
		return CorrelationKey{ID: id}
	}
	return CorrelationKey{
		Timestamp:       getString(ref, "timestamp"),
		Identity:        getString(ref, "identity_label", "identity"),
		RequestedAction: getString(ref, "requested_permission_name", "requested_action"),
		PolicyVersionID: getString(ref, "policy_version_id"),
	}
}

// Correlate returns every enforcement entry whose correlation key matches
// the given decision record.
func Correlate(decision map[string]any, enforcement []Entry) []Entry {
	want := DecisionCorrelationKey(decision)
	var matches []Entry
	for _, e := range enforcement {
		if EnforcementCorrelationKey(e.Record) == want {
			matches = append(matches, e)
		}
	}
	return matches
}
