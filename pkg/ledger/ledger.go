// Package ledger implements the hash-chained, append-only JSON-Lines audit
// ledger: every entry carries prev_hash (the entry_hash of the preceding
// line) and entry_hash (SHA-256 over the entry's canonical JSON including
// prev_hash). The file is the ledger's sole storage; no in-memory index is
// authoritative beyond the last line.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/wardenhq/warden/pkg/canonicalize"
)

// Ledger appends hash-chained entries to a single JSONL file. Appends are
// serialized per Ledger instance; for a given path there must be exactly
// one writer, or the read-last-hash-then-append sequence would race and
// break the chain.
type Ledger struct {
	mu   sync.Mutex
	path string
}

// New creates a ledger writing to the given path. The file is created on
// first append; parent directories are created as needed.
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// Path returns the ledger file path.
func (l *Ledger) Path() string {
	return l.path
}

// Append serializes the entry, links it to the current chain tip, and
// writes it as one line. Existing lines are never rewritten or reordered.
//
// The chain tip is read from the last line of the file. An absent, empty,
// or unparseable tail starts a fresh chain rather than blocking the write:
// breaks at the point of corruption remain detectable on Verify but do not
// block ingestion.
func (l *Ledger) Append(entry any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("ledger: marshal entry: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("ledger: entry is not a JSON object: %w", err)
	}

	payload["prev_hash"] = lastEntryHash(l.path)

	entryHash, err := canonicalize.CanonicalHash(payload)
	if err != nil {
		return fmt.Errorf("ledger: hash entry: %w", err)
	}
	payload["entry_hash"] = entryHash

	line, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ledger: marshal chained entry: %w", err)
	}

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ledger: create directory: %w", err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("ledger: open %s: %w", l.path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("ledger: write entry: %w", err)
	}
	return nil
}

// lastEntryHash returns the entry_hash of the last line of the file, or
// nil when the file is missing, empty, or its tail cannot be parsed. The
// file is walked backward byte-by-byte so appends stay O(last line), not
// O(file).
func lastEntryHash(path string) any {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return nil
	}

	var buf []byte
	b := make([]byte, 1)
	for i := info.Size() - 1; i >= 0; i-- {
		if _, err := f.ReadAt(b, i); err != nil {
			return nil
		}
		if b[0] == '\n' && len(buf) > 0 {
			break
		}
		buf = append(buf, b[0])
	}

	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}

	var record map[string]any
	if err := json.Unmarshal(buf, &record); err != nil {
		return nil
	}
	hash, ok := record["entry_hash"].(string)
	if !ok {
		return nil
	}
	return hash
}
