package ledger_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/ledger"
)

func tempLedger(t *testing.T) (*ledger.Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit_log.jsonl")
	return ledger.New(path), path
}

func appendDecisions(t *testing.T, l *ledger.Ledger, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, l.Append(map[string]any{
			"identity_label":            "SovereignOwner",
			"requested_permission_name": "initiate_lockdown",
			"decision":                  "ALLOW",
			"reason":                    "policy grants permission",
			"sequence":                  i,
		}))
	}
}

func readRawLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestAppendLinksChain(t *testing.T) {
	l, path := tempLedger(t)
	appendDecisions(t, l, 3)

	lines := readRawLines(t, path)
	require.Len(t, lines, 3)

	var first, second, third map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &third))

	assert.Nil(t, first["prev_hash"])
	assert.Equal(t, first["entry_hash"], second["prev_hash"])
	assert.Equal(t, second["entry_hash"], third["prev_hash"])
	assert.NotEmpty(t, third["entry_hash"])
}

func TestVerifyCleanChain(t *testing.T) {
	l, path := tempLedger(t)
	appendDecisions(t, l, 3)

	report := ledger.Verify(path)
	assert.True(t, report.OK)
	assert.Equal(t, 3, report.TotalEntries)
	assert.Equal(t, 3, report.HashedEntries)
	assert.Empty(t, report.Errors)
}

func TestVerifyMissingFileIsClean(t *testing.T) {
	report := ledger.Verify(filepath.Join(t.TempDir(), "absent.jsonl"))
	assert.True(t, report.OK)
	assert.Zero(t, report.TotalEntries)
}

func TestVerifyDetectsContentAlteration(t *testing.T) {
	l, path := tempLedger(t)
	appendDecisions(t, l, 3)

	lines := readRawLines(t, path)
	lines[1] = strings.Replace(lines[1], "policy grants permission", "tampered reason", 1)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))

	report := ledger.Verify(path)
	assert.False(t, report.OK)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 2, report.Errors[0].Line)
	assert.Contains(t, report.Errors[0].Message, "content altered")
}

func TestVerifyDetectsBrokenChain(t *testing.T) {
	l, path := tempLedger(t)
	appendDecisions(t, l, 3)

	lines := readRawLines(t, path)
	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	second["entry_hash"] = strings.Repeat("0", 64)
	forged, err := json.Marshal(second)
	require.NoError(t, err)
	lines[1] = string(forged)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))

	report := ledger.Verify(path)
	assert.False(t, report.OK)
	require.Len(t, report.Errors, 2)
	assert.Equal(t, 2, report.Errors[0].Line)
	assert.Contains(t, report.Errors[0].Message, "content altered")
	assert.Equal(t, 3, report.Errors[1].Line)
	assert.Contains(t, report.Errors[1].Message, "chain broken")
}

func TestVerifySurvivesNonStringHashFields(t *testing.T) {
	// Hash fields are attacker-controlled; array/object-typed values must
	// fail their own line without aborting the scan.
	path := filepath.Join(t.TempDir(), "audit_log.jsonl")
	forged := `{"reason":"a","entry_hash":[1]}` + "\n" +
		`{"reason":"b","entry_hash":"x","prev_hash":[1]}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(forged), 0o600))

	l := ledger.New(path)
	appendDecisions(t, l, 1)

	report := ledger.Verify(path)
	assert.False(t, report.OK)
	assert.Equal(t, 3, report.TotalEntries)
	assert.Equal(t, 3, report.HashedEntries)
	require.Len(t, report.Errors, 2)
	assert.Equal(t, 1, report.Errors[0].Line)
	assert.Contains(t, report.Errors[0].Message, "malformed hash field")
	assert.Equal(t, 2, report.Errors[1].Line)
	assert.Contains(t, report.Errors[1].Message, "malformed hash field")
}

func TestVerifyLegacyEntriesAreChainExempt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit_log.jsonl")
	legacy := `{"identity_label":"SovereignOwner","decision":"ALLOW","reason":"pre-chain record"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(legacy+legacy), 0o600))

	l := ledger.New(path)
	appendDecisions(t, l, 2)

	report := ledger.Verify(path)
	assert.True(t, report.OK)
	assert.Equal(t, 4, report.TotalEntries)
	assert.Equal(t, 2, report.HashedEntries)
}

func TestVerifySkipsTruncatedTrailingLine(t *testing.T) {
	l, path := tempLedger(t)
	appendDecisions(t, l, 2)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(`{"half": `)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	report := ledger.Verify(path)
	assert.True(t, report.OK)
	assert.Equal(t, 2, report.TotalEntries)
}

func TestVerifyFlagsInvalidInteriorLine(t *testing.T) {
	l, path := tempLedger(t)
	appendDecisions(t, l, 1)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("not json at all\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	appendDecisions(t, l, 1)

	report := ledger.Verify(path)
	assert.False(t, report.OK)
	require.NotEmpty(t, report.Errors)
	assert.Equal(t, 2, report.Errors[0].Line)
	assert.Contains(t, report.Errors[0].Message, "invalid JSON")
}

func TestAppendAfterCorruptTailStartsFreshChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit_log.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("garbage line\n"), 0o600))

	l := ledger.New(path)
	appendDecisions(t, l, 1)

	lines := readRawLines(t, path)
	require.Len(t, lines, 2)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Nil(t, entry["prev_hash"])
}

func TestAppendRejectsNonObjectEntry(t *testing.T) {
	l, _ := tempLedger(t)
	err := l.Append([]string{"not", "an", "object"})
	assert.Error(t, err)
}
