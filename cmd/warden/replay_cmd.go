package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/ledger"
)

// runReplayCmd implements `warden replay <list|explain|correlate>`:
// read-only review of past decisions with per-entry integrity status.
//
// Exit codes:
//
//	0 = success
//	1 = empty log / nothing to show
//	2 = runtime error
func runReplayCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: warden replay <list|explain|correlate> [flags]")
		return 2
	}

	sub := args[0]
	cmd := flag.NewFlagSet("replay "+sub, flag.ContinueOnError)
	cmd.SetOutput(stderr)

	cfg := config.Load()
	var (
		logPath        string
		enforcementLog string
		index          int
		jsonOutput     bool
	)
	cmd.StringVar(&logPath, "log-path", cfg.AuditLogPath, "Path to the audit ledger")
	cmd.StringVar(&enforcementLog, "enforcement-log-path", cfg.EnforcementLogPath, "Path to the enforcement ledger")
	cmd.IntVar(&index, "index", -1, "0-based decision index (explain, correlate)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output as JSON")

	if err := cmd.Parse(args[1:]); err != nil {
		return 2
	}

	entries, err := ledger.LoadEntries(logPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	annotated := ledger.AnnotateChain(entries)

	switch sub {
	case "list":
		return replayList(annotated, jsonOutput, stdout)
	case "explain":
		return replayExplain(annotated, index, jsonOutput, stdout, stderr)
	case "correlate":
		return replayCorrelate(annotated, index, enforcementLog, jsonOutput, stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown replay subcommand: %s\n", sub)
		return 2
	}
}

type replaySummary struct {
	Index           int      `json:"index"`
	IntegrityStatus string   `json:"integrity_status"`
	IntegrityError  string   `json:"integrity_error,omitempty"`
	Timestamp       string   `json:"timestamp"`
	Identity        string   `json:"identity"`
	RequestedAction string   `json:"requested_action"`
	Decision        string   `json:"decision"`
	PolicyIDs       []string `json:"policy_ids"`
}

func summarize(e ledger.AnnotatedEntry) replaySummary {
	var policyIDs []string
	if raw, ok := e.Record["policy_ids"].([]any); ok {
		for _, p := range raw {
			if s, ok := p.(string); ok {
				policyIDs = append(policyIDs, s)
			}
		}
	}
	return replaySummary{
		Index:           e.Index,
		IntegrityStatus: string(e.Status),
		IntegrityError:  e.Error,
		Timestamp:       stringField(e.Record, "timestamp"),
		Identity:        stringField(e.Record, "identity_label", "identity"),
		RequestedAction: stringField(e.Record, "requested_permission_name", "requested_action"),
		Decision:        stringField(e.Record, "decision", "decision_outcome"),
		PolicyIDs:       policyIDs,
	}
}

func stringField(record map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := record[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func replayList(annotated []ledger.AnnotatedEntry, jsonOutput bool, stdout io.Writer) int {
	if len(annotated) == 0 {
		fmt.Fprintln(stdout, "No entries found.")
		return 1
	}
	if jsonOutput {
		summaries := make([]replaySummary, 0, len(annotated))
		for _, e := range annotated {
			summaries = append(summaries, summarize(e))
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(summaries)
		return 0
	}

	fmt.Fprintf(stdout, "%-4s  %-7s  %-22s  %-16s  %-30s  %s\n",
		"Idx", "Status", "Timestamp", "Identity", "Requested Action", "Decision")
	for _, e := range annotated {
		s := summarize(e)
		fmt.Fprintf(stdout, "%-4d  %-7s  %-22s  %-16s  %-30s  %s\n",
			s.Index, s.IntegrityStatus, s.Timestamp, s.Identity, s.RequestedAction, s.Decision)
	}
	return 0
}

func replayExplain(annotated []ledger.AnnotatedEntry, index int, jsonOutput bool, stdout, stderr io.Writer) int {
	entry, code := pickEntry(annotated, index, stderr)
	if code != 0 {
		return code
	}

	if jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"index":            entry.Index,
			"integrity_status": entry.Status,
			"integrity_error":  entry.Error,
			"record":           entry.Record,
		})
		return 0
	}

	s := summarize(*entry)
	fmt.Fprintf(stdout, "Decision Index   : %d\n", s.Index)
	fmt.Fprintf(stdout, "Integrity Status : %s\n", s.IntegrityStatus)
	if s.IntegrityError != "" {
		fmt.Fprintf(stdout, "Integrity Detail : %s\n", s.IntegrityError)
	}
	fmt.Fprintf(stdout, "Timestamp        : %s\n", s.Timestamp)
	fmt.Fprintf(stdout, "Identity         : %s\n", s.Identity)
	fmt.Fprintf(stdout, "Requested Action : %s\n", s.RequestedAction)
	fmt.Fprintf(stdout, "Decision Outcome : %s\n", s.Decision)
	fmt.Fprintf(stdout, "Policy IDs       : %v\n", s.PolicyIDs)
	fmt.Fprintf(stdout, "Reason           : %s\n", stringField(entry.Record, "reason"))
	raw, _ := json.MarshalIndent(entry.Record, "", "  ")
	fmt.Fprintf(stdout, "Full record:\n%s\n", raw)
	return 0
}

func replayCorrelate(annotated []ledger.AnnotatedEntry, index int, enforcementLog string, jsonOutput bool, stdout, stderr io.Writer) int {
	entry, code := pickEntry(annotated, index, stderr)
	if code != 0 {
		return code
	}

	// Absence of an enforcement log is not an error for correlation.
	enforcementEntries := ledger.LoadEntriesLenient(enforcementLog)
	matches := ledger.Correlate(entry.Record, enforcementEntries)

	if jsonOutput {
		matchRecords := make([]map[string]any, 0, len(matches))
		for _, m := range matches {
			matchRecords = append(matchRecords, m.Record)
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"decision": map[string]any{
				"index":            entry.Index,
				"integrity_status": entry.Status,
				"integrity_error":  entry.Error,
				"record":           entry.Record,
			},
			"enforcement_matches": matchRecords,
		})
		return 0
	}

	s := summarize(*entry)
	fmt.Fprintf(stdout, "Decision Index   : %d (%s)\n", s.Index, s.IntegrityStatus)
	fmt.Fprintf(stdout, "Identity         : %s\n", s.Identity)
	fmt.Fprintf(stdout, "Requested Action : %s\n", s.RequestedAction)
	fmt.Fprintf(stdout, "Decision Outcome : %s\n", s.Decision)
	if len(matches) == 0 {
		fmt.Fprintln(stdout, "No correlated enforcement events were found.")
		return 0
	}
	fmt.Fprintf(stdout, "Correlated enforcement events: %d\n", len(matches))
	for i, m := range matches {
		raw, _ := json.MarshalIndent(m.Record, "", "  ")
		fmt.Fprintf(stdout, "Enforcement #%d:\n%s\n", i+1, raw)
	}
	return 0
}

func pickEntry(annotated []ledger.AnnotatedEntry, index int, stderr io.Writer) (*ledger.AnnotatedEntry, int) {
	if len(annotated) == 0 {
		_, _ = fmt.Fprintln(stderr, "No entries in log.")
		return nil, 1
	}
	if index < 0 || index >= len(annotated) {
		_, _ = fmt.Fprintf(stderr, "Error: --index %d is out of range (0..%d)\n", index, len(annotated)-1)
		return nil, 2
	}
	return &annotated[index], 0
}
