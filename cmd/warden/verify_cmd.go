package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/ledger"
)

// runVerifyCmd implements `warden verify`.
//
// Exit codes:
//
//	0 = chain verified clean
//	1 = integrity failures found
//	2 = runtime error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	cfg := config.Load()
	var (
		logPath    string
		jsonOutput bool
	)
	cmd.StringVar(&logPath, "log-path", cfg.AuditLogPath, "Path to the ledger JSONL file")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the report as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	report := ledger.Verify(logPath)

	if jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: encode report: %v\n", err)
			return 2
		}
	} else {
		fmt.Fprintf(stdout, "Ledger file:    %s\n", logPath)
		fmt.Fprintf(stdout, "Total entries:  %d\n", report.TotalEntries)
		fmt.Fprintf(stdout, "Hashed entries: %d\n", report.HashedEntries)
		if report.OK {
			fmt.Fprintln(stdout, "Integrity check: OK")
		} else {
			fmt.Fprintln(stdout, "Integrity check: FAILED")
			for _, e := range report.Errors {
				fmt.Fprintf(stdout, "- line %d: %s\n", e.Line, e.Message)
			}
		}
	}

	if !report.OK {
		return 1
	}
	return 0
}
