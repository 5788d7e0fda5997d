package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/policysource"
)

// runValidateCmd implements `warden validate`: static structural
// validation of the policy configuration and its change log.
//
// Exit codes:
//
//	0 = validation passed (warnings allowed)
//	1 = validation errors found
//	2 = runtime error
func runValidateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("validate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	cfg := config.Load()
	var (
		policyConfig string
		changeLog    string
	)
	cmd.StringVar(&policyConfig, "policy-config", cfg.PolicyConfigPath, "Path to the governance configuration")
	cmd.StringVar(&changeLog, "change-log", cfg.PolicyChangeLogPath, "Path to the policy change log")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	doc, err := policysource.LoadDocument(policyConfig)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	result := policysource.ValidatePolicies(doc.Policies, changeLog)

	for _, e := range result.Errors {
		fmt.Fprintf(stdout, "[ERROR] %s\n", e)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(stdout, "[WARN] %s\n", w)
	}
	if result.OK() {
		fmt.Fprintln(stdout, "Validation completed: PASS")
		return 0
	}
	fmt.Fprintf(stdout, "Validation completed: FAIL (%d error(s) found)\n", len(result.Errors))
	return 1
}
