package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/delegation"
)

// runDelegationsCmd implements `warden delegations`: read-only oversight
// of currently active delegation grants.
func runDelegationsCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("delegations", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	cfg := config.Load()
	var (
		registryPath string
		jsonOutput   bool
	)
	cmd.StringVar(&registryPath, "registry", cfg.DelegationRegistry, "Path to the delegation registry")
	cmd.BoolVar(&jsonOutput, "json", false, "Output as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	registry := delegation.NewRegistry(registryPath)
	active, err := registry.ListActive(time.Now().UTC())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(active)
		return 0
	}

	if len(active) == 0 {
		fmt.Fprintln(stdout, "No active delegations found.")
		return 0
	}
	for _, d := range active {
		fmt.Fprintf(stdout, "Delegation ID : %s\n", d.DelegationID)
		fmt.Fprintf(stdout, "Principal     : %s\n", d.PrincipalIdentityLabel)
		fmt.Fprintf(stdout, "Delegate      : %s\n", d.DelegateIdentityLabel)
		fmt.Fprintf(stdout, "Actions       : %v\n", d.DelegationScope.Actions)
		fmt.Fprintf(stdout, "System states : %v\n", d.DelegationScope.SystemStates)
		if d.ValidUntil != nil {
			fmt.Fprintf(stdout, "Valid until   : %s\n", d.ValidUntil.Format(time.RFC3339))
		}
		fmt.Fprintf(stdout, "Created reason: %s\n\n", d.CreatedReason)
	}
	return 0
}
