// Command warden is the governance CLI: evaluate decisions, verify ledger
// integrity, replay and correlate past decisions, and inspect delegations.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	initLogging(stderr)

	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "decide":
		return runDecideCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "replay":
		return runReplayCmd(args[2:], stdout, stderr)
	case "delegations":
		return runDelegationsCmd(args[2:], stdout, stderr)
	case "validate":
		return runValidateCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func initLogging(stderr io.Writer) {
	level := slog.LevelInfo
	if os.Getenv("WARDEN_LOG_LEVEL") == "DEBUG" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "warden: governance decision, audit, and enforcement CLI")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: warden <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  decide       Evaluate a governance decision and append it to the audit ledger")
	fmt.Fprintln(w, "  verify       Verify hash-chain integrity of a ledger file")
	fmt.Fprintln(w, "  replay       List, explain, or correlate past decisions (read-only)")
	fmt.Fprintln(w, "  delegations  List currently active delegation grants")
	fmt.Fprintln(w, "  validate     Run static validation over the policy configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'warden <command> -h' for command flags.")
}
