package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/wardenhq/warden/pkg/authority"
	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/contracts"
	"github.com/wardenhq/warden/pkg/delegation"
	"github.com/wardenhq/warden/pkg/enforcement"
	"github.com/wardenhq/warden/pkg/ledger"
	"github.com/wardenhq/warden/pkg/policysource"
)

// runDecideCmd implements `warden decide`: evaluate one governance
// decision (or a scenario file of them), append each to the audit
// ledger, and optionally enforce.
//
// Exit codes:
//
//	0 = decision(s) evaluated (whatever the outcome)
//	2 = runtime error
func runDecideCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("decide", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	cfg := config.Load()
	var (
		identityLabel string
		permission    string
		systemState   string
		timestamp     string
		scenariosPath string
		policyConfig  string
		auditLog      string
		registryPath  string
		enforce       bool
		dryRun        bool
		jsonOutput    bool
	)
	cmd.StringVar(&identityLabel, "identity", "", "Acting identity label (required unless --scenarios)")
	cmd.StringVar(&permission, "permission", "", "Requested permission name (required unless --scenarios)")
	cmd.StringVar(&systemState, "state", "NORMAL", "Current system state")
	cmd.StringVar(&timestamp, "timestamp", "", "Decision timestamp (ISO-8601; empty = now)")
	cmd.StringVar(&scenariosPath, "scenarios", "", "Path to a scenario file; evaluates every scenario in it")
	cmd.StringVar(&policyConfig, "policy-config", cfg.PolicyConfigPath, "Path to the governance configuration")
	cmd.StringVar(&auditLog, "audit-log", cfg.AuditLogPath, "Path to the audit ledger")
	cmd.StringVar(&registryPath, "delegations", cfg.DelegationRegistry, "Path to the delegation registry")
	cmd.BoolVar(&enforce, "enforce", false, "Enforce an ALLOW decision through the dispatcher")
	cmd.BoolVar(&dryRun, "dry-run", false, "With --enforce: compute effects without mutating anything")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the decision as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if scenariosPath == "" && (identityLabel == "" || permission == "") {
		_, _ = fmt.Fprintln(stderr, "Error: --identity and --permission are required")
		return 2
	}

	doc, err := policysource.LoadDocument(policyConfig)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	registry := delegation.NewRegistry(registryPath)
	audit := ledger.New(auditLog)
	engine := authority.NewEngine()

	scenarios := []policysource.Scenario{{
		IdentityLabel:           identityLabel,
		RequestedPermissionName: permission,
		SystemState:             systemState,
		DecisionTimestamp:       timestamp,
	}}
	if scenariosPath != "" {
		scenarios, err = policysource.LoadScenarios(scenariosPath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}

	for _, sc := range scenarios {
		identity, ok := doc.FindIdentity(sc.IdentityLabel)
		if !ok {
			// Unknown identities still get a recorded, fail-closed decision.
			identity = contracts.Identity{DisplayName: sc.IdentityLabel, Status: contracts.IdentityRevoked}
		}

		delCtx, err := registry.Resolve(sc.IdentityLabel, sc.RequestedPermissionName, sc.SystemState, sc.DecisionTimestamp)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}

		decision, err := engine.Resolve(identity, sc.RequestedPermissionName, sc.SystemState, doc.RolesByName(), doc.Policies, delCtx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}

		if err := audit.Append(decision); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}

		if sc.Name != "" {
			fmt.Fprintf(stdout, "Scenario   : %s\n", sc.Name)
		}
		if jsonOutput {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(decision)
		} else {
			printDecision(stdout, decision)
		}

		if enforce {
			if code := runEnforcement(cfg, registry, decision, dryRun, stdout, stderr); code != 0 {
				return code
			}
		}
		if len(scenarios) > 1 {
			fmt.Fprintln(stdout, "")
		}
	}
	return 0
}

func printDecision(w io.Writer, d contracts.DecisionRecord) {
	fmt.Fprintf(w, "Identity   : %s\n", d.IdentityLabel)
	fmt.Fprintf(w, "Permission : %s\n", d.RequestedPermissionName)
	fmt.Fprintf(w, "State      : %s\n", d.SystemState)
	fmt.Fprintf(w, "Decision   : %s\n", d.Decision)
	fmt.Fprintf(w, "Policies   : %v\n", d.PolicyIDs)
	fmt.Fprintf(w, "Reason     : %s\n", d.Reason)
	if len(d.PrincipalIdentityLabels) > 0 {
		fmt.Fprintf(w, "Principals : %v\n", d.PrincipalIdentityLabels)
	}
	if len(d.DelegationIDs) > 0 {
		fmt.Fprintf(w, "Delegations: %v\n", d.DelegationIDs)
	}
}

// runEnforcement pushes an evaluated decision through the gate and, when
// the gate executes, dispatches the lockdown action and appends the result
// to the enforcement ledger.
func runEnforcement(cfg *config.Config, registry *delegation.Registry, decision contracts.DecisionRecord, dryRun bool, stdout, stderr io.Writer) int {
	dispatcher, err := enforcement.NewDispatcher(enforcement.NewLockdownEffector(cfg.LockdownStatePath))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	writer := enforcement.NewEventWriter(cfg.EnforcementLogPath)
	gate := enforcement.NewGate(registry, []string{"SovereignOwner"})

	var dispatchErr error
	record, err := gate.Enforce(decision, enforcement.LockdownActionType, func() {
		request := enforcement.Request{
			DecisionReference: decisionReference(decision),
			Context: enforcement.Context{
				"decision_outcome": string(decision.Decision),
				"identity_label":   decision.IdentityLabel,
			},
			Actions: []enforcement.Action{{
				ActionType: enforcement.LockdownActionType,
				Target:     "system",
				Parameters: map[string]any{
					"operation":    "SET",
					"reason":       decision.Reason,
					"requested_by": decision.IdentityLabel,
				},
			}},
			DryRun: dryRun,
		}
		result := dispatcher.Dispatch(request)
		dispatchErr = writer.Append(result, map[string]any{"source": "warden decide"})
		for _, ar := range result.ActionResults {
			fmt.Fprintf(stdout, "Enforcement: %s %s\n", ar.Action.ActionType, ar.Outcome)
		}
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if dispatchErr != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", dispatchErr)
		return 2
	}

	fmt.Fprintf(stdout, "Gate       : %s (%s)\n", record.EnforcementResult, record.EnforcementReason)
	return 0
}

// decisionReference is the correlation slice of a decision carried into
// enforcement records.
func decisionReference(d contracts.DecisionRecord) map[string]any {
	ref := map[string]any{
		"decision_correlation_id":   d.DecisionCorrelationID,
		"timestamp":                 d.Timestamp,
		"identity_label":            d.IdentityLabel,
		"requested_permission_name": d.RequestedPermissionName,
		"decision":                  string(d.Decision),
	}
	if d.PolicyVersionID != "" {
		ref["policy_version_id"] = d.PolicyVersionID
	}
	return ref
}
