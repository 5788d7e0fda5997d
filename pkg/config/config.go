package config

import "os"

// Config holds the file paths and settings the CLI wires into the core.
// The core packages themselves take paths through constructors; nothing
// reads these defaults at package level.
type Config struct {
	AuditLogPath        string
	EnforcementLogPath  string
	DelegationRegistry  string
	PolicyConfigPath    string
	PolicyChangeLogPath string
	LockdownStatePath   string
	LogLevel            string
}

// Load reads configuration from environment variables with local-file
// defaults.
func Load() *Config {
	return &Config{
		AuditLogPath:        envOr("WARDEN_AUDIT_LOG", "data/audit_log.jsonl"),
		EnforcementLogPath:  envOr("WARDEN_ENFORCEMENT_LOG", "data/enforcement_log.jsonl"),
		DelegationRegistry:  envOr("WARDEN_DELEGATION_REGISTRY", "data/delegations.jsonl"),
		PolicyConfigPath:    envOr("WARDEN_POLICY_CONFIG", "config/governance_policies.json"),
		PolicyChangeLogPath: envOr("WARDEN_POLICY_CHANGE_LOG", "data/policy_change_log.jsonl"),
		LockdownStatePath:   envOr("WARDEN_LOCKDOWN_STATE", "data/lockdown_state.json"),
		LogLevel:            envOr("WARDEN_LOG_LEVEL", "INFO"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
