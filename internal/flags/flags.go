package flags

// Package flags defines canonical CLI flag names shared across the CLI and config.
// Keeping these as constants helps avoid drift between Cobra flag wiring and the
// config file overlay, which needs to know which flags were set explicitly.
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().IntVar(&cfg.Runtime.MaxOrgWorkers, flags.FlagMaxOrgWorkers, 5, "...")
//	arg := "--" + flags.FlagMaxOrgWorkers
const (
	// Input
	FlagOrg    = "org"
	FlagConfig = "config"

	// Output
	FlagOutputDir   = "output-dir"
	FlagEmit        = "emit"
	FlagMetricsFile = "metrics-file"
	FlagNoConsole   = "no-console"

	// Runtime
	FlagMaxOrgWorkers     = "max-org-workers"
	FlagMaxProjectWorkers = "max-project-workers"
	FlagRequestTimeout    = "request-timeout"
	FlagMaxAttempts       = "max-attempts"
	FlagBackoffBase       = "backoff-base"
	FlagBackoffMax        = "backoff-max"
	FlagRPS               = "rps"
	FlagTimeout           = "timeout"
	FlagVerbose           = "verbose"

	// GitHub
	FlagGitHubAPIURL = "github-api-url"
	FlagDeepScan     = "deep-scan"
	FlagVisibility   = "visibility"
	FlagArchived     = "archived"
	FlagForks        = "forks"
	FlagTopic        = "topic"
	FlagInclude      = "include"
	FlagExclude      = "exclude"
	FlagMaxRepos     = "max-repos"
)
