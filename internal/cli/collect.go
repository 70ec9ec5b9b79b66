package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adoinventory/internal/ado"
	"adoinventory/internal/collector"
	"adoinventory/internal/config"
	"adoinventory/internal/data"
	"adoinventory/internal/engine"
	"adoinventory/internal/flags"

	"github.com/spf13/cobra"
)

var (
	cfg        = config.New()
	configPath string
)

var (
	usersSpec = engine.Spec{
		Prefix: "ADO-Users",
		Schema: data.SchemaUsers,
		Build:  collector.BuildADO(ado.DefaultHosts(), collector.NewUsers),
	}
	inventorySpec = engine.Spec{
		Prefix: "ADO-Inventory",
		Schema: data.SchemaInventory,
		Build:  collector.BuildADO(ado.DefaultHosts(), collector.NewInventory),
	}
	githubSpec = engine.Spec{
		Prefix: "GH-Inventory",
		Schema: data.SchemaGitHub,
		Build:  collector.BuildGitHub(time.Now),
	}
)

const collectHelpTemplate = `{{with (or .Long .Short)}}{{. | trimTrailingWhitespaces}}

{{end}}Usage:
  {{.UseLine}}

{{if .HasAvailableLocalFlags}}Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}Environment:
  A .env file in the working directory is loaded first; variables already set
  in the environment win.

  Azure DevOps (users, inventory):
    ADO_PAT         personal access token, sent as HTTP Basic with an empty user.
                    Needs read access to Project and Team, Code, Graph,
                    Member Entitlement Management, Work Items and Packaging.

  GitHub (github), in order:
    GH_SOURCE_PAT   one or more tokens, comma-separated, used round-robin
    GITHUB_TOKEN    a single token
    gh auth token   GitHub CLI authentication, if gh is installed and logged in

{{if .HasAvailableSubCommands}}Available Commands:
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.
{{end}}`

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect an inventory report",
	Long: `Collect an inventory report over a list of organizations.

Organizations come from the optional orgs_file argument (one name per line,
blank lines and lines starting with '#' ignored) followed by every --org.
Duplicates are dropped, first occurrence wins.

Exit codes:
	0 = run completed, partial failures included (see the log file)
	1 = output could not be written
	2 = organization list missing, unreadable or empty
	3 = fatal error: invalid flags, missing or rejected token, or run aborted`,
}

var collectUsersCmd = &cobra.Command{
	Use:   "users [orgs_file]",
	Short: "Organization, project member and admin counts per repository",
	Long: `Write ADO-Users-<ts>.csv: per repository, the organization's entitled users,
the project's members and admins, and who last changed the repository.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runCollect(cmd, args, usersSpec))
	},
}

var collectInventoryCmd = &cobra.Command{
	Use:   "inventory [orgs_file]",
	Short: "Size, file and branch counts per repository",
	Long: `Write ADO-Inventory-<ts>.csv: per Git repository, and per TFVC, artifact,
wiki or file storage project, its size, file count, largest file, branch count
and last modification time.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runCollect(cmd, args, inventorySpec))
	},
}

var collectGitHubCmd = &cobra.Command{
	Use:   "github [orgs_file]",
	Short: "Repository inventory of GitHub organizations",
	Long: `Write GH-Inventory-<ts>.csv: per organization repository, its size, activity
dates, visibility and feature flags. --deep-scan adds branch, commit, pull
request, issue, environment, package and webhook counts.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runCollect(cmd, args, githubSpec))
	},
}

// runCollect resolves the configuration of one collect command and runs it.
func runCollect(cmd *cobra.Command, args []string, spec engine.Spec) int {
	stderr := cmd.ErrOrStderr()
	if len(args) > 0 {
		cfg.Input.OrgFile = args[0]
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return engine.ExitFatal
	}
	if err := applyConfigFile(cmd, cfg, configPath); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return engine.ExitFatal
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return engine.ExitFatal
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.NewEngine(cfg, engine.WithOutput(cmd.OutOrStdout(), stderr))
	return eng.Run(ctx, spec)
}

// applyConfigFile overlays a TOML config file. Flags given on the command line win.
func applyConfigFile(cmd *cobra.Command, c *config.Config, path string) error {
	if path == "" {
		return nil
	}
	f, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	return c.ApplyFile(f, cmd.Flags().Changed)
}

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.AddCommand(collectUsersCmd, collectInventoryCmd, collectGitHubCmd)
	for _, c := range []*cobra.Command{collectCmd, collectUsersCmd, collectInventoryCmd, collectGitHubCmd} {
		c.SetHelpTemplate(collectHelpTemplate)
	}

	// MAINTAINER NOTE: keep these in sync with internal/config/file.go:ApplyFile.
	pf := collectCmd.PersistentFlags()

	// Input
	pf.StringSliceVar(&cfg.Input.Orgs, flags.FlagOrg, nil, "Organization to collect (repeatable; comma-separated accepted). Appended after orgs_file")
	pf.StringVar(&configPath, flags.FlagConfig, "", "TOML config file; flags given explicitly override its values")

	// Output
	pf.StringVar(&cfg.Output.Dir, flags.FlagOutputDir, cfg.Output.Dir, "Directory for the CSV and log files")
	pf.StringVar(&cfg.Output.Emit, flags.FlagEmit, "", "Emit committed rows to stdout: json|ndjson")
	pf.StringVar(&cfg.Output.MetricsFile, flags.FlagMetricsFile, "", "Write Prometheus metrics of the run to this path")
	pf.BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console logging and the summary table")

	// Runtime
	pf.IntVar(&cfg.Runtime.MaxOrgWorkers, flags.FlagMaxOrgWorkers, cfg.Runtime.MaxOrgWorkers, "Organizations processed concurrently")
	pf.IntVar(&cfg.Runtime.MaxProjectWorkers, flags.FlagMaxProjectWorkers, cfg.Runtime.MaxProjectWorkers, "Projects (or repositories) processed concurrently per organization")
	pf.DurationVar(&cfg.Runtime.RequestTimeout, flags.FlagRequestTimeout, cfg.Runtime.RequestTimeout, "Timeout of a single API call")
	pf.IntVar(&cfg.Runtime.MaxAttempts, flags.FlagMaxAttempts, cfg.Runtime.MaxAttempts, "Attempts per API call, first try included")
	pf.DurationVar(&cfg.Runtime.BackoffBase, flags.FlagBackoffBase, cfg.Runtime.BackoffBase, "Initial retry backoff, doubled per attempt")
	pf.DurationVar(&cfg.Runtime.BackoffMax, flags.FlagBackoffMax, cfg.Runtime.BackoffMax, "Maximum retry backoff and server wait hint")
	pf.Float64Var(&cfg.Runtime.RPS, flags.FlagRPS, cfg.Runtime.RPS, "Requests per second for the whole run (0 = unlimited)")
	pf.DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, 0, "Global run timeout (0 = none); reaching it aborts the run")

	// GitHub
	gf := collectGitHubCmd.Flags()
	gf.StringVar(&cfg.GitHub.APIURL, flags.FlagGitHubAPIURL, "", "GitHub Enterprise Server REST base, e.g. https://ghe.example.com/api/v3")
	gf.BoolVar(&cfg.GitHub.DeepScan, flags.FlagDeepScan, false, "Add per-repository GraphQL and webhook counts")
	gf.StringVar(&cfg.GitHub.Visibility, flags.FlagVisibility, cfg.GitHub.Visibility, "Visibility filter: public|private|internal|all")
	gf.StringVar(&cfg.GitHub.Archived, flags.FlagArchived, cfg.GitHub.Archived, "Archived repos policy: include|exclude|only")
	gf.StringVar(&cfg.GitHub.Forks, flags.FlagForks, cfg.GitHub.Forks, "Forks policy: include|exclude|only")
	gf.StringSliceVar(&cfg.GitHub.Topic, flags.FlagTopic, nil, "Require at least one topic match (repeatable; comma-separated accepted)")
	gf.StringSliceVar(&cfg.GitHub.Include, flags.FlagInclude, nil, "Include pattern(s), Go path.Match style; patterns with '/' match OWNER/REPO")
	gf.StringSliceVar(&cfg.GitHub.Exclude, flags.FlagExclude, nil, "Exclude pattern(s); same matching rules as --include")
	gf.IntVar(&cfg.GitHub.MaxRepos, flags.FlagMaxRepos, 0, "Maximum repositories per organization (0 = unlimited)")
}
