package cli

import (
	"fmt"
	"os"

	"adoinventory/internal/flags"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "adoinventory",
	Short: "Inventory Azure DevOps and GitHub organizations for migration planning",
	Long: `adoinventory reads Azure DevOps organizations (and GitHub organizations) and
writes one CSV row per repository or project unit.

It is read-only: it never changes anything in the organizations it reads.

Examples:
	# Users report for every organization listed in orgs.txt
	adoinventory collect users orgs.txt

	# Repository inventory, two organizations given directly
	adoinventory collect inventory --org contoso --org fabrikam

	# GitHub organization inventory with per-repository counts
	adoinventory collect github --org acme --deep-scan

	# Print build info
	adoinventory version

Output:
	Each run writes <Prefix>-<YYYYMMDD-HHMMSS>.csv and a matching .log file to
	--output-dir. Rows are written only when the run was not aborted.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&cfg.Runtime.Verbose, flags.FlagVerbose, false, "Enable verbose logging (logs every API call at debug level)")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
