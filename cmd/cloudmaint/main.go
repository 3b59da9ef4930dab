package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command and wires all subcommands.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	runFlags := &RunFlags{}
	reportFlags := &ReportFlags{}
	credFlags := &CredFlags{}
	cronFlags := &CronFlags{}
	templateFlags := &TemplateFlags{}
	serveFlags := &ServeFlags{}

	c := command{global: globalFlags}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createRunCommand(c, runFlags),
		createStatusCommand(c),
		createReportCommand(c, reportFlags),
		createCredCommand(c, credFlags),
		createCronCommand(c, cronFlags),
		createTemplateCommand(c, templateFlags),
		createServeCommand(c, serveFlags),
	)
	return root
}

// createRootCommand creates the root command with minimal persistent flags.
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "cloudmaint",
		Short: "Lock-protected maintenance task runner with encrypted credentials",
		Long: `Cloudmaint runs recurring infrastructure maintenance tasks (security,
performance, config, backup) under a pid lock, keeps an encrypted credential
store, and persists an append-only status report per session.

Examples:
  cloudmaint run full                  # all tasks in canonical order
  cloudmaint run backup               # a single task
  cloudmaint report --format=text     # render the last session report
  cloudmaint cred store --set db_admin_password=...
  cloudmaint cron install             # register configured schedules
  cloudmaint serve                    # HTTP API daemon`,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "enable debug logging and report entries")

	return root
}

// createRunCommand creates the run subcommand.
func createRunCommand(c command, runFlags *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [full|security|performance|config|backup]...",
		Short: "Run maintenance tasks under the session lock",
		Long: `Run one or more maintenance tasks. "full" (or no argument) runs
security, performance, config and backup in that fixed order. A failing task
is recorded and the run continues with the next one; the session then ends
as PARTIAL SUCCESS. A second invocation while one is active fails immediately.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Run(*runFlags, args)
		},
	}
	cmd.Flags().BoolVar(&runFlags.DryRun, "dry-run", false, "announce tasks without executing them")
	return cmd
}

// createStatusCommand creates the status subcommand.
func createStatusCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show lock holder and last session summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status()
		},
	}
}

// createReportCommand creates the report subcommand.
func createReportCommand(c command, reportFlags *ReportFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the persisted status report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Report(*reportFlags)
		},
	}
	cmd.Flags().StringVar(&reportFlags.Format, "format", "text", "output format: text or json")
	return cmd
}
