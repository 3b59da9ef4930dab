package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loykin/cloudmaint/internal/schedule"
)

// createCronCommand creates the cron subcommand tree.
func createCronCommand(c command, cronFlags *CronFlags) *cobra.Command {
	cron := &cobra.Command{
		Use:   "cron",
		Short: "Manage crontab entries for scheduled maintenance",
		Long: `Register the [[schedule]] entries from the config file with the user's
crontab. Install is idempotent: an entry whose command already appears is
never duplicated. Only lines matching this tool's invocation pattern are
listed or removed.`,
	}
	cron.PersistentFlags().StringVar(&cronFlags.Binary, "binary", "", "invocation pattern registered in crontab (default: current executable + \" run\")")

	install := &cobra.Command{
		Use:   "install",
		Short: "Idempotently register configured schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.CronInstall(*cronFlags)
		},
	}
	status := &cobra.Command{
		Use:   "status",
		Short: "List registered maintenance schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.CronStatus(*cronFlags)
		},
	}
	uninstall := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove all registered maintenance schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.CronUninstall(*cronFlags)
		},
	}

	cron.AddCommand(install, status, uninstall)
	return cron
}

func (c command) scheduleManager(f CronFlags) (*schedule.Manager, error) {
	pattern := f.Binary
	if pattern == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, err
		}
		pattern = exe + " run"
	}
	return schedule.NewManager(pattern), nil
}

// CronInstall registers the configured schedule entries.
func (c command) CronInstall(f CronFlags) error {
	fc, err := c.loadConfig()
	if err != nil {
		return err
	}
	if len(fc.Schedule) == 0 {
		return fmt.Errorf("no [[schedule]] entries in config")
	}
	m, err := c.scheduleManager(f)
	if err != nil {
		return err
	}
	added, err := m.Install(fc.Schedule)
	if err != nil {
		return err
	}
	fmt.Printf("installed %d new entr%s (%d configured)\n", added, plural(added, "y", "ies"), len(fc.Schedule))
	return nil
}

// CronStatus lists entries registered for this tool.
func (c command) CronStatus(f CronFlags) error {
	m, err := c.scheduleManager(f)
	if err != nil {
		return err
	}
	entries, err := m.Status()
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []schedule.Entry{}
	}
	printJSON(entries)
	return nil
}

// CronUninstall removes entries registered for this tool.
func (c command) CronUninstall(f CronFlags) error {
	m, err := c.scheduleManager(f)
	if err != nil {
		return err
	}
	removed, err := m.Uninstall()
	if err != nil {
		return err
	}
	fmt.Printf("removed %d entr%s\n", removed, plural(removed, "y", "ies"))
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
