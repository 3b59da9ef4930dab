package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loykin/cloudmaint/pkg/template"
)

// createTemplateCommand creates the template subcommand.
func createTemplateCommand(c command, templateFlags *TemplateFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Generate starter deployment artifacts",
		Long: `Generate ready-to-edit artifacts on stdout:

  cloudmaint template --type=config   # starter TOML config
  cloudmaint template --type=cron     # crontab lines for all tasks
  cloudmaint template --type=systemd --task=backup`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Template(*templateFlags)
		},
	}
	cmd.Flags().StringVar(&templateFlags.Type, "type", "config", "artifact type: config, systemd or cron")
	cmd.Flags().StringVar(&templateFlags.Task, "task", "", "limit systemd/cron output to one task")
	cmd.Flags().StringVar(&templateFlags.Binary, "binary", "", "invocation pattern used in generated entries")
	return cmd
}

// Template renders the requested artifact, honoring [[schedule]] from config
// when present.
func (c command) Template(f TemplateFlags) error {
	fc, err := c.loadConfig()
	if err != nil {
		return err
	}
	g := template.NewGenerator()
	out, err := g.Generate(template.ArtifactType(f.Type), template.Params{
		Binary:   f.Binary,
		Task:     f.Task,
		Schedule: fc.Schedule,
	})
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
