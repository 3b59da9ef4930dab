package main

// Flag structs to decouple cobra from logic for testing.

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
	Debug      bool
}

// RunFlags holds flags for the run command.
type RunFlags struct {
	DryRun bool
}

// ReportFlags holds flags for the report command.
type ReportFlags struct {
	Format string
}

// CredFlags holds flags for the cred subcommands.
type CredFlags struct {
	File string   // credential file override
	Set  []string // name=value pairs for store
}

// CronFlags holds flags for the cron subcommands.
type CronFlags struct {
	Binary string // invocation pattern registered in crontab
}

// TemplateFlags holds flags for the template command.
type TemplateFlags struct {
	Type   string // artifact type: config, systemd or cron
	Task   string // optional single-task filter
	Binary string // invocation pattern used in generated entries
}

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	Listen        string
	BasePath      string
	MetricsListen string
	NonBlocking   bool // used by tests to avoid blocking on signals
}
