package template

import (
	"fmt"
	"strings"

	"github.com/loykin/cloudmaint/internal/schedule"
)

// ArtifactType selects what kind of starter artifact to generate.
type ArtifactType string

const (
	TypeConfig  ArtifactType = "config"  // TOML config starter
	TypeSystemd ArtifactType = "systemd" // oneshot service + timer units
	TypeCron    ArtifactType = "cron"    // crontab lines
)

// Params carries the inputs common to all artifacts.
type Params struct {
	// Binary is the invocation pattern, e.g. "/usr/local/bin/cloudmaint run".
	Binary string
	// Task limits systemd/cron artifacts to one task; empty means all four.
	Task string
	// Schedule entries used by cron/systemd artifacts. When empty a sensible
	// weekly/nightly default set is used.
	Schedule []schedule.Entry
}

// Generator produces ready-to-edit deployment artifacts.
type Generator struct{}

func NewGenerator() *Generator { return &Generator{} }

// DefaultSchedule is the starter schedule: weekly security and performance
// passes, nightly config check and backup.
var DefaultSchedule = []schedule.Entry{
	{Cron: "0 3 * * 0", Task: "security"},
	{Cron: "30 3 * * 0", Task: "performance"},
	{Cron: "0 2 * * *", Task: "config"},
	{Cron: "30 2 * * *", Task: "backup"},
}

// Generate renders the requested artifact as a string.
func (g *Generator) Generate(t ArtifactType, p Params) (string, error) {
	if p.Binary == "" {
		p.Binary = "/usr/local/bin/cloudmaint run"
	}
	entries := p.Schedule
	if len(entries) == 0 {
		entries = DefaultSchedule
	}
	if p.Task != "" {
		var filtered []schedule.Entry
		for _, e := range entries {
			if e.Task == p.Task {
				filtered = append(filtered, e)
			}
		}
		if len(filtered) == 0 {
			return "", fmt.Errorf("no schedule entry for task %q", p.Task)
		}
		entries = filtered
	}

	switch t {
	case TypeConfig:
		return g.generateConfig(entries), nil
	case TypeSystemd:
		return g.generateSystemd(p.Binary, entries), nil
	case TypeCron:
		return g.generateCron(p.Binary, entries), nil
	default:
		return "", fmt.Errorf("unknown artifact type %q (want config, systemd or cron)", t)
	}
}

func (g *Generator) generateConfig(entries []schedule.Entry) string {
	var b strings.Builder
	b.WriteString(`use_os_env = true
debug = false

[paths]
lock = "/var/run/cloudmaint.lock"
status = "/var/lib/cloudmaint/status.json"
report_dir = "/var/lib/cloudmaint/reports"
credential = "/var/lib/cloudmaint/credentials.enc"
repo = "/srv/infrastructure"

[log]
dir = "/var/log/cloudmaint"
max_size_mb = 10
max_backups = 5
max_age_days = 14

[[tasks]]
name = "security"
command = "sh -c 'apt-get update -q && apt-get upgrade -y -q'"
timeout = "30m"

[[tasks]]
name = "performance"
command = "sysctl --system"

[[tasks]]
name = "config"
command = "terraform validate"
workdir = "/srv/infrastructure"

[[tasks]]
name = "backup"
command = "sh -c 'tar czf /var/backups/cloudmaint-config.tgz /etc/cloudmaint'"
timeout = "1h"

[notify]
enabled = false
from = "cloudmaint@localhost"
to = ["ops@example.com"]

[history]
enabled = false
dsn = "sqlite:///var/lib/cloudmaint/history.db"

[server]
listen = ":8080"

[metrics]
enabled = false
listen = ":9090"
`)
	for _, e := range entries {
		fmt.Fprintf(&b, "\n[[schedule]]\ncron = %q\ntask = %q\n", e.Cron, e.Task)
	}
	return b.String()
}

func (g *Generator) generateSystemd(binary string, entries []schedule.Entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		name := "cloudmaint-" + e.Task
		fmt.Fprintf(&b, "# %s.service\n", name)
		b.WriteString(schedule.RenderSystemdService(schedule.SystemdUnit{
			Name:        name,
			Description: "Cloudmaint " + e.Task + " maintenance task",
			Command:     binary + " " + e.Task,
		}))
		fmt.Fprintf(&b, "\n# %s.timer\n", name)
		b.WriteString(schedule.RenderSystemdTimer(schedule.SystemdTimer{
			Name:        name,
			Description: "Timer for cloudmaint " + e.Task,
			OnCalendar:  cronToCalendar(e.Cron),
			Persistent:  true,
		}))
	}
	return b.String()
}

func (g *Generator) generateCron(binary string, entries []schedule.Entry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(schedule.RenderCronLine(e.Cron, binary+" "+e.Task))
		b.WriteString("\n")
	}
	return b.String()
}

// cronToCalendar maps a 5-field cron expression to a systemd OnCalendar
// value. Only the minute/hour/weekday forms used by maintenance schedules
// are translated; anything else falls back to daily at the given time.
func cronToCalendar(expr string) string {
	f := strings.Fields(expr)
	if len(f) != 5 {
		return "daily"
	}
	minute, hour, dow := pad2(f[0]), pad2(f[1]), f[4]
	if dow != "*" {
		if name, ok := weekdayNames[dow]; ok {
			return fmt.Sprintf("%s *-*-* %s:%s:00", name, hour, minute)
		}
	}
	return fmt.Sprintf("*-*-* %s:%s:00", hour, minute)
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

var weekdayNames = map[string]string{
	"0": "Sun", "1": "Mon", "2": "Tue", "3": "Wed",
	"4": "Thu", "5": "Fri", "6": "Sat", "7": "Sun",
}
