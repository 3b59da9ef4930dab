package schedule

import (
	"fmt"
	"strings"
)

// RenderCronLine produces one crontab line for expr and command.
func RenderCronLine(expr, command string) string {
	return expr + " " + command
}

// SystemdUnit is the typed input for rendering a oneshot service unit.
type SystemdUnit struct {
	Name        string
	Description string
	Command     string
	User        string
	WorkDir     string
	Environment []string
}

// RenderSystemdService renders a oneshot service unit for a maintenance task.
// Rendering is pure; installing the unit is the caller's concern.
func RenderSystemdService(u SystemdUnit) string {
	var b strings.Builder
	b.WriteString("[Unit]\n")
	fmt.Fprintf(&b, "Description=%s\n", u.Description)
	b.WriteString("\n[Service]\n")
	b.WriteString("Type=oneshot\n")
	fmt.Fprintf(&b, "ExecStart=%s\n", u.Command)
	if u.User != "" {
		fmt.Fprintf(&b, "User=%s\n", u.User)
	}
	if u.WorkDir != "" {
		fmt.Fprintf(&b, "WorkingDirectory=%s\n", u.WorkDir)
	}
	for _, e := range u.Environment {
		fmt.Fprintf(&b, "Environment=%s\n", e)
	}
	b.WriteString("\n[Install]\n")
	b.WriteString("WantedBy=multi-user.target\n")
	return b.String()
}

// SystemdTimer is the typed input for rendering a timer unit.
type SystemdTimer struct {
	Name        string
	Description string
	OnCalendar  string
	Persistent  bool
}

// RenderSystemdTimer renders a timer unit activating Name.service.
func RenderSystemdTimer(t SystemdTimer) string {
	var b strings.Builder
	b.WriteString("[Unit]\n")
	fmt.Fprintf(&b, "Description=%s\n", t.Description)
	b.WriteString("\n[Timer]\n")
	fmt.Fprintf(&b, "OnCalendar=%s\n", t.OnCalendar)
	if t.Persistent {
		b.WriteString("Persistent=true\n")
	}
	fmt.Fprintf(&b, "Unit=%s.service\n", t.Name)
	b.WriteString("\n[Install]\n")
	b.WriteString("WantedBy=timers.target\n")
	return b.String()
}
