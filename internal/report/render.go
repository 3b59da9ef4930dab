package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Format selects a report rendering.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// maxRecentOperations bounds the operations section of the text report.
const maxRecentOperations = 10

// Render produces a human-readable or machine-readable document from a
// report snapshot. It is a pure read: the snapshot is not modified.
func Render(rep StatusReport, format Format) (string, error) {
	switch format {
	case FormatText:
		return renderText(rep), nil
	case FormatJSON:
		return renderJSON(rep)
	default:
		return "", fmt.Errorf("unknown report format %q (want text or json)", format)
	}
}

func renderJSON(rep StatusReport) (string, error) {
	doc := struct {
		StatusReport
		ReportGenerated time.Time `json:"report_generated"`
	}{StatusReport: rep, ReportGenerated: time.Now()}
	b, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func renderText(rep StatusReport) string {
	var b strings.Builder
	ts := func(t time.Time) string { return t.Format("2006-01-02 15:04:05") }

	b.WriteString("=== Maintenance Status Report ===\n")
	fmt.Fprintf(&b, "Session:     %s\n", rep.SessionID)
	fmt.Fprintf(&b, "Started:     %s\n", ts(rep.StartTime))
	fmt.Fprintf(&b, "Last update: %s\n", ts(rep.LastUpdate))
	b.WriteString("\n--- Summary ---\n")
	fmt.Fprintf(&b, "Changes:          %d\n", len(rep.ChangesMade))
	fmt.Fprintf(&b, "Permission fixes: %d\n", len(rep.PermissionsFixed))
	fmt.Fprintf(&b, "Commits:          %d\n", len(rep.CommitsCreated))
	fmt.Fprintf(&b, "Operations:       %d\n", len(rep.Operations))
	fmt.Fprintf(&b, "Errors:           %d\n", len(rep.Errors))

	b.WriteString("\n--- Sync ---\n")
	fmt.Fprintf(&b, "State: %s (uncommitted=%d unpushed=%d)\n",
		rep.Sync.State, rep.Sync.UncommittedCount, rep.Sync.UnpushedCount)
	if !rep.Sync.LastSync.IsZero() {
		fmt.Fprintf(&b, "Last sync: %s\n", ts(rep.Sync.LastSync))
	}

	if len(rep.ChangesMade) > 0 {
		b.WriteString("\n--- Changes ---\n")
		for _, c := range rep.ChangesMade {
			fmt.Fprintf(&b, "[%s] %s: %s (%s)\n", ts(c.Timestamp), c.Type, c.Description, c.Path)
		}
	}
	if len(rep.PermissionsFixed) > 0 {
		b.WriteString("\n--- Permission fixes ---\n")
		for _, p := range rep.PermissionsFixed {
			fmt.Fprintf(&b, "[%s] %s: %s -> %s\n", ts(p.Timestamp), p.Target, p.OldMode, p.NewMode)
		}
	}
	if len(rep.CommitsCreated) > 0 {
		b.WriteString("\n--- Commits ---\n")
		for _, c := range rep.CommitsCreated {
			fmt.Fprintf(&b, "[%s] %s %s (%d files)\n", ts(c.Timestamp), c.Hash, c.Message, c.FilesChanged)
		}
	}

	b.WriteString("\n--- Recent operations ---\n")
	ops := rep.Operations
	if len(ops) > maxRecentOperations {
		ops = ops[len(ops)-maxRecentOperations:]
	}
	if len(ops) == 0 {
		b.WriteString("(none)\n")
	}
	for _, op := range ops {
		fmt.Fprintf(&b, "[%s] %-7s %s\n", ts(op.Timestamp), op.Level, op.Message)
	}

	if len(rep.Errors) > 0 {
		b.WriteString("\n--- Errors ---\n")
		for _, e := range rep.Errors {
			fmt.Fprintf(&b, "[%s] %s\n", ts(e.Timestamp), e.Message)
		}
	}
	return b.String()
}
