package maintenance

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestParseTask(t *testing.T) {
	for _, s := range []string{"security", "Performance", " config ", "BACKUP"} {
		if _, err := ParseTask(s); err != nil {
			t.Fatalf("ParseTask(%q): %v", s, err)
		}
	}
	if _, err := ParseTask("full"); err == nil {
		t.Fatal("expected error for non-task name")
	}
	if _, err := ParseTask(""); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestBuildCommandPlain(t *testing.T) {
	s := Spec{Command: "apt-get upgrade -y"}
	cmd := s.BuildCommand(context.Background())
	if len(cmd.Args) != 3 || cmd.Args[0] != "apt-get" || cmd.Args[2] != "-y" {
		t.Fatalf("unexpected args: %v", cmd.Args)
	}
}

func TestBuildCommandMetacharsUseShell(t *testing.T) {
	s := Spec{Command: "tar czf backup.tgz /etc && sync"}
	cmd := s.BuildCommand(context.Background())
	if cmd.Args[0] != "/bin/sh" || cmd.Args[1] != "-c" {
		t.Fatalf("expected shell wrapping, got %v", cmd.Args)
	}
}

func TestBuildCommandExplicitShellNotDoubleWrapped(t *testing.T) {
	s := Spec{Command: "sh -c 'sysctl -p && echo done'"}
	cmd := s.BuildCommand(context.Background())
	if cmd.Args[0] != "/bin/sh" || cmd.Args[1] != "-c" {
		t.Fatalf("expected normalized shell invocation, got %v", cmd.Args)
	}
	if cmd.Args[2] != "sysctl -p && echo done" {
		t.Fatalf("expected outer quotes stripped, got %q", cmd.Args[2])
	}
	if strings.Contains(cmd.Args[2], "sh -c") {
		t.Fatalf("double-wrapped shell: %q", cmd.Args[2])
	}
}

func TestBuildCommandEmpty(t *testing.T) {
	s := Spec{}
	cmd := s.BuildCommand(context.Background())
	if cmd.Args[0] != "/bin/true" {
		t.Fatalf("expected /bin/true fallback, got %v", cmd.Args)
	}
}

func TestSessionIDFormat(t *testing.T) {
	now := time.Date(2026, 3, 1, 4, 5, 6, 0, time.UTC)
	id := NewSessionID(now)
	if !strings.HasPrefix(id, "20260301T040506-") {
		t.Fatalf("unexpected session id %q", id)
	}
}
