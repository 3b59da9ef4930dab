package notify

import (
	"errors"
	"strings"
	"testing"
)

func TestMailerBuildsMessage(t *testing.T) {
	var gotStdin string
	var gotArgs []string
	m := NewMailer("maint@example.com", []string{"ops@example.com", "admin@example.com"})
	m.Run = func(stdin string, args ...string) error {
		gotStdin = stdin
		gotArgs = args
		return nil
	}

	if err := m.Notify("Maintenance SUCCESS", "All tasks completed."); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if len(gotArgs) != 2 || gotArgs[0] != "sendmail" || gotArgs[1] != "-t" {
		t.Fatalf("unexpected transport args: %v", gotArgs)
	}
	for _, want := range []string{
		"From: maint@example.com\n",
		"To: ops@example.com, admin@example.com\n",
		"Subject: Maintenance SUCCESS\n",
		"\n\nAll tasks completed.\n",
	} {
		if !strings.Contains(gotStdin, want) {
			t.Fatalf("message missing %q:\n%s", want, gotStdin)
		}
	}
}

func TestMailerCustomCommand(t *testing.T) {
	var gotArgs []string
	m := &Mailer{Command: "/usr/sbin/sendmail", To: []string{"ops@example.com"}, Run: func(_ string, args ...string) error {
		gotArgs = args
		return nil
	}}
	if err := m.Notify("s", "b"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if gotArgs[0] != "/usr/sbin/sendmail" {
		t.Fatalf("expected custom command, got %v", gotArgs)
	}
}

func TestMailerNoRecipients(t *testing.T) {
	m := NewMailer("maint@example.com", nil)
	if err := m.Notify("s", "b"); err == nil {
		t.Fatal("expected error with no recipients")
	}
}

func TestMailerPropagatesTransportError(t *testing.T) {
	want := errors.New("sendmail not found")
	m := NewMailer("", []string{"ops@example.com"})
	m.Run = func(string, ...string) error { return want }
	if err := m.Notify("s", "b"); !errors.Is(err, want) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestNullNotifier(t *testing.T) {
	if err := (Null{}).Notify("s", "b"); err != nil {
		t.Fatalf("Null.Notify: %v", err)
	}
}
