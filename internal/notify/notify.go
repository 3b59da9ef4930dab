package notify

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Notifier delivers a maintenance session summary to an operator.
type Notifier interface {
	Notify(subject, body string) error
}

// MailRunner executes the mail transport command with the message on stdin.
// Injected in tests.
type MailRunner func(stdin string, args ...string) error

func defaultMailRunner(stdin string, args ...string) error {
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdin = strings.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s: %s: %w", args[0], msg, err)
		}
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return nil
}

// Mailer sends notifications through a local sendmail-compatible binary.
type Mailer struct {
	Command string // defaults to "sendmail"
	From    string
	To      []string
	Run     MailRunner
}

func NewMailer(from string, to []string) *Mailer {
	return &Mailer{Command: "sendmail", From: from, To: to, Run: defaultMailRunner}
}

func (m *Mailer) Notify(subject, body string) error {
	if len(m.To) == 0 {
		return errors.New("no notification recipients configured")
	}
	cmd := m.Command
	if cmd == "" {
		cmd = "sendmail"
	}
	run := m.Run
	if run == nil {
		run = defaultMailRunner
	}

	var b strings.Builder
	if m.From != "" {
		fmt.Fprintf(&b, "From: %s\n", m.From)
	}
	fmt.Fprintf(&b, "To: %s\n", strings.Join(m.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\n", subject)
	b.WriteString("\n")
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}

	return run(b.String(), cmd, "-t")
}

// Null discards notifications. Used when notify is disabled in config.
type Null struct{}

func (Null) Notify(string, string) error { return nil }
