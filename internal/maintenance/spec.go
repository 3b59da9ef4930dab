package maintenance

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/loykin/cloudmaint/internal/logger"
)

// TaskName identifies one maintenance routine.
type TaskName string

const (
	TaskSecurity    TaskName = "security"
	TaskPerformance TaskName = "performance"
	TaskConfig      TaskName = "config"
	TaskBackup      TaskName = "backup"
)

// CanonicalOrder is the fixed execution order of a full run.
var CanonicalOrder = []TaskName{TaskSecurity, TaskPerformance, TaskConfig, TaskBackup}

// ParseTask maps a CLI argument to a task name.
func ParseTask(s string) (TaskName, error) {
	t := TaskName(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range CanonicalOrder {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown task %q (valid: security, performance, config, backup)", s)
}

// Spec describes one maintenance task's external command.
// The command is an opaque collaborator: the runner sequences it and
// captures its exit status but knows nothing about its internals.
type Spec struct {
	Name    TaskName      `json:"name" mapstructure:"name"`
	Command string        `json:"command" mapstructure:"command"`
	WorkDir string        `json:"work_dir" mapstructure:"work_dir"`
	Env     []string      `json:"env" mapstructure:"env"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	Log     logger.Config `json:"log" mapstructure:"log"`
}

// BuildCommand constructs an *exec.Cmd for the given spec.Command.
// It avoids invoking a shell when not necessary, and it also respects
// an explicit shell invocation already present in the command string
// (e.g., "sh -c 'echo hi'"), avoiding double-wrapping with another shell.
// The context bounds the command's lifetime when the spec has a Timeout.
func (s *Spec) BuildCommand(ctx context.Context) *exec.Cmd {
	cmdStr := strings.TrimSpace(s.Command)
	if cmdStr == "" {
		// #nosec G204
		return exec.CommandContext(ctx, "/bin/true")
	}
	// If the command already explicitly uses a shell, honor it without adding another layer.
	if _, afterC, ok := parseExplicitShell(cmdStr); ok {
		// Always use absolute shell path to avoid PATH dependency when Env is overridden.
		// #nosec G204
		return exec.CommandContext(ctx, "/bin/sh", "-c", afterC)
	}
	// Fallback: when metacharacters are present, use /bin/sh -c
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.CommandContext(ctx, "/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	name := parts[0]
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// #nosec G204
	return exec.CommandContext(ctx, name, args...)
}

// parseExplicitShell detects patterns like "sh -c <ARG>" or "/bin/sh -c <ARG>" at the
// beginning of cmdStr. It returns (shellPath, afterCArg, true) when matched.
// It preserves the substring after "-c " verbatim to avoid breaking quoting.
func parseExplicitShell(cmdStr string) (string, string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	candidates := []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "}
	for _, p := range candidates {
		if strings.HasPrefix(trim, p) {
			after := trim[len(p):]
			// If after is wrapped in single or double quotes, strip one pair so that
			// we pass the actual script to the shell (the outer quotes would otherwise
			// inhibit parsing/redirection inside the script).
			if n := len(after); n >= 2 {
				if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
					after = after[1 : n-1]
				}
			}
			return strings.Fields(p)[0], after, true
		}
	}
	return "", "", false
}
