package report

import (
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// GitRunner executes a git subcommand in dir and returns combined output.
// Injectable so tests substitute a fake instead of a real working tree.
type GitRunner func(dir string, args ...string) (string, error)

func defaultGitRunner(dir string, args ...string) (string, error) {
	// ok: fixed binary, caller-controlled args are git subcommands only
	// #nosec G204
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	return string(out), err
}

// SyncChecker inspects a version-controlled directory.
type SyncChecker struct {
	Dir string
	Run GitRunner
}

func NewSyncChecker(dir string) *SyncChecker {
	return &SyncChecker{Dir: dir, Run: defaultGitRunner}
}

// Check classifies the working tree. Precedence when multiple conditions
// hold: not_a_repo > uncommitted_changes > unpushed_commits > clean.
func (c *SyncChecker) Check() SyncStatus {
	run := c.Run
	if run == nil {
		run = defaultGitRunner
	}
	now := time.Now()

	if out, err := run(c.Dir, "rev-parse", "--is-inside-work-tree"); err != nil || strings.TrimSpace(out) != "true" {
		return SyncStatus{State: SyncNotARepo, LastSync: now}
	}

	uncommitted := 0
	if out, err := run(c.Dir, "status", "--porcelain"); err == nil {
		uncommitted = countLines(out)
	}

	// Unpushed commits only make sense with an upstream configured.
	unpushed := 0
	if _, err := run(c.Dir, "rev-parse", "--abbrev-ref", "@{u}"); err == nil {
		if out, err := run(c.Dir, "rev-list", "--count", "@{u}..HEAD"); err == nil {
			if n, perr := strconv.Atoi(strings.TrimSpace(out)); perr == nil {
				unpushed = n
			}
		}
	}

	st := SyncStatus{UncommittedCount: uncommitted, UnpushedCount: unpushed, LastSync: now}
	switch {
	case uncommitted > 0:
		st.State = SyncUncommittedChanges
	case unpushed > 0:
		st.State = SyncUnpushedCommits
	default:
		st.State = SyncClean
	}
	return st
}

func countLines(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
