package schedule

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Daemon runs configured entries in process, as an alternative to crontab
// registration. Each entry fires run(task) on its schedule.
type Daemon struct {
	c *cron.Cron
}

// NewDaemon builds an in-process scheduler for the given entries. All
// expressions are validated up front; an invalid one fails the whole build.
func NewDaemon(entries []Entry, run func(task string)) (*Daemon, error) {
	c := cron.New()
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		task := e.Task
		if _, err := c.AddFunc(e.Cron, func() { run(task) }); err != nil {
			return nil, fmt.Errorf("schedule %q for task %s: %w", e.Cron, e.Task, err)
		}
	}
	return &Daemon{c: c}, nil
}

// Start begins firing entries in their own goroutines.
func (d *Daemon) Start() { d.c.Start() }

// Stop stops scheduling new runs. The returned context is done when all
// in-flight runs have finished.
func (d *Daemon) Stop() context.Context { return d.c.Stop() }
