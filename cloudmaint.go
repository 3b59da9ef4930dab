package cloudmaint

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/loykin/cloudmaint/internal/config"
	"github.com/loykin/cloudmaint/internal/credential"
	"github.com/loykin/cloudmaint/internal/env"
	"github.com/loykin/cloudmaint/internal/history"
	"github.com/loykin/cloudmaint/internal/history/factory"
	"github.com/loykin/cloudmaint/internal/maintenance"
	"github.com/loykin/cloudmaint/internal/metrics"
	"github.com/loykin/cloudmaint/internal/notify"
	"github.com/loykin/cloudmaint/internal/report"
	"github.com/loykin/cloudmaint/internal/schedule"
	iapi "github.com/loykin/cloudmaint/internal/server"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type TaskName = maintenance.TaskName

type TaskSpec = maintenance.Spec

type SessionResult = maintenance.SessionResult

type Mode = maintenance.Mode

const (
	TaskSecurity    = maintenance.TaskSecurity
	TaskPerformance = maintenance.TaskPerformance
	TaskConfig      = maintenance.TaskConfig
	TaskBackup      = maintenance.TaskBackup

	ModeApply  = maintenance.ModeApply
	ModeDryRun = maintenance.ModeDryRun
)

type StatusReport = report.StatusReport

type ReportFormat = report.Format

const (
	ReportText = report.FormatText
	ReportJSON = report.FormatJSON
)

type ScheduleEntry = schedule.Entry

type HistorySink = history.Sink

type Notifier = notify.Notifier

// Runner is a thin facade over internal/maintenance.Runner.
// It provides a stable public API for embedding.
type Runner struct{ inner *maintenance.Runner }

// RunnerOptions mirrors the knobs an embedding program can set.
type RunnerOptions struct {
	LockPath   string
	StatusPath string
	RepoDir    string
	Debug      bool
	Mode       Mode
	Specs      map[TaskName]TaskSpec
	Env        []string
	History    HistorySink
	Notifier   Notifier
}

func NewRunner(o RunnerOptions) *Runner {
	e := env.New()
	e.FromOS()
	for _, kv := range o.Env {
		if i := strings.IndexByte(kv, '='); i > 0 {
			e.Set(kv[:i], kv[i+1:])
		}
	}
	return &Runner{inner: maintenance.NewRunner(maintenance.Options{
		LockPath:   o.LockPath,
		StatusPath: o.StatusPath,
		RepoDir:    o.RepoDir,
		Debug:      o.Debug,
		Mode:       o.Mode,
		Specs:      o.Specs,
		Env:        e,
		History:    o.History,
		Notifier:   o.Notifier,
	})}
}

func (r *Runner) Run(ctx context.Context, tasks []TaskName) (*SessionResult, error) {
	return r.inner.Run(ctx, tasks)
}

// CredentialStore facade.
type CredentialStore struct{ inner *credential.Store }

func NewCredentialStore(path string, passphrase []byte) *CredentialStore {
	return &CredentialStore{inner: credential.New(path, passphrase)}
}

func (s *CredentialStore) Save(records map[string]string) error { return s.inner.Save(records) }
func (s *CredentialStore) Load() (map[string]string, error)     { return s.inner.Load() }
func (s *CredentialStore) Validate() error                      { return s.inner.Validate() }
func (s *CredentialStore) Backup() (string, error)              { return s.inner.Backup() }

// ScheduleManager facade over the crontab integration.
type ScheduleManager struct{ inner *schedule.Manager }

func NewScheduleManager(command string) *ScheduleManager {
	return &ScheduleManager{inner: schedule.NewManager(command)}
}

func (m *ScheduleManager) Install(entries []ScheduleEntry) (int, error) {
	return m.inner.Install(entries)
}
func (m *ScheduleManager) Status() ([]ScheduleEntry, error) { return m.inner.Status() }
func (m *ScheduleManager) Uninstall() (int, error)          { return m.inner.Uninstall() }

// LoadConfig reads a TOML config file.
func LoadConfig(path string) (*cfg.FileConfig, error) { return cfg.Load(path) }

// NewHistorySink builds a sink from a DSN (sqlite, postgres or clickhouse).
func NewHistorySink(dsn string) (HistorySink, error) { return factory.NewSinkFromDSN(dsn) }

// NewMailNotifier builds a sendmail-backed notifier.
func NewMailNotifier(from string, to []string) Notifier { return notify.NewMailer(from, to) }

// LoadReport reads the persisted status report from path.
func LoadReport(path string) (StatusReport, error) { return report.Load(path) }

// RenderReport renders a report snapshot in the requested format.
func RenderReport(rep StatusReport, format ReportFormat) (string, error) {
	return report.Render(rep, format)
}

// NewHTTPServer starts an HTTP server exposing the internal API using the given runner.
func NewHTTPServer(addr, basePath string, r *Runner, lockPath, statusPath string) (*http.Server, error) {
	return iapi.NewServer(addr, iapi.Options{
		Runner:     r.inner,
		LockPath:   lockPath,
		StatusPath: statusPath,
		BasePath:   basePath,
	})
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the default registry.
// It returns any immediate listen error; otherwise it runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	http.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           nil,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
