package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/cloudmaint/internal/credential"
	"github.com/loykin/cloudmaint/internal/lock"
	"github.com/loykin/cloudmaint/internal/maintenance"
	"github.com/loykin/cloudmaint/internal/report"
	"github.com/loykin/cloudmaint/internal/schedule"
)

// TaskRunner runs maintenance tasks. Satisfied by *maintenance.Runner.
type TaskRunner interface {
	Run(ctx context.Context, tasks []maintenance.TaskName) (*maintenance.SessionResult, error)
}

// Router provides embeddable HTTP handlers for the maintenance tool.
// Endpoints:
//
//	POST {basePath}/run       body: {"tasks": ["security", ...]} (empty = full run)
//	GET  {basePath}/status    lock holder + last persisted report summary
//	GET  {basePath}/report    query: format=text|json (default json)
//	GET  {basePath}/schedule  registered cron entries
//	GET  {basePath}/credentials/status
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	runner     TaskRunner
	lockPath   string
	statusPath string
	sched      *schedule.Manager
	store      *credential.Store
	basePath   string
}

// Options wires a Router. Runner, LockPath and StatusPath are required;
// Sched and Store enable their endpoints when set.
type Options struct {
	Runner     TaskRunner
	LockPath   string
	StatusPath string
	Sched      *schedule.Manager
	Store      *credential.Store
	BasePath   string
}

func NewRouter(o Options) *Router {
	return &Router{
		runner:     o.Runner,
		lockPath:   o.LockPath,
		statusPath: o.StatusPath,
		sched:      o.Sched,
		store:      o.Store,
		basePath:   sanitizeBase(o.BasePath),
	}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/run", r.handleRun)
	group.GET("/status", r.handleStatus)
	group.GET("/report", r.handleReport)
	group.GET("/schedule", r.handleSchedule)
	group.GET("/credentials/status", r.handleCredentialStatus)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Call Close or Shutdown on the returned server to stop it.
func NewServer(addr string, o Options) (*http.Server, error) {
	r := NewRouter(o)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type runReq struct {
	Tasks []string `json:"tasks"`
}

func (r *Router) handleRun(c *gin.Context) {
	var req runReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
			return
		}
	}
	var tasks []maintenance.TaskName
	for _, s := range req.Tasks {
		t, err := maintenance.ParseTask(s)
		if err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
			return
		}
		tasks = append(tasks, t)
	}

	res, err := r.runner.Run(c.Request.Context(), tasks)
	if err != nil {
		var already *lock.ErrAlreadyRunning
		if errors.As(err, &already) {
			writeJSON(c, http.StatusConflict, errorResp{Error: already.Error()})
			return
		}
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, res)
}

type statusResp struct {
	Running    bool                 `json:"running"`
	HolderPid  int                  `json:"holder_pid,omitempty"`
	LastReport *report.StatusReport `json:"last_report,omitempty"`
}

func (r *Router) handleStatus(c *gin.Context) {
	var resp statusResp
	if pid, err := lock.ReadHolder(r.lockPath); err == nil && lock.Alive(pid) {
		resp.Running = true
		resp.HolderPid = pid
	}
	if rep, err := report.Load(r.statusPath); err == nil {
		resp.LastReport = &rep
	}
	writeJSON(c, http.StatusOK, resp)
}

func (r *Router) handleReport(c *gin.Context) {
	rep, err := report.Load(r.statusPath)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(c, http.StatusNotFound, errorResp{Error: "no status report yet"})
			return
		}
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	format := report.Format(c.DefaultQuery("format", string(report.FormatJSON)))
	out, err := report.Render(rep, format)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	switch format {
	case report.FormatText:
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(out))
	default:
		c.Data(http.StatusOK, "application/json", []byte(out))
	}
}

func (r *Router) handleSchedule(c *gin.Context) {
	if r.sched == nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "schedule manager not configured"})
		return
	}
	entries, err := r.sched.Status()
	if err != nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: err.Error()})
		return
	}
	if entries == nil {
		entries = []schedule.Entry{}
	}
	writeJSON(c, http.StatusOK, entries)
}

func (r *Router) handleCredentialStatus(c *gin.Context) {
	if r.store == nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "credential store not configured"})
		return
	}
	st, err := r.store.Stat()
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, st)
}
