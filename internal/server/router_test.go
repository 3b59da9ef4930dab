package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/loykin/cloudmaint/internal/lock"
	"github.com/loykin/cloudmaint/internal/maintenance"
	"github.com/loykin/cloudmaint/internal/report"
	"github.com/loykin/cloudmaint/internal/schedule"
)

type fakeRunner struct {
	gotTasks []maintenance.TaskName
	res      *maintenance.SessionResult
	err      error
}

func (f *fakeRunner) Run(_ context.Context, tasks []maintenance.TaskName) (*maintenance.SessionResult, error) {
	f.gotTasks = tasks
	return f.res, f.err
}

func newTestRouter(t *testing.T, runner TaskRunner) (*Router, string) {
	t.Helper()
	dir := t.TempDir()
	o := Options{
		Runner:     runner,
		LockPath:   filepath.Join(dir, "maintenance.lock"),
		StatusPath: filepath.Join(dir, "status.json"),
	}
	return NewRouter(o), dir
}

func TestRunEndpoint(t *testing.T) {
	fr := &fakeRunner{res: &maintenance.SessionResult{
		SessionID: "s1",
		Result:    maintenance.Success,
		Tasks:     []maintenance.TaskStatus{{Task: maintenance.TaskBackup, Outcome: maintenance.OutcomeSuccess}},
	}}
	r, _ := newTestRouter(t, fr)
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/run", "application/json", strings.NewReader(`{"tasks":["backup"]}`))
	if err != nil {
		t.Fatalf("POST /run: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if len(fr.gotTasks) != 1 || fr.gotTasks[0] != maintenance.TaskBackup {
		t.Fatalf("runner got tasks %v", fr.gotTasks)
	}
	var res maintenance.SessionResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.SessionID != "s1" || res.Result != maintenance.Success {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunEndpointEmptyBodyMeansFullRun(t *testing.T) {
	fr := &fakeRunner{res: &maintenance.SessionResult{Result: maintenance.Success}}
	r, _ := newTestRouter(t, fr)
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/run", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /run: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if len(fr.gotTasks) != 0 {
		t.Fatalf("expected empty task list for full run, got %v", fr.gotTasks)
	}
}

func TestRunEndpointRejectsUnknownTask(t *testing.T) {
	r, _ := newTestRouter(t, &fakeRunner{})
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/run", "application/json", strings.NewReader(`{"tasks":["reboot"]}`))
	if err != nil {
		t.Fatalf("POST /run: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: %d", resp.StatusCode)
	}
}

func TestRunEndpointConflictWhenAlreadyRunning(t *testing.T) {
	fr := &fakeRunner{err: &lock.ErrAlreadyRunning{Pid: 4242, Path: "/tmp/x.lock"}}
	r, _ := newTestRouter(t, fr)
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/run", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /run: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	var e struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(e.Error, "4242") {
		t.Fatalf("conflict error should name the pid: %q", e.Error)
	}
}

func TestStatusEndpoint(t *testing.T) {
	r, dir := newTestRouter(t, &fakeRunner{})
	// Live holder: our own pid.
	if err := os.WriteFile(filepath.Join(dir, "maintenance.lock"), []byte(strconv.Itoa(os.Getpid())+"\n"), 0o600); err != nil {
		t.Fatalf("seed lock: %v", err)
	}
	rep := report.NewReporter(filepath.Join(dir, "status.json"), "s9", false)
	rep.Info("hello")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var st statusResp
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.Running || st.HolderPid != os.Getpid() {
		t.Fatalf("expected running with own pid, got %+v", st)
	}
	if st.LastReport == nil || st.LastReport.SessionID != "s9" {
		t.Fatalf("expected last report s9, got %+v", st.LastReport)
	}
}

func TestReportEndpointFormats(t *testing.T) {
	r, dir := newTestRouter(t, &fakeRunner{})
	rep := report.NewReporter(filepath.Join(dir, "status.json"), "s2", false)
	rep.Info("backup completed")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/report?format=text")
	if err != nil {
		t.Fatalf("GET /report: %v", err)
	}
	b := readAll(t, resp)
	if resp.StatusCode != http.StatusOK || !strings.Contains(b, "Maintenance Status Report") {
		t.Fatalf("text report: status=%d body=%q", resp.StatusCode, b)
	}

	resp, err = http.Get(srv.URL + "/report")
	if err != nil {
		t.Fatalf("GET /report: %v", err)
	}
	b = readAll(t, resp)
	if !strings.Contains(b, `"session_id": "s2"`) {
		t.Fatalf("json report missing session id: %q", b)
	}
}

func TestReportEndpointNotFound(t *testing.T) {
	r, _ := newTestRouter(t, &fakeRunner{})
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/report")
	if err != nil {
		t.Fatalf("GET /report: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status: %d", resp.StatusCode)
	}
}

func TestScheduleEndpoint(t *testing.T) {
	fc := "0 3 * * 0 /usr/local/bin/cloudmaint run security\n"
	m := schedule.NewManager("/usr/local/bin/cloudmaint run")
	m.Run = func(_ string, args ...string) (string, error) {
		if args[0] == "-l" {
			return fc, nil
		}
		return "", nil
	}

	dir := t.TempDir()
	r := NewRouter(Options{
		Runner:     &fakeRunner{},
		LockPath:   filepath.Join(dir, "l"),
		StatusPath: filepath.Join(dir, "s"),
		Sched:      m,
	})
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/schedule")
	if err != nil {
		t.Fatalf("GET /schedule: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var entries []schedule.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Task != "security" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestBasePathMounting(t *testing.T) {
	dir := t.TempDir()
	r := NewRouter(Options{
		Runner:     &fakeRunner{res: &maintenance.SessionResult{Result: maintenance.Success}},
		LockPath:   filepath.Join(dir, "l"),
		StatusPath: filepath.Join(dir, "s"),
		BasePath:   "maint/",
	})
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/maint/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status under base path: %d", resp.StatusCode)
	}
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}
