package cloudmaint

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loykin/cloudmaint/internal/maintenance"
)

func TestRunnerFacadeFullRun(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(RunnerOptions{
		LockPath:   filepath.Join(dir, "m.lock"),
		StatusPath: filepath.Join(dir, "status.json"),
		Specs: map[TaskName]TaskSpec{
			TaskSecurity:    {Command: "true"},
			TaskPerformance: {Command: "true"},
			TaskConfig:      {Command: "true"},
			TaskBackup:      {Command: "true"},
		},
	})
	res, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Result != maintenance.Success {
		t.Fatalf("expected success, got %s", res.Result)
	}

	rep, err := LoadReport(filepath.Join(dir, "status.json"))
	if err != nil {
		t.Fatalf("LoadReport: %v", err)
	}
	out, err := RenderReport(rep, ReportText)
	if err != nil {
		t.Fatalf("RenderReport: %v", err)
	}
	if !strings.Contains(out, "Maintenance Status Report") {
		t.Fatalf("unexpected report output:\n%s", out)
	}
}

func TestCredentialStoreFacadeRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.enc")
	s := NewCredentialStore(path, []byte("facade-pass"))
	want := map[string]string{"db_admin_password": "s3cret"}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got["db_admin_password"] != "s3cret" {
		t.Fatalf("round trip lost data: %+v", got)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestNewHistorySinkFacade(t *testing.T) {
	sink, err := NewHistorySink(":memory:")
	if err != nil {
		t.Fatalf("NewHistorySink: %v", err)
	}
	if sink == nil {
		t.Fatal("nil sink")
	}
}

func TestScheduleManagerFacade(t *testing.T) {
	m := NewScheduleManager("/usr/local/bin/cloudmaint run")
	if m == nil {
		t.Fatal("nil manager")
	}
}
