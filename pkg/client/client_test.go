package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /run", func(w http.ResponseWriter, r *http.Request) {
		var req RunRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Tasks) == 1 && req.Tasks[0] == "locked" {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "another maintenance session is running (pid 77)"})
			return
		}
		_ = json.NewEncoder(w).Encode(SessionResult{
			SessionID: "s1",
			Result:    "success",
			Tasks:     []TaskStatus{{Task: "backup", Outcome: "success"}},
		})
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(Status{Running: true, HolderPid: 42})
	})
	mux.HandleFunc("GET /report", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") == "text" {
			_, _ = w.Write([]byte("=== Maintenance Status Report ===\n"))
			return
		}
		_, _ = w.Write([]byte(`{"session_id":"s1"}`))
	})
	mux.HandleFunc("GET /schedule", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]ScheduleEntry{{Cron: "0 3 * * 0", Task: "security"}})
	})
	return httptest.NewServer(mux)
}

func TestClientRun(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := New(Config{BaseURL: srv.URL})

	res, err := c.Run(context.Background(), []string{"backup"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.SessionID != "s1" || len(res.Tasks) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestClientRunConflict(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := New(Config{BaseURL: srv.URL})

	_, err := c.Run(context.Background(), []string{"locked"})
	if err == nil || !strings.Contains(err.Error(), "pid 77") {
		t.Fatalf("expected conflict error naming pid, got %v", err)
	}
}

func TestClientStatus(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := New(Config{BaseURL: srv.URL})

	st, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Running || st.HolderPid != 42 {
		t.Fatalf("unexpected status %+v", st)
	}
	if !c.IsReachable(context.Background()) {
		t.Fatal("expected reachable")
	}
}

func TestClientReportFormats(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := New(Config{BaseURL: srv.URL})

	text, err := c.Report(context.Background(), "text")
	if err != nil || !strings.Contains(text, "Maintenance Status Report") {
		t.Fatalf("text report: %q err=%v", text, err)
	}
	j, err := c.Report(context.Background(), "")
	if err != nil || !strings.Contains(j, "session_id") {
		t.Fatalf("json report: %q err=%v", j, err)
	}
}

func TestClientSchedule(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := New(Config{BaseURL: srv.URL})

	entries, err := c.Schedule(context.Background())
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(entries) != 1 || entries[0].Task != "security" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestClientUnreachable(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1"})
	if c.IsReachable(context.Background()) {
		t.Fatal("expected unreachable")
	}
}
