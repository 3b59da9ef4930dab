package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loykin/cloudmaint/internal/history"
)

func TestSinkSend(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	defer srv.Close()

	sink := New(srv.URL, "maintenance-history")
	ev := history.Event{
		Type:       history.EventTaskResult,
		OccurredAt: time.Now(),
		Record: history.Record{
			SessionID: "20260824T120000-1",
			Task:      "backup",
			Outcome:   "success",
		},
	}
	if err := sink.Send(context.Background(), ev); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/maintenance-history/_doc" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	var decoded history.Event
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.Type != history.EventTaskResult || decoded.Record.Task != "backup" {
		t.Fatalf("unexpected event %+v", decoded)
	}
}

func TestSinkSendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := New(srv.URL, "maintenance-history")
	if err := sink.Send(context.Background(), history.Event{}); err == nil {
		t.Fatal("expected error for 5xx response")
	}
}

func TestSinkSendUnreachable(t *testing.T) {
	sink := New("http://127.0.0.1:1", "maintenance-history")
	if err := sink.Send(context.Background(), history.Event{}); err == nil {
		t.Fatal("expected error when endpoint unreachable")
	}
}
