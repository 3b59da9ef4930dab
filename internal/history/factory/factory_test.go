package factory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/cloudmaint/internal/history"
	"github.com/loykin/cloudmaint/internal/history/opensearch"
	"github.com/loykin/cloudmaint/internal/history/sqlite"
)

func TestNewSinkFromDSNSQLite(t *testing.T) {
	dir := t.TempDir()
	cases := []string{
		"sqlite://" + filepath.Join(dir, "a.db"),
		filepath.Join(dir, "b.db"),
		":memory:",
	}
	for _, dsn := range cases {
		sink, err := NewSinkFromDSN(dsn)
		if err != nil {
			t.Fatalf("NewSinkFromDSN(%q): %v", dsn, err)
		}
		if _, ok := sink.(*sqlite.Sink); !ok {
			t.Fatalf("NewSinkFromDSN(%q): expected *sqlite.Sink, got %T", dsn, sink)
		}
		err = sink.Send(context.Background(), history.Event{
			Type:       history.EventSessionStart,
			OccurredAt: time.Now().UTC(),
			Record:     history.Record{SessionID: "s1"},
		})
		if err != nil {
			t.Fatalf("Send via %q: %v", dsn, err)
		}
		if c, ok := sink.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}
}

func TestNewSinkFromDSNOpenSearch(t *testing.T) {
	for _, dsn := range []string{
		"opensearch://localhost:9200/maintenance-history",
		"opensearch://localhost:9200",
		"elasticsearch://localhost:9200/logs",
	} {
		sink, err := NewSinkFromDSN(dsn)
		if err != nil {
			t.Fatalf("NewSinkFromDSN(%q): %v", dsn, err)
		}
		if _, ok := sink.(*opensearch.Sink); !ok {
			t.Fatalf("NewSinkFromDSN(%q): expected *opensearch.Sink, got %T", dsn, sink)
		}
	}
}

func TestNewSinkFromDSNEmpty(t *testing.T) {
	if _, err := NewSinkFromDSN(""); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestNewSinkFromDSNUnsupported(t *testing.T) {
	if _, err := NewSinkFromDSN("redis://localhost:6379"); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}
