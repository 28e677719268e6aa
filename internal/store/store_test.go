package store

import (
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSnapshotLifecycle(t *testing.T) {
	s := newTestStore(t)

	s.SessionCreated("abc123", time.Now())
	s.SnapshotSaved("abc123", "x = 1", "javascript")

	snap, err := s.GetSnapshot("abc123")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if snap == nil {
		t.Fatal("expected snapshot row")
	}
	if snap.Value != "x = 1" || snap.Language != "javascript" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	// Overwritten wholesale.
	s.SnapshotSaved("abc123", "x = 2", "typescript")
	snap, _ = s.GetSnapshot("abc123")
	if snap.Value != "x = 2" || snap.Language != "typescript" {
		t.Errorf("snapshot should be replaced: %+v", snap)
	}

	s.SessionRemoved("abc123")
	snap, err = s.GetSnapshot("abc123")
	if err != nil {
		t.Fatalf("GetSnapshot after removal: %v", err)
	}
	if snap != nil {
		t.Error("snapshot should be gone after session removal")
	}
}

func TestGetSnapshotUnknown(t *testing.T) {
	s := newTestStore(t)

	snap, err := s.GetSnapshot("missing")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if snap != nil {
		t.Error("expected nil for unknown session")
	}
}

func TestExecutionLogAndStats(t *testing.T) {
	s := newTestStore(t)

	s.SessionCreated("s1", time.Now())
	s.RecordExecution("s1", "javascript", 42*time.Millisecond, false, false)
	s.RecordExecution("s1", "javascript", 10*time.Second, true, false)
	s.RecordExecution("s1", "java", 900*time.Millisecond, false, true)

	execs, err := s.RecentExecutions("s1", 10)
	if err != nil {
		t.Fatalf("RecentExecutions: %v", err)
	}
	if len(execs) != 3 {
		t.Fatalf("expected 3 executions, got %d", len(execs))
	}
	// Most recent first.
	if execs[0].Language != "java" || !execs[0].Errored {
		t.Errorf("unexpected first row: %+v", execs[0])
	}
	if !execs[1].TimedOut {
		t.Errorf("expected timeout row: %+v", execs[1])
	}

	stats, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats["session_count"] != 1 {
		t.Errorf("session_count = %d", stats["session_count"])
	}
	if stats["execution_count"] != 3 {
		t.Errorf("execution_count = %d", stats["execution_count"])
	}
	if stats["timeout_count"] != 1 {
		t.Errorf("timeout_count = %d", stats["timeout_count"])
	}
	if stats["error_count"] != 1 {
		t.Errorf("error_count = %d", stats["error_count"])
	}
}

func TestSessionCountSurvivesEviction(t *testing.T) {
	s := newTestStore(t)

	s.SessionCreated("s1", time.Now())
	s.SnapshotSaved("s1", "v", "go")
	s.SessionRemoved("s1")

	stats, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats["session_count"] != 1 {
		t.Errorf("cumulative session count should survive eviction, got %d", stats["session_count"])
	}
}
