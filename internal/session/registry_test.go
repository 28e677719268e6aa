package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stefan-jaeger/coding-interview/internal/protocol"
)

func TestGetOrCreate(t *testing.T) {
	r := NewRegistry(nil)

	s1, isNew := r.GetOrCreate("abc123")
	if !isNew {
		t.Fatal("first GetOrCreate should report isNew")
	}
	if s1 == nil {
		t.Fatal("session should not be nil")
	}

	s2, isNew := r.GetOrCreate("abc123")
	if isNew {
		t.Error("second GetOrCreate should not report isNew")
	}
	if s1 != s2 {
		t.Error("should return the same session instance")
	}
}

func TestGetOrCreateConcurrent(t *testing.T) {
	r := NewRegistry(nil)

	const n = 100
	var newCount int32
	var wg sync.WaitGroup
	sessions := make([]*Session, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, isNew := r.GetOrCreate("contested")
			sessions[i] = s
			if isNew {
				atomic.AddInt32(&newCount, 1)
			}
		}(i)
	}
	wg.Wait()

	if newCount != 1 {
		t.Errorf("expected exactly 1 caller to observe isNew, got %d", newCount)
	}
	for i := 1; i < n; i++ {
		if sessions[i] != sessions[0] {
			t.Fatal("all callers should observe the same session instance")
		}
	}
}

func TestParticipantsInsertionOrder(t *testing.T) {
	r := NewRegistry(nil)
	r.GetOrCreate("s1")

	for _, id := range []string{"u3", "u1", "u2"} {
		if err := r.AddParticipant("s1", Participant{UserID: id, Name: id}); err != nil {
			t.Fatalf("AddParticipant(%s): %v", id, err)
		}
	}

	list, err := r.ListParticipants("s1")
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	want := []string{"u3", "u1", "u2"}
	if len(list) != len(want) {
		t.Fatalf("expected %d participants, got %d", len(want), len(list))
	}
	for i, p := range list {
		if p.UserID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], p.UserID)
		}
	}
}

func TestRejoinKeepsOrderUpdatesIdentity(t *testing.T) {
	r := NewRegistry(nil)
	r.GetOrCreate("s1")

	r.AddParticipant("s1", Participant{UserID: "u1", Name: "Ada", Color: "#111111"})
	r.AddParticipant("s1", Participant{UserID: "u2", Name: "Grace"})
	r.AddParticipant("s1", Participant{UserID: "u1", Name: "Ada L.", Color: "#222222"})

	list, _ := r.ListParticipants("s1")
	if len(list) != 2 {
		t.Fatalf("re-join must not duplicate: got %d participants", len(list))
	}
	if list[0].UserID != "u1" || list[0].Name != "Ada L." || list[0].Color != "#222222" {
		t.Errorf("re-join should update in place: %+v", list[0])
	}
}

func TestSnapshot(t *testing.T) {
	r := NewRegistry(nil)
	r.GetOrCreate("s1")

	if err := r.SetContent("s1", "x = 1"); err != nil {
		t.Fatalf("SetContent: %v", err)
	}
	if err := r.SetLanguage("s1", "javascript"); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}

	value, language, err := r.GetSnapshot("s1")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if value != "x = 1" || language != "javascript" {
		t.Errorf("unexpected snapshot: %q %q", value, language)
	}

	// Whole-document replacement, last write wins.
	r.SetContent("s1", "x = 2")
	value, _, _ = r.GetSnapshot("s1")
	if value != "x = 2" {
		t.Errorf("expected last write to win, got %q", value)
	}
}

func TestUnknownSessionErrors(t *testing.T) {
	r := NewRegistry(nil)

	if err := r.SetContent("nope", "v"); err != ErrSessionNotFound {
		t.Errorf("SetContent: expected ErrSessionNotFound, got %v", err)
	}
	if err := r.AddParticipant("nope", Participant{UserID: "u"}); err != ErrSessionNotFound {
		t.Errorf("AddParticipant: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := r.ListParticipants("nope"); err != ErrSessionNotFound {
		t.Errorf("ListParticipants: expected ErrSessionNotFound, got %v", err)
	}
}

func TestRemoveSessionIfEmpty(t *testing.T) {
	r := NewRegistry(nil)
	r.GetOrCreate("s1")
	r.AddParticipant("s1", Participant{UserID: "u1"})

	if r.RemoveSessionIfEmpty("s1") {
		t.Error("session with a participant must not be removed")
	}

	r.RemoveParticipant("s1", "u1")
	if !r.RemoveSessionIfEmpty("s1") {
		t.Error("empty session should be removed")
	}

	// A later join creates it anew.
	_, isNew := r.GetOrCreate("s1")
	if !isNew {
		t.Error("recreated session should report isNew")
	}
}

func TestUpdateCursor(t *testing.T) {
	r := NewRegistry(nil)
	r.GetOrCreate("s1")
	r.AddParticipant("s1", Participant{UserID: "u1"})

	pos := protocol.Position{LineNumber: 2, Column: 5}
	sel := &protocol.Selection{StartLineNumber: 1, StartColumn: 1, EndLineNumber: 2, EndColumn: 5}
	if err := r.UpdateCursor("s1", "u1", pos, sel); err != nil {
		t.Fatalf("UpdateCursor: %v", err)
	}

	list, _ := r.ListParticipants("s1")
	if list[0].Position == nil || list[0].Position.LineNumber != 2 {
		t.Errorf("cursor position not recorded: %+v", list[0].Position)
	}
	if list[0].Selection == nil {
		t.Error("selection not recorded")
	}
}

func TestJanitorSweepsOnlyIdleEmptySessions(t *testing.T) {
	r := NewRegistry(nil)

	idle, _ := r.GetOrCreate("idle")
	idle.mu.Lock()
	idle.lastActive = time.Now().Add(-time.Hour)
	idle.mu.Unlock()

	r.GetOrCreate("fresh")

	occupied, _ := r.GetOrCreate("occupied")
	r.AddParticipant("occupied", Participant{UserID: "u1"})
	occupied.mu.Lock()
	occupied.lastActive = time.Now().Add(-time.Hour)
	occupied.mu.Unlock()

	j := NewJanitor(r, time.Minute, 30*time.Minute)
	if got := j.Sweep(); got != 1 {
		t.Errorf("expected 1 eviction, got %d", got)
	}
	if _, ok := r.Get("idle"); ok {
		t.Error("idle empty session should be evicted")
	}
	if _, ok := r.Get("fresh"); !ok {
		t.Error("fresh session should survive")
	}
	if _, ok := r.Get("occupied"); !ok {
		t.Error("occupied session must never be swept")
	}
}
