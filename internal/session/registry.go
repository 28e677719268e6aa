// Package session owns the live sessions and their participants. The
// registry is an injected instance, not a process-wide singleton, so
// tests can run isolated registries side by side.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/stefan-jaeger/coding-interview/internal/protocol"
)

// Returned by every registry operation that references an unknown
// session id (other than GetOrCreate, which creates it).
var ErrSessionNotFound = errors.New("session not found")

// Mirror receives registry lifecycle notifications, typically backed
// by the snapshot store. A nil mirror is fine.
type Mirror interface {
	SessionCreated(id string, createdAt time.Time)
	SnapshotSaved(id, value, language string)
	SessionRemoved(id string)
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	mirror   Mirror
}

func NewRegistry(mirror Mirror) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		mirror:   mirror,
	}
}

// GetOrCreate returns the session for id, creating it atomically when
// missing. Exactly one caller observes isNew=true for a given id, even
// under concurrent joins; that caller's participant seeds the initial
// template.
func (r *Registry) GetOrCreate(id string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		r.mu.Unlock()
		return s, false
	}
	s = newSession(id)
	r.sessions[id] = s
	r.mu.Unlock()

	if r.mirror != nil {
		r.mirror.SessionCreated(id, s.CreatedAt)
	}
	return s, true
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) AddParticipant(sessionID string, p Participant) error {
	s, ok := r.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	s.addParticipant(p)
	return nil
}

func (r *Registry) RemoveParticipant(sessionID, userID string) error {
	s, ok := r.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	s.removeParticipant(userID)
	return nil
}

// ListParticipants returns the membership in insertion order.
func (r *Registry) ListParticipants(sessionID string) ([]Participant, error) {
	s, ok := r.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Participants(), nil
}

func (r *Registry) SetContent(sessionID, value string) error {
	s, ok := r.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	s.SetContent(value)
	if r.mirror != nil {
		_, language := s.Snapshot()
		r.mirror.SnapshotSaved(sessionID, value, language)
	}
	return nil
}

func (r *Registry) SetLanguage(sessionID, language string) error {
	s, ok := r.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	s.SetLanguage(language)
	if r.mirror != nil {
		value, _ := s.Snapshot()
		r.mirror.SnapshotSaved(sessionID, value, language)
	}
	return nil
}

func (r *Registry) GetSnapshot(sessionID string) (value, language string, err error) {
	s, ok := r.Get(sessionID)
	if !ok {
		return "", "", ErrSessionNotFound
	}
	value, language = s.Snapshot()
	return value, language, nil
}

func (r *Registry) UpdateCursor(sessionID, userID string, pos protocol.Position, sel *protocol.Selection) error {
	s, ok := r.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	s.UpdateCursor(userID, pos, sel)
	return nil
}

// RemoveSessionIfEmpty deletes the session once its participant set is
// empty. Called after every leave so abandoned sessions do not pile
// up; a later join to the same id creates a fresh session.
func (r *Registry) RemoveSessionIfEmpty(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok || !s.empty() {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	if r.mirror != nil {
		r.mirror.SessionRemoved(id)
	}
	return true
}

// Sessions returns a snapshot of all live sessions.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
