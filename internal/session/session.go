package session

import (
	"sync"
	"time"

	"github.com/stefan-jaeger/coding-interview/internal/protocol"
)

// One connected user within a session.
type Participant struct {
	UserID string
	Name   string
	Color  string

	// Last known cursor state; nil until the first cursor event.
	Position  *protocol.Position
	Selection *protocol.Selection

	JoinedAt time.Time
}

// A shared editing context: one document, its language, and the people
// in it. All state is guarded by the session's own mutex so different
// sessions never contend.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.RWMutex
	participants map[string]*Participant
	order        []string
	value        string
	language     string
	lastActive   time.Time
}

func newSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		participants: make(map[string]*Participant),
		lastActive:   now,
	}
}

// addParticipant inserts or updates a participant. A re-join with the
// same user id refreshes name and color but keeps the original
// insertion position.
func (s *Session) addParticipant(p Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.participants[p.UserID]; ok {
		existing.Name = p.Name
		existing.Color = p.Color
	} else {
		stored := p
		if stored.JoinedAt.IsZero() {
			stored.JoinedAt = time.Now()
		}
		s.participants[p.UserID] = &stored
		s.order = append(s.order, p.UserID)
	}
	s.lastActive = time.Now()
}

func (s *Session) removeParticipant(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[userID]; !ok {
		return false
	}
	delete(s.participants, userID)
	for i, id := range s.order {
		if id == userID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.lastActive = time.Now()
	return true
}

// Participants returns a copy of the membership in insertion order.
func (s *Session) Participants() []Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Participant, 0, len(s.order))
	for _, id := range s.order {
		if p, ok := s.participants[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

func (s *Session) HasParticipant(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.participants[userID]
	return ok
}

func (s *Session) ParticipantCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participants)
}

func (s *Session) empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participants) == 0
}

// SetContent overwrites the document value wholesale. No diffing, no
// history: the snapshot is the only document state.
func (s *Session) SetContent(value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
	s.lastActive = time.Now()
}

func (s *Session) SetLanguage(language string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = language
	s.lastActive = time.Now()
}

// Snapshot returns the current document value and language tag.
func (s *Session) Snapshot() (value, language string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.language
}

// UpdateCursor records a participant's last known cursor state.
func (s *Session) UpdateCursor(userID string, pos protocol.Position, sel *protocol.Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[userID]
	if !ok {
		return
	}
	posCopy := pos
	p.Position = &posCopy
	if sel != nil {
		selCopy := *sel
		p.Selection = &selCopy
	} else {
		p.Selection = nil
	}
	s.lastActive = time.Now()
}

func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}
