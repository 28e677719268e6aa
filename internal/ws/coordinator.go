package ws

import (
	"errors"
	"log"

	"github.com/stefan-jaeger/coding-interview/internal/color"
	"github.com/stefan-jaeger/coding-interview/internal/metrics"
	"github.com/stefan-jaeger/coding-interview/internal/protocol"
	"github.com/stefan-jaeger/coding-interview/internal/session"
)

// The id stamped on server-originated snapshot replays so clients can
// tell them apart from a participant's edits.
const serverUserID = "server"

// Coordinator drives the per-connection state machine: it admits typed
// events, updates the registry and decides what the relay fans out.
// A connection moves Connecting -> Joined -> Left; everything but join
// is refused until the join was admitted.
type Coordinator struct {
	registry *session.Registry
	hub      *Hub
	metrics  *metrics.Metrics
}

func NewCoordinator(registry *session.Registry, hub *Hub, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		registry: registry,
		hub:      hub,
		metrics:  m,
	}
}

// Handle admits one inbound frame from a connection. Malformed or
// stale events are dropped with an error event to the sender only;
// they never desynchronize the rest of the session.
func (co *Coordinator) Handle(c *Client, data []byte) {
	ev, err := protocol.DecodeClientEvent(data)
	if err != nil {
		if co.metrics != nil {
			co.metrics.DroppedTotal.Inc()
		}
		log.Printf("⚠️ Dropping event from user %s in session %s: %v", c.userID, c.sessionID, err)
		co.hub.SendTo(c, protocol.NewError(err.Error()))
		return
	}

	switch ev := ev.(type) {
	case *protocol.Join:
		co.handleJoin(c, ev)
	case *protocol.Content:
		co.handleContent(c, ev)
	case *protocol.Language:
		co.handleLanguage(c, ev)
	case *protocol.Cursor:
		co.handleCursor(c, ev)
	case *protocol.ParticipantsQuery:
		co.handleParticipants(c, ev)
	case *protocol.Leave:
		co.handleLeave(c)
	default:
		// DecodeClientEvent is closed over the variants above.
		co.hub.SendTo(c, protocol.NewError("unsupported event"))
	}
}

func (co *Coordinator) handleJoin(c *Client, ev *protocol.Join) {
	if ev.SessionID != c.sessionID {
		co.rejectStale(c, "join for a different session")
		return
	}

	name := ev.Name
	if name == "" {
		name = "Anonymous"
	}
	col := ev.Color
	if col == "" {
		col = color.Derive(ev.UserID)
	} else {
		col = color.Normalize(col)
	}

	sess, isNew := co.registry.GetOrCreate(ev.SessionID)
	p := session.Participant{UserID: ev.UserID, Name: name, Color: col}
	if err := co.registry.AddParticipant(ev.SessionID, p); err != nil {
		if !errors.Is(err, session.ErrSessionNotFound) {
			return
		}
		// Lost a race with the last participant's leave: the session
		// was destroyed between GetOrCreate and AddParticipant. This
		// join now creates it, so it must also see isNew=true.
		sess, isNew = co.registry.GetOrCreate(ev.SessionID)
		co.registry.AddParticipant(ev.SessionID, p)
	}

	c.userID = ev.UserID
	c.name = name
	c.color = col
	c.joined = true
	co.hub.register <- c

	co.countEvent(protocol.TypeJoin)
	co.syncSessionGauge()

	// Only the join that created the session sees isNew=true; that
	// client seeds the initial template and language.
	co.hub.SendTo(c, protocol.NewSessionInit(ev.UserID, isNew))
	co.replaySnapshot(c, sess)

	co.hub.Publish(ev.SessionID, protocol.NewJoin(ev.UserID, name, col), c)
}

func (co *Coordinator) handleContent(c *Client, ev *protocol.Content) {
	if !co.admit(c, ev.SessionID, ev.UserID) {
		return
	}

	if err := co.registry.SetContent(ev.SessionID, ev.Value); err != nil {
		if !errors.Is(err, session.ErrSessionNotFound) {
			return
		}
		// The session was evicted under us; sessions are ephemeral,
		// so re-create rather than fail.
		co.recreateSession(c)
		co.registry.SetContent(ev.SessionID, ev.Value)
	}

	co.countEvent(protocol.TypeContent)

	// The sender already holds the authoritative value; echoing it
	// back risks a livelock with rapid edits.
	co.hub.Publish(ev.SessionID, protocol.NewContent(ev.Value, ev.UserID), c)
}

func (co *Coordinator) handleLanguage(c *Client, ev *protocol.Language) {
	if !co.admit(c, ev.SessionID, ev.UserID) {
		return
	}

	if err := co.registry.SetLanguage(ev.SessionID, ev.Language); err != nil {
		if !errors.Is(err, session.ErrSessionNotFound) {
			return
		}
		co.recreateSession(c)
		co.registry.SetLanguage(ev.SessionID, ev.Language)
	}

	co.countEvent(protocol.TypeLanguage)

	// Language switches go to everyone, the sender's connection
	// included; the userId lets receivers tell their own change
	// echoed from someone else's switch.
	co.hub.Publish(ev.SessionID, protocol.NewLanguage(ev.Language, ev.UserID), nil)
}

func (co *Coordinator) handleCursor(c *Client, ev *protocol.Cursor) {
	if !co.admit(c, ev.SessionID, ev.UserID) {
		return
	}

	// Transient presence: recorded on the participant, never part of
	// the document snapshot.
	co.registry.UpdateCursor(ev.SessionID, ev.UserID, ev.Position, ev.Selection)

	co.countEvent(protocol.TypeCursor)

	out := &protocol.Cursor{
		Type:      protocol.TypeCursor,
		UserID:    ev.UserID,
		Name:      c.name,
		Color:     c.color,
		Position:  ev.Position,
		Selection: ev.Selection,
	}
	co.hub.Publish(ev.SessionID, out, c)
}

func (co *Coordinator) handleParticipants(c *Client, ev *protocol.ParticipantsQuery) {
	if !c.joined || ev.SessionID != c.sessionID {
		co.rejectStale(c, "participants query before join")
		return
	}

	list, err := co.registry.ListParticipants(ev.SessionID)
	if errors.Is(err, session.ErrSessionNotFound) {
		co.recreateSession(c)
		list, _ = co.registry.ListParticipants(ev.SessionID)
	}

	infos := make([]protocol.ParticipantInfo, 0, len(list))
	for _, p := range list {
		infos = append(infos, protocol.ParticipantInfo{
			UserID: p.UserID,
			Name:   p.Name,
			Color:  color.Normalize(p.Color),
		})
	}
	co.hub.SendTo(c, protocol.NewParticipants(infos))

	// Late joiners also get the current snapshot replayed.
	if sess, ok := co.registry.Get(ev.SessionID); ok {
		co.replaySnapshot(c, sess)
	}
}

func (co *Coordinator) handleLeave(c *Client) {
	if !c.joined {
		return
	}
	c.joined = false

	co.registry.RemoveParticipant(c.sessionID, c.userID)
	co.countEvent(protocol.TypeLeave)
	co.hub.Publish(c.sessionID, protocol.NewLeave(c.userID), c)
	co.registry.RemoveSessionIfEmpty(c.sessionID)
	co.syncSessionGauge()
}

// HandleDisconnect treats a dropped connection as an implicit leave.
// Safe to call after an explicit leave.
func (co *Coordinator) HandleDisconnect(c *Client) {
	co.handleLeave(c)
}

// admit screens content/language/cursor events: the connection must
// have joined, and the event must reference the connection's own
// session and participant id. Stale events are dropped with an error
// to the sender only.
func (co *Coordinator) admit(c *Client, sessionID, userID string) bool {
	if !c.joined {
		co.rejectStale(c, "event before join")
		return false
	}
	if sessionID != c.sessionID {
		co.rejectStale(c, "event for a different session")
		return false
	}
	if userID != c.userID {
		co.rejectStale(c, "event from a stale participant")
		return false
	}
	return true
}

func (co *Coordinator) rejectStale(c *Client, reason string) {
	if co.metrics != nil {
		co.metrics.DroppedTotal.Inc()
	}
	log.Printf("⚠️ Dropping event from user %s in session %s: %s", c.userID, c.sessionID, reason)
	co.hub.SendTo(c, protocol.NewError(reason))
}

// replaySnapshot sends the current language and content to a single
// connection, language strictly first so a joiner never applies a
// document before the mode it was written in.
func (co *Coordinator) replaySnapshot(c *Client, sess *session.Session) {
	value, language := sess.Snapshot()
	if language != "" {
		co.hub.SendTo(c, protocol.NewLanguage(language, serverUserID))
	}
	if value != "" {
		co.hub.SendTo(c, protocol.NewContent(value, serverUserID))
	}
}

// recreateSession rebuilds an evicted session around the connection's
// own participant.
func (co *Coordinator) recreateSession(c *Client) {
	co.registry.GetOrCreate(c.sessionID)
	co.registry.AddParticipant(c.sessionID, session.Participant{
		UserID: c.userID,
		Name:   c.name,
		Color:  c.color,
	})
	co.syncSessionGauge()
}

func (co *Coordinator) countEvent(t protocol.EventType) {
	if co.metrics != nil {
		co.metrics.EventsTotal.WithLabelValues(string(t)).Inc()
	}
}

func (co *Coordinator) syncSessionGauge() {
	if co.metrics != nil {
		co.metrics.ActiveSessions.Set(float64(co.registry.Count()))
	}
}
