// Package protocol defines the typed event envelope exchanged over a
// session topic. Every message is a tagged union with a "type"
// discriminator; decoding is exhaustive so an unknown or mistyped tag
// is an error instead of a silent no-op.
package protocol

import (
	"encoding/json"
	"fmt"
)

type EventType string

const (
	TypeSessionInit  EventType = "session_init"
	TypeJoin         EventType = "join"
	TypeParticipants EventType = "participants"
	TypeContent      EventType = "content"
	TypeLanguage     EventType = "language"
	TypeCursor       EventType = "cursor"
	TypeLeave        EventType = "leave"
	TypeExecStart    EventType = "exec_start"
	TypeOutput       EventType = "output"
	TypeError        EventType = "error"
)

// Event is implemented by every envelope variant.
type Event interface {
	EventType() EventType
}

// MalformedError reports an event that failed decoding or validation.
// It is surfaced only to the sending connection.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return "malformed event: " + e.Reason
}

// SessionInit is addressed to the joining participant only and tells
// it whether it created the session (and therefore seeds the template).
type SessionInit struct {
	Type   EventType `json:"type"`
	UserID string    `json:"userId"`
	IsNew  bool      `json:"isNew"`
}

// Join announces a participant. Client->server it carries the session
// id; the server broadcast omits it (the topic already scopes it).
type Join struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
}

type ParticipantInfo struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Color  string `json:"color"`
}

// Participants is the reply to a participants query.
type Participants struct {
	Type EventType         `json:"type"`
	List []ParticipantInfo `json:"list"`
}

// ParticipantsQuery asks for the current membership of a session.
type ParticipantsQuery struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
}

func (q *ParticipantsQuery) EventType() EventType { return TypeParticipants }

// Content replaces the whole document value. Last write wins; there is
// no merge.
type Content struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	Value     string    `json:"value"`
	UserID    string    `json:"userId"`
}

// Language switches the session's language tag.
type Language struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	Language  string    `json:"language"`
	UserID    string    `json:"userId"`
}

type Position struct {
	LineNumber int `json:"lineNumber"`
	Column     int `json:"column"`
}

type Selection struct {
	StartLineNumber int `json:"startLineNumber"`
	StartColumn     int `json:"startColumn"`
	EndLineNumber   int `json:"endLineNumber"`
	EndColumn       int `json:"endColumn"`
}

// Collapsed reports whether the range is a single point, which renders
// as a bare cursor rather than a selection.
func (s *Selection) Collapsed() bool {
	return s.StartLineNumber == s.EndLineNumber && s.StartColumn == s.EndColumn
}

// Cursor carries transient presence state; it is never persisted.
type Cursor struct {
	Type      EventType  `json:"type"`
	SessionID string     `json:"sessionId,omitempty"`
	UserID    string     `json:"userId"`
	Name      string     `json:"name"`
	Color     string     `json:"color"`
	Position  Position   `json:"position"`
	Selection *Selection `json:"selection,omitempty"`
}

type Leave struct {
	Type   EventType `json:"type"`
	UserID string    `json:"userId"`
}

type ExecStart struct {
	Type EventType `json:"type"`
}

// Output completes an execution, broadcast to the whole session.
type Output struct {
	Type   EventType `json:"type"`
	Output string    `json:"output"`
	Error  string    `json:"error"`
}

// ErrorEvent reports a protocol error back to the offending connection
// only; it is never broadcast.
type ErrorEvent struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
}

func (e *SessionInit) EventType() EventType  { return TypeSessionInit }
func (e *Join) EventType() EventType         { return TypeJoin }
func (e *Participants) EventType() EventType { return TypeParticipants }
func (e *Content) EventType() EventType      { return TypeContent }
func (e *Language) EventType() EventType     { return TypeLanguage }
func (e *Cursor) EventType() EventType       { return TypeCursor }
func (e *Leave) EventType() EventType        { return TypeLeave }
func (e *ExecStart) EventType() EventType    { return TypeExecStart }
func (e *Output) EventType() EventType       { return TypeOutput }
func (e *ErrorEvent) EventType() EventType   { return TypeError }

func NewSessionInit(userID string, isNew bool) *SessionInit {
	return &SessionInit{Type: TypeSessionInit, UserID: userID, IsNew: isNew}
}

func NewJoin(userID, name, color string) *Join {
	return &Join{Type: TypeJoin, UserID: userID, Name: name, Color: color}
}

func NewParticipants(list []ParticipantInfo) *Participants {
	return &Participants{Type: TypeParticipants, List: list}
}

func NewContent(value, userID string) *Content {
	return &Content{Type: TypeContent, Value: value, UserID: userID}
}

func NewLanguage(language, userID string) *Language {
	return &Language{Type: TypeLanguage, Language: language, UserID: userID}
}

func NewLeave(userID string) *Leave {
	return &Leave{Type: TypeLeave, UserID: userID}
}

func NewExecStart() *ExecStart {
	return &ExecStart{Type: TypeExecStart}
}

func NewOutput(output, errMsg string) *Output {
	return &Output{Type: TypeOutput, Output: output, Error: errMsg}
}

func NewError(message string) *ErrorEvent {
	return &ErrorEvent{Type: TypeError, Message: message}
}

// Encode serializes an event for the wire.
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

// DecodeClientEvent parses an inbound frame into one of the event
// variants a client is allowed to send. Required fields are checked
// here so handlers downstream never see a half-built event. Collapsed
// selections are normalized away.
func DecodeClientEvent(data []byte) (Event, error) {
	var env struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &MalformedError{Reason: "invalid JSON"}
	}

	switch env.Type {
	case TypeJoin:
		var ev Join
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, &MalformedError{Reason: "bad join payload"}
		}
		if ev.SessionID == "" || ev.UserID == "" {
			return nil, &MalformedError{Reason: "join requires sessionId and userId"}
		}
		return &ev, nil

	case TypeContent:
		var ev Content
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, &MalformedError{Reason: "bad content payload"}
		}
		if ev.SessionID == "" || ev.UserID == "" {
			return nil, &MalformedError{Reason: "content requires sessionId and userId"}
		}
		return &ev, nil

	case TypeLanguage:
		var ev Language
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, &MalformedError{Reason: "bad language payload"}
		}
		if ev.SessionID == "" || ev.UserID == "" || ev.Language == "" {
			return nil, &MalformedError{Reason: "language requires sessionId, userId and language"}
		}
		return &ev, nil

	case TypeCursor:
		var ev Cursor
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, &MalformedError{Reason: "bad cursor payload"}
		}
		if ev.SessionID == "" || ev.UserID == "" {
			return nil, &MalformedError{Reason: "cursor requires sessionId and userId"}
		}
		if ev.Selection != nil && ev.Selection.Collapsed() {
			ev.Selection = nil
		}
		return &ev, nil

	case TypeParticipants:
		var ev ParticipantsQuery
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, &MalformedError{Reason: "bad participants payload"}
		}
		if ev.SessionID == "" {
			return nil, &MalformedError{Reason: "participants requires sessionId"}
		}
		return &ev, nil

	case TypeLeave:
		var ev Leave
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, &MalformedError{Reason: "bad leave payload"}
		}
		return &ev, nil

	case TypeSessionInit, TypeExecStart, TypeOutput, TypeError:
		return nil, &MalformedError{Reason: fmt.Sprintf("event type %q is server-sent only", env.Type)}

	default:
		return nil, &MalformedError{Reason: fmt.Sprintf("unknown event type %q", env.Type)}
	}
}
