package api

import (
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stefan-jaeger/coding-interview/internal/exec"
	"github.com/stefan-jaeger/coding-interview/internal/protocol"
	"github.com/stefan-jaeger/coding-interview/internal/session"
	"github.com/stefan-jaeger/coding-interview/internal/store"
	"github.com/stefan-jaeger/coding-interview/internal/ws"
)

type API struct {
	hub         *ws.Hub
	coordinator *ws.Coordinator
	registry    *session.Registry
	dispatcher  *exec.Dispatcher
	store       *store.Store
}

func New(hub *ws.Hub, coordinator *ws.Coordinator, registry *session.Registry, dispatcher *exec.Dispatcher, st *store.Store) *API {
	return &API{
		hub:         hub,
		coordinator: coordinator,
		registry:    registry,
		dispatcher:  dispatcher,
		store:       st,
	}
}

// Router wires every HTTP surface of the server, websocket endpoint
// included.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", a.HealthHandler)
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		ws.ServeWs(a.hub, a.coordinator, w, req)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", a.StatsHandler)
		r.Post("/exec", a.ExecHandler)
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", a.ListSessionsHandler)
			r.Post("/", a.CreateSessionHandler)
			r.Get("/{id}", a.GetSessionHandler)
		})
	})

	return r
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"active_sessions": a.registry.Count(),
		"active_clients":  a.hub.GetClientCount(),
		"languages":       a.dispatcher.Languages(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}

	if a.store != nil {
		dbStats, err := a.store.GetStats()
		if err == nil {
			stats["total_sessions"] = dbStats["session_count"]
			stats["total_executions"] = dbStats["execution_count"]
			stats["execution_timeouts"] = dbStats["timeout_count"]
			stats["execution_errors"] = dbStats["error_count"]
		}
	}

	jsonResponse(w, http.StatusOK, stats)
}

// Execution handler

type ExecRequest struct {
	SessionID string `json:"sessionId"`
	Language  string `json:"language"`
	Code      string `json:"code"`
}

type ExecResponse struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// ExecHandler runs a snippet and answers the caller directly. The
// session topic additionally sees an exec_start event when the run is
// accepted and an output event when it finishes, so every participant
// observes the run, not just the one who pressed the button.
func (a *API) ExecHandler(w http.ResponseWriter, r *http.Request) {
	var req ExecRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.SessionID == "" {
		errorResponse(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	if req.Language == "" {
		errorResponse(w, http.StatusBadRequest, "language is required")
		return
	}

	a.hub.Publish(req.SessionID, protocol.NewExecStart(), nil)

	res, err := a.dispatcher.Execute(r.Context(), req.SessionID, req.Language, req.Code)
	if err != nil {
		var msg string
		var status int
		switch {
		case errors.Is(err, exec.ErrUnsupportedLanguage):
			msg = "Unsupported language: " + req.Language
			status = http.StatusBadRequest
		case errors.Is(err, exec.ErrTooManyExecutions):
			msg = "Too many concurrent executions for this session"
			status = http.StatusTooManyRequests
		default:
			log.Printf("Execution failed for session %s: %v", req.SessionID, err)
			msg = "Execution failed"
			status = http.StatusInternalServerError
		}
		// The topic already saw exec_start, so it must also see the
		// run conclude.
		a.hub.Publish(req.SessionID, protocol.NewOutput("", msg), nil)
		errorResponse(w, status, msg)
		return
	}

	a.hub.Publish(req.SessionID, protocol.NewOutput(res.Stdout, res.Stderr), nil)
	jsonResponse(w, http.StatusOK, ExecResponse{Output: res.Stdout, Error: res.Stderr})
}

// Session handlers

type SessionResponse struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Language    string    `json:"language,omitempty"`
	ActiveUsers int       `json:"active_users"`
}

type ParticipantResponse struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Color  string `json:"color"`
}

type SessionDetailResponse struct {
	SessionResponse
	Value        string                `json:"value"`
	Participants []ParticipantResponse `json:"participants"`
	Executions   []store.ExecutionRow  `json:"executions,omitempty"`
}

func (a *API) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions := a.registry.Sessions()

	response := make([]SessionResponse, len(sessions))
	for i, s := range sessions {
		_, language := s.Snapshot()
		response[i] = SessionResponse{
			ID:          s.ID,
			CreatedAt:   s.CreatedAt,
			Language:    language,
			ActiveUsers: s.ParticipantCount(),
		}
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"sessions": response,
		"count":    len(response),
	})
}

func (a *API) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	s, ok := a.registry.Get(sessionID)
	if !ok {
		errorResponse(w, http.StatusNotFound, "Session not found")
		return
	}

	value, language := s.Snapshot()

	participants := s.Participants()
	plist := make([]ParticipantResponse, len(participants))
	for i, p := range participants {
		plist[i] = ParticipantResponse{UserID: p.UserID, Name: p.Name, Color: p.Color}
	}

	detail := SessionDetailResponse{
		SessionResponse: SessionResponse{
			ID:          s.ID,
			CreatedAt:   s.CreatedAt,
			Language:    language,
			ActiveUsers: len(plist),
		},
		Value:        value,
		Participants: plist,
	}

	if a.store != nil {
		limit, _ := strconv.Atoi(r.URL.Query().Get("executions"))
		if limit <= 0 || limit > 100 {
			limit = 10
		}
		if rows, err := a.store.RecentExecutions(sessionID, limit); err == nil {
			detail.Executions = rows
		}
	}

	jsonResponse(w, http.StatusOK, detail)
}

// CreateSessionHandler mints a fresh session id. The session itself is
// not registered here; it comes to life when the first participant
// joins over the websocket, which keeps minted-but-never-used ids from
// lingering in memory.
func (a *API) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusCreated, map[string]string{"id": newSessionID()})
}

const sessionIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func newSessionID() string {
	b := make([]byte, 10)
	for i := range b {
		b[i] = sessionIDAlphabet[rand.Intn(len(sessionIDAlphabet))]
	}
	return string(b)
}
