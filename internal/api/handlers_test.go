package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stefan-jaeger/coding-interview/internal/exec"
	"github.com/stefan-jaeger/coding-interview/internal/metrics"
	"github.com/stefan-jaeger/coding-interview/internal/session"
	"github.com/stefan-jaeger/coding-interview/internal/store"
	"github.com/stefan-jaeger/coding-interview/internal/ws"
)

func setupTestAPI(t *testing.T) (*API, *session.Registry) {
	t.Helper()

	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	m := metrics.New(prometheus.NewRegistry())
	registry := session.NewRegistry(st)
	hub := ws.NewHub(m)
	go hub.Run()
	coordinator := ws.NewCoordinator(registry, hub, m)

	dispatcher := exec.NewDispatcher(5*time.Second, 2, m, st)
	dispatcher.Register(exec.NewJavaScript())

	return New(hub, coordinator, registry, dispatcher, st), registry
}

func doRequest(t *testing.T, api *API, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	api.Router().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return response
}

func TestHealthHandler(t *testing.T) {
	api, _ := setupTestAPI(t)

	w := doRequest(t, api, "GET", "/health", nil)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	response := decodeBody(t, w)
	if response["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", response["status"])
	}
}

func TestStatsHandler(t *testing.T) {
	api, registry := setupTestAPI(t)

	registry.GetOrCreate("stats-session")

	w := doRequest(t, api, "GET", "/api/stats", nil)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	response := decodeBody(t, w)
	if response["active_sessions"] != float64(1) {
		t.Errorf("Expected 1 active session, got %v", response["active_sessions"])
	}
	if response["total_sessions"] != float64(1) {
		t.Errorf("Expected 1 total session, got %v", response["total_sessions"])
	}
	if _, ok := response["languages"]; !ok {
		t.Error("Expected languages in stats response")
	}
}

func TestExecHandler(t *testing.T) {
	api, _ := setupTestAPI(t)

	w := doRequest(t, api, "POST", "/api/exec", ExecRequest{
		SessionID: "exec-session",
		Language:  "javascript",
		Code:      "console.log('hi from test')",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response ExecResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Output != "hi from test\n" {
		t.Errorf("Expected output %q, got %q", "hi from test\n", response.Output)
	}
	if response.Error != "" {
		t.Errorf("Expected no error, got %q", response.Error)
	}
}

func TestExecHandlerUnsupportedLanguage(t *testing.T) {
	api, _ := setupTestAPI(t)

	w := doRequest(t, api, "POST", "/api/exec", ExecRequest{
		SessionID: "exec-session",
		Language:  "cobol",
		Code:      "DISPLAY 'HELLO'.",
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}

	response := decodeBody(t, w)
	if response["error"] != "Unsupported language: cobol" {
		t.Errorf("Unexpected error message: %v", response["error"])
	}
}

func TestExecHandlerValidation(t *testing.T) {
	api, _ := setupTestAPI(t)

	cases := []struct {
		name string
		req  ExecRequest
	}{
		{"missing session", ExecRequest{Language: "javascript", Code: "1"}},
		{"missing language", ExecRequest{SessionID: "s", Code: "1"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(t, api, "POST", "/api/exec", tc.req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	api, registry := setupTestAPI(t)

	// Nothing yet.
	w := doRequest(t, api, "GET", "/api/sessions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if response := decodeBody(t, w); response["count"] != float64(0) {
		t.Errorf("Expected 0 sessions, got %v", response["count"])
	}

	sess, _ := registry.GetOrCreate("abc123defg")
	registry.AddParticipant(sess.ID, session.Participant{UserID: "u1", Name: "Ada", Color: "#ff0000"})
	registry.SetContent(sess.ID, "let x = 1")
	registry.SetLanguage(sess.ID, "javascript")

	w = doRequest(t, api, "GET", "/api/sessions", nil)
	response := decodeBody(t, w)
	if response["count"] != float64(1) {
		t.Fatalf("Expected 1 session, got %v", response["count"])
	}

	w = doRequest(t, api, "GET", "/api/sessions/abc123defg", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var detail SessionDetailResponse
	if err := json.NewDecoder(w.Body).Decode(&detail); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if detail.ID != "abc123defg" {
		t.Errorf("Expected id abc123defg, got %q", detail.ID)
	}
	if detail.Value != "let x = 1" || detail.Language != "javascript" {
		t.Errorf("Unexpected snapshot: value=%q language=%q", detail.Value, detail.Language)
	}
	if len(detail.Participants) != 1 || detail.Participants[0].Name != "Ada" {
		t.Errorf("Unexpected participants: %+v", detail.Participants)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	api, _ := setupTestAPI(t)

	w := doRequest(t, api, "GET", "/api/sessions/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestCreateSessionMintsID(t *testing.T) {
	api, _ := setupTestAPI(t)

	idPattern := regexp.MustCompile(`^[a-z0-9]{10}$`)
	seen := make(map[string]bool)

	for i := 0; i < 5; i++ {
		w := doRequest(t, api, "POST", "/api/sessions", nil)
		if w.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d", w.Code)
		}

		response := decodeBody(t, w)
		id, _ := response["id"].(string)
		if !idPattern.MatchString(id) {
			t.Errorf("Unexpected session id %q", id)
		}
		if seen[id] {
			t.Errorf("Duplicate session id %q", id)
		}
		seen[id] = true
	}
}

func TestMetricsEndpoint(t *testing.T) {
	api, _ := setupTestAPI(t)

	w := doRequest(t, api, "GET", "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}
