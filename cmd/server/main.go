package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stefan-jaeger/coding-interview/internal/api"
	"github.com/stefan-jaeger/coding-interview/internal/config"
	"github.com/stefan-jaeger/coding-interview/internal/exec"
	"github.com/stefan-jaeger/coding-interview/internal/metrics"
	"github.com/stefan-jaeger/coding-interview/internal/session"
	"github.com/stefan-jaeger/coding-interview/internal/store"
	"github.com/stefan-jaeger/coding-interview/internal/ws"
)

func main() {
	cfg := config.FromEnv()

	st, err := store.New(cfg.StoreDSN)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	registry := session.NewRegistry(st)

	hub := ws.NewHub(m)
	go hub.Run()

	coordinator := ws.NewCoordinator(registry, hub, m)

	dispatcher := exec.NewDispatcher(cfg.ExecTimeout, cfg.MaxConcurrentExecutions, m, st)
	for _, rt := range exec.DefaultRuntimes() {
		dispatcher.Register(rt)
	}

	if cfg.SessionIdleEviction > 0 {
		janitor := session.NewJanitor(registry, time.Minute, cfg.SessionIdleEviction)
		janitor.Start()
		defer janitor.Stop()
	}

	apiHandler := api.New(hub, coordinator, registry, dispatcher, st)
	handler := corsMiddleware(apiHandler.Router())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		st.Close()
		os.Exit(0)
	}()

	log.Printf("🎤 Interview server starting on %s", cfg.Addr)
	log.Printf("⏱️  Execution timeout: %s, max %d concurrent per session", cfg.ExecTimeout, cfg.MaxConcurrentExecutions)
	log.Println("Endpoints:")
	log.Println("  - WebSocket: /ws?session={sessionId}&user={userId}")
	log.Println("  - Health:    GET /health")
	log.Println("  - Stats:     GET /api/stats")
	log.Println("  - Exec:      POST /api/exec")
	log.Println("  - Sessions:  GET/POST /api/sessions")
	log.Println("  - Session:   GET /api/sessions/{id}")
	log.Println("  - Metrics:   GET /metrics")

	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
