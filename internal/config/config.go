package config

import (
	"os"
	"strconv"
	"time"
)

// Runtime configuration for the server, loaded from the environment.
type Config struct {
	// Address the HTTP server listens on, e.g. ":8080"
	Addr string

	// Wall-clock limit for a single code execution
	ExecTimeout time.Duration

	// Maximum in-flight executions per session
	MaxConcurrentExecutions int

	// Optional eviction of sessions with no activity for this long.
	// Zero disables the sweep; sessions are always destroyed when the
	// last participant leaves regardless of this setting.
	SessionIdleEviction time.Duration

	// DSN for the snapshot mirror store. Defaults to an in-memory
	// database so nothing outlives the process.
	StoreDSN string
}

func FromEnv() *Config {
	cfg := &Config{
		Addr:                    ":8080",
		ExecTimeout:             10 * time.Second,
		MaxConcurrentExecutions: 2,
		SessionIdleEviction:     0,
		StoreDSN:                ":memory:",
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	if v := envInt("EXEC_TIMEOUT_SECONDS"); v > 0 {
		cfg.ExecTimeout = time.Duration(v) * time.Second
	}
	if v := envInt("EXEC_MAX_CONCURRENT"); v > 0 {
		cfg.MaxConcurrentExecutions = v
	}
	if v := envInt("SESSION_IDLE_EVICTION_SECONDS"); v > 0 {
		cfg.SessionIdleEviction = time.Duration(v) * time.Second
	}
	if dsn := os.Getenv("INTERVIEW_DB_DSN"); dsn != "" {
		cfg.StoreDSN = dsn
	}

	return cfg
}

func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}
