// Package exec dispatches code-execution requests to isolated
// per-language runtimes. Every invocation is independent: no state is
// shared between calls, not even within a session.
package exec

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/stefan-jaeger/coding-interview/internal/metrics"
)

// Surfaced to users when the wall-clock limit fires. The timeout is
// still a distinct condition (Result.TimedOut) in logs and metrics.
const timeoutMessage = "Execution exceeded maximum execution time."

var (
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// Returned when a session already has the maximum number of
	// executions in flight.
	ErrTooManyExecutions = errors.New("too many concurrent executions for session")
)

// Result of one execution. Stderr carries compile and runtime errors;
// TimedOut marks the wall-clock limit separately so it never gets
// mistaken for an ordinary failure.
type Result struct {
	Stdout   string
	Stderr   string
	TimedOut bool
}

// Runtime is an isolated execution backend for a single language.
// Implementations tear their sandbox down when the context expires;
// they return an error only for infrastructure failures, never for
// errors in the submitted code.
type Runtime interface {
	Language() string
	Run(ctx context.Context, code string) (Result, error)
}

// Recorder receives one entry per finished execution, typically the
// snapshot store. Nil is fine.
type Recorder interface {
	RecordExecution(sessionID, language string, d time.Duration, timedOut, errored bool)
}

// Dispatcher routes (language, code) pairs to their runtime, enforces
// the wall-clock timeout and caps in-flight executions per session.
// Executions across sessions share nothing and run fully in parallel.
type Dispatcher struct {
	runtimes map[string]Runtime
	timeout  time.Duration
	maxPer   int

	mu       sync.Mutex
	inflight map[string]int

	metrics  *metrics.Metrics
	recorder Recorder
}

func NewDispatcher(timeout time.Duration, maxPerSession int, m *metrics.Metrics, rec Recorder) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxPerSession <= 0 {
		maxPerSession = 2
	}
	return &Dispatcher{
		runtimes: make(map[string]Runtime),
		timeout:  timeout,
		maxPer:   maxPerSession,
		inflight: make(map[string]int),
		metrics:  m,
		recorder: rec,
	}
}

func (d *Dispatcher) Register(rt Runtime) {
	d.runtimes[rt.Language()] = rt
}

// DefaultRuntimes returns every built-in language backend.
func DefaultRuntimes() []Runtime {
	return []Runtime{
		NewJavaScript(),
		NewTypeScript(),
		NewJava(),
		NewGolang(),
	}
}

// Languages lists the registered language tags.
func (d *Dispatcher) Languages() []string {
	out := make([]string, 0, len(d.runtimes))
	for lang := range d.runtimes {
		out = append(out, lang)
	}
	return out
}

// Execute runs code in the runtime registered for language. The
// session id only scopes the in-flight cap; runtimes never see it.
func (d *Dispatcher) Execute(ctx context.Context, sessionID, language, code string) (Result, error) {
	rt, ok := d.runtimes[language]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}

	if err := d.acquire(sessionID); err != nil {
		return Result{}, err
	}
	defer d.release(sessionID)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	res, err := rt.Run(ctx, code)
	elapsed := time.Since(start)

	if err != nil {
		log.Printf("Execution failed (%s, session %s): %v", language, sessionID, err)
		res = Result{Stderr: "execution failed: " + err.Error()}
	}
	if res.TimedOut {
		log.Printf("⏱️ Execution timed out (%s, session %s) after %v", language, sessionID, elapsed)
	}

	d.observe(sessionID, language, elapsed, res)
	return res, nil
}

func (d *Dispatcher) acquire(sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inflight[sessionID] >= d.maxPer {
		return ErrTooManyExecutions
	}
	d.inflight[sessionID]++
	return nil
}

func (d *Dispatcher) release(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inflight[sessionID]--
	if d.inflight[sessionID] <= 0 {
		delete(d.inflight, sessionID)
	}
}

func (d *Dispatcher) observe(sessionID, language string, elapsed time.Duration, res Result) {
	errored := !res.TimedOut && res.Stderr != ""
	if d.metrics != nil {
		outcome := metrics.OutcomeOK
		switch {
		case res.TimedOut:
			outcome = metrics.OutcomeTimeout
		case errored:
			outcome = metrics.OutcomeError
		}
		d.metrics.ExecutionsTotal.WithLabelValues(language, outcome).Inc()
		d.metrics.ExecutionDuration.WithLabelValues(language).Observe(elapsed.Seconds())
	}
	if d.recorder != nil {
		d.recorder.RecordExecution(sessionID, language, elapsed, res.TimedOut, errored)
	}
}
