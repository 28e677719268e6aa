package session

import (
	"log"
	"sync"
	"time"
)

// Janitor sweeps the registry for sessions that went idle past the
// configured timeout. The primary eviction path stays "last
// participant leaves"; the sweep is an optional backstop for state
// left behind by missed leaves, disabled when IdleTimeout is zero.
type Janitor struct {
	registry *Registry
	interval time.Duration
	idle     time.Duration
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewJanitor(registry *Registry, interval, idle time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{
		registry: registry,
		interval: interval,
		idle:     idle,
		stop:     make(chan struct{}),
	}
}

func (j *Janitor) Start() {
	if j.idle <= 0 {
		return
	}
	j.wg.Add(1)
	go j.run()
	log.Printf("🧹 Session janitor started (interval: %v, idle timeout: %v)", j.interval, j.idle)
}

func (j *Janitor) Stop() {
	if j.idle <= 0 {
		return
	}
	close(j.stop)
	j.wg.Wait()
	log.Println("🧹 Session janitor stopped")
}

func (j *Janitor) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stop:
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Sweep evicts empty sessions whose last activity is older than the
// idle timeout. Sessions with connected participants are never swept.
func (j *Janitor) Sweep() int {
	cutoff := time.Now().Add(-j.idle)
	evicted := 0
	for _, s := range j.registry.Sessions() {
		if s.ParticipantCount() > 0 {
			continue
		}
		if s.LastActive().Before(cutoff) {
			if j.registry.RemoveSessionIfEmpty(s.ID) {
				evicted++
			}
		}
	}
	if evicted > 0 {
		log.Printf("🧹 Evicted %d idle sessions", evicted)
	}
	return evicted
}
