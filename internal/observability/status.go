package observability

import (
	"sync"
	"time"
)

type Outcome string

const (
	OutcomeAnswered     Outcome = "answered"
	OutcomeFailed       Outcome = "failed"
	OutcomeUnrecognized Outcome = "unrecognized"
	OutcomeError        Outcome = "error"
)

// Stats counts query outcomes. Safe for concurrent use; gateways share one.
type Stats struct {
	mu          sync.RWMutex
	counts      map[Outcome]int
	lastRequest string
	lastSeen    time.Time
	started     time.Time
}

func NewStats() *Stats {
	return &Stats{
		counts:  make(map[Outcome]int),
		started: time.Now(),
	}
}

// Record counts one finished query.
func (s *Stats) Record(outcome Outcome, requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[outcome]++
	s.lastRequest = requestID
	s.lastSeen = time.Now()
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Counts      map[Outcome]int
	Total       int
	LastRequest string
	LastSeen    time.Time
	Uptime      time.Duration
}

// Snapshot retrieves a copy of the counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Counts:      make(map[Outcome]int, len(s.counts)),
		LastRequest: s.lastRequest,
		LastSeen:    s.lastSeen,
		Uptime:      time.Since(s.started),
	}
	for k, v := range s.counts {
		snap.Counts[k] = v
		snap.Total += v
	}
	return snap
}
