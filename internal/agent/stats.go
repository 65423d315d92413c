package agent

import (
	"sync"
	"time"

	"github.com/cortexai/askql/internal/models"
)

// Turn outcomes, used as metric labels and stats buckets.
const (
	OutcomeAnswered         = "answered"
	OutcomeClarification    = "clarification"
	OutcomeBlocked          = "blocked"
	OutcomeGenerationFailed = "generation_failed"
	OutcomeExecutionFailed  = "execution_failed"
)

// Stats keeps in-memory counters for GET /stats. Counters reset on restart.
type Stats struct {
	mu             sync.Mutex
	startedAt      time.Time
	total          int64
	byRoute        map[string]int64
	clarifications int64
	blocked        int64
	failures       int64
}

func NewStats() *Stats {
	return &Stats{startedAt: time.Now().UTC(), byRoute: make(map[string]int64)}
}

// Record counts one finished turn.
func (s *Stats) Record(route, outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.byRoute[route]++
	switch outcome {
	case OutcomeClarification:
		s.clarifications++
	case OutcomeBlocked:
		s.blocked++
	case OutcomeGenerationFailed, OutcomeExecutionFailed:
		s.failures++
	}
}

// Snapshot copies the counters. activeSessions is supplied by the caller.
func (s *Stats) Snapshot(activeSessions int) models.StatsResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	byRoute := make(map[string]int64, len(s.byRoute))
	for k, v := range s.byRoute {
		byRoute[k] = v
	}
	return models.StatsResponse{
		StartedAt:      s.startedAt,
		UptimeSeconds:  int64(time.Since(s.startedAt).Seconds()),
		TotalRequests:  s.total,
		ByRoute:        byRoute,
		Clarifications: s.clarifications,
		Blocked:        s.blocked,
		Failures:       s.failures,
		ActiveSessions: activeSessions,
	}
}
