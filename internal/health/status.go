// Package health exposes the liveness of the trading session over HTTP.
package health

import (
	"sync"
	"time"

	"github.com/rxtech-lab/argo-autotrade/internal/types"
)

// Snapshot is a point-in-time copy of Status.
type Snapshot struct {
	Status        types.EngineStatus `json:"status"`
	Phase         types.Phase        `json:"phase"`
	LastHeartbeat time.Time          `json:"last_heartbeat"`
	LastUpdate    time.Time          `json:"last_update"`
	OpenPositions int                `json:"open_positions"`
	StartedAt     time.Time          `json:"started_at"`
	LastError     string             `json:"last_error,omitempty"`
}

// Status is the shared heartbeat written by the scheduler and read by the HTTP server.
type Status struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

func NewStatus(now func() time.Time) *Status {
	if now == nil {
		now = time.Now
	}

	started := now()

	return &Status{
		mu: sync.RWMutex{},
		snap: Snapshot{
			Status:        types.EngineStatusStarting,
			Phase:         types.PhaseClosed,
			LastHeartbeat: time.Time{},
			LastUpdate:    started,
			OpenPositions: 0,
			StartedAt:     started,
			LastError:     "",
		},
		now: now,
	}
}

// Beat records one scheduler tick.
func (s *Status) Beat(at time.Time, phase types.Phase, openPositions int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.LastHeartbeat = at
	s.snap.LastUpdate = s.now()
	s.snap.Phase = phase
	s.snap.OpenPositions = openPositions
}

// SetStatus records an engine status change; a non-nil err is kept as the last error.
func (s *Status) SetStatus(status types.EngineStatus, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Status = status
	s.snap.LastUpdate = s.now()

	if err != nil {
		s.snap.LastError = err.Error()
	}
}

func (s *Status) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snap
}

// Uptime is the time since the status was created.
func (s *Status) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.now().Sub(s.snap.StartedAt)
}

// Stale reports whether the session is running but has not ticked within maxAge.
func (s *Status) Stale(maxAge time.Duration) bool {
	snap := s.Snapshot()
	if snap.Status != types.EngineStatusRunning || maxAge <= 0 || snap.LastHeartbeat.IsZero() {
		return false
	}

	return s.now().Sub(snap.LastHeartbeat) > maxAge
}
