package state

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/five82/checklist/internal/checklist"
)

// Snapshot is the latest backend data available to the UI.
type Snapshot struct {
	Dashboard           checklist.DashboardStats
	HasDashboard        bool
	Executions          []checklist.Execution
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int
}

// IsOffline reports whether the backend has been unreachable for more than
// one poll.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// NeedsLogin reports whether the last poll was rejected for credentials.
func (s Snapshot) NeedsLogin() bool {
	return errors.Is(s.LastError, checklist.ErrUnauthorized)
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	now      func() time.Time
}

// Update replaces the stored data. When err is non-nil the previous data is
// kept and the failure is recorded.
func (s *Store) Update(dashboard *checklist.DashboardStats, executions []checklist.Execution, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.LastUpdated = s.clock()
	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.ConsecutiveFailures++
		return
	}

	if dashboard != nil {
		s.snapshot.Dashboard = *dashboard
		s.snapshot.HasDashboard = true
	}
	s.snapshot.Executions = cloneExecutions(executions)
	s.snapshot.LastError = nil
	s.snapshot.ConsecutiveFailures = 0
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Executions = cloneExecutions(s.snapshot.Executions)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func cloneExecutions(items []checklist.Execution) []checklist.Execution {
	if len(items) == 0 {
		return nil
	}
	dup := make([]checklist.Execution, len(items))
	copy(dup, items)
	return dup
}
