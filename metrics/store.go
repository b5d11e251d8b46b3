package metrics

import (
	"sync"
	"time"
)

// Store keeps the most recent dispatches in a ring buffer plus running totals.
type Store struct {
	mu sync.RWMutex

	history []DispatchRecord
	head    int
	size    int

	total         int64
	success       int64
	errors        int64
	images        int64
	totalDuration time.Duration
	byKind        map[string]int64

	startTime time.Time
	version   string
}

// NewStore keeps up to capacity records (100 when capacity < 1).
func NewStore(capacity int, version string, startTime time.Time) *Store {
	if capacity < 1 {
		capacity = 100
	}
	return &Store{
		history:   make([]DispatchRecord, capacity),
		byKind:    make(map[string]int64),
		startTime: startTime,
		version:   version,
	}
}

// Record adds rec to the history and totals.
func (s *Store) Record(rec DispatchRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[s.head] = rec
	s.head = (s.head + 1) % len(s.history)
	if s.size < len(s.history) {
		s.size++
	}

	s.total++
	s.images += int64(rec.Delivered)
	s.totalDuration += rec.Duration
	if rec.Status == StatusError {
		s.errors++
		s.byKind[rec.ErrorKind]++
	} else {
		s.success++
	}
}

// Stats returns the running totals.
func (s *Store) Stats() DispatchStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := DispatchStats{
		Total:           s.total,
		Success:         s.success,
		Errors:          s.errors,
		ImagesDelivered: s.images,
		ErrorsByKind:    make(map[string]int64, len(s.byKind)),
	}
	for k, v := range s.byKind {
		out.ErrorsByKind[k] = v
	}
	if s.total > 0 {
		out.AvgDuration = s.totalDuration / time.Duration(s.total)
	}
	return out
}

// Recent returns up to limit records, oldest first.
func (s *Store) Recent(limit int) []DispatchRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || s.size == 0 {
		return []DispatchRecord{}
	}
	if limit > s.size {
		limit = s.size
	}
	n := len(s.history)
	out := make([]DispatchRecord, limit)
	for i := 0; i < limit; i++ {
		out[i] = s.history[(s.head-limit+i+n)%n]
	}
	return out
}

// Status reports degraded when the last three dispatches all failed.
func (s *Store) Status() SystemStatus {
	recent := s.Recent(3)
	health := HealthRunning
	if len(recent) == 3 {
		failed := 0
		for _, r := range recent {
			if r.Status == StatusError {
				failed++
			}
		}
		if failed == 3 {
			health = HealthDegraded
		}
	}
	return SystemStatus{
		Health:    health,
		Version:   s.version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		LastCheck: time.Now(),
	}
}
