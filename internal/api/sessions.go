package api

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cxd309/metroline/internal/engine"
	"github.com/cxd309/metroline/internal/feed"
	"github.com/cxd309/metroline/internal/route"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Clock returns the current time. Injected so tests control elapsed time.
type Clock func() time.Time

// Session is one live vehicle. Every operation samples the engine at the
// manager's clock before acting, so commands always apply to current state.
type Session struct {
	ID      string
	Created time.Time

	mu      sync.Mutex
	engine  *engine.Engine
	now     Clock
	touched time.Time
	sampled time.Time
}

// Route returns the route the session traverses.
func (s *Session) Route() *route.Route { return s.engine.Route() }

// Observe advances the engine to now and returns the snapshot.
func (s *Session) Observe() engine.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sample()
}

// Start begins movement from idle.
func (s *Session) Start() (engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sample()
	return s.engine.Start(s.sampled)
}

// Reset returns the vehicle to waypoint 0 and clears any selection.
func (s *Session) Reset() engine.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sample()
	return s.engine.Reset()
}

// SelectRange bounds traversal to [from, to].
func (s *Session) SelectRange(from, to int) (engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sample()
	return s.engine.SelectRange(from, to)
}

// sample marks the session as used and advances it. Must be called with mu
// held.
func (s *Session) sample() engine.Snapshot {
	s.touched = s.now()
	return s.advance()
}

// advance moves the engine to the clock, never earlier than the previous
// sample. Must be called with mu held.
func (s *Session) advance() engine.Snapshot {
	now := s.now()
	if now.Before(s.sampled) {
		now = s.sampled
	}
	s.sampled = now
	return s.engine.Advance(now)
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// Manager owns the live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	defaults engine.Config
	ttl      time.Duration
	now      Clock
	log      logrus.FieldLogger
}

// NewManager creates a Manager. Sessions untouched for longer than ttl are
// removed by Expire. A nil clock uses time.Now.
func NewManager(defaults engine.Config, ttl time.Duration, now Clock, log logrus.FieldLogger) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		sessions: make(map[string]*Session),
		defaults: defaults,
		ttl:      ttl,
		now:      now,
		log:      log,
	}
}

// Defaults returns the engine configuration used when a request leaves
// durations unset.
func (m *Manager) Defaults() engine.Config { return m.defaults }

// Now reads the manager's clock.
func (m *Manager) Now() time.Time { return m.now() }

// Create starts an idle session on r.
func (m *Manager) Create(r *route.Route, cfg engine.Config) (*Session, engine.Snapshot, error) {
	if cfg.SegmentDuration == 0 {
		cfg.SegmentDuration = m.defaults.SegmentDuration
	}
	if cfg.DwellDuration == 0 {
		cfg.DwellDuration = m.defaults.DwellDuration
	}
	e, err := engine.New(r, cfg)
	if err != nil {
		return nil, engine.Snapshot{}, fmt.Errorf("create session: %w", err)
	}

	now := m.now()
	s := &Session{ID: uuid.NewString(), Created: now, engine: e, now: m.now}
	snap := s.Observe()

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"session_id": s.ID, "route_id": r.ID()}).Info("session created")
	return s, snap, nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Delete removes the session with id.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	m.log.WithField("session_id", id).Info("session deleted")
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Expire removes sessions idle for longer than the TTL and returns how many
// were removed.
func (m *Manager) Expire() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.log.WithField("removed", removed).Info("expired idle sessions")
	}
	return removed
}

// RunJanitor calls Expire every interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Expire()
		}
	}
}

// FeedEntries samples every session for the realtime feed without
// refreshing its idle timer.
func (m *Manager) FeedEntries() []feed.Entry {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })

	out := make([]feed.Entry, 0, len(sessions))
	for _, s := range sessions {
		s.mu.Lock()
		snap := s.advance()
		s.mu.Unlock()
		out = append(out, feed.Entry{VehicleID: s.ID, Route: s.Route(), Snapshot: snap})
	}
	return out
}
