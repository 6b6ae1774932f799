package engine

import (
	"fmt"
	"time"

	"github.com/cxd309/metroline/internal/route"
)

// Phase describes what the vehicle is doing at a sampled instant.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseMoving   Phase = "moving"
	PhaseDwelling Phase = "dwelling"
	PhaseFinished Phase = "finished"
)

// Default durations applied when a Config field is left at zero.
const (
	DefaultSegmentDuration = 5 * time.Second
	DefaultDwellDuration   = 5 * time.Second
)

// Config holds the fixed phase durations. Segment timing is fixed per segment
// and does not depend on segment length.
type Config struct {
	SegmentDuration time.Duration `json:"segment_duration"` // length of every MOVING phase
	DwellDuration   time.Duration `json:"dwell_duration"`   // length of every DWELLING phase
}

// DefaultConfig returns the 5s/5s configuration.
func DefaultConfig() Config {
	return Config{SegmentDuration: DefaultSegmentDuration, DwellDuration: DefaultDwellDuration}
}

// withDefaults fills zero durations and rejects negative ones.
func (c Config) withDefaults() (Config, error) {
	if c.SegmentDuration < 0 {
		return Config{}, fmt.Errorf("%w: segment duration %v is negative", ErrInvalidConfig, c.SegmentDuration)
	}
	if c.DwellDuration < 0 {
		return Config{}, fmt.Errorf("%w: dwell duration %v is negative", ErrInvalidConfig, c.DwellDuration)
	}
	if c.SegmentDuration == 0 {
		c.SegmentDuration = DefaultSegmentDuration
	}
	if c.DwellDuration == 0 {
		c.DwellDuration = DefaultDwellDuration
	}
	return c, nil
}

// Selection bounds traversal to waypoints [From, To]. From < To always holds
// for a Selection accepted by the engine.
type Selection struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Snapshot is a point-in-time view of the engine. It carries no references
// into engine state.
type Snapshot struct {
	Phase            Phase          `json:"phase"`
	CurrentIndex     int            `json:"current_index"`
	NextIndex        int            `json:"next_index"` // -1 unless moving
	Progress         float64        `json:"progress"`   // fraction of the current segment, 0 unless moving
	Position         route.Position `json:"position"`
	PhaseStartedAt   time.Time      `json:"phase_started_at"`
	SampledAt        time.Time      `json:"sampled_at"`
	Selection        *Selection     `json:"selection,omitempty"`
	Laps             int            `json:"laps"`
	DwellRemaining   time.Duration  `json:"dwell_remaining"`
	RouteProgress    float64        `json:"route_progress"`    // fraction of the active range covered
	SegmentRemaining float64        `json:"segment_remaining"` // distance left on the current segment
	Status           string         `json:"status"`
}

// Equal reports whether two snapshots describe the same state.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.Phase != o.Phase || s.CurrentIndex != o.CurrentIndex || s.NextIndex != o.NextIndex ||
		s.Progress != o.Progress || !s.PhaseStartedAt.Equal(o.PhaseStartedAt) ||
		!s.SampledAt.Equal(o.SampledAt) || s.Laps != o.Laps || s.DwellRemaining != o.DwellRemaining ||
		s.RouteProgress != o.RouteProgress || s.SegmentRemaining != o.SegmentRemaining || s.Status != o.Status {
		return false
	}
	if (s.Selection == nil) != (o.Selection == nil) {
		return false
	}
	if s.Selection != nil && *s.Selection != *o.Selection {
		return false
	}
	if len(s.Position) != len(o.Position) {
		return false
	}
	for i := range s.Position {
		if s.Position[i] != o.Position[i] {
			return false
		}
	}
	return true
}
