// Package engine implements the route traversal state machine.
//
// The engine owns a single TraversalState and only moves it forward when the
// driver samples it with Advance(now). It has no timers and no goroutines:
// given the same sequence of calls and timestamps it always produces the same
// snapshots.
//
// Phases cycle as
//
//	IDLE -> MOVING -> DWELLING -> MOVING -> ... -> DWELLING -> FINISHED
//
// FINISHED is only reachable with a sub-range selection. Without one the
// vehicle dwells at the last waypoint and then loops back to waypoint 0.
//
// An Engine is not safe for concurrent use.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/cxd309/metroline/internal/route"
)

var (
	// ErrInvalidSelection is returned by SelectRange for reversed, empty or
	// out-of-range bounds.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrEmptyRoute is returned by Start when the route has fewer than two waypoints.
	ErrEmptyRoute = errors.New("route has no segments")
	// ErrInvalidConfig is returned by New for unusable durations or a nil route.
	ErrInvalidConfig = errors.New("invalid engine config")
)

// Engine is the traversal state machine for one vehicle on one route.
type Engine struct {
	route *route.Route
	cfg   Config

	phase      Phase
	index      int       // waypoint occupied, or most recently departed while moving
	phaseStart time.Time // when the current phase began
	selection  *Selection
	laps       int
	sampledAt  time.Time // timestamp of the latest Start/Advance
}

// New constructs an idle Engine at waypoint 0. Zero durations in cfg take the
// defaults.
func New(r *route.Route, cfg Config) (*Engine, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil route", ErrInvalidConfig)
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Engine{route: r, cfg: cfg, phase: PhaseIdle}, nil
}

// Route returns the route the engine traverses.
func (e *Engine) Route() *route.Route { return e.route }

// Config returns the effective durations.
func (e *Engine) Config() Config { return e.cfg }

// Phase returns the current phase.
func (e *Engine) Phase() Phase { return e.phase }

// Reset clears any selection and returns the vehicle to waypoint 0, idle.
// Valid from every phase and idempotent.
func (e *Engine) Reset() Snapshot {
	e.selection = nil
	e.index = 0
	e.laps = 0
	e.phase = PhaseIdle
	e.phaseStart = e.sampledAt
	return e.Snapshot()
}

// SelectRange bounds traversal to waypoints [from, to] and snaps the vehicle
// idle at from, cancelling any movement or dwell in progress. On error no
// state changes.
func (e *Engine) SelectRange(from, to int) (Snapshot, error) {
	n := e.route.Len()
	if from < 0 || to < 0 || from >= n || to >= n {
		return e.Snapshot(), fmt.Errorf("%w: [%d, %d] outside route of %d waypoints", ErrInvalidSelection, from, to, n)
	}
	if from >= to {
		return e.Snapshot(), fmt.Errorf("%w: from %d must be before to %d", ErrInvalidSelection, from, to)
	}
	e.selection = &Selection{From: from, To: to}
	e.index = from
	e.laps = 0
	e.phase = PhaseIdle
	e.phaseStart = e.sampledAt
	return e.Snapshot(), nil
}

// Start begins moving from an idle state. It is a no-op while moving, dwelling
// or finished. On a route with fewer than two waypoints the engine stays idle
// and ErrEmptyRoute is returned.
func (e *Engine) Start(now time.Time) (Snapshot, error) {
	switch e.phase {
	case PhaseMoving, PhaseDwelling, PhaseFinished:
		return e.Snapshot(), nil
	case PhaseIdle:
	default:
		panic(fmt.Sprintf("engine: unknown phase %q", e.phase))
	}

	if e.route.SegmentCount() == 0 {
		return e.Snapshot(), fmt.Errorf("%w: %d waypoints", ErrEmptyRoute, e.route.Len())
	}

	if e.selection != nil {
		if e.selection.From >= e.selection.To {
			panic(fmt.Sprintf("engine: accepted selection [%d, %d] is empty", e.selection.From, e.selection.To))
		}
		e.index = e.selection.From
	} else if e.index >= e.route.Len()-1 {
		e.index = 0
	}

	e.phase = PhaseMoving
	e.phaseStart = now
	e.sampledAt = now
	return e.Snapshot(), nil
}

// Advance samples the engine at now, performing at most one phase transition.
// Calling Advance twice with the same now yields identical snapshots.
func (e *Engine) Advance(now time.Time) Snapshot {
	e.sampledAt = now
	elapsed := e.elapsed(now)

	switch e.phase {
	case PhaseIdle, PhaseFinished:
		// Waiting for a command.

	case PhaseMoving:
		if elapsed >= e.cfg.SegmentDuration {
			e.index++
			e.phase = PhaseDwelling
			e.phaseStart = now
		}

	case PhaseDwelling:
		if elapsed >= e.cfg.DwellDuration {
			e.endDwell(now)
		}

	default:
		panic(fmt.Sprintf("engine: unknown phase %q", e.phase))
	}

	return e.Snapshot()
}

// endDwell picks the transition out of a completed dwell.
func (e *Engine) endDwell(now time.Time) {
	e.phaseStart = now
	switch {
	case e.selection != nil && e.index == e.selection.To:
		e.phase = PhaseFinished
	case e.index >= e.route.Len()-1:
		// Only reachable unbounded: a selection always ends at or before N-1.
		e.index = 0
		e.laps++
		e.phase = PhaseMoving
	default:
		e.phase = PhaseMoving
	}
}

// elapsed returns the time spent in the current phase. A clock that runs
// backwards counts as zero elapsed.
func (e *Engine) elapsed(now time.Time) time.Duration {
	d := now.Sub(e.phaseStart)
	if d < 0 {
		return 0
	}
	return d
}

// Snapshot returns the state as of the latest sample without mutating it.
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		Phase:          e.phase,
		CurrentIndex:   e.index,
		NextIndex:      -1,
		PhaseStartedAt: e.phaseStart,
		SampledAt:      e.sampledAt,
		Laps:           e.laps,
	}
	if e.selection != nil {
		sel := *e.selection
		s.Selection = &sel
	}
	if e.route.Len() == 0 {
		s.Status = e.status(s)
		return s
	}

	here := e.waypoint(e.index)
	elapsed := e.elapsed(e.sampledAt)

	switch e.phase {
	case PhaseMoving:
		next := e.waypoint(e.index + 1)
		s.NextIndex = e.index + 1
		s.Progress = segmentProgress(elapsed, e.cfg.SegmentDuration)
		s.Position = here.Position.Lerp(next.Position, s.Progress)
		s.SegmentRemaining = here.Position.DistanceTo(next.Position) * (1 - s.Progress)
	case PhaseDwelling:
		s.Position = here.Position
		if rem := e.cfg.DwellDuration - elapsed; rem > 0 {
			s.DwellRemaining = rem
		}
	case PhaseIdle, PhaseFinished:
		s.Position = here.Position
	default:
		panic(fmt.Sprintf("engine: unknown phase %q", e.phase))
	}

	s.RouteProgress = e.routeProgress(s.Progress)
	s.Status = e.status(s)
	return s
}

// bounds returns the first and last waypoint index of the active range.
func (e *Engine) bounds() (int, int) {
	if e.selection != nil {
		return e.selection.From, e.selection.To
	}
	return 0, e.route.Len() - 1
}

func (e *Engine) routeProgress(segment float64) float64 {
	if e.phase == PhaseFinished {
		return 1
	}
	first, last := e.bounds()
	if last <= first {
		return 0
	}
	return clamp((float64(e.index-first)+segment)/float64(last-first), 0, 1)
}

// waypoint returns the waypoint at an index the engine's invariants guarantee
// to be valid.
func (e *Engine) waypoint(i int) route.Waypoint {
	w, err := e.route.WaypointAt(i)
	if err != nil {
		panic(fmt.Sprintf("engine: phase %s at index %d: %v", e.phase, e.index, err))
	}
	return w
}

// segmentProgress maps elapsed time onto [0, 1] of a segment.
func segmentProgress(elapsed, total time.Duration) float64 {
	return clamp(float64(elapsed)/float64(total), 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
