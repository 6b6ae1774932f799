// Package sim runs the traversal engine headlessly.
//
// The runner advances a simulated clock in fixed timesteps. Each tick has two
// passes:
//
//  1. Command pass - every scripted command due at or before the tick is
//     applied to the engine in order.
//  2. Sample pass - the engine is advanced to the tick time and the snapshot
//     is appended to the log.
//
// Events are derived by diffing consecutive snapshots, so the engine itself
// never has to report what changed.
package sim

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cxd309/metroline/internal/engine"
	"github.com/cxd309/metroline/internal/route"
)

// ErrInvalidInput is returned for malformed simulation metadata or commands.
var ErrInvalidInput = errors.New("invalid simulation input")

// Bounds on user-supplied timing. MaxRunTime keeps every tick representable
// as a time.Duration and MaxTicks bounds the size of the output log.
const (
	MaxRunTime     = int64(7 * 24 * time.Hour / time.Millisecond)
	MaxTicks       = 1_000_000
	MaxPhaseLength = int64(24 * time.Hour / time.Millisecond)
)

// epoch anchors simulated milliseconds to wall-clock timestamps.
var epoch = time.UnixMilli(0).UTC()

// NewRunner validates input, builds the route and engine, and orders the
// command script by timestamp.
func NewRunner(input SimulationInput) (*Runner, error) {
	meta := input.Meta
	if meta.TimeStep <= 0 {
		return nil, fmt.Errorf("%w: time_step_ms must be positive, got %d", ErrInvalidInput, meta.TimeStep)
	}
	if meta.RunTime < 0 {
		return nil, fmt.Errorf("%w: run_time_ms must not be negative, got %d", ErrInvalidInput, meta.RunTime)
	}
	if meta.RunTime > MaxRunTime {
		return nil, fmt.Errorf("%w: run_time_ms must be at most %d, got %d", ErrInvalidInput, MaxRunTime, meta.RunTime)
	}
	if ticks := meta.RunTime/meta.TimeStep + 1; ticks > MaxTicks {
		return nil, fmt.Errorf("%w: %d ticks exceeds the limit of %d, raise time_step_ms", ErrInvalidInput, ticks, MaxTicks)
	}
	if input.Config.SegmentMS > MaxPhaseLength || input.Config.DwellMS > MaxPhaseLength {
		return nil, fmt.Errorf("%w: segment_ms and dwell_ms must be at most %d", ErrInvalidInput, MaxPhaseLength)
	}
	if meta.SimulationID == "" {
		meta.SimulationID = uuid.NewString()
	}

	r := route.Default()
	if input.Route != nil {
		var err error
		r, err = route.FromData(*input.Route)
		if err != nil {
			return nil, fmt.Errorf("building route: %w", err)
		}
	}

	cfg := engine.Config{
		SegmentDuration: time.Duration(input.Config.SegmentMS) * time.Millisecond,
		DwellDuration:   time.Duration(input.Config.DwellMS) * time.Millisecond,
	}
	e, err := engine.New(r, cfg)
	if err != nil {
		return nil, fmt.Errorf("building engine: %w", err)
	}

	commands := make([]Command, len(input.Commands))
	copy(commands, input.Commands)
	for i, c := range commands {
		if c.At < 0 || c.At > meta.RunTime {
			return nil, fmt.Errorf("%w: command %d at %dms is outside the run [0, %d]", ErrInvalidInput, i, c.At, meta.RunTime)
		}
		switch c.Kind {
		case CommandStart, CommandReset, CommandSelectRange:
		default:
			return nil, fmt.Errorf("%w: command %d has unknown kind %q", ErrInvalidInput, i, c.Kind)
		}
	}
	sort.SliceStable(commands, func(i, j int) bool { return commands[i].At < commands[j].At })

	return &Runner{
		meta:     meta,
		route:    r,
		engine:   e,
		commands: commands,
		prev:     e.Snapshot(),
	}, nil
}

// Run executes the full simulation and returns the log.
func (s *Runner) Run() (SimulationLog, error) {
	log := SimulationLog{Meta: s.meta, RouteID: s.route.ID()}
	for s.curTime <= s.meta.RunTime {
		log.Output = append(log.Output, s.step())
		s.curTime += s.meta.TimeStep
	}
	log.Events = s.events
	if log.Events == nil {
		log.Events = []Event{}
	}
	return log, nil
}

// step applies due commands then samples the engine at the current tick.
func (s *Runner) step() SimulationLogRow {
	now := epoch.Add(time.Duration(s.curTime) * time.Millisecond)

	for s.next < len(s.commands) && s.commands[s.next].At <= s.curTime {
		s.apply(s.commands[s.next], now)
		s.next++
	}

	snap := s.engine.Advance(now)
	s.observe(snap)
	return SimulationLogRow{Timestamp: s.curTime, Snapshot: snap}
}

// apply runs one command and records its outcome.
func (s *Runner) apply(c Command, now time.Time) {
	var (
		snap engine.Snapshot
		err  error
	)
	switch c.Kind {
	case CommandStart:
		snap, err = s.engine.Start(now)
	case CommandReset:
		snap = s.engine.Reset()
		s.emit(EventReset, snap.CurrentIndex, "")
	case CommandSelectRange:
		snap, err = s.engine.SelectRange(c.From, c.To)
		if err == nil {
			s.emit(EventSelectRange, snap.CurrentIndex, fmt.Sprintf("%d-%d", c.From, c.To))
		}
	}
	if err != nil {
		s.emit(EventRejected, snap.CurrentIndex, fmt.Sprintf("%s: %v", c.Kind, err))
	}
	s.observe(snap)
}

// observe diffs snap against the previous snapshot and records transitions.
func (s *Runner) observe(snap engine.Snapshot) {
	prev := s.prev
	s.prev = snap

	switch snap.Phase {
	case engine.PhaseMoving:
		if prev.Phase == engine.PhaseMoving && prev.CurrentIndex == snap.CurrentIndex {
			return
		}
		if snap.Laps > prev.Laps {
			s.emit(EventLoop, snap.CurrentIndex, fmt.Sprintf("lap %d", snap.Laps))
		}
		s.emit(EventDepart, snap.CurrentIndex, "")
	case engine.PhaseDwelling:
		if prev.Phase != engine.PhaseDwelling || prev.CurrentIndex != snap.CurrentIndex {
			s.emit(EventArrive, snap.CurrentIndex, "")
		}
	case engine.PhaseFinished:
		if prev.Phase != engine.PhaseFinished {
			s.emit(EventFinish, snap.CurrentIndex, "")
		}
	}
}

func (s *Runner) emit(kind EventKind, index int, detail string) {
	ev := Event{Timestamp: s.curTime, Kind: kind, Index: index, Detail: detail}
	if w, err := s.route.WaypointAt(index); err == nil {
		ev.WaypointID = w.ID
	}
	s.events = append(s.events, ev)
}

// Run builds a runner for input and executes it.
func Run(input SimulationInput) (SimulationLog, error) {
	r, err := NewRunner(input)
	if err != nil {
		return SimulationLog{}, err
	}
	return r.Run()
}

// RunJSON is the entry point for the CLI and WASM targets. It accepts a
// JSON-encoded SimulationInput, runs the simulation, and returns a
// JSON-encoded SimulationLog.
func RunJSON(jsonInput string) (string, error) {
	var input SimulationInput
	if err := json.Unmarshal([]byte(jsonInput), &input); err != nil {
		return "", fmt.Errorf("invalid input JSON: %w", err)
	}

	simLog, err := Run(input)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(simLog)
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(out), nil
}
