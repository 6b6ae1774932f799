package sim

import (
	"github.com/cxd309/metroline/internal/engine"
	"github.com/cxd309/metroline/internal/route"
)

// SimulationMeta holds the identity and timing parameters for a simulation run.
type SimulationMeta struct {
	SimulationID string `json:"simulation_id"`
	RunTime      int64  `json:"run_time_ms"`
	TimeStep     int64  `json:"time_step_ms"`
}

// EngineConfig carries the phase durations in milliseconds. Zero means default.
type EngineConfig struct {
	SegmentMS int64 `json:"segment_ms"`
	DwellMS   int64 `json:"dwell_ms"`
}

// CommandKind names a user command replayed by the runner.
type CommandKind string

const (
	CommandStart       CommandKind = "start"
	CommandReset       CommandKind = "reset"
	CommandSelectRange CommandKind = "select_range"
)

// Command is a user action applied at a simulation timestamp, before the
// engine is sampled for that tick.
type Command struct {
	At   int64       `json:"at_ms"`
	Kind CommandKind `json:"command"`
	From int         `json:"from,omitempty"` // select_range only
	To   int         `json:"to,omitempty"`   // select_range only
}

// SimulationInput is the JSON-serialisable input to the runner. A nil Route
// runs the built-in default line.
type SimulationInput struct {
	Meta     SimulationMeta `json:"simulation_meta"`
	Route    *route.Data    `json:"route,omitempty"`
	Config   EngineConfig   `json:"config"`
	Commands []Command      `json:"commands"`
}

// EventKind classifies a notable change during a run.
type EventKind string

const (
	EventDepart      EventKind = "depart"
	EventArrive      EventKind = "arrive"
	EventLoop        EventKind = "loop"
	EventFinish      EventKind = "finish"
	EventReset       EventKind = "reset"
	EventSelectRange EventKind = "select_range"
	EventRejected    EventKind = "rejected"
)

// Event records a phase transition or a command outcome.
type Event struct {
	Timestamp  int64     `json:"timestamp_ms"`
	Kind       EventKind `json:"kind"`
	Index      int       `json:"index"`
	WaypointID string    `json:"waypoint_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// SimulationLogRow is the engine state at a single simulation tick.
type SimulationLogRow struct {
	Timestamp int64           `json:"timestamp_ms"`
	Snapshot  engine.Snapshot `json:"snapshot"`
}

// SimulationLog is the complete output of a simulation run.
type SimulationLog struct {
	Meta    SimulationMeta     `json:"simulation_meta"`
	RouteID string             `json:"route_id"`
	Output  []SimulationLogRow `json:"output"`
	Events  []Event            `json:"events"`
}

// Runner replays a command script against one engine in fixed timesteps.
type Runner struct {
	meta     SimulationMeta
	route    *route.Route
	engine   *engine.Engine
	commands []Command
	next     int // index of the first command not yet applied
	curTime  int64
	prev     engine.Snapshot
	events   []Event
}
