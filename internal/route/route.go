// Package route provides the immutable ordered waypoint sequence a vehicle
// traverses, along with index and adjacency lookups over it.
package route

import (
	"errors"
	"fmt"
	"math"
)

// WaypointID is a string alias used as a stable waypoint identifier.
type WaypointID = string

var (
	// ErrIndexOutOfRange is returned by any lookup outside [0, N-1].
	ErrIndexOutOfRange = errors.New("waypoint index out of range")
	// ErrInvalidRoute is returned when route construction input is inconsistent.
	ErrInvalidRoute = errors.New("invalid route")
)

// Position is a coordinate of any dimension, stored as an ordered tuple.
type Position []float64

// Dim returns the number of components in the position.
func (p Position) Dim() int { return len(p) }

// Lerp returns the point at fraction t of the way from p to q.
// Both positions must have the same dimension.
func (p Position) Lerp(q Position, t float64) Position {
	out := make(Position, len(p))
	for i := range p {
		out[i] = p[i] + (q[i]-p[i])*t
	}
	return out
}

// DistanceTo returns the Euclidean distance between p and q.
func (p Position) DistanceTo(q Position) float64 {
	var sum float64
	for i := range p {
		d := q[i] - p[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Clone returns a copy of p that shares no backing array.
func (p Position) Clone() Position {
	if p == nil {
		return nil
	}
	out := make(Position, len(p))
	copy(out, p)
	return out
}

// Waypoint is a fixed stop on the route.
type Waypoint struct {
	ID       WaypointID `json:"id" yaml:"id"`
	Label    string     `json:"label" yaml:"label"`
	Position Position   `json:"position" yaml:"position"`
}

// Route is an ordered, immutable sequence of waypoints. Adjacent waypoints
// i and i+1 form a segment.
type Route struct {
	id        string
	name      string
	waypoints []Waypoint
	indexByID map[WaypointID]int
}

// New builds a Route, returning an error if any waypoint ID is empty or
// duplicated, or if waypoint positions do not share one dimension.
func New(id, name string, waypoints []Waypoint) (*Route, error) {
	r := &Route{
		id:        id,
		name:      name,
		waypoints: make([]Waypoint, 0, len(waypoints)),
		indexByID: make(map[WaypointID]int, len(waypoints)),
	}
	for i, w := range waypoints {
		if w.ID == "" {
			return nil, fmt.Errorf("%w: waypoint %d has no id", ErrInvalidRoute, i)
		}
		if _, exists := r.indexByID[w.ID]; exists {
			return nil, fmt.Errorf("%w: waypoint %q already exists", ErrInvalidRoute, w.ID)
		}
		if i > 0 && w.Position.Dim() != waypoints[0].Position.Dim() {
			return nil, fmt.Errorf("%w: waypoint %q has %d-dimensional position, want %d",
				ErrInvalidRoute, w.ID, w.Position.Dim(), waypoints[0].Position.Dim())
		}
		w.Position = w.Position.Clone()
		r.indexByID[w.ID] = i
		r.waypoints = append(r.waypoints, w)
	}
	return r, nil
}

// ID returns the route identifier.
func (r *Route) ID() string { return r.id }

// Name returns the display name of the route.
func (r *Route) Name() string { return r.name }

// Len returns the number of waypoints.
func (r *Route) Len() int { return len(r.waypoints) }

// SegmentCount returns max(N-1, 0).
func (r *Route) SegmentCount() int {
	if len(r.waypoints) < 2 {
		return 0
	}
	return len(r.waypoints) - 1
}

// WaypointAt looks up a waypoint by index. Out-of-range indices are an error,
// never clamped.
func (r *Route) WaypointAt(i int) (Waypoint, error) {
	if i < 0 || i >= len(r.waypoints) {
		return Waypoint{}, fmt.Errorf("%w: %d not in [0, %d]", ErrIndexOutOfRange, i, len(r.waypoints)-1)
	}
	w := r.waypoints[i]
	w.Position = w.Position.Clone()
	return w, nil
}

// Waypoints returns a copy of the ordered waypoint list.
func (r *Route) Waypoints() []Waypoint {
	out := make([]Waypoint, len(r.waypoints))
	for i, w := range r.waypoints {
		w.Position = w.Position.Clone()
		out[i] = w
	}
	return out
}

// IndexOf returns the index of the waypoint with the given ID, or -1.
func (r *Route) IndexOf(id WaypointID) int {
	if i, ok := r.indexByID[id]; ok {
		return i
	}
	return -1
}

// Contains reports whether i is a valid waypoint index.
func (r *Route) Contains(i int) bool { return i >= 0 && i < len(r.waypoints) }

// Next returns the index after i. ok is false at the last waypoint or when i
// is out of range.
func (r *Route) Next(i int) (int, bool) {
	if !r.Contains(i) || i+1 >= len(r.waypoints) {
		return 0, false
	}
	return i + 1, true
}

// Prev returns the index before i. ok is false at the first waypoint or when i
// is out of range.
func (r *Route) Prev(i int) (int, bool) {
	if !r.Contains(i) || i == 0 {
		return 0, false
	}
	return i - 1, true
}

// Distance returns the Euclidean distance between waypoints i and j.
// It is a display metric only; traversal timing does not depend on it.
func (r *Route) Distance(i, j int) (float64, error) {
	a, err := r.WaypointAt(i)
	if err != nil {
		return 0, err
	}
	b, err := r.WaypointAt(j)
	if err != nil {
		return 0, err
	}
	return a.Position.DistanceTo(b.Position), nil
}

// Length returns the summed length of segments from waypoint i to waypoint j
// (i <= j), following the route order.
func (r *Route) Length(i, j int) (float64, error) {
	if !r.Contains(i) || !r.Contains(j) {
		return 0, fmt.Errorf("%w: span [%d, %d]", ErrIndexOutOfRange, i, j)
	}
	if i > j {
		return 0, fmt.Errorf("%w: span start %d after end %d", ErrInvalidRoute, i, j)
	}
	var total float64
	for k := i; k < j; k++ {
		total += r.waypoints[k].Position.DistanceTo(r.waypoints[k+1].Position)
	}
	return total, nil
}
