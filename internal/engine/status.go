package engine

import (
	"fmt"
	"math"
	"time"
)

// status renders the human-readable line shown next to the vehicle. The
// wording is informational only.
func (e *Engine) status(s Snapshot) string {
	switch e.route.Len() {
	case 0:
		return "No waypoints on route"
	case 1:
		return fmt.Sprintf("At %s. No next waypoint", e.label(0))
	}

	switch s.Phase {
	case PhaseIdle:
		if s.Selection != nil {
			return fmt.Sprintf("At %s. Ready to travel to %s", e.label(s.CurrentIndex), e.label(s.Selection.To))
		}
		return fmt.Sprintf("At %s", e.label(s.CurrentIndex))

	case PhaseMoving:
		if s.CurrentIndex == 0 && s.Laps > 0 {
			return fmt.Sprintf("Looped back to %s. Moving to %s", e.label(0), e.label(s.NextIndex))
		}
		return fmt.Sprintf("Moving from %s to %s", e.label(s.CurrentIndex), e.label(s.NextIndex))

	case PhaseDwelling:
		secs := ceilSeconds(s.DwellRemaining)
		if s.Selection != nil && s.CurrentIndex == s.Selection.To {
			return fmt.Sprintf("Arrived at %s. Stopping in %ds", e.label(s.CurrentIndex), secs)
		}
		return fmt.Sprintf("Stopped at %s. Departing in %ds", e.label(s.CurrentIndex), secs)

	case PhaseFinished:
		return fmt.Sprintf("Arrived at %s. Selected range complete", e.label(s.CurrentIndex))
	}
	return string(s.Phase)
}

// label prefers the display label and falls back to the waypoint ID.
func (e *Engine) label(i int) string {
	w := e.waypoint(i)
	if w.Label != "" {
		return w.Label
	}
	return w.ID
}

func ceilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
