package route

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(t *testing.T) *Route {
	t.Helper()
	r, err := New("test", "Test line", []Waypoint{
		{ID: "A", Label: "Alpha", Position: Position{0}},
		{ID: "B", Label: "Bravo", Position: Position{10}},
		{ID: "C", Label: "Charlie", Position: Position{20}},
	})
	require.NoError(t, err)
	return r
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name      string
		waypoints []Waypoint
		wantErr   bool
	}{
		{name: "empty route", waypoints: nil},
		{name: "single waypoint", waypoints: []Waypoint{{ID: "A", Position: Position{0, 0}}}},
		{
			name:      "duplicate id",
			waypoints: []Waypoint{{ID: "A", Position: Position{0}}, {ID: "A", Position: Position{1}}},
			wantErr:   true,
		},
		{
			name:      "missing id",
			waypoints: []Waypoint{{Position: Position{0}}},
			wantErr:   true,
		},
		{
			name:      "dimension mismatch",
			waypoints: []Waypoint{{ID: "A", Position: Position{0, 0}}, {ID: "B", Position: Position{1}}},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("r", "", tt.waypoints)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidRoute))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSegmentCount(t *testing.T) {
	empty, err := New("e", "", nil)
	require.NoError(t, err)
	one, err := New("o", "", []Waypoint{{ID: "A", Position: Position{0}}})
	require.NoError(t, err)

	assert.Equal(t, 0, empty.SegmentCount())
	assert.Equal(t, 0, one.SegmentCount())
	assert.Equal(t, 2, line(t).SegmentCount())
}

func TestWaypointAt(t *testing.T) {
	r := line(t)

	w, err := r.WaypointAt(1)
	require.NoError(t, err)
	assert.Equal(t, "B", w.ID)
	assert.Equal(t, Position{10}, w.Position)

	for _, i := range []int{-1, 3, 100} {
		_, err := r.WaypointAt(i)
		assert.ErrorIs(t, err, ErrIndexOutOfRange, "index %d", i)
	}
}

func TestWaypointAt_ReturnsCopy(t *testing.T) {
	r := line(t)

	w, err := r.WaypointAt(0)
	require.NoError(t, err)
	w.Position[0] = 99

	again, err := r.WaypointAt(0)
	require.NoError(t, err)
	assert.Equal(t, Position{0}, again.Position)
}

func TestAdjacency(t *testing.T) {
	r := line(t)

	next, ok := r.Next(0)
	assert.True(t, ok)
	assert.Equal(t, 1, next)

	_, ok = r.Next(2)
	assert.False(t, ok)

	prev, ok := r.Prev(2)
	assert.True(t, ok)
	assert.Equal(t, 1, prev)

	_, ok = r.Prev(0)
	assert.False(t, ok)

	_, ok = r.Next(-1)
	assert.False(t, ok)

	assert.Equal(t, 2, r.IndexOf("C"))
	assert.Equal(t, -1, r.IndexOf("Z"))
}

func TestDistance(t *testing.T) {
	r, err := New("d", "", []Waypoint{
		{ID: "A", Position: Position{0, 0}},
		{ID: "B", Position: Position{3, 4}},
		{ID: "C", Position: Position{3, 10}},
	})
	require.NoError(t, err)

	d, err := r.Distance(0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, d, 1e-9)

	d, err = r.Distance(2, 0)
	require.NoError(t, err)
	assert.InDelta(t, 10.44030650891055, d, 1e-9)

	total, err := r.Length(0, 2)
	require.NoError(t, err)
	assert.InDelta(t, 11.0, total, 1e-9)

	_, err = r.Distance(0, 5)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestLerp(t *testing.T) {
	p := Position{0, 10, -4}
	q := Position{10, 20, 4}

	assert.Equal(t, Position{5, 15, 0}, p.Lerp(q, 0.5))
	assert.Equal(t, p, p.Lerp(q, 0))
	assert.Equal(t, q, p.Lerp(q, 1))
}

func TestDecode_YAML(t *testing.T) {
	src := `
id: short
name: Short line
waypoints:
  - { id: A, label: Alpha, position: [0, 0] }
  - { id: B, label: Bravo, position: [5, 5] }
`
	r, err := Decode(strings.NewReader(src), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "short", r.ID())
	assert.Equal(t, "Short line", r.Name())
	assert.Equal(t, 2, r.Len())
}

func TestDecode_JSONRejectsUnknownFields(t *testing.T) {
	src := `{"id": "x", "waypoints": [], "speed": 3}`
	_, err := Decode(strings.NewReader(src), FormatJSON)
	require.Error(t, err)
}

func TestDecode_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "missing route id", src: `{"waypoints": []}`},
		{name: "missing waypoint id", src: `{"id": "x", "waypoints": [{"position": [0]}]}`},
		{name: "empty position", src: `{"id": "x", "waypoints": [{"id": "A", "position": []}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src), FormatJSON)
			assert.ErrorIs(t, err, ErrInvalidRoute)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "route.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"j","name":"J","waypoints":[{"id":"A","position":[1]}]}`), 0o644))

	r, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "j", r.ID())
	assert.Equal(t, 1, r.Len())

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestDataRoundTrip(t *testing.T) {
	r := line(t)
	back, err := FromData(ToData(r))
	require.NoError(t, err)
	assert.Equal(t, r.Waypoints(), back.Waypoints())
}

func TestDefault(t *testing.T) {
	r := Default()
	assert.Equal(t, "hcmc-metro-1", r.ID())
	assert.Equal(t, 14, r.Len())

	first, err := r.WaypointAt(0)
	require.NoError(t, err)
	assert.Equal(t, "SG01", first.ID)

	last, err := r.WaypointAt(13)
	require.NoError(t, err)
	assert.Equal(t, Position{130, 0, 0}, last.Position)
}
