package route

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Format selects the encoding of a route file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

//go:embed data/hcmc_metro_line1.yaml
var defaultRouteYAML []byte

// Data is the serialisable representation of a route.
type Data struct {
	ID        string         `json:"id" yaml:"id" validate:"required"`
	Name      string         `json:"name" yaml:"name"`
	Waypoints []WaypointData `json:"waypoints" yaml:"waypoints" validate:"dive"`
}

// WaypointData is the serialisable representation of a waypoint.
type WaypointData struct {
	ID       WaypointID `json:"id" yaml:"id" validate:"required"`
	Label    string     `json:"label" yaml:"label"`
	Position []float64  `json:"position" yaml:"position" validate:"min=1"`
}

var validate = validator.New()

// FromData validates d and builds a Route from it.
func FromData(d Data) (*Route, error) {
	if err := validate.Struct(d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoute, err)
	}
	wps := make([]Waypoint, len(d.Waypoints))
	for i, w := range d.Waypoints {
		wps[i] = Waypoint{ID: w.ID, Label: w.Label, Position: Position(w.Position)}
	}
	return New(d.ID, d.Name, wps)
}

// ToData returns the serialisable representation of r.
func ToData(r *Route) Data {
	d := Data{ID: r.id, Name: r.name, Waypoints: make([]WaypointData, len(r.waypoints))}
	for i, w := range r.waypoints {
		d.Waypoints[i] = WaypointData{ID: w.ID, Label: w.Label, Position: w.Position.Clone()}
	}
	return d
}

// Decode reads a route in the given format.
func Decode(r io.Reader, format Format) (*Route, error) {
	var d Data
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&d); err != nil {
			return nil, fmt.Errorf("decode yaml route: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode json route: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown route format %q", format)
	}
	return FromData(d)
}

// FormatFromPath picks a Format from a file extension. Anything that is not
// .json is read as YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// LoadFile reads a YAML or JSON route file.
func LoadFile(path string) (*Route, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open route file %q: %w", path, err)
	}
	defer f.Close()

	r, err := Decode(f, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("route file %q: %w", path, err)
	}
	return r, nil
}

// Default returns the built-in Ho Chi Minh City Metro Line 1 route.
func Default() *Route {
	r, err := Decode(bytes.NewReader(defaultRouteYAML), FormatYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default route: %v", err))
	}
	return r
}
