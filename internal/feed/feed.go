// Package feed publishes live sessions as a GTFS-Realtime VehiclePositions feed.
package feed

import (
	"fmt"
	"sort"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/cxd309/metroline/internal/engine"
	"github.com/cxd309/metroline/internal/route"
)

const gtfsRealtimeVersion = "2.0"

// Entry is one vehicle to publish.
type Entry struct {
	VehicleID string
	Route     *route.Route
	Snapshot  engine.Snapshot
}

// Encode builds a full-dataset FeedMessage with one VehiclePosition entity per
// entry, ordered by vehicle ID.
func Encode(entries []Entry, now time.Time) *gtfs.FeedMessage {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].VehicleID < sorted[j].VehicleID })

	msg := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String(gtfsRealtimeVersion),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(unixSeconds(now)),
		},
	}
	for _, e := range sorted {
		msg.Entity = append(msg.Entity, &gtfs.FeedEntity{
			Id:      proto.String(e.VehicleID),
			Vehicle: vehiclePosition(e, now),
		})
	}
	return msg
}

// Marshal encodes entries as protobuf wire bytes.
func Marshal(entries []Entry, now time.Time) ([]byte, error) {
	b, err := proto.Marshal(Encode(entries, now))
	if err != nil {
		return nil, fmt.Errorf("feed: marshal: %w", err)
	}
	return b, nil
}

func vehiclePosition(e Entry, now time.Time) *gtfs.VehiclePosition {
	s := e.Snapshot

	stop, status := s.CurrentIndex, gtfs.VehiclePosition_STOPPED_AT
	if s.Phase == engine.PhaseMoving {
		stop, status = s.NextIndex, gtfs.VehiclePosition_IN_TRANSIT_TO
	}

	ts := now
	if !s.SampledAt.IsZero() {
		ts = s.SampledAt
	}

	vp := &gtfs.VehiclePosition{
		Trip:          &gtfs.TripDescriptor{RouteId: proto.String(e.Route.ID())},
		Vehicle:       &gtfs.VehicleDescriptor{Id: proto.String(e.VehicleID), Label: proto.String(e.Route.Name())},
		CurrentStatus: status.Enum(),
		Timestamp:     proto.Uint64(unixSeconds(ts)),
	}
	if w, err := e.Route.WaypointAt(stop); err == nil {
		vp.StopId = proto.String(w.ID)
		vp.CurrentStopSequence = proto.Uint32(uint32(stop))
	}
	if len(s.Position) >= 2 {
		vp.Position = &gtfs.Position{
			Longitude: proto.Float32(float32(s.Position[0])),
			Latitude:  proto.Float32(float32(s.Position[1])),
		}
	}
	return vp
}

func unixSeconds(t time.Time) uint64 {
	if sec := t.Unix(); sec > 0 {
		return uint64(sec)
	}
	return 0
}
