package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cxd309/metroline/internal/route"
)

// RouteSummary is a catalog listing entry.
type RouteSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	WaypointCount int    `json:"waypoint_count"`
}

// SaveRoute inserts or replaces r and its waypoints in one transaction.
func (s *Store) SaveRoute(ctx context.Context, r *route.Route) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save route %q: begin tx: %w", r.ID(), err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO routes (id, name, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at`),
		r.ID(), r.Name(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save route %q: upsert route: %w", r.ID(), err)
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM waypoints WHERE route_id = ?`), r.ID()); err != nil {
		return fmt.Errorf("save route %q: clear waypoints: %w", r.ID(), err)
	}

	insert := s.rebind(`INSERT INTO waypoints (route_id, seq, waypoint_id, label, position) VALUES (?, ?, ?, ?, ?)`)
	for i, w := range r.Waypoints() {
		pos, err := json.Marshal([]float64(w.Position))
		if err != nil {
			return fmt.Errorf("save route %q: encode position of %q: %w", r.ID(), w.ID, err)
		}
		if _, err := tx.ExecContext(ctx, insert, r.ID(), i, w.ID, w.Label, string(pos)); err != nil {
			return fmt.Errorf("save route %q: insert waypoint %q: %w", r.ID(), w.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save route %q: commit tx: %w", r.ID(), err)
	}

	s.log.WithFields(logrus.Fields{"route_id": r.ID(), "waypoints": r.Len()}).Info("route saved")
	return nil
}

// LoadRoute reads a route and its waypoints in sequence order.
func (s *Store) LoadRoute(ctx context.Context, id string) (*route.Route, error) {
	var name string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT name FROM routes WHERE id = ?`), id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load route %q: %w", id, ErrRouteNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load route %q: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT waypoint_id, label, position
		FROM waypoints
		WHERE route_id = ?
		ORDER BY seq`), id)
	if err != nil {
		return nil, fmt.Errorf("load route %q: query waypoints: %w", id, err)
	}
	defer rows.Close()

	var wps []route.Waypoint
	for rows.Next() {
		var (
			w   route.Waypoint
			pos string
		)
		if err := rows.Scan(&w.ID, &w.Label, &pos); err != nil {
			return nil, fmt.Errorf("load route %q: scan waypoint: %w", id, err)
		}
		if err := json.Unmarshal([]byte(pos), &w.Position); err != nil {
			return nil, fmt.Errorf("load route %q: decode position of %q: %w", id, w.ID, err)
		}
		wps = append(wps, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load route %q: iterate waypoints: %w", id, err)
	}

	r, err := route.New(id, name, wps)
	if err != nil {
		return nil, fmt.Errorf("load route %q: %w", id, err)
	}
	return r, nil
}

// ListRoutes returns every stored route ordered by ID.
func (s *Store) ListRoutes(ctx context.Context) ([]RouteSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, COUNT(w.seq)
		FROM routes r
		LEFT JOIN waypoints w ON w.route_id = r.id
		GROUP BY r.id, r.name
		ORDER BY r.id`)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	defer rows.Close()

	out := []RouteSummary{}
	for rows.Next() {
		var rs RouteSummary
		if err := rows.Scan(&rs.ID, &rs.Name, &rs.WaypointCount); err != nil {
			return nil, fmt.Errorf("list routes: scan: %w", err)
		}
		out = append(out, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list routes: iterate: %w", err)
	}
	return out, nil
}

// DeleteRoute removes a route and its waypoints.
func (s *Store) DeleteRoute(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete route %q: begin tx: %w", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM waypoints WHERE route_id = ?`), id); err != nil {
		return fmt.Errorf("delete route %q: clear waypoints: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM routes WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete route %q: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete route %q: %w", id, ErrRouteNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete route %q: commit tx: %w", id, err)
	}
	return nil
}
