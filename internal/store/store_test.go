package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/metroline/internal/platform/logging"
	"github.com/cxd309/metroline/internal/route"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "nested", "catalog.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.EnsureSchema(ctx))
	return s
}

func sampleRoute(t *testing.T, id string, n int) *route.Route {
	t.Helper()
	wps := make([]route.Waypoint, n)
	for i := range wps {
		wps[i] = route.Waypoint{
			ID:       string(rune('A' + i)),
			Label:    "Stop " + string(rune('A'+i)),
			Position: route.Position{float64(i) * 1.5, 106.7},
		}
	}
	r, err := route.New(id, "Line "+id, wps)
	require.NoError(t, err)
	return r
}

func exerciseCatalog(t *testing.T, s *Store) {
	ctx := context.Background()

	require.NoError(t, s.SaveRoute(ctx, sampleRoute(t, "l1", 4)))
	require.NoError(t, s.SaveRoute(ctx, route.Default()))

	got, err := s.LoadRoute(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "Line l1", got.Name())
	assert.Equal(t, sampleRoute(t, "l1", 4).Waypoints(), got.Waypoints())

	// Saving again replaces the waypoint list.
	require.NoError(t, s.SaveRoute(ctx, sampleRoute(t, "l1", 2)))
	got, err = s.LoadRoute(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())

	list, err := s.ListRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []RouteSummary{
		{ID: "hcmc-metro-1", Name: "Ho Chi Minh City Metro Line 1", WaypointCount: 14},
		{ID: "l1", Name: "Line l1", WaypointCount: 2},
	}, list)

	_, err = s.LoadRoute(ctx, "missing")
	assert.ErrorIs(t, err, ErrRouteNotFound)

	require.NoError(t, s.DeleteRoute(ctx, "l1"))
	_, err = s.LoadRoute(ctx, "l1")
	assert.ErrorIs(t, err, ErrRouteNotFound)
	assert.ErrorIs(t, s.DeleteRoute(ctx, "l1"), ErrRouteNotFound)
}

func TestSQLiteCatalog(t *testing.T) {
	exerciseCatalog(t, openSQLite(t))
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	s := openSQLite(t)
	assert.NoError(t, s.EnsureSchema(context.Background()))
}

func TestListRoutes_Empty(t *testing.T) {
	list, err := openSQLite(t).ListRoutes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)
}

func TestPostgresCatalog(t *testing.T) {
	dsn := os.Getenv("METROLINE_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("METROLINE_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.EnsureSchema(ctx))

	for _, id := range []string{"l1", "hcmc-metro-1"} {
		_ = s.DeleteRoute(ctx, id)
	}
	exerciseCatalog(t, s)
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		dsn  string
		want dialect
	}{
		{dsn: "postgres://u@localhost/db", want: dialectPostgres},
		{dsn: "postgresql://u@localhost/db", want: dialectPostgres},
		{dsn: "data/metroline.db", want: dialectSQLite},
		{dsn: "/tmp/x.db", want: dialectSQLite},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.want, dialectFor(tt.dsn))
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		dsn      string
		wantDSN  string
		wantPath string
	}{
		{
			dsn:      "data/metroline.db",
			wantDSN:  "data/metroline.db?" + sqlitePragmas,
			wantPath: "data/metroline.db",
		},
		{
			dsn:      "file:x.db?cache=shared",
			wantDSN:  "file:x.db?cache=shared&" + sqlitePragmas,
			wantPath: "x.db",
		},
		{
			dsn:      "file:/var/lib/metroline/catalog.db?mode=rwc",
			wantDSN:  "file:/var/lib/metroline/catalog.db?mode=rwc&" + sqlitePragmas,
			wantPath: "/var/lib/metroline/catalog.db",
		},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.wantDSN, sqliteDSN(tt.dsn))
			assert.Equal(t, tt.wantPath, sqlitePath(tt.dsn))
			assert.Equal(t, 1, strings.Count(sqliteDSN(tt.dsn), "?"))
		})
	}
}

func TestRebindDollar(t *testing.T) {
	assert.Equal(t,
		"INSERT INTO waypoints (a, b, c) VALUES ($1, $2, $3)",
		rebindDollar("INSERT INTO waypoints (a, b, c) VALUES (?, ?, ?)"))
	assert.Equal(t, "SELECT 1", rebindDollar("SELECT 1"))
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements(schemaSQL)
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS routes")
	assert.Contains(t, stmts[1], "CREATE TABLE IF NOT EXISTS waypoints")
	assert.Contains(t, stmts[2], "CREATE INDEX")
}
