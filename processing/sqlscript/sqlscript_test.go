package sqlscript

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfas-observations/floodload/dialect"
	"github.com/sfas-observations/floodload/floodmap"
	"github.com/sfas-observations/floodload/processing"
	"github.com/sfas-observations/floodload/translate"
)

var _ processing.Target = (*Target)(nil)

var triangle = orb.Polygon{{{0, 0}, {0, 1}, {1, 1}, {0, 0}}}

func newTarget(t *testing.T, dialectName string, format translate.Format, path string, batchSize int) *Target {
	t.Helper()
	d, err := dialect.New(dialectName)
	require.NoError(t, err)
	tr, err := translate.New(dialectName, format, 4326)
	require.NoError(t, err)
	target, err := Open(Options{
		Path:       path,
		BatchSize:  batchSize,
		Dialect:    d,
		Translator: tr,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	return target
}

func writeScript(t *testing.T, target *Target, rows int) {
	t.Helper()
	ctx := context.Background()
	for _, table := range floodmap.Tables() {
		require.NoError(t, target.EnsureTable(ctx, table))
	}
	require.NoError(t, target.Begin(ctx))
	require.NoError(t, target.WriteDepthClass(ctx, floodmap.DepthClass{Class: 2, Min: floodmap.NewFloat(0.5)}))
	for i := 1; i <= rows; i++ {
		require.NoError(t, target.WriteRow(ctx, floodmap.Row{PolygonID: int64(i), Flooded: 1, DepthClass: 2, Geometry: triangle}))
	}
	require.NoError(t, target.Commit(ctx))
}

func TestScript_sqlServer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floods.sql")
	target := newTarget(t, dialect.SQLServer, translate.WKT, path, 2)
	defer target.Close()
	writeScript(t, target, 3)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	script := string(b)

	assert.True(t, strings.HasPrefix(script, "-- Table Setup\nIF NOT EXISTS"))
	assert.Contains(t, script, "\n-- Populating Depth Lookup Table\n"+
		"IF NOT EXISTS (SELECT 1 FROM Flood_Depth_Data WHERE depth_class = 2) INSERT INTO Flood_Depth_Data (depth_class, depth_min, depth_max) VALUES (2, 0.5, NULL);\nGO\n")
	assert.Contains(t, script, "\n-- Populating Flood Map Data\n"+
		"INSERT INTO Flood_Map_Data (flooded, depth_class, polygon_id, geometry) VALUES (1, 2, 1, geometry::STGeomFromText('POLYGON((0 0,0 1,1 1,0 0))', 4326));\n")
	// two tables, the depth classes, one full batch of rows and the remainder
	assert.Equal(t, 5, strings.Count(script, "\nGO\n"))
	assert.True(t, strings.HasSuffix(script, ";\nGO\n"))
	assert.NotContains(t, script, "?")
}

func TestScript_postgres(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floods.sql")
	target := newTarget(t, dialect.Postgres, translate.GeoJSON, path, 1)
	defer target.Close()
	writeScript(t, target, 2)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	script := string(b)

	assert.NotContains(t, script, "GO")
	assert.Equal(t, 2, strings.Count(script, "CREATE TABLE IF NOT EXISTS"))
	assert.Contains(t, script, `ST_SetSRID(ST_GeomFromGeoJSON('{"type":"Polygon","coordinates":[[[0,0],[0,1],[1,1],[0,0]]]}'::text), 4326)`)
	assert.Contains(t, script, "ON CONFLICT (depth_class) DO NOTHING;\n")
}

func TestOpen_outputExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floods.sql")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	d, err := dialect.New(dialect.SQLServer)
	require.NoError(t, err)
	tr, err := translate.New(dialect.SQLServer, translate.WKT, 4326)
	require.NoError(t, err)
	_, err = Open(Options{Path: path, Dialect: d, Translator: tr})
	require.ErrorIs(t, err, ErrOutputExists)

	target, err := Open(Options{Path: path, Overwrite: true, Dialect: d, Translator: tr, Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer target.Close()
	writeScript(t, target, 1)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, "old", string(b))
}

func TestRollback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "floods.sql")
	target := newTarget(t, dialect.SQLServer, translate.WKT, path, 0)
	ctx := context.Background()

	require.NoError(t, target.EnsureTable(ctx, floodmap.DepthTable))
	require.NoError(t, target.Begin(ctx))
	require.NoError(t, target.Rollback(ctx))
	require.NoError(t, target.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	require.Error(t, target.Begin(ctx))
}

func TestWriteRow_noGeometry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floods.sql")
	target := newTarget(t, dialect.SQLServer, translate.WKT, path, 0)
	defer target.Close()
	ctx := context.Background()

	require.NoError(t, target.Begin(ctx))
	require.Error(t, target.WriteRow(ctx, floodmap.Row{PolygonID: 1, DepthClass: 1}))
	require.NoError(t, target.Commit(ctx))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, string(b))
}
