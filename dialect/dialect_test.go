package dialect

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfas-observations/floodload/floodmap"
)

func TestNew(t *testing.T) {
	for _, name := range Names() {
		d, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, name, d.Name())
	}
	_, err := New("oracle")
	require.Error(t, err)
}

func TestCreateTable(t *testing.T) {
	tests := []struct {
		dialect  string
		table    floodmap.Table
		contains []string
	}{
		{
			dialect:  Postgres,
			table:    floodmap.DepthTable,
			contains: []string{"CREATE TABLE IF NOT EXISTS Flood_Depth_Data", "depth_class INTEGER NOT NULL UNIQUE", "depth_min DOUBLE PRECISION"},
		},
		{
			dialect:  Postgres,
			table:    floodmap.MapTable,
			contains: []string{"CREATE TABLE IF NOT EXISTS Flood_Map_Data", "SERIAL PRIMARY KEY", "TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()", "geometry GEOMETRY(Geometry, 4326) NOT NULL"},
		},
		{
			dialect:  SQLServer,
			table:    floodmap.DepthTable,
			contains: []string{"OBJECT_ID(N'Flood_Depth_Data')", "CREATE TABLE Flood_Depth_Data", "IDENTITY(1,1)", "depth_max FLOAT"},
		},
		{
			dialect:  SQLServer,
			table:    floodmap.MapTable,
			contains: []string{"OBJECT_ID(N'Flood_Map_Data')", "DATETIMEOFFSET NOT NULL DEFAULT SYSDATETIMEOFFSET()", "geometry GEOMETRY(Geometry, 4326) NOT NULL", "END"},
		},
		{
			dialect:  GPKG,
			table:    floodmap.DepthTable,
			contains: []string{`CREATE TABLE IF NOT EXISTS "Flood_Depth_Data"`, "AUTOINCREMENT", "depth_min REAL"},
		},
		{
			dialect:  GPKG,
			table:    floodmap.MapTable,
			contains: []string{`CREATE TABLE IF NOT EXISTS "Flood_Map_Data"`, "strftime('%Y-%m-%dT%H:%M:%fZ', 'now')", "geometry GEOMETRY(Geometry, 4326) NOT NULL"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.dialect+"/"+string(tt.table), func(t *testing.T) {
			d, err := New(tt.dialect)
			require.NoError(t, err)
			got := d.CreateTable(tt.table, "GEOMETRY(Geometry, 4326)")
			for _, c := range tt.contains {
				assert.Contains(t, got, c)
			}
			assert.NotContains(t, got, "@")
		})
	}
}

func TestInsertDepthClass(t *testing.T) {
	dc := floodmap.DepthClass{Class: 2, Min: floodmap.NewFloat(0.5), Max: floodmap.Float{}}

	pg, _ := New(Postgres)
	query, args := pg.InsertDepthClass(dc)
	assert.Equal(t, "INSERT INTO Flood_Depth_Data (depth_class, depth_min, depth_max) VALUES (?, ?, ?) ON CONFLICT (depth_class) DO NOTHING", query)
	assert.Equal(t, []any{int64(2), floodmap.NewFloat(0.5), floodmap.Float{}}, args)

	ms, _ := New(SQLServer)
	query, args = ms.InsertDepthClass(dc)
	assert.Equal(t, "IF NOT EXISTS (SELECT 1 FROM Flood_Depth_Data WHERE depth_class = ?) INSERT INTO Flood_Depth_Data (depth_class, depth_min, depth_max) VALUES (?, ?, ?)", query)
	assert.Len(t, args, 4)

	inlined, err := Inline(query, args...)
	require.NoError(t, err)
	assert.Equal(t, "IF NOT EXISTS (SELECT 1 FROM Flood_Depth_Data WHERE depth_class = 2) INSERT INTO Flood_Depth_Data (depth_class, depth_min, depth_max) VALUES (2, 0.5, NULL)", inlined)
}

func TestInsertRow(t *testing.T) {
	row := floodmap.Row{PolygonID: 1, Flooded: 1, DepthClass: 1, Geometry: orb.Polygon{{{0, 0}, {0, 1}, {1, 1}, {0, 0}}}}
	for _, name := range Names() {
		d, _ := New(name)
		query, args := d.InsertRow("geometry::STGeomFromText(?, 4326)", row, "POLYGON((0 0,0 1,1 1,0 0))")
		assert.Contains(t, query, "(flooded, depth_class, polygon_id, geometry) VALUES (?, ?, ?, geometry::STGeomFromText(?, 4326))")
		assert.Equal(t, []any{int64(1), int64(1), int64(1), "POLYGON((0 0,0 1,1 1,0 0))"}, args)
	}

	ms, _ := New(SQLServer)
	query, args := ms.InsertRow("geometry::STGeomFromText(?, 4326)", row, "POLYGON((0 0,0 1,1 1,0 0))")
	inlined, err := Inline(query, args...)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO Flood_Map_Data (flooded, depth_class, polygon_id, geometry) VALUES (1, 1, 1, geometry::STGeomFromText('POLYGON((0 0,0 1,1 1,0 0))', 4326))", inlined)
}

func TestInline(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		args    []any
		want    string
		wantErr bool
	}{
		{name: "no args", query: "SELECT 1", want: "SELECT 1"},
		{name: "numbers", query: "VALUES (?, ?, ?, ?)", args: []any{1, int64(-2), 0.25, int32(7)}, want: "VALUES (1, -2, 0.25, 7)"},
		{name: "large float is not exponent", query: "?", args: []any{1e21}, want: "1000000000000000000000"},
		{name: "quotes are doubled", query: "VALUES (?)", args: []any{"it's"}, want: "VALUES ('it''s')"},
		{name: "question mark in value", query: "VALUES (?, ?)", args: []any{"?", 1}, want: "VALUES ('?', 1)"},
		{name: "question mark in literal", query: "SELECT '?' WHERE x = ?", args: []any{3}, want: "SELECT '?' WHERE x = 3"},
		{name: "null", query: "VALUES (?, ?)", args: []any{nil, floodmap.Int{}}, want: "VALUES (NULL, NULL)"},
		{name: "valuer", query: "VALUES (?, ?)", args: []any{floodmap.NewInt(4), floodmap.NewFloat(1.5)}, want: "VALUES (4, 1.5)"},
		{name: "bool", query: "VALUES (?, ?)", args: []any{true, false}, want: "VALUES (1, 0)"},
		{name: "too few", query: "VALUES (?, ?)", args: []any{1}, wantErr: true},
		{name: "too many", query: "VALUES (?)", args: []any{1, 2}, wantErr: true},
		{name: "unsupported", query: "VALUES (?)", args: []any{[]byte("x")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Inline(tt.query, tt.args...)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBatchSeparatorAndRelease(t *testing.T) {
	pg, _ := New(Postgres)
	ms, _ := New(SQLServer)
	gp, _ := New(GPKG)

	assert.Equal(t, "", pg.BatchSeparator())
	assert.Equal(t, "GO", ms.BatchSeparator())
	assert.Equal(t, "", gp.BatchSeparator())

	assert.Equal(t, "RELEASE SAVEPOINT sp1", pg.ReleaseSavepoint("sp1"))
	assert.Equal(t, "", ms.ReleaseSavepoint("sp1"))
	assert.Equal(t, "RELEASE SAVEPOINT sp1", gp.ReleaseSavepoint("sp1"))

	assert.Equal(t, "SAVEPOINT sp1", pg.Savepoint("sp1"))
	assert.Equal(t, "ROLLBACK TO SAVEPOINT sp1", pg.RollbackToSavepoint("sp1"))
	assert.Equal(t, "SAVE TRANSACTION sp1", ms.Savepoint("sp1"))
	assert.Equal(t, "ROLLBACK TRANSACTION sp1", ms.RollbackToSavepoint("sp1"))
	assert.Equal(t, "SAVEPOINT sp1", gp.Savepoint("sp1"))
	assert.Equal(t, "ROLLBACK TO SAVEPOINT sp1", gp.RollbackToSavepoint("sp1"))
}
