package dialect

import (
	"fmt"

	"github.com/sfas-observations/floodload/floodmap"
)

type postgres struct{}

func (postgres) Name() string { return Postgres }

func (postgres) CreateTable(table floodmap.Table, geometryColumnType string) string {
	if table == floodmap.DepthTable {
		return `CREATE TABLE IF NOT EXISTS ` + string(table) + ` (
    id SERIAL PRIMARY KEY NOT NULL,
    depth_class INTEGER NOT NULL UNIQUE,
    depth_min DOUBLE PRECISION,
    depth_max DOUBLE PRECISION
)`
	}
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id SERIAL PRIMARY KEY NOT NULL,
    polygon_id INTEGER NOT NULL,
    time TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    flooded INTEGER NOT NULL,
    depth_class INTEGER NOT NULL,
    geometry %s NOT NULL
)`, table, geometryColumnType)
}

func (postgres) InsertDepthClass(dc floodmap.DepthClass) (string, []any) {
	return `INSERT INTO ` + string(floodmap.DepthTable) + ` (depth_class, depth_min, depth_max) VALUES (?, ?, ?) ON CONFLICT (depth_class) DO NOTHING`,
		[]any{dc.Class, dc.Min, dc.Max}
}

func (postgres) InsertRow(geometryExpr string, row floodmap.Row, geometryValue any) (string, []any) {
	return insertRow(geometryExpr, row, geometryValue)
}

func (postgres) Savepoint(name string) string {
	return "SAVEPOINT " + name
}

func (postgres) RollbackToSavepoint(name string) string {
	return "ROLLBACK TO SAVEPOINT " + name
}

func (postgres) ReleaseSavepoint(name string) string {
	return "RELEASE SAVEPOINT " + name
}

func (postgres) BatchSeparator() string { return "" }
