package dialect

import (
	"fmt"

	"github.com/sfas-observations/floodload/floodmap"
)

// sqlite is the dialect of the GeoPackage sink.
type sqlite struct{}

func (sqlite) Name() string { return GPKG }

func (sqlite) CreateTable(table floodmap.Table, geometryColumnType string) string {
	if table == floodmap.DepthTable {
		return `CREATE TABLE IF NOT EXISTS "` + string(table) + `"(` +
			`id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL, ` +
			`depth_class INTEGER NOT NULL UNIQUE, ` +
			`depth_min REAL, ` +
			`depth_max REAL);`
	}
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s"(`+
		`id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL, `+
		`polygon_id INTEGER NOT NULL, `+
		`time TEXT NOT NULL DEFAULT (strftime('%%Y-%%m-%%dT%%H:%%M:%%fZ', 'now')), `+
		`flooded INTEGER NOT NULL, `+
		`depth_class INTEGER NOT NULL, `+
		`geometry %s NOT NULL);`, table, geometryColumnType)
}

func (sqlite) InsertDepthClass(dc floodmap.DepthClass) (string, []any) {
	return `INSERT INTO "` + string(floodmap.DepthTable) + `"(depth_class, depth_min, depth_max) VALUES(?, ?, ?) ON CONFLICT(depth_class) DO NOTHING`,
		[]any{dc.Class, dc.Min, dc.Max}
}

func (sqlite) InsertRow(geometryExpr string, row floodmap.Row, geometryValue any) (string, []any) {
	return insertRow(geometryExpr, row, geometryValue)
}

func (sqlite) Savepoint(name string) string {
	return "SAVEPOINT " + name
}

func (sqlite) RollbackToSavepoint(name string) string {
	return "ROLLBACK TO SAVEPOINT " + name
}

func (sqlite) ReleaseSavepoint(name string) string {
	return "RELEASE SAVEPOINT " + name
}

func (sqlite) BatchSeparator() string { return "" }
