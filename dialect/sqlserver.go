package dialect

import (
	"fmt"

	"github.com/sfas-observations/floodload/floodmap"
)

type sqlServer struct{}

func (sqlServer) Name() string { return SQLServer }

func (sqlServer) CreateTable(table floodmap.Table, geometryColumnType string) string {
	columns := `        depth_class INTEGER NOT NULL UNIQUE,
        depth_min FLOAT,
        depth_max FLOAT`
	if table == floodmap.MapTable {
		columns = fmt.Sprintf(`        polygon_id INTEGER NOT NULL,
        time DATETIMEOFFSET NOT NULL DEFAULT SYSDATETIMEOFFSET(),
        flooded INTEGER NOT NULL,
        depth_class INTEGER NOT NULL,
        geometry %s NOT NULL`, geometryColumnType)
	}
	return fmt.Sprintf(`IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'%[1]s') AND type in (N'U'))
BEGIN
    CREATE TABLE %[1]s (
        id INT IDENTITY(1,1) PRIMARY KEY NOT NULL,
%[2]s
    );
END`, table, columns)
}

func (sqlServer) InsertDepthClass(dc floodmap.DepthClass) (string, []any) {
	query := fmt.Sprintf(`IF NOT EXISTS (SELECT 1 FROM %[1]s WHERE depth_class = ?) INSERT INTO %[1]s (depth_class, depth_min, depth_max) VALUES (?, ?, ?)`,
		floodmap.DepthTable)
	return query, []any{dc.Class, dc.Class, dc.Min, dc.Max}
}

func (sqlServer) InsertRow(geometryExpr string, row floodmap.Row, geometryValue any) (string, []any) {
	return insertRow(geometryExpr, row, geometryValue)
}

func (sqlServer) Savepoint(name string) string {
	return "SAVE TRANSACTION " + name
}

func (sqlServer) RollbackToSavepoint(name string) string {
	return "ROLLBACK TRANSACTION " + name
}

// ReleaseSavepoint is empty, SQL Server savepoints end with the transaction.
func (sqlServer) ReleaseSavepoint(string) string { return "" }

func (sqlServer) BatchSeparator() string { return "GO" }
