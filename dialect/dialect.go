// Package dialect renders the SQL text of the flood tables for each
// destination database.
package dialect

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	"github.com/sfas-observations/floodload/floodmap"
)

const (
	Postgres  = "postgres"
	SQLServer = "sqlserver"
	GPKG      = "gpkg"
)

// Dialect renders statements with '?' bind parameters.
type Dialect interface {
	Name() string
	// CreateTable is an idempotent CREATE for one of the flood tables.
	CreateTable(table floodmap.Table, geometryColumnType string) string
	// InsertDepthClass is a no-op when the depth class already exists.
	InsertDepthClass(dc floodmap.DepthClass) (string, []any)
	// InsertRow inserts a feature row, geometryExpr wraps the geometry parameter.
	InsertRow(geometryExpr string, row floodmap.Row, geometryValue any) (string, []any)
	Savepoint(name string) string
	RollbackToSavepoint(name string) string
	// ReleaseSavepoint is empty when the database has no RELEASE.
	ReleaseSavepoint(name string) string
	// BatchSeparator is the script batch terminator, empty when there is none.
	BatchSeparator() string
}

// New returns the dialect registered under name.
func New(name string) (Dialect, error) {
	switch name {
	case Postgres:
		return postgres{}, nil
	case SQLServer:
		return sqlServer{}, nil
	case GPKG:
		return sqlite{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", name)
	}
}

// Names lists the supported dialects.
func Names() []string {
	return []string{Postgres, SQLServer, GPKG}
}

func insertRow(geometryExpr string, row floodmap.Row, geometryValue any) (string, []any) {
	query := `INSERT INTO ` + string(floodmap.MapTable) + ` (flooded, depth_class, polygon_id, geometry) VALUES (?, ?, ?, ` + geometryExpr + `)`
	return query, []any{row.Flooded, row.DepthClass, row.PolygonID, geometryValue}
}

// Inline substitutes the bind parameters of query with SQL literals so the
// statement can be written to a script. Question marks inside quoted
// literals are left alone.
func Inline(query string, args ...any) (string, error) {
	var sb strings.Builder
	next := 0
	quoted := false
	for _, r := range query {
		switch {
		case r == '\'':
			quoted = !quoted
		case r == '?' && !quoted:
			if next >= len(args) {
				return "", fmt.Errorf("not enough arguments for %q: have %d", query, len(args))
			}
			lit, err := literal(args[next])
			if err != nil {
				return "", fmt.Errorf("argument %d: %w", next+1, err)
			}
			sb.WriteString(lit)
			next++
			continue
		}
		sb.WriteRune(r)
	}
	if next != len(args) {
		return "", fmt.Errorf("too many arguments for %q: have %d, used %d", query, len(args), next)
	}
	return sb.String(), nil
}

func literal(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "NULL", nil
	case driver.Valuer:
		dv, err := v.Value()
		if err != nil {
			return "", err
		}
		if _, ok := dv.(driver.Valuer); ok {
			return "", fmt.Errorf("valuer %T returned another valuer", v)
		}
		return literal(dv)
	case string:
		return `'` + strings.ReplaceAll(v, `'`, `''`) + `'`, nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	default:
		return "", fmt.Errorf("no SQL literal for %T", v)
	}
}
