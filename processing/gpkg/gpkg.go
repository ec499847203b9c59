// Package gpkg writes the flood tables to a GeoPackage file.
package gpkg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/gpkg"
	"github.com/rs/zerolog"

	"github.com/sfas-observations/floodload/dialect"
	"github.com/sfas-observations/floodload/floodmap"
	"github.com/sfas-observations/floodload/translate"
)

const (
	savepointName = "floodload_row"
	geometryField = "geometry"
)

// wgs84 is registered for SRID 4326, other SRIDs need an existing entry.
var wgs84 = gpkg.SpatialReferenceSystem{
	Name:                   "WGS 84 geodetic",
	ID:                     4326,
	Organization:           "EPSG",
	OrganizationCoordsysID: 4326,
	Definition: `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,` +
		`AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],` +
		`UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`,
	Description: "longitude/latitude coordinates in decimal degrees on the WGS 84 spheroid",
}

type Options struct {
	Path       string
	Overwrite  bool
	SRID       int
	Dialect    dialect.Dialect
	Translator translate.Translator
	Logger     zerolog.Logger
}

type Target struct {
	opts   Options
	handle *gpkg.Handle
	tx     *sql.Tx
	ext    *geom.Extent
	rows   int
}

// Open opens or creates the GeoPackage. With Overwrite an existing file is
// removed first, otherwise rows are appended.
func Open(opts Options) (*Target, error) {
	if opts.Overwrite {
		if err := os.Remove(opts.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("could not remove target file: %w", err)
		}
	}
	handle, err := gpkg.Open(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("error opening GeoPackage: %w", err)
	}
	if opts.SRID == int(wgs84.ID) {
		if err = handle.UpdateSRS(wgs84); err != nil {
			_ = handle.Close()
			return nil, fmt.Errorf("could not register SRS %d: %w", opts.SRID, err)
		}
	}
	return &Target{opts: opts, handle: handle}, nil
}

// EnsureTable creates the table in its own transaction and registers the
// feature table in gpkg_geometry_columns.
func (t *Target) EnsureTable(ctx context.Context, table floodmap.Table) error {
	tx, err := t.handle.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, t.opts.Dialect.CreateTable(table, t.opts.Translator.ColumnType())); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("error building table %s in target GeoPackage: %w", table, err)
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	if table != floodmap.MapTable {
		return nil
	}

	var registered int
	err = t.handle.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM gpkg_geometry_columns WHERE table_name = ?`, string(table)).Scan(&registered)
	if err != nil || registered > 0 {
		return err
	}
	err = t.handle.AddGeometryTable(gpkg.TableDescription{
		Name:          string(table),
		ShortName:     string(table),
		Description:   "flood depth polygons",
		GeometryField: geometryField,
		GeometryType:  geometryTypeFromString(t.opts.Translator.ColumnType()),
		SRS:           int32(t.opts.SRID),
		Z:             gpkg.Prohibited,
		M:             gpkg.Prohibited,
	})
	if err != nil {
		return fmt.Errorf("error adding geometry table in target GeoPackage: %w", err)
	}
	return nil
}

func (t *Target) Begin(ctx context.Context) error {
	if t.tx != nil {
		return errors.New("transaction already started")
	}
	tx, err := t.handle.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not start a transaction: %w", err)
	}
	t.tx = tx
	t.ext = nil
	t.rows = 0
	return nil
}

func (t *Target) WriteDepthClass(ctx context.Context, dc floodmap.DepthClass) error {
	query, args := t.opts.Dialect.InsertDepthClass(dc)
	return t.guarded(ctx, query, args)
}

func (t *Target) WriteRow(ctx context.Context, row floodmap.Row) error {
	value, err := t.opts.Translator.Value(row.Geometry)
	if err != nil {
		return fmt.Errorf("translating geometry: %w", err)
	}
	query, args := t.opts.Dialect.InsertRow(t.opts.Translator.Placeholder(), row, value)
	if err = t.guarded(ctx, query, args); err != nil {
		return err
	}
	t.rows++
	if sb, ok := value.(*gpkg.StandardBinary); ok {
		t.addExtent(row.PolygonID, sb.Geometry)
	}
	return nil
}

func (t *Target) addExtent(polygonID int64, g geom.Geometry) {
	if t.ext == nil {
		ext, err := geom.NewExtentFromGeometry(g)
		if err != nil {
			t.opts.Logger.Warn().Err(err).Int64("polygon_id", polygonID).Msg("failed to create new extent")
			return
		}
		t.ext = ext
		return
	}
	if err := t.ext.AddGeometry(g); err != nil {
		t.opts.Logger.Warn().Err(err).Int64("polygon_id", polygonID).Msg("failed to extend extent")
	}
}

func (t *Target) guarded(ctx context.Context, query string, args []any) error {
	if t.tx == nil {
		return errors.New("no transaction started")
	}
	if _, err := t.tx.ExecContext(ctx, t.opts.Dialect.Savepoint(savepointName)); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, t.opts.Dialect.RollbackToSavepoint(savepointName)); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback to savepoint: %w", rbErr))
		}
		return err
	}
	_, err := t.tx.ExecContext(ctx, t.opts.Dialect.ReleaseSavepoint(savepointName))
	return err
}

// Commit commits the rows and widens the layer extent in gpkg_contents.
func (t *Target) Commit(context.Context) error {
	if t.tx == nil {
		return errors.New("no transaction started")
	}
	err := t.tx.Commit()
	t.tx = nil
	if err != nil {
		return err
	}
	if t.ext != nil {
		if err = t.handle.UpdateGeometryExtent(string(floodmap.MapTable), t.ext); err != nil {
			return fmt.Errorf("failed to update extent: %w", err)
		}
	}
	t.opts.Logger.Info().Str("output", t.opts.Path).Int("rows", t.rows).Msg("GeoPackage written")
	return nil
}

func (t *Target) Rollback(context.Context) error {
	if t.tx == nil {
		return nil
	}
	err := t.tx.Rollback()
	t.tx = nil
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (t *Target) Close() error {
	if t.tx != nil {
		_ = t.tx.Rollback()
		t.tx = nil
	}
	return t.handle.Close()
}

// geometryTypeFromString returns the GeoPackage geometry type of a column type name.
func geometryTypeFromString(geometrytype string) gpkg.GeometryType {
	switch strings.ToUpper(geometrytype) {
	case "POLYGON":
		return gpkg.Polygon
	case "MULTIPOLYGON":
		return gpkg.MultiPolygon
	default:
		return gpkg.Geometry
	}
}
