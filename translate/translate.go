// Package translate turns decoded GeoJSON geometries into the value and SQL
// constructor a destination expects.
package translate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-spatial/geom/encoding/gpkg"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"

	"github.com/sfas-observations/floodload/geomhelp"
)

var ErrUnsupportedFormat = errors.New("unsupported geometry format")

// Format is the serialization handed to the destination.
type Format string

const (
	GeoJSON   Format = "geojson"
	WKT       Format = "wkt"
	Geography Format = "geography"
	GPKG      Format = "gpkg"
)

// Translator serializes a geometry for one destination.
type Translator interface {
	Format() Format
	// ColumnType is the geometry column type used in CREATE TABLE.
	ColumnType() string
	// Placeholder is the SQL expression around a single bind parameter.
	Placeholder() string
	Value(g orb.Geometry) (any, error)
}

// DefaultFormat returns the format used for a dialect when none is configured.
func DefaultFormat(dialect string) (Format, error) {
	switch dialect {
	case "postgres":
		return GeoJSON, nil
	case "sqlserver":
		return WKT, nil
	case "gpkg":
		return GPKG, nil
	}
	return "", fmt.Errorf("%w: no default for dialect %q", ErrUnsupportedFormat, dialect)
}

// ParseFormat parses a user supplied format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case GeoJSON, WKT, Geography, GPKG:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// New selects the translator for a dialect and format pair.
func New(dialect string, format Format, srid int) (Translator, error) {
	switch {
	case dialect == "postgres" && format == GeoJSON:
		return postgresGeoJSON{srid: srid}, nil
	case dialect == "postgres" && format == WKT:
		return postgresWKT{srid: srid}, nil
	case dialect == "sqlserver" && format == WKT:
		return sqlServerText{srid: srid, kind: "geometry"}, nil
	case dialect == "sqlserver" && format == Geography:
		return sqlServerText{srid: srid, kind: "geography"}, nil
	case dialect == "gpkg" && format == GPKG:
		return geoPackage{srid: srid}, nil
	}
	return nil, fmt.Errorf("%w: %s for dialect %s", ErrUnsupportedFormat, format, dialect)
}

// MarshalWKT renders g as WKT, e.g. POLYGON((0 0,0 1,1 1,0 0)).
func MarshalWKT(g orb.Geometry) (string, error) {
	if g == nil {
		return "", errors.New("no geometry")
	}
	return wkt.MarshalString(g), nil
}

// UnmarshalWKT parses WKT produced by MarshalWKT.
func UnmarshalWKT(s string) (orb.Geometry, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, fmt.Errorf("parsing wkt: %w", err)
	}
	return g, nil
}

type postgresGeoJSON struct {
	srid int
}

func (postgresGeoJSON) Format() Format { return GeoJSON }

func (t postgresGeoJSON) ColumnType() string {
	return fmt.Sprintf("GEOMETRY(Geometry, %d)", t.srid)
}

func (t postgresGeoJSON) Placeholder() string {
	return fmt.Sprintf("ST_SetSRID(ST_GeomFromGeoJSON(?::text), %d)", t.srid)
}

func (postgresGeoJSON) Value(g orb.Geometry) (any, error) {
	if g == nil {
		return nil, errors.New("no geometry")
	}
	b, err := geojson.NewGeometry(g).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding geojson: %w", err)
	}
	return string(b), nil
}

type postgresWKT struct {
	srid int
}

func (postgresWKT) Format() Format { return WKT }

func (t postgresWKT) ColumnType() string {
	return fmt.Sprintf("GEOMETRY(Geometry, %d)", t.srid)
}

func (t postgresWKT) Placeholder() string {
	return fmt.Sprintf("ST_GeomFromText(?, %d)", t.srid)
}

func (postgresWKT) Value(g orb.Geometry) (any, error) {
	return MarshalWKT(g)
}

// sqlServerText builds geometry or geography instances from WKT.
type sqlServerText struct {
	srid int
	kind string
}

func (t sqlServerText) Format() Format {
	if t.kind == "geography" {
		return Geography
	}
	return WKT
}

func (t sqlServerText) ColumnType() string {
	return strings.ToUpper(t.kind)
}

func (t sqlServerText) Placeholder() string {
	return fmt.Sprintf("%s::STGeomFromText(?, %d)", t.kind, t.srid)
}

func (sqlServerText) Value(g orb.Geometry) (any, error) {
	return MarshalWKT(g)
}

type geoPackage struct {
	srid int
}

func (geoPackage) Format() Format { return GPKG }

// ColumnType is the GeoPackage geometry type name registered in
// gpkg_geometry_columns.
func (geoPackage) ColumnType() string { return "GEOMETRY" }

func (geoPackage) Placeholder() string { return "?" }

func (t geoPackage) Value(g orb.Geometry) (any, error) {
	converted, err := geomhelp.ToGeom(g)
	if err != nil {
		return nil, err
	}
	sb, err := gpkg.NewBinary(int32(t.srid), converted)
	if err != nil {
		return nil, fmt.Errorf("could not create a binary geometry: %w", err)
	}
	return sb, nil
}
