// Package floodmap holds the flood-depth data model: the features read from a
// GeoJSON FeatureCollection, the depth classes derived from them and the rows
// written per feature.
package floodmap

import (
	"errors"

	"github.com/paulmach/orb"
)

var (
	ErrNoGeometry         = errors.New("feature has no geometry")
	ErrNoDepthClass       = errors.New("feature has no depth_class")
	ErrDepthClassConflict = errors.New("conflicting depth class bounds")
)

// Table names one of the two destination tables.
type Table string

const (
	DepthTable Table = "Flood_Depth_Data"
	MapTable   Table = "Flood_Map_Data"
)

// Tables returns the destination tables in creation order.
func Tables() []Table {
	return []Table{DepthTable, MapTable}
}

// Properties are the feature properties the loader understands.
type Properties struct {
	Flooded    Int   `json:"flooded"`
	DepthClass Int   `json:"depth_class"`
	DepthMin   Float `json:"depth_min_m"`
	DepthMax   Float `json:"depth_max_m"`
	PolygonID  Int   `json:"PolygonID"`
}

// Feature is one record of the input FeatureCollection.
type Feature struct {
	// Index is the 1-based position in the collection.
	Index      int
	Properties Properties
	// Extra holds the properties not listed in Properties.
	Extra    map[string]any
	Geometry orb.Geometry
	// Err is set when the properties or geometry could not be decoded.
	Err error
}

// DepthClass is a deduplicated depth bucket.
type DepthClass struct {
	Class int64
	Min   Float
	Max   Float
}

// Row is what gets persisted for a single feature.
type Row struct {
	PolygonID  int64
	Flooded    int64
	DepthClass int64
	Geometry   orb.Geometry
}
