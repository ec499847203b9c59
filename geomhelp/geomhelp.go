package geomhelp

import (
	"fmt"
	"math"

	"github.com/go-spatial/geom"
	"github.com/muesli/reflow/truncate"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// https://en.wikipedia.org/wiki/Shoelace_formula
func Shoelace(pts [][2]float64) float64 {
	sum := 0.
	if len(pts) == 0 {
		return 0.
	}

	p0 := pts[len(pts)-1]
	for _, p1 := range pts {
		sum += p0[1]*p1[0] - p0[0]*p1[1]
		p0 = p1
	}
	return math.Abs(sum / 2)
}

// PolygonArea is the planar area of the exterior minus the interiors,
// in squared coordinate units.
func PolygonArea(p orb.Polygon) float64 {
	if len(p) == 0 {
		return 0.
	}
	interior := .0
	for _, r := range p[1:] {
		interior += Shoelace(points(r))
	}
	return Shoelace(points(p[0])) - interior
}

// IsDegenerate reports polygons (or multipolygon members) without area.
func IsDegenerate(g orb.Geometry) bool {
	switch v := g.(type) {
	case orb.Polygon:
		return PolygonArea(v) == 0
	case orb.MultiPolygon:
		if len(v) == 0 {
			return true
		}
		for _, p := range v {
			if PolygonArea(p) == 0 {
				return true
			}
		}
	}
	return false
}

// ToGeom converts an orb geometry into its go-spatial counterpart.
//
//nolint:cyclop
func ToGeom(g orb.Geometry) (geom.Geometry, error) {
	switch v := g.(type) {
	case orb.Point:
		return geom.Point(v), nil
	case orb.MultiPoint:
		return geom.MultiPoint(points(v)), nil
	case orb.LineString:
		return geom.LineString(points(v)), nil
	case orb.MultiLineString:
		mls := make(geom.MultiLineString, len(v))
		for i := range v {
			mls[i] = points(v[i])
		}
		return mls, nil
	case orb.Ring:
		return polygon(orb.Polygon{v}), nil
	case orb.Polygon:
		return polygon(v), nil
	case orb.MultiPolygon:
		mp := make(geom.MultiPolygon, len(v))
		for i := range v {
			mp[i] = polygon(v[i])
		}
		return mp, nil
	case orb.Bound:
		return polygon(v.ToPolygon()), nil
	case orb.Collection:
		c := make(geom.Collection, 0, len(v))
		for _, member := range v {
			converted, err := ToGeom(member)
			if err != nil {
				return nil, err
			}
			c = append(c, converted)
		}
		return c, nil
	case nil:
		return nil, fmt.Errorf("no geometry")
	default:
		return nil, fmt.Errorf("unsupported geometry type %T", g)
	}
}

// WKTPreview renders g as WKT, cut to maxLen characters for log output.
// A maxLen of 0 means no truncation.
func WKTPreview(g orb.Geometry, maxLen uint) string {
	if g == nil {
		return ""
	}
	s := wkt.MarshalString(g)
	if maxLen == 0 {
		return s
	}
	return truncate.StringWithTail(s, maxLen, "...")
}

func polygon(p orb.Polygon) geom.Polygon {
	rings := make(geom.Polygon, len(p))
	for i := range p {
		rings[i] = points(p[i])
	}
	return rings
}

func points[S ~[]orb.Point](ps S) [][2]float64 {
	pts := make([][2]float64, len(ps))
	for i, p := range ps {
		pts[i] = p
	}
	return pts
}
