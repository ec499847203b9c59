package floodmap

// NewRow resolves the row for a feature. polygon_id falls back to the
// 1-based feature index and flooded to 0.
func NewRow(f Feature) (Row, error) {
	if f.Err != nil {
		return Row{}, f.Err
	}
	if f.Geometry == nil {
		return Row{}, ErrNoGeometry
	}
	if !f.Properties.DepthClass.Valid {
		return Row{}, ErrNoDepthClass
	}
	return Row{
		PolygonID:  f.Properties.PolygonID.Or(int64(f.Index)),
		Flooded:    f.Properties.Flooded.Or(0),
		DepthClass: f.Properties.DepthClass.Int64,
		Geometry:   f.Geometry,
	}, nil
}
