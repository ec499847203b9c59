package floodmap

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb/geojson"
	"github.com/perimeterx/marshmallow"
)

type featureCollection struct {
	Features *[]json.RawMessage `json:"features"`
}

type rawFeature struct {
	Properties json.RawMessage `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// ReadFeatureCollection reads the GeoJSON FeatureCollection at path.
func ReadFeatureCollection(path string) ([]Feature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	features, err := DecodeFeatureCollection(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return features, nil
}

// DecodeFeatureCollection decodes a FeatureCollection. Only a broken document
// fails as a whole, a feature that cannot be decoded gets its Err set instead.
func DecodeFeatureCollection(r io.Reader) ([]Feature, error) {
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, err
	}
	if fc.Features == nil {
		return nil, errors.New(`missing key "features"`)
	}

	features := make([]Feature, len(*fc.Features))
	for i, raw := range *fc.Features {
		features[i] = decodeFeature(i+1, raw)
	}
	return features, nil
}

func decodeFeature(index int, data json.RawMessage) Feature {
	f := Feature{Index: index}

	var raw rawFeature
	if err := json.Unmarshal(data, &raw); err != nil {
		f.Err = fmt.Errorf("feature: %w", err)
		return f
	}

	if !isNull(raw.Properties) {
		extra, err := marshmallow.Unmarshal(raw.Properties, &f.Properties, marshmallow.WithExcludeKnownFieldsFromMap(true))
		if err != nil {
			f.Err = fmt.Errorf("properties: %w", err)
			return f
		}
		f.Extra = extra
	}

	if !isNull(raw.Geometry) {
		g, err := geojson.UnmarshalGeometry(raw.Geometry)
		if err != nil {
			f.Err = fmt.Errorf("geometry: %w", err)
			return f
		}
		f.Geometry = g.Geometry()
	}
	return f
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
