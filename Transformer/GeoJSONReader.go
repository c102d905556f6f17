package Transformer

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ReadGeoJSONFootprints 读取 GeoJSON 要素集合中的建筑面
func ReadGeoJSONFootprints(path string) ([]RawFeature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return FeaturesFromCollection(fc), nil
}

// FeaturesFromCollection splits the collection into single polygons.
// MultiPolygon parts get "<id>-<n>" identities; closed line strings are
// promoted to polygons; everything else is ignored.
func FeaturesFromCollection(fc *geojson.FeatureCollection) []RawFeature {
	var out []RawFeature
	for i, f := range fc.Features {
		id := featureID(f, i)
		tags := map[string]interface{}(f.Properties)
		out = append(out, splitGeometry(id, f.Geometry, tags)...)
	}
	return out
}

func featureID(f *geojson.Feature, i int) string {
	if f.ID != nil {
		if s := fmt.Sprint(f.ID); s != "" {
			return s
		}
	}
	for _, k := range []string{"osm_id", "id", "@id"} {
		if s := tagString(f.Properties, k); s != "" {
			return s
		}
	}
	return fmt.Sprintf("feature-%d", i)
}

func splitGeometry(id string, g orb.Geometry, tags map[string]interface{}) []RawFeature {
	switch geom := g.(type) {
	case orb.Polygon:
		return []RawFeature{{ID: id, Polygon: geom, Tags: tags}}
	case orb.MultiPolygon:
		if len(geom) == 1 {
			return []RawFeature{{ID: id, Polygon: geom[0], Tags: tags}}
		}
		out := make([]RawFeature, 0, len(geom))
		for n, p := range geom {
			out = append(out, RawFeature{ID: fmt.Sprintf("%s-%d", id, n), Polygon: p, Tags: tags})
		}
		return out
	case orb.LineString:
		if len(geom) >= 4 && geom[0] == geom[len(geom)-1] {
			return []RawFeature{{ID: id, Polygon: orb.Polygon{orb.Ring(geom)}, Tags: tags}}
		}
	case orb.Collection:
		var out []RawFeature
		for n, sub := range geom {
			out = append(out, splitGeometry(fmt.Sprintf("%s-%d", id, n), sub, tags)...)
		}
		return out
	}
	return nil
}

// ReadAOI 读取研究区范围，取第一个面
func ReadAOI(path string) (orb.Polygon, error) {
	fs, err := ReadGeoJSONFootprints(path)
	if err != nil {
		return nil, err
	}
	if len(fs) == 0 {
		return nil, fmt.Errorf("%s contains no polygon", path)
	}
	return fs[0].Polygon, nil
}
