package Transformer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/GrainArc/CityLoD1/dem"
	"github.com/GrainArc/CityLoD1/keyer"
	"github.com/GrainArc/CityLoD1/lod1"
	"github.com/paulmach/orb"
)

// RawFeature 读取后的原始要素：单个面和 OSM 标签
type RawFeature struct {
	ID      string
	Polygon orb.Polygon
	Tags    map[string]interface{}
}

// HeightRules 高度推算参数
type HeightRules struct {
	Precision           int
	StoreyHeight        float64
	HeightOffset        float64
	RoofStructureHeight float64
}

var addressTags = []string{
	"addr:flats", "addr:housenumber", "addr:housename", "addr:street",
	"addr:suburb", "addr:postcode", "addr:city", "addr:province",
}

// KindOf reads the building tag: bridge and roof are suspended structures,
// anything else stands on the ground.
func KindOf(tags map[string]interface{}) lod1.Kind {
	switch strings.ToLower(tagString(tags, "building")) {
	case "bridge":
		return lod1.KindBridge
	case "roof":
		return lod1.KindRoofStructure
	default:
		return lod1.KindBuilding
	}
}

func tagString(tags map[string]interface{}, key string) string {
	v, ok := tags[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// tagFloat parses a numeric tag; "3;4" style values take the first number.
func tagFloat(tags map[string]interface{}, key string) (float64, bool) {
	s := tagString(tags, key)
	if s == "" {
		return 0, false
	}
	s = strings.TrimSpace(strings.SplitN(s, ";", 2)[0])
	s = strings.TrimSpace(strings.TrimSuffix(s, "m"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Attributes 透传属性：OSM 标签加 osm_ 前缀，地址标签合并为 osm_address
func Attributes(f RawFeature, kind lod1.Kind) map[string]interface{} {
	attrs := map[string]interface{}{"osm_id": f.ID}
	addr := map[string]bool{}
	for _, k := range addressTags {
		addr[k] = true
	}
	for k, v := range f.Tags {
		if v == nil || addr[k] {
			continue
		}
		attrs["osm_"+k] = v
	}
	if kind.Grounded() {
		var parts []string
		for _, k := range addressTags {
			if s := tagString(f.Tags, k); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			attrs["osm_address"] = strings.Join(parts, " ")
		}
	}
	return attrs
}

// BuildFootprint orients the rings and derives the heights of one feature.
// The ground height is sampled at a representative interior point; the
// base of a grounded building is the lowest ground under its exterior
// vertices so the walls do not float above sloping terrain.
func BuildFootprint(f RawFeature, sampler dem.Sampler, rules HeightRules) (*lod1.Footprint, error) {
	if len(f.Polygon) == 0 {
		return nil, fmt.Errorf("feature %s has no rings: %w", f.ID, lod1.ErrMalformedGeometry)
	}
	ext, err := lod1.NewExteriorRing(f.Polygon[0], rules.Precision)
	if err != nil {
		return nil, fmt.Errorf("exterior ring: %w", err)
	}
	fp := &lod1.Footprint{ID: f.ID, Kind: KindOf(f.Tags), Exterior: ext}
	for i, r := range f.Polygon[1:] {
		ir, err := lod1.NewInteriorRing(r, rules.Precision)
		if err != nil {
			return nil, fmt.Errorf("interior ring %d: %w", i, err)
		}
		fp.Interiors = append(fp.Interiors, ir)
	}
	fp.Attributes = Attributes(f, fp.Kind)

	rep, err := lod1.InteriorPoint(fp.Exterior, fp.Interiors)
	if err != nil {
		return nil, err
	}
	ground, err := sampler.Sample(rep[0], rep[1])
	if err != nil {
		return nil, fmt.Errorf("ground at representative point: %w", err)
	}
	fp.GroundHeight = lod1.Round(ground, 2)

	levels, hasLevels := tagFloat(f.Tags, "building:levels")
	switch fp.Kind {
	case lod1.KindBridge:
		if !hasLevels {
			return nil, fmt.Errorf("bridge %s has no building:levels: %w", f.ID, lod1.ErrMissingAttribute)
		}
		if mh, ok := tagFloat(f.Tags, "min_height"); ok {
			fp.BaseHeight = mh + fp.GroundHeight
		} else if ml, ok := tagFloat(f.Tags, "building:min_level"); ok {
			fp.BaseHeight = ml*rules.StoreyHeight + fp.GroundHeight
		} else {
			return nil, fmt.Errorf("bridge %s has neither min_height nor building:min_level: %w", f.ID, lod1.ErrMissingAttribute)
		}
		fp.RoofHeight = levels*rules.StoreyHeight + fp.GroundHeight

	case lod1.KindRoofStructure:
		if !hasLevels {
			return nil, fmt.Errorf("roof %s has no building:levels: %w", f.ID, lod1.ErrMissingAttribute)
		}
		fp.BaseHeight = levels*rules.StoreyHeight + fp.GroundHeight
		fp.RoofHeight = fp.BaseHeight + rules.RoofStructureHeight

	default:
		if h, ok := tagFloat(f.Tags, "height"); ok {
			fp.RoofHeight = h + fp.GroundHeight
		} else if hasLevels {
			fp.RoofHeight = levels*rules.StoreyHeight + rules.HeightOffset + fp.GroundHeight
		} else {
			return nil, fmt.Errorf("building %s has neither height nor building:levels: %w", f.ID, lod1.ErrMissingAttribute)
		}
		zs := make([]lod1.Vertex, 0, fp.Exterior.Len())
		for _, p := range fp.Exterior.Points() {
			z, err := sampler.Sample(p[0], p[1])
			if err != nil {
				return nil, fmt.Errorf("ground at vertex (%.3f, %.3f): %w", p[0], p[1], err)
			}
			zs = append(zs, lod1.Vertex{X: p[0], Y: p[1], Z: z})
		}
		minZ, _ := keyer.MinZ(zs)
		fp.BaseHeight = lod1.Round(minZ, 2)
	}
	fp.BaseHeight = lod1.Round(fp.BaseHeight, 2)
	fp.RoofHeight = lod1.Round(fp.RoofHeight, 2)
	if fp.RoofHeight <= fp.BaseHeight {
		return nil, fmt.Errorf("roof %.2f not above base %.2f: %w", fp.RoofHeight, fp.BaseHeight, lod1.ErrBreakpointBelowBase)
	}
	return fp, nil
}
