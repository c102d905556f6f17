package Transformer

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gitee.com/LJ_COOL/go-shp"
	"github.com/paulmach/orb"
)

// dbf 字段名最长 10 个字符，常见的 OSM 导出字段映射回标签名
var shapefileTagAliases = map[string]string{
	"levels":     "building:levels",
	"building_l": "building:levels",
	"b_levels":   "building:levels",
	"min_level":  "building:min_level",
	"building_m": "building:min_level",
	"addr_house": "addr:housenumber",
	"addr_hname": "addr:housename",
	"addr_stree": "addr:street",
	"addr_subur": "addr:suburb",
	"addr_postc": "addr:postcode",
	"addr_city":  "addr:city",
	"addr_provi": "addr:province",
	"addr_flats": "addr:flats",
}

var numericRegex = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

func trimTrailingZeros(input string) string {
	if !numericRegex.MatchString(input) || !strings.Contains(input, ".") {
		return input
	}
	parts := strings.SplitN(input, ".", 2)
	frac := strings.TrimRight(parts[1], "0")
	if frac == "" {
		return parts[0]
	}
	if len(frac) > 5 {
		frac = frac[:5]
	}
	return parts[0] + "." + frac
}

// SplitPoints 按 parts 将点集切分为环
func SplitPoints(points []shp.Point, parts []int32) [][]shp.Point {
	var rings [][]shp.Point
	for i, start := range parts {
		end := int32(len(points))
		if i < len(parts)-1 {
			end = parts[i+1]
		}
		rings = append(rings, points[start:end])
	}
	return rings
}

func IsClockwise(points []orb.Point) bool {
	sum := 0.0
	for i := 0; i < len(points)-1; i++ {
		p1 := points[i]
		p2 := points[i+1]
		sum += (p2[0] - p1[0]) * (p2[1] + p1[1])
	}
	return sum > 0
}

// splitParts groups ring indices into polygons: every outer ring starts a
// new group, the holes following it join that group. Holes before the
// first outer ring are dropped.
func splitParts(outer []bool) [][]int {
	var result [][]int
	for i, o := range outer {
		switch {
		case o:
			result = append(result, []int{i})
		case len(result) > 0:
			result[len(result)-1] = append(result[len(result)-1], i)
		}
	}
	return result
}

// readCPGEncoding 读取同名 .cpg，缺失时默认 GBK
func readCPGEncoding(shpfilePath string) string {
	base := strings.TrimSuffix(shpfilePath, filepath.Ext(shpfilePath))
	content, err := os.ReadFile(base + ".cpg")
	if err != nil {
		return "GBK"
	}
	return strings.TrimSpace(string(content))
}

func buildAttributes(n int, shape *shp.Reader, fields []shp.Field, cpg string) map[string]interface{} {
	enc := decoderFor(cpg)
	attrs := make(map[string]interface{}, len(fields))
	for k, f := range fields {
		value := trimTrailingZeros(strings.TrimSpace(decodeWith(enc, shape.ReadAttribute(n, k))))
		if value == "" {
			continue
		}
		name := strings.TrimRight(decodeWith(enc, f.String()), "\x00")
		if alias, ok := shapefileTagAliases[strings.ToLower(name)]; ok {
			name = alias
		}
		attrs[name] = value
	}
	return attrs
}

func polygonsOf(points []shp.Point, parts []int32) orb.MultiPolygon {
	rings := SplitPoints(points, parts)
	coords := make([]orb.Ring, len(rings))
	outer := make([]bool, len(rings))
	for i, r := range rings {
		ring := make(orb.Ring, len(r))
		for j, p := range r {
			ring[j] = orb.Point{p.X, p.Y}
		}
		coords[i] = ring
		// shapefile 外环顺时针
		outer[i] = IsClockwise(ring)
	}
	var mp orb.MultiPolygon
	for _, group := range splitParts(outer) {
		var poly orb.Polygon
		for _, i := range group {
			poly = append(poly, coords[i])
		}
		mp = append(mp, poly)
	}
	return mp
}

// ReadShapefileFootprints reads the polygon records of a shapefile. The
// record identity comes from an osm_id/id attribute, else the record number.
func ReadShapefileFootprints(path string) ([]RawFeature, error) {
	shape, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer shape.Close()

	fields := shape.Fields()
	cpg := readCPGEncoding(path)

	var out []RawFeature
	for shape.Next() {
		n, p := shape.Shape()
		var mp orb.MultiPolygon
		switch s := p.(type) {
		case *shp.Polygon:
			mp = polygonsOf(s.Points, s.Parts)
		case *shp.PolygonZ:
			mp = polygonsOf(s.Points, s.Parts)
		case *shp.PolygonM:
			mp = polygonsOf(s.Points, s.Parts)
		default:
			continue
		}
		attrs := buildAttributes(n, shape, fields, cpg)
		id := tagString(attrs, "osm_id")
		if id == "" {
			id = tagString(attrs, "id")
		}
		if id == "" {
			id = fmt.Sprintf("record-%d", n)
		}
		out = append(out, splitGeometry(id, mp, attrs)...)
	}
	if err := shape.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

// ReadFootprints 按扩展名选择读取器
func ReadFootprints(path string) ([]RawFeature, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return ReadShapefileFootprints(path)
	case ".geojson", ".json":
		return ReadGeoJSONFootprints(path)
	case ".zip":
		return readBundle(path)
	default:
		return nil, fmt.Errorf("unsupported footprint format %s", filepath.Ext(path))
	}
}
