package cityjson

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/GrainArc/CityLoD1/Tin"
	"github.com/GrainArc/CityLoD1/extrude"
	"github.com/GrainArc/CityLoD1/lod1"
	"github.com/GrainArc/CityLoD1/scene"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"
)

func box(t *testing.T) lod1.Shell {
	t.Helper()
	ext, err := lod1.NewExteriorRing(orb.Ring{{1000, 2000}, {1004, 2000}, {1004, 2003}, {1000, 2003}, {1000, 2000}}, 3)
	if err != nil {
		t.Fatal(err)
	}
	fp := &lod1.Footprint{ID: "w1", Kind: lod1.KindBuilding, Exterior: ext, BaseHeight: 10, RoofHeight: 12.5}
	ps, err := extrude.Uniform(fp)
	if err != nil {
		t.Fatal(err)
	}
	sh, err := extrude.Extrude(fp, ps)
	if err != nil {
		t.Fatal(err)
	}
	return sh
}

func testScene(t *testing.T) *scene.Scene {
	t.Helper()
	asm := scene.NewAssembler()
	terrain := []lod1.Vertex{{X: 990, Y: 1990, Z: 9.5}, {X: 1010, Y: 1990, Z: 9.75}, {X: 1010, Y: 2010, Z: 10}, {X: 990, Y: 2010, Z: 9.8}}
	if err := asm.AppendTerrain("terrain01", [][3]int{{0, 1, 2}, {0, 2, 3}}, terrain); err != nil {
		t.Fatal(err)
	}
	attrs := map[string]interface{}{"osm_id": "w1", "osm_name": nil, "osm_height": "2.5"}
	if err := asm.AppendSolid("w1", "Building", attrs, box(t)); err != nil {
		t.Fatal(err)
	}
	return asm.Finalize()
}

func TestEncode(t *testing.T) {
	sc := testScene(t)
	meta := Meta{
		Title:           "test",
		ReferenceSystem: "https://www.opengis.net/def/crs/EPSG/0/7415",
		Extent:          orb.Bound{Min: orb.Point{990, 1990}, Max: orb.Point{1010, 2010}},
		Margin:          250,
		Precision:       3,
	}
	var buf bytes.Buffer
	if err := Encode(&buf, sc, meta); err != nil {
		t.Fatal(err)
	}
	doc, err := Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Version != "1.1" || doc.Transform.Scale != [3]float64{0.001, 0.001, 0.001} {
		t.Fatalf("unexpected header %+v", doc.Transform)
	}
	if doc.Transform.Translate != [3]float64{990, 1990, 9.5} {
		t.Fatalf("translate = %v", doc.Transform.Translate)
	}
	if len(doc.Vertices) != len(sc.Vertices) {
		t.Fatalf("%d vertices, scene has %d", len(doc.Vertices), len(sc.Vertices))
	}
	for i, v := range sc.Vertices {
		got := doc.Dequantize(i)
		if math.Abs(got.X-v.X) > 1e-6 || math.Abs(got.Y-v.Y) > 1e-6 || math.Abs(got.Z-v.Z) > 1e-6 {
			t.Fatalf("vertex %d: %v, want %v", i, got, v)
		}
	}
	want := [6]float64{740, 1740, 9.5, 1260, 2260, 12.5}
	if doc.Metadata.GeographicalExtent != want {
		t.Fatalf("extent = %v, want %v", doc.Metadata.GeographicalExtent, want)
	}

	b := doc.CityObjects["w1"]
	if b.Type != "Building" || len(b.Geometry) != 1 || b.Geometry[0].LoD != "1" {
		t.Fatalf("unexpected building %+v", b)
	}
	if _, ok := b.Attributes["osm_name"]; ok || b.Attributes["osm_id"] != "w1" {
		t.Fatalf("attributes = %v", b.Attributes)
	}
	shells, ok := b.Geometry[0].Boundaries.([]interface{})
	if !ok || len(shells) != 1 || len(shells[0].([]interface{})) != 6 {
		t.Fatalf("solid boundaries = %v", b.Geometry[0].Boundaries)
	}
	terrain := doc.CityObjects["terrain01"]
	if terrain.Type != "TINRelief" || terrain.Geometry[0].Type != "CompositeSurface" {
		t.Fatalf("unexpected terrain %+v", terrain)
	}
	if surfaces := terrain.Geometry[0].Boundaries.([]interface{}); len(surfaces) != 2 {
		t.Fatalf("terrain has %d surfaces", len(surfaces))
	}
}

func TestEncodeRejectsBadIndex(t *testing.T) {
	sc := &scene.Scene{
		Vertices: []lod1.Vertex{{}, {X: 1}, {Y: 1}},
		Objects: []*scene.Object{{ID: "x", Type: "TINRelief", Geometries: []scene.Geometry{{
			Type: scene.GeometryCompositeSurface, LoD: 1, Boundaries: []lod1.Face{{{0, 1, 3}}},
		}}}},
	}
	if _, err := NewDocument(sc, Meta{Precision: 2}); err == nil {
		t.Fatal("expected an index error")
	}
}

func TestWriteOBJ(t *testing.T) {
	sc := testScene(t)
	var buf bytes.Buffer
	if err := WriteOBJ(&buf, sc, nil, "model.mtl"); err != nil {
		t.Fatal(err)
	}
	var vs, fs, mtl int
	for _, line := range strings.Split(buf.String(), "\n") {
		switch {
		case strings.HasPrefix(line, "v "):
			vs++
		case strings.HasPrefix(line, "f "):
			fs++
			if len(strings.Fields(line)) != 4 {
				t.Fatalf("face not triangulated: %q", line)
			}
		case strings.HasPrefix(line, "usemtl "):
			mtl++
		}
	}
	// 2 个地形三角形，6 个四边形各 2 个三角形
	if vs != len(sc.Vertices) || fs != 2+12 || mtl != 2 {
		t.Fatalf("%d vertices, %d faces, %d materials", vs, fs, mtl)
	}
	if !strings.Contains(buf.String(), "v 10.000 10.000 10.000") {
		t.Fatalf("coordinates are not shifted to the minimum corner")
	}

	var m bytes.Buffer
	if err := WriteMTL(&m); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(m.String(), "newmtl Building") {
		t.Fatalf("materials = %q", m.String())
	}
}

func TestTriangulateFaceOrientation(t *testing.T) {
	sh := box(t)
	o := mgl64.Vec3{sh.Vertices[0].X, sh.Vertices[0].Y, sh.Vertices[0].Z}
	for fi, f := range sh.Faces {
		n := extrude.Newell(sh.Loop(fi, 0), o)
		tris, err := triangulateFace(Tin.Delaunay{}, sh.Vertices, f)
		if err != nil {
			t.Fatal(err)
		}
		var area float64
		for _, tr := range tris {
			loop := []lod1.Vertex{sh.Vertices[tr[0]], sh.Vertices[tr[1]], sh.Vertices[tr[2]]}
			tn := extrude.Newell(loop, o)
			if tn.Dot(n) <= 0 {
				t.Fatalf("face %d: triangle %v faces away from the face normal", fi, tr)
			}
			area += tn.Len()
		}
		if math.Abs(area-n.Len()) > 1e-6 {
			t.Fatalf("face %d: triangles cover %v of %v", fi, area, n.Len())
		}
	}
}
