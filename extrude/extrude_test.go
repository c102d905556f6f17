package extrude

import (
	"errors"
	"math"
	"testing"

	"github.com/GrainArc/CityLoD1/keyer"
	"github.com/GrainArc/CityLoD1/lod1"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"
)

func footprint(t *testing.T, id string, ext orb.Ring, holes []orb.Ring, base, roof float64) *lod1.Footprint {
	t.Helper()
	e, err := lod1.NewExteriorRing(ext, 2)
	if err != nil {
		t.Fatal(err)
	}
	fp := &lod1.Footprint{ID: id, Kind: lod1.KindBuilding, Exterior: e, GroundHeight: base, BaseHeight: base, RoofHeight: roof}
	for _, h := range holes {
		r, err := lod1.NewInteriorRing(h, 2)
		if err != nil {
			t.Fatal(err)
		}
		fp.Interiors = append(fp.Interiors, r)
	}
	return fp
}

func faceNormal(shell *lod1.Shell, fi int) mgl64.Vec3 {
	var n mgl64.Vec3
	for li := range shell.Faces[fi] {
		n = n.Add(Newell(shell.Loop(fi, li), mgl64.Vec3{}))
	}
	return n
}

func TestExtrudeRectangle(t *testing.T) {
	testCases := []struct {
		name string
		ring orb.Ring
	}{
		{"counter-clockwise input", orb.Ring{{0, 0}, {20, 0}, {20, 10}, {0, 10}}},
		// a clockwise source ring must still produce outward faces
		{"clockwise input", orb.Ring{{0, 0}, {0, 10}, {20, 10}, {20, 0}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fp := footprint(t, "r", tc.ring, nil, 0, 6)
			ps, err := Uniform(fp)
			if err != nil {
				t.Fatal(err)
			}
			shell, err := Extrude(fp, ps)
			if err != nil {
				t.Fatal(err)
			}
			if len(shell.Faces) != 6 {
				t.Fatalf("expected 6 faces, got %d", len(shell.Faces))
			}
			centre := mgl64.Vec3{10, 5, 3}
			for fi := 0; fi < 4; fi++ {
				loop := shell.Loop(fi, 0)
				if len(loop) != 4 {
					t.Fatalf("wall %d has %d vertices, expected a quad", fi, len(loop))
				}
				out := toVec(loop[0]).Sub(centre)
				if faceNormal(&shell, fi).Dot(out) <= 0 {
					t.Errorf("wall %d faces inward", fi)
				}
			}
			if n := faceNormal(&shell, 4); n.Z() <= 0 {
				t.Errorf("roof normal %v does not point up", n)
			}
			if n := faceNormal(&shell, 5); n.Z() >= 0 {
				t.Errorf("floor normal %v does not point down", n)
			}
			if err := Validate(&shell); err != nil {
				t.Fatalf("rectangle shell invalid: %v", err)
			}
			if v := Volume(&shell); math.Abs(v-1200) > 1e-6 {
				t.Errorf("expected volume 1200, got %v", v)
			}
		})
	}
}

func TestExtrudeFan(t *testing.T) {
	fp := footprint(t, "f", orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}}, nil, 0, 10)
	plain, _ := lod1.NewHeightProfile(0, 10)
	stacked, _ := lod1.NewHeightProfile(0, 10, 5)
	ps := Profiles{Exterior: []lod1.HeightProfile{plain, stacked, plain, plain}}

	shell, err := Extrude(fp, ps)
	if err != nil {
		t.Fatal(err)
	}
	// edge 0->1 ends at the stacked vertex, edge 1->2 starts there
	for _, fi := range []int{0, 1} {
		loop := shell.Loop(fi, 0)
		if len(loop) != 5 {
			t.Fatalf("wall %d has %d vertices, expected a 5-vertex fan", fi, len(loop))
		}
		found := false
		for _, v := range loop {
			if v.X == 10 && v.Y == 0 && v.Z == 5 {
				found = true
			}
		}
		if !found {
			t.Fatalf("wall %d skips the 5 m transition: %v", fi, loop)
		}
	}
	if got := len(shell.Loop(2, 0)); got != 4 {
		t.Fatalf("wall 2 should stay a quad, has %d vertices", got)
	}
	want := []lod1.Vertex{{X: 0, Y: 0, Z: 0}, {X: 10, Y: 0, Z: 0}, {X: 10, Y: 0, Z: 5}, {X: 10, Y: 0, Z: 10}, {X: 0, Y: 0, Z: 10}}
	for i, v := range shell.Loop(0, 0) {
		if v != want[i] {
			t.Fatalf("fan order %v, want %v", shell.Loop(0, 0), want)
		}
	}
	if err := Validate(&shell); err != nil {
		t.Fatalf("stacked shell invalid: %v", err)
	}
}

func TestExtrudeWithHole(t *testing.T) {
	fp := footprint(t, "h",
		orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}},
		[]orb.Ring{{{3, 3}, {7, 3}, {7, 7}, {3, 7}}}, 100, 103)
	ps, err := Uniform(fp)
	if err != nil {
		t.Fatal(err)
	}
	shell, err := Extrude(fp, ps)
	if err != nil {
		t.Fatal(err)
	}
	if len(shell.Faces) != 4+4+2 {
		t.Fatalf("expected 10 faces, got %d", len(shell.Faces))
	}
	if roof := shell.Faces[8]; len(roof) != 2 {
		t.Fatalf("hole must be a second loop of the roof cap, got %d loops", len(roof))
	}
	if err := Validate(&shell); err != nil {
		t.Fatal(err)
	}
	if v := Volume(&shell); math.Abs(v-84*3) > 1e-6 {
		t.Errorf("expected volume 252, got %v", v)
	}
}

func TestExtrudeRejectsMismatchedProfiles(t *testing.T) {
	fp := footprint(t, "m", orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}}, nil, 0, 10)
	plain, _ := lod1.NewHeightProfile(0, 10)
	tall, _ := lod1.NewHeightProfile(0, 12)

	if _, err := Extrude(fp, Profiles{Exterior: []lod1.HeightProfile{plain}}); !errors.Is(err, lod1.ErrMalformedGeometry) {
		t.Fatalf("expected malformed geometry, got %v", err)
	}
	ps := Profiles{Exterior: []lod1.HeightProfile{plain, tall, plain, plain}}
	if _, err := Extrude(fp, ps); !errors.Is(err, lod1.ErrBreakpointAboveRoof) {
		t.Fatalf("expected breakpoint above roof, got %v", err)
	}
}

func TestValidateDetectsInvertedShell(t *testing.T) {
	fp := footprint(t, "i", orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}}, nil, 0, 10)
	ps, _ := Uniform(fp)
	shell, _ := Extrude(fp, ps)
	for fi := range shell.Faces {
		for li, loop := range shell.Faces[fi] {
			rev := make([]int, len(loop))
			for k := range loop {
				rev[len(loop)-1-k] = loop[k]
			}
			shell.Faces[fi][li] = rev
		}
	}
	if err := Validate(&shell); !errors.Is(err, lod1.ErrMalformedGeometry) {
		t.Fatalf("inverted shell accepted: %v", err)
	}

	open, _ := Extrude(fp, ps)
	open.Faces = open.Faces[:5]
	if err := Validate(&open); !errors.Is(err, lod1.ErrMalformedGeometry) {
		t.Fatalf("open shell accepted: %v", err)
	}
}

func TestProfileIndex(t *testing.T) {
	k := keyer.New(2)
	building := footprint(t, "b", orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}}, nil, 0, 10)
	roof := footprint(t, "r", orb.Ring{{0, 0}, {5, 0}, {5, 5}, {0, 5}}, nil, 10, 11.5)
	roof.Kind = lod1.KindRoofStructure
	tower := footprint(t, "t", orb.Ring{{10, 0}, {20, 0}, {20, 10}, {10, 10}}, nil, 0, 30)

	pi := NewProfileIndex(k)
	for _, fp := range []*lod1.Footprint{building, roof, tower} {
		pi.Add(fp)
	}

	ps, err := pi.For(building)
	if err != nil {
		t.Fatal(err)
	}
	// (0,0) is shared with the roof structure whose base is 10: nothing new
	if p := ps.Exterior[0]; len(p) != 2 {
		t.Errorf("vertex (0,0) profile %v", p)
	}
	// (10,0) is shared with the taller tower: its 30 m roof is excluded
	if p := ps.Exterior[1]; len(p) != 2 || p.Roof() != 10 {
		t.Errorf("vertex (10,0) profile %v", p)
	}

	ts, err := pi.For(tower)
	if err != nil {
		t.Fatal(err)
	}
	// the tower sees the lower building roof at its shared vertices
	if p := ts.Exterior[0]; len(p) != 3 || p[1] != 10 {
		t.Errorf("tower vertex (10,0) profile %v", p)
	}
	shell, err := Extrude(tower, ts)
	if err != nil {
		t.Fatal(err)
	}
	if err := Validate(&shell); err != nil {
		t.Fatalf("tower shell invalid: %v", err)
	}

	rs, err := pi.For(roof)
	if err != nil {
		t.Fatal(err)
	}
	if p := rs.Exterior[0]; p.Base() != 10 || p.Roof() != 11.5 {
		t.Errorf("roof structure profile %v", p)
	}
}
