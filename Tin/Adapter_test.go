package Tin

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/GrainArc/CityLoD1/keyer"
	"github.com/GrainArc/CityLoD1/lod1"
	"github.com/GrainArc/CityLoD1/segments"
	"github.com/paulmach/orb"
)

type stubSolver struct {
	out Output
	err error
}

func (s stubSolver) Triangulate(Input) (Output, error) { return s.out, s.err }

func squareGraph(t *testing.T, k *keyer.Keyer) (*segments.Graph, *keyer.Table) {
	t.Helper()
	g := segments.NewGraph(k)
	if err := g.AddRing("aoi", []orb.Point{{0, 0}, {30, 0}, {30, 30}, {0, 30}}); err != nil {
		t.Fatal(err)
	}
	if err := g.AddRing("b1", []orb.Point{{10, 10}, {20, 10}, {20, 20}, {10, 20}}); err != nil {
		t.Fatal(err)
	}
	var vs []lod1.Vertex
	for _, v := range g.Endpoints() {
		v.Z = 100
		vs = append(vs, v)
	}
	return g, k.Build(vs)
}

func TestAdapterBlocks(t *testing.T) {
	k := keyer.New(2)
	g, table := squareGraph(t, k)
	a := NewAdapter(k)
	a.AddSamples([]lod1.Vertex{{X: 5, Y: 5, Z: 99}, {X: 10.001, Y: 10, Z: 150}, {X: 25, Y: 25, Z: 98}})
	a.AddConstraints(table, g)
	a.AddHole("b1", orb.Point{15, 15})

	if err := a.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	vs, err := a.Vertices()
	if err != nil {
		t.Fatal(err)
	}
	if len(vs) != 2+8 {
		t.Fatalf("expected 10 vertices, got %d", len(vs))
	}
	in, err := a.Input()
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range in.Segments {
		if s[0] < 2 || s[1] < 2 {
			t.Fatalf("segment %v not rebased past the terrain block", s)
		}
	}
	// the sample colliding with a constraint vertex lifts it to the higher z
	for _, v := range vs {
		if v.X == 10 && v.Y == 10 && v.Z != 150 {
			t.Fatalf("constraint vertex z = %v, want 150", v.Z)
		}
	}
}

func TestAdapterMergesCoincidentSample(t *testing.T) {
	testCases := []struct {
		name   string
		sample float64
		want   float64
	}{
		{"higher sample wins", 250, 250},
		{"lower sample keeps constraint z", 40, 100},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			k := keyer.New(3)
			g, table := squareGraph(t, k)
			a := NewAdapter(k)
			a.AddSamples([]lod1.Vertex{{X: 5, Y: 5, Z: 90}, {X: 10.0001, Y: 10, Z: tc.sample}})
			a.AddConstraints(table, g)
			a.AddHole("b1", orb.Point{15, 15})

			if err := a.Validate(); err != nil {
				t.Fatal(err)
			}
			vs, err := a.Vertices()
			if err != nil {
				t.Fatal(err)
			}
			if len(vs) != 1+8 {
				t.Fatalf("expected 9 vertices, got %d", len(vs))
			}
			var found bool
			for _, v := range vs {
				if k.Key(v.X, v.Y) == k.Key(10, 10) {
					found = true
					if v.Z != tc.want {
						t.Fatalf("merged z = %v, want %v", v.Z, tc.want)
					}
				}
			}
			if !found {
				t.Fatal("constraint vertex (10,10) missing")
			}
			if a.dropped != 1 {
				t.Fatalf("dropped = %d, want 1", a.dropped)
			}
			// the table itself is left untouched
			if j, ok := table.Index(k.Key(10, 10)); !ok || table.Vertices()[j].Z != 100 {
				t.Fatalf("table vertex modified")
			}
		})
	}
}

func TestAdapterIndexSpaceMismatch(t *testing.T) {
	k := keyer.New(2)
	g, _ := squareGraph(t, k)
	other := k.Build([]lod1.Vertex{{X: 0, Y: 0}, {X: 30, Y: 0}, {X: 30, Y: 30}, {X: 0, Y: 30}})

	a := NewAdapter(k)
	a.AddConstraints(other, g)
	if err := a.Validate(); !errors.Is(err, lod1.ErrIndexSpaceMismatch) {
		t.Fatalf("expected index space mismatch, got %v", err)
	}

	// a table keyed at another precision re-keys to different edges
	_, table := squareGraph(t, k)
	b := NewAdapter(keyer.New(3))
	b.AddConstraints(table, g)
	if err := b.Validate(); !errors.Is(err, lod1.ErrIndexSpaceMismatch) {
		t.Fatalf("expected index space mismatch, got %v", err)
	}

	c := NewAdapter(k)
	c.AddConstraints(table, g)
	c.AddHole("b1", orb.Point{math.NaN(), 0})
	if err := c.Validate(); !errors.Is(err, lod1.ErrIndexSpaceMismatch) {
		t.Fatalf("expected index space mismatch for NaN seed, got %v", err)
	}
}

func TestAdapterRun(t *testing.T) {
	k := keyer.New(2)
	g, table := squareGraph(t, k)
	a := NewAdapter(k)
	a.AddSamples([]lod1.Vertex{{X: 5, Y: 5, Z: 100}, {X: 25, Y: 25, Z: 100}, {X: 5, Y: 25, Z: 100}})
	a.AddConstraints(table, g)
	a.AddHole("b1", orb.Point{15, 15})

	res, err := a.Run(context.Background(), Delaunay{})
	if err != nil {
		t.Fatal(err)
	}
	tin, err := NewTIN3D(res.Vertices, res.Triangles)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tin.GetElevationAt(15, 15); err == nil {
		t.Fatal("terrain covers the building interior")
	}
	if _, err := tin.GetElevationAt(5, 15); err != nil {
		t.Fatalf("terrain missing outside the building: %v", err)
	}
	if s := tin.Stats(); math.Abs(s.SurfaceArea-800) > 1 {
		t.Fatalf("unexpected terrain area %v", s.SurfaceArea)
	}
}

func TestAdapterRunErrors(t *testing.T) {
	k := keyer.New(2)
	g, table := squareGraph(t, k)
	newAdapter := func() *Adapter {
		a := NewAdapter(k)
		a.AddConstraints(table, g)
		return a
	}

	_, err := newAdapter().Run(context.Background(), stubSolver{err: &ConstraintError{Segments: []int{0, 4}}})
	if !errors.Is(err, lod1.ErrConstraintGraph) {
		t.Fatalf("expected constraint graph error, got %v", err)
	}
	if !strings.Contains(err.Error(), "aoi") || !strings.Contains(err.Error(), "b1") {
		t.Fatalf("owners not named: %v", err)
	}

	_, err = newAdapter().Run(context.Background(), stubSolver{out: Output{Triangles: [][3]int{{0, 1, 99}}}})
	if !errors.Is(err, lod1.ErrIndexSpaceMismatch) {
		t.Fatalf("expected index space mismatch, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newAdapter().Run(ctx, Delaunay{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
