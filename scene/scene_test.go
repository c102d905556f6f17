package scene

import (
	"errors"
	"testing"

	"github.com/GrainArc/CityLoD1/lod1"
)

func triangleShell() lod1.Shell {
	var s lod1.Shell
	s.AddFace([]lod1.Vertex{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}})
	return s
}

func TestAppendSolidTwice(t *testing.T) {
	a := NewAssembler()
	sh := triangleShell()
	if err := a.AppendSolid("a", "Building", nil, sh); err != nil {
		t.Fatal(err)
	}
	if err := a.AppendSolid("b", "Building", nil, sh); err != nil {
		t.Fatal(err)
	}
	s := a.Finalize()
	if len(s.Vertices) != 6 {
		t.Fatalf("expected 6 vertices, got %d", len(s.Vertices))
	}
	oa, _ := s.Object("a")
	ob, _ := s.Object("b")
	la := oa.Geometries[0].Boundaries[0][0]
	lb := ob.Geometries[0].Boundaries[0][0]
	for _, i := range la {
		for _, j := range lb {
			if i == j {
				t.Fatalf("objects share vertex index %d", i)
			}
		}
	}
	for k := range la {
		if s.Vertices[la[k]] != s.Vertices[lb[k]] {
			t.Fatal("rebased copies differ in position")
		}
	}
}

func TestAppendErrors(t *testing.T) {
	a := NewAssembler()
	if err := a.AppendSolid("a", "Building", nil, triangleShell()); err != nil {
		t.Fatal(err)
	}
	if err := a.AppendSolid("a", "Building", nil, triangleShell()); !errors.Is(err, lod1.ErrDuplicateObjectIdentity) {
		t.Fatalf("expected duplicate identity, got %v", err)
	}
	if err := a.AppendTerrain("a", nil, nil); !errors.Is(err, lod1.ErrDuplicateObjectIdentity) {
		t.Fatalf("expected duplicate identity, got %v", err)
	}

	bad := triangleShell()
	bad.Faces[0][0][2] = 7
	if err := a.AppendSolid("bad", "Building", nil, bad); !errors.Is(err, lod1.ErrIndexSpaceMismatch) {
		t.Fatalf("expected index space mismatch, got %v", err)
	}
	if err := a.AppendTerrain("t", [][3]int{{0, 1, 3}}, make([]lod1.Vertex, 3)); !errors.Is(err, lod1.ErrIndexSpaceMismatch) {
		t.Fatalf("expected index space mismatch, got %v", err)
	}
	if a.Len() != 3 {
		t.Fatalf("rejected appends left %d vertices behind", a.Len()-3)
	}

	a.Finalize()
	if err := a.AppendSolid("late", "Building", nil, triangleShell()); !errors.Is(err, ErrFinalized) {
		t.Fatalf("expected finalized error, got %v", err)
	}
}

func TestMultipleGeometries(t *testing.T) {
	a := NewAssembler()
	if err := a.AppendTerrain("terrain01", [][3]int{{0, 1, 2}}, make([]lod1.Vertex, 3)); err != nil {
		t.Fatal(err)
	}
	if err := a.AppendSolid("b", "Bridge", map[string]interface{}{"name": "x"}, triangleShell(), triangleShell()); err != nil {
		t.Fatal(err)
	}
	s := a.Finalize()
	b, ok := s.Object("b")
	if !ok || len(b.Geometries) != 2 {
		t.Fatalf("expected two geometries, got %+v", b)
	}
	if b.Geometries[1].Boundaries[0][0][0] != 6 {
		t.Fatalf("second shell not rebased after the first: %v", b.Geometries[1].Boundaries)
	}
	if s.Objects[0].Type != "TINRelief" {
		t.Fatalf("terrain object type %q", s.Objects[0].Type)
	}
}
