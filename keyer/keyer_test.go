package keyer

import (
	"testing"

	"github.com/GrainArc/CityLoD1/lod1"
)

func TestBuildKeepsHighestZ(t *testing.T) {
	k := New(2)
	table := k.Build([]lod1.Vertex{
		{X: 1.001, Y: 2.002, Z: 10},
		{X: 1.0, Y: 2.0, Z: 12},
		{X: 0.999, Y: 1.998, Z: 11},
		{X: 5, Y: 5, Z: 1},
	})
	if table.Len() != 2 {
		t.Fatalf("expected 2 vertices, got %d", table.Len())
	}
	v, ok := table.Lookup(1, 2)
	if !ok {
		t.Fatal("vertex (1,2) missing")
	}
	if v.Z != 12 {
		t.Errorf("expected highest z 12, got %v", v.Z)
	}
	if v.X != 1 || v.Y != 2 {
		t.Errorf("vertex not stored at rounded position: %+v", v)
	}
}

func TestTableUniqueness(t *testing.T) {
	k := New(3)
	var samples []lod1.Vertex
	for i := 0; i < 50; i++ {
		x := float64(i%7) + 0.0001*float64(i%3)
		y := float64(i%5) - 0.0002*float64(i%2)
		samples = append(samples, lod1.Vertex{X: x, Y: y, Z: float64(i)})
	}
	table := k.Build(samples)
	seen := make(map[Key]bool)
	for _, v := range table.Vertices() {
		key := k.Key(v.X, v.Y)
		if seen[key] {
			t.Fatalf("duplicate key %v", key)
		}
		seen[key] = true
	}
	for i, key := range table.Keys() {
		if i > 0 && !table.Keys()[i-1].Less(key) {
			t.Fatalf("keys not sorted at %d", i)
		}
		hi, ok1 := table.Index(key)
		si, ok2 := table.Search(key)
		if !ok1 || !ok2 || hi != si || hi != i {
			t.Fatalf("Index/Search disagree for %v: %d/%v %d/%v", key, hi, ok1, si, ok2)
		}
	}
	if _, ok := table.Search(Key{X: -1, Y: -1}); ok {
		t.Fatal("found absent key")
	}
}

func TestKeyRounding(t *testing.T) {
	k := New(2)
	testCases := []struct {
		x, y float64
		want Key
	}{
		{0.004, 0.005, Key{0, 1}},
		{-0.005, 1.234, Key{-1, 123}},
		{12345.678, -0.001, Key{1234568, 0}},
	}
	for _, tc := range testCases {
		if got := k.Key(tc.x, tc.y); got != tc.want {
			t.Errorf("Key(%v, %v) = %v, want %v", tc.x, tc.y, got, tc.want)
		}
	}
}

func TestMinZ(t *testing.T) {
	if _, ok := MinZ(nil); ok {
		t.Fatal("MinZ of nothing")
	}
	z, _ := MinZ([]lod1.Vertex{{Z: 4}, {Z: 2}, {Z: 9}})
	if z != 2 {
		t.Fatalf("expected 2, got %v", z)
	}
}
