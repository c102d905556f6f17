package lod1

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestNewExteriorRing(t *testing.T) {
	testCases := []struct {
		name    string
		input   orb.Ring
		want    []orb.Point
		wantErr error
	}{
		{
			name:  "closed ccw square keeps order",
			input: orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
			want:  []orb.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}},
		},
		{
			name:  "cw square is reversed",
			input: orb.Ring{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}},
			want:  []orb.Point{{10, 0}, {10, 10}, {0, 10}, {0, 0}},
		},
		{
			name:  "consecutive duplicates dropped after rounding",
			input: orb.Ring{{0, 0}, {10, 0}, {10.0001, 0.0002}, {10, 10}, {0, 10}},
			want:  []orb.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}},
		},
		{
			name:    "two points",
			input:   orb.Ring{{0, 0}, {1, 1}, {0, 0}},
			wantErr: ErrMalformedGeometry,
		},
		{
			name:    "collinear has no area",
			input:   orb.Ring{{0, 0}, {5, 0}, {10, 0}},
			wantErr: ErrMalformedGeometry,
		},
		{
			name:    "bow tie",
			input:   orb.Ring{{0, 0}, {10, 10}, {10, 0}, {0, 10}},
			wantErr: ErrMalformedGeometry,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewExteriorRing(tc.input, 2)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := r.Points()
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
			}
			if r.Closed().Orientation() != orb.CCW {
				t.Errorf("exterior ring is not counter-clockwise")
			}
		})
	}
}

func TestNewInteriorRingIsClockwise(t *testing.T) {
	for _, in := range []orb.Ring{
		{{2, 2}, {4, 2}, {4, 4}, {2, 4}},
		{{2, 2}, {2, 4}, {4, 4}, {4, 2}},
	} {
		r, err := NewInteriorRing(in, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.Closed().Orientation() != orb.CW {
			t.Errorf("interior ring %v is not clockwise", r.Points())
		}
		if r.Len() != 4 {
			t.Errorf("expected 4 points, got %d", r.Len())
		}
	}
}

func TestClosedDoesNotAlias(t *testing.T) {
	r, err := NewExteriorRing(orb.Ring{{0, 0}, {1, 0}, {0, 1}}, 2)
	if err != nil {
		t.Fatal(err)
	}
	c := r.Closed()
	c[0] = orb.Point{99, 99}
	if r.Points()[0] == (orb.Point{99, 99}) {
		t.Fatal("Closed returned a view of the ring")
	}
	if len(c) != 4 || c[3] != (orb.Point{0, 0}) {
		t.Fatalf("unexpected closed ring %v", c)
	}
}

func TestHeightProfile(t *testing.T) {
	testCases := []struct {
		name    string
		base    float64
		roof    float64
		breaks  []float64
		want    HeightProfile
		wantErr error
	}{
		{"plain", 100, 112.8, nil, HeightProfile{100, 112.8}, nil},
		{"sorted and deduplicated", 0, 10, []float64{5, 10, 0, 5}, HeightProfile{0, 5, 10}, nil},
		{"above roof", 0, 10, []float64{12}, nil, ErrBreakpointAboveRoof},
		{"below base", 5, 10, []float64{1}, nil, ErrBreakpointBelowBase},
		{"inverted", 10, 5, nil, nil, ErrBreakpointBelowBase},
		{"flat", 3, 3, nil, HeightProfile{3, 3}, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewHeightProfile(tc.base, tc.roof, tc.breaks...)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(p) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, p)
			}
			for i := range p {
				if math.Abs(p[i]-tc.want[i]) > 1e-9 {
					t.Fatalf("expected %v, got %v", tc.want, p)
				}
			}
			if p.Base() != tc.base || p.Roof() != tc.roof {
				t.Errorf("endpoints %v/%v, want %v/%v", p.Base(), p.Roof(), tc.base, tc.roof)
			}
		})
	}
}

func TestInteriorPoint(t *testing.T) {
	square, _ := NewExteriorRing(orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}}, 2)
	hole, _ := NewInteriorRing(orb.Ring{{3, 0.5}, {7, 0.5}, {7, 9.5}, {3, 9.5}}, 2)
	// U shape whose centroid lies in the notch
	u, _ := NewExteriorRing(orb.Ring{{0, 0}, {10, 0}, {10, 10}, {8, 10}, {8, 2}, {2, 2}, {2, 10}, {0, 10}}, 2)

	testCases := []struct {
		name  string
		ext   CCWRing
		holes []CWRing
	}{
		{"square", square, nil},
		{"square with hole", square, []CWRing{hole}},
		{"u shape", u, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := InteriorPoint(tc.ext, tc.holes)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			fp := Footprint{Exterior: tc.ext, Interiors: tc.holes}
			if !containsPoint(fp.Polygon(), p) {
				t.Fatalf("point %v is not inside %v", p, fp.Polygon())
			}
		})
	}
}

// containsPoint is an even-odd test over all rings.
func containsPoint(poly orb.Polygon, p orb.Point) bool {
	in := false
	for _, r := range poly {
		for i, j := 0, len(r)-1; i < len(r); j, i = i, i+1 {
			a, b := r[i], r[j]
			if (a[1] > p[1]) != (b[1] > p[1]) &&
				p[0] < (b[0]-a[0])*(p[1]-a[1])/(b[1]-a[1])+a[0] {
				in = !in
			}
		}
	}
	return in
}

func TestDefectList(t *testing.T) {
	var l DefectList
	l.Add("a", "height", ErrMissingAttribute)
	l.Add("b", "ring", nil)
	l.Add("a", "ring", ErrMalformedGeometry)
	if len(l) != 2 {
		t.Fatalf("expected 2 defects, got %d", len(l))
	}
	if ids := l.Features(); len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("unexpected features %v", ids)
	}
	if !l.Has("a") || l.Has("b") {
		t.Fatal("Has reports wrong features")
	}
	if !errors.Is(l[1], ErrMalformedGeometry) {
		t.Fatal("defect does not unwrap to its cause")
	}
	if Structural(l[0]) {
		t.Fatal("missing attribute is not structural")
	}
	if !Structural(ErrIndexSpaceMismatch) {
		t.Fatal("index space mismatch is structural")
	}
}
