package lod1

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// InteriorPoint returns a point strictly inside the exterior ring and outside
// every hole. It casts a horizontal scanline between two distinct vertex
// heights near the middle of the ring and takes the midpoint of the widest
// inside interval, so the result is usable as a hole seed even for concave
// or holed footprints where the centroid falls outside.
func InteriorPoint(ext CCWRing, holes []CWRing) (orb.Point, error) {
	rings := make([][]orb.Point, 0, 1+len(holes))
	rings = append(rings, ext.Points())
	for _, h := range holes {
		rings = append(rings, h.Points())
	}

	ys := make([]float64, 0, ext.Len())
	for _, r := range rings {
		for _, p := range r {
			ys = append(ys, p[1])
		}
	}
	sort.Float64s(ys)
	distinct := ys[:0]
	for _, y := range ys {
		if len(distinct) == 0 || y != distinct[len(distinct)-1] {
			distinct = append(distinct, y)
		}
	}
	if len(distinct) < 2 {
		return orb.Point{}, fmt.Errorf("ring is flat: %w", ErrMalformedGeometry)
	}

	mid := (distinct[0] + distinct[len(distinct)-1]) / 2
	k := sort.SearchFloat64s(distinct, mid)
	if k == 0 {
		k = 1
	}
	if k >= len(distinct) {
		k = len(distinct) - 1
	}
	y := (distinct[k-1] + distinct[k]) / 2

	var xs []float64
	for _, r := range rings {
		n := len(r)
		for i := 0; i < n; i++ {
			a, b := r[i], r[(i+1)%n]
			if (a[1] < y) == (b[1] < y) {
				continue
			}
			t := (y - a[1]) / (b[1] - a[1])
			xs = append(xs, a[0]+t*(b[0]-a[0]))
		}
	}
	sort.Float64s(xs)

	best, bestW := orb.Point{}, -1.0
	for i := 0; i+1 < len(xs); i += 2 {
		if w := xs[i+1] - xs[i]; w > bestW {
			bestW = w
			best = orb.Point{(xs[i] + xs[i+1]) / 2, y}
		}
	}
	if bestW <= 0 || math.IsNaN(best[0]) {
		return orb.Point{}, fmt.Errorf("no interior interval found: %w", ErrMalformedGeometry)
	}
	return best, nil
}
