package dem

import (
	"errors"
	"fmt"
	"math"

	"github.com/GrainArc/CityLoD1/lod1"
)

// Fallback resolves no-data samples explicitly: first the nearest valid cell
// within Radius, then Value when it is set, otherwise the no-data error is
// returned to the caller.
type Fallback struct {
	Grid   *Grid
	Radius float64
	Value  *float64
}

func (f *Fallback) Sample(x, y float64) (float64, error) {
	z, err := f.Grid.Sample(x, y)
	if err == nil || !errors.Is(err, lod1.ErrNoDataElevation) {
		return z, err
	}
	if z, ok := f.nearest(x, y); ok {
		return z, nil
	}
	if f.Value != nil {
		return *f.Value, nil
	}
	return 0, fmt.Errorf("no valid cell within %.1f: %w", f.Radius, err)
}

// nearest 在搜索半径内按距离查找最近的有效像元
func (f *Fallback) nearest(x, y float64) (float64, bool) {
	g := f.Grid
	if f.Radius <= 0 {
		return 0, false
	}
	span := int(math.Ceil(f.Radius / g.CellSize))
	col := int(math.Floor((x - g.XMin) / g.CellSize))
	row := int(math.Floor((g.YMax - y) / g.CellSize))

	best, bestD := 0.0, math.Inf(1)
	for r := row - span; r <= row+span; r++ {
		if r < 0 || r >= g.NRows {
			continue
		}
		for c := col - span; c <= col+span; c++ {
			if c < 0 || c >= g.NCols {
				continue
			}
			v := g.Values[r*g.NCols+c]
			if g.noData(v) {
				continue
			}
			cx, cy := g.Centre(c, r)
			d := math.Hypot(cx-x, cy-y)
			if d <= f.Radius && d < bestD {
				best, bestD = v, d
			}
		}
	}
	return best, !math.IsInf(bestD, 1)
}
