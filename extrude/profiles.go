package extrude

import (
	"github.com/GrainArc/CityLoD1/keyer"
	"github.com/GrainArc/CityLoD1/lod1"
	"github.com/paulmach/orb"
)

// ProfileIndex collects, per vertex key, the height transitions of every
// feature touching that vertex: the suspended base of bridges and roof
// structures and the roof height of everything.
type ProfileIndex struct {
	keyer  *keyer.Keyer
	breaks map[keyer.Key][]float64
}

func NewProfileIndex(k *keyer.Keyer) *ProfileIndex {
	return &ProfileIndex{keyer: k, breaks: make(map[keyer.Key][]float64)}
}

// Add registers the heights of fp at all of its ring vertices.
func (pi *ProfileIndex) Add(fp *lod1.Footprint) {
	hs := []float64{fp.RoofHeight}
	if !fp.Kind.Grounded() {
		hs = append(hs, fp.BaseHeight)
	}
	visit := func(ring []orb.Point) {
		for _, p := range ring {
			k := pi.keyer.Key(p[0], p[1])
			pi.breaks[k] = append(pi.breaks[k], hs...)
		}
	}
	visit(fp.Exterior.Points())
	for _, r := range fp.Interiors {
		visit(r.Points())
	}
}

// Breakpoints returns the raw heights registered at (x, y).
func (pi *ProfileIndex) Breakpoints(x, y float64) []float64 {
	return pi.breaks[pi.keyer.Key(x, y)]
}

// For builds the per-vertex profiles of fp. Heights above its own roof
// belong to a taller neighbour and heights below its base to a lower one;
// both are left out before the profile is built.
func (pi *ProfileIndex) For(fp *lod1.Footprint) (Profiles, error) {
	build := func(ring []orb.Point) ([]lod1.HeightProfile, error) {
		out := make([]lod1.HeightProfile, len(ring))
		for i, p := range ring {
			var keep []float64
			for _, h := range pi.Breakpoints(p[0], p[1]) {
				if h <= fp.RoofHeight && h >= fp.BaseHeight {
					keep = append(keep, h)
				}
			}
			hp, err := lod1.NewHeightProfile(fp.BaseHeight, fp.RoofHeight, keep...)
			if err != nil {
				return nil, err
			}
			out[i] = hp
		}
		return out, nil
	}

	var ps Profiles
	var err error
	if ps.Exterior, err = build(fp.Exterior.Points()); err != nil {
		return Profiles{}, err
	}
	for _, r := range fp.Interiors {
		hps, err := build(r.Points())
		if err != nil {
			return Profiles{}, err
		}
		ps.Interiors = append(ps.Interiors, hps)
	}
	return ps, nil
}
