// Package extrude turns an oriented footprint and its per-vertex height
// profiles into a closed LoD1 shell.
package extrude

import (
	"fmt"
	"math"

	"github.com/GrainArc/CityLoD1/lod1"
	"github.com/paulmach/orb"
)

// Profiles 每个环顶点的高度断点，与环顶点一一对应
type Profiles struct {
	Exterior  []lod1.HeightProfile
	Interiors [][]lod1.HeightProfile
}

// Uniform gives every vertex the plain base/roof pair.
func Uniform(fp *lod1.Footprint) (Profiles, error) {
	p, err := lod1.NewHeightProfile(fp.BaseHeight, fp.RoofHeight)
	if err != nil {
		return Profiles{}, err
	}
	fill := func(n int) []lod1.HeightProfile {
		out := make([]lod1.HeightProfile, n)
		for i := range out {
			out[i] = p
		}
		return out
	}
	ps := Profiles{Exterior: fill(fp.Exterior.Len())}
	for _, r := range fp.Interiors {
		ps.Interiors = append(ps.Interiors, fill(r.Len()))
	}
	return ps, nil
}

// Extrude builds walls, a roof cap and a floor cap. The exterior ring is
// counter-clockwise and holes clockwise, so the faces come out with outward
// normals without any reversal here.
func Extrude(fp *lod1.Footprint, profiles Profiles) (lod1.Shell, error) {
	var shell lod1.Shell
	if err := checkProfiles(fp, profiles); err != nil {
		return shell, err
	}

	walls(&shell, fp.Exterior.Points(), profiles.Exterior)
	for i, r := range fp.Interiors {
		walls(&shell, r.Points(), profiles.Interiors[i])
	}

	roof := [][]lod1.Vertex{atHeight(fp.Exterior.Points(), fp.RoofHeight, false)}
	floor := [][]lod1.Vertex{atHeight(fp.Exterior.Points(), fp.BaseHeight, true)}
	for _, r := range fp.Interiors {
		roof = append(roof, atHeight(r.Points(), fp.RoofHeight, false))
		floor = append(floor, atHeight(r.Points(), fp.BaseHeight, true))
	}
	shell.AddFace(roof...)
	shell.AddFace(floor...)
	return shell, nil
}

func checkProfiles(fp *lod1.Footprint, profiles Profiles) error {
	check := func(ring string, n int, ps []lod1.HeightProfile) error {
		if len(ps) != n {
			return fmt.Errorf("%s ring of %s has %d vertices but %d profiles: %w", ring, fp.ID, n, len(ps), lod1.ErrMalformedGeometry)
		}
		for i, p := range ps {
			if len(p) < 2 {
				return fmt.Errorf("%s vertex %d of %s has %d breakpoints: %w", ring, i, fp.ID, len(p), lod1.ErrMalformedGeometry)
			}
			if math.Abs(p.Roof()-fp.RoofHeight) > 1e-9 {
				return fmt.Errorf("%s vertex %d of %s tops out at %.3f, roof is %.3f: %w", ring, i, fp.ID, p.Roof(), fp.RoofHeight, lod1.ErrBreakpointAboveRoof)
			}
			if math.Abs(p.Base()-fp.BaseHeight) > 1e-9 {
				return fmt.Errorf("%s vertex %d of %s starts at %.3f, base is %.3f: %w", ring, i, fp.ID, p.Base(), fp.BaseHeight, lod1.ErrBreakpointBelowBase)
			}
		}
		return nil
	}
	if err := check("exterior", fp.Exterior.Len(), profiles.Exterior); err != nil {
		return err
	}
	if len(profiles.Interiors) != len(fp.Interiors) {
		return fmt.Errorf("%s has %d holes but %d profile sets: %w", fp.ID, len(fp.Interiors), len(profiles.Interiors), lod1.ErrMalformedGeometry)
	}
	for i, r := range fp.Interiors {
		if err := check(fmt.Sprintf("interior %d", i), r.Len(), profiles.Interiors[i]); err != nil {
			return err
		}
	}
	return nil
}

// walls 每条边一个墙面。两端均只有底/顶两个断点时为四边形，否则为扇形：
// 从vi最低点出发，沿vi+1自下而上经过全部断点，再沿vi自上而下回到最低点之上
func walls(shell *lod1.Shell, ring []orb.Point, ps []lod1.HeightProfile) {
	n := len(ring)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		vi, vj := ring[i], ring[j]
		bi, bj := ps[i], ps[j]

		loop := make([]lod1.Vertex, 0, len(bi)+len(bj))
		loop = append(loop, lod1.Vertex{X: vi[0], Y: vi[1], Z: bi[0]})
		for _, h := range bj {
			loop = append(loop, lod1.Vertex{X: vj[0], Y: vj[1], Z: h})
		}
		for k := len(bi) - 1; k >= 1; k-- {
			loop = append(loop, lod1.Vertex{X: vi[0], Y: vi[1], Z: bi[k]})
		}
		shell.AddFace(loop)
	}
}

func atHeight(ring []orb.Point, z float64, reverse bool) []lod1.Vertex {
	out := make([]lod1.Vertex, len(ring))
	for i, p := range ring {
		k := i
		if reverse {
			k = len(ring) - 1 - i
		}
		out[k] = lod1.Vertex{X: p[0], Y: p[1], Z: z}
	}
	return out
}
