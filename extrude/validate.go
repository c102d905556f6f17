package extrude

import (
	"fmt"

	"github.com/GrainArc/CityLoD1/lod1"
	"github.com/go-gl/mathgl/mgl64"
)

type directed struct {
	from, to lod1.Vertex
}

// Validate checks that the shell is closed and encloses a positive volume.
// Closure is tested on positions: every directed loop edge must be matched
// by the reverse edge of some other loop.
func Validate(shell *lod1.Shell) error {
	if err := shell.CheckIndices(); err != nil {
		return err
	}

	count := make(map[directed]int)
	for fi := range shell.Faces {
		for li := range shell.Faces[fi] {
			loop := shell.Loop(fi, li)
			for k := range loop {
				count[directed{loop[k], loop[(k+1)%len(loop)]}]++
			}
		}
	}
	for e, c := range count {
		if r := count[directed{e.to, e.from}]; r != c {
			return fmt.Errorf("edge %v->%v used %d times, reverse %d times: %w", e.from, e.to, c, r, lod1.ErrMalformedGeometry)
		}
	}

	if v := Volume(shell); v <= 0 {
		return fmt.Errorf("shell volume %.6f is not positive, faces point inward: %w", v, lod1.ErrMalformedGeometry)
	}
	return nil
}

// Volume 有向体积，外法向时为正
func Volume(shell *lod1.Shell) float64 {
	if len(shell.Vertices) == 0 {
		return 0
	}
	o := toVec(shell.Vertices[0])
	var vol float64
	for fi := range shell.Faces {
		for li := range shell.Faces[fi] {
			loop := shell.Loop(fi, li)
			p0 := toVec(loop[0]).Sub(o)
			vol += p0.Dot(Newell(loop, o))
		}
	}
	return vol / 3
}

// Newell returns the area vector of a planar loop, relative to origin o.
// Its direction is the loop normal by the right-hand rule; its length the
// enclosed area.
func Newell(loop []lod1.Vertex, o mgl64.Vec3) mgl64.Vec3 {
	var n mgl64.Vec3
	for k := range loop {
		a := toVec(loop[k]).Sub(o)
		b := toVec(loop[(k+1)%len(loop)]).Sub(o)
		n = n.Add(a.Cross(b))
	}
	return n.Mul(0.5)
}

func toVec(v lod1.Vertex) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}
