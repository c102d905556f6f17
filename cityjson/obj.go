package cityjson

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"math"
	"sort"

	"github.com/GrainArc/CityLoD1/Tin"
	"github.com/GrainArc/CityLoD1/extrude"
	"github.com/GrainArc/CityLoD1/lod1"
	"github.com/GrainArc/CityLoD1/scene"
	"github.com/go-gl/mathgl/mgl64"
)

// 各对象类型的漫反射颜色
var materials = map[string][3]float64{
	"TINRelief": {0.55, 0.65, 0.45},
	"Building":  {0.85, 0.80, 0.75},
	"Bridge":    {0.60, 0.60, 0.65},
}

// WriteMTL writes one material per object type.
func WriteMTL(w io.Writer) error {
	names := make([]string, 0, len(materials))
	for n := range materials {
		names = append(names, n)
	}
	sort.Strings(names)
	bw := bufio.NewWriter(w)
	for _, n := range names {
		c := materials[n]
		fmt.Fprintf(bw, "newmtl %s\nKd %.2f %.2f %.2f\n\n", n, c[0], c[1], c[2])
	}
	return bw.Flush()
}

// WriteOBJ exports the scene as Wavefront OBJ, shifted so the minimum x/y of
// the arena is the origin. Polygonal faces are triangulated in their
// dominant plane with solver; a face the solver rejects is written as is.
func WriteOBJ(w io.Writer, sc *scene.Scene, solver Tin.Solver, mtllib string) error {
	if solver == nil {
		solver = Tin.Delaunay{}
	}
	var ox, oy float64
	if len(sc.Vertices) > 0 {
		ox, oy = math.Inf(1), math.Inf(1)
		for _, v := range sc.Vertices {
			ox, oy = math.Min(ox, v.X), math.Min(oy, v.Y)
		}
	}

	bw := bufio.NewWriter(w)
	if mtllib != "" {
		fmt.Fprintf(bw, "mtllib %s\n", mtllib)
	}
	for _, v := range sc.Vertices {
		fmt.Fprintf(bw, "v %.3f %.3f %.3f\n", v.X-ox, v.Y-oy, v.Z)
	}
	for _, o := range sc.Objects {
		fmt.Fprintf(bw, "o %s\nusemtl %s\n", o.ID, o.Type)
		for _, g := range o.Geometries {
			for _, f := range g.Boundaries {
				tris, err := triangulateFace(solver, sc.Vertices, f)
				if err != nil {
					log.Printf("object %s: face written untriangulated: %v", o.ID, err)
					writeFace(bw, f[0])
					continue
				}
				for _, t := range tris {
					writeFace(bw, t[:])
				}
			}
		}
	}
	return bw.Flush()
}

func writeFace(w io.Writer, idx []int) {
	fmt.Fprint(w, "f")
	for _, i := range idx {
		fmt.Fprintf(w, " %d", i+1)
	}
	fmt.Fprintln(w)
}

// triangulateFace 投影到主平面后剖分，三角形方向与原面一致
func triangulateFace(solver Tin.Solver, vs []lod1.Vertex, f lod1.Face) ([][3]int, error) {
	if len(f) == 1 && len(f[0]) == 3 {
		return [][3]int{{f[0][0], f[0][1], f[0][2]}}, nil
	}
	ext := make([]lod1.Vertex, len(f[0]))
	for i, k := range f[0] {
		ext[i] = vs[k]
	}
	n := extrude.Newell(ext, mgl64.Vec3{})
	project := dominantPlane(n)

	var global []int
	loops := make([][]Tin.Point2D, len(f))
	for li, loop := range f {
		pts := make([]Tin.Point2D, len(loop))
		for i, k := range loop {
			pts[i] = project(vs[k])
		}
		loops[li] = pts
		global = append(global, loop...)
	}
	tris, err := Tin.TriangulatePolygon(solver, loops)
	if err != nil {
		return nil, err
	}

	// 投影后外环的转向决定三角形是否需要翻转
	flip := signedArea(loops[0]) < 0
	out := make([][3]int, len(tris))
	for i, t := range tris {
		a, b, c := global[t[0]], global[t[1]], global[t[2]]
		if flip {
			b, c = c, b
		}
		out[i] = [3]int{a, b, c}
	}
	return out, nil
}

// dominantPlane drops the axis the normal is largest along, keeping a
// right-handed pair so a loop that is counter-clockwise seen from the
// normal stays counter-clockwise.
func dominantPlane(n mgl64.Vec3) func(lod1.Vertex) Tin.Point2D {
	ax, ay, az := math.Abs(n[0]), math.Abs(n[1]), math.Abs(n[2])
	switch {
	case az >= ax && az >= ay:
		return func(v lod1.Vertex) Tin.Point2D { return Tin.Point2D{X: v.X, Y: v.Y} }
	case ax >= ay:
		return func(v lod1.Vertex) Tin.Point2D { return Tin.Point2D{X: v.Y, Y: v.Z} }
	default:
		return func(v lod1.Vertex) Tin.Point2D { return Tin.Point2D{X: v.Z, Y: v.X} }
	}
}

func signedArea(loop []Tin.Point2D) float64 {
	var a float64
	for i := range loop {
		j := (i + 1) % len(loop)
		a += loop[i].X*loop[j].Y - loop[j].X*loop[i].Y
	}
	return a / 2
}
