package Tin

import (
	"fmt"

	"github.com/GrainArc/CityLoD1/lod1"
)

// VerticesToPoints 投影到XY平面
func VerticesToPoints(vs []lod1.Vertex) []Point2D {
	points := make([]Point2D, len(vs))
	for i, v := range vs {
		points[i] = Point2D{X: v.X, Y: v.Y}
	}
	return points
}

// NewTIN3D 由顶点表和三角形下标构建三维TIN
func NewTIN3D(vertices []lod1.Vertex, triangles [][3]int) (*TIN3D, error) {
	points := make([]*Point3D, len(vertices))
	for i, v := range vertices {
		points[i] = &Point3D{X: v.X, Y: v.Y, Z: v.Z, ID: i}
	}
	tin := &TIN3D{Points: points, Triangles: make([]*Triangle3D, 0, len(triangles))}
	for i, t := range triangles {
		for _, j := range t {
			if j < 0 || j >= len(points) {
				return nil, fmt.Errorf("triangle %d references vertex %d of %d: %w", i, j, len(points), lod1.ErrIndexSpaceMismatch)
			}
		}
		tin.Triangles = append(tin.Triangles, &Triangle3D{
			P1: points[t[0]], P2: points[t[1]], P3: points[t[2]], ID: i,
		})
	}
	return tin, nil
}

// TriangulatePolygon 对单个带洞平面多边形做约束剖分，返回外环与洞环顶点的下标
// Loops are open; the result indexes their concatenation.
func TriangulatePolygon(s Solver, loops [][]Point2D) ([][3]int, error) {
	var in Input
	for _, loop := range loops {
		base := len(in.Points)
		in.Points = append(in.Points, loop...)
		for i := range loop {
			in.Segments = append(in.Segments, [2]int{base + i, base + (i+1)%len(loop)})
		}
	}
	for _, hole := range loops[1:] {
		seed, ok := loopSeed(hole)
		if ok {
			in.Holes = append(in.Holes, seed)
		}
	}
	out, err := s.Triangulate(in)
	if err != nil {
		return nil, err
	}
	return out.Triangles, nil
}

// loopSeed 取环内一点：凸角三角形中不含其他顶点者的重心
func loopSeed(loop []Point2D) (Point2D, bool) {
	n := len(loop)
	var area float64
	for i := range loop {
		j := (i + 1) % n
		area += loop[i].X*loop[j].Y - loop[j].X*loop[i].Y
	}
	for i := range loop {
		a, b, c := loop[(i+n-1)%n], loop[i], loop[(i+1)%n]
		o := orientPts(a, b, c)
		if o == 0 || (o > 0) != (area > 0) {
			continue
		}
		g := Point2D{X: (a.X + b.X + c.X) / 3, Y: (a.Y + b.Y + c.Y) / 3}
		clear := true
		for k, p := range loop {
			if k == i || k == (i+n-1)%n || k == (i+1)%n {
				continue
			}
			if insideTri(a, b, c, p) {
				clear = false
				break
			}
		}
		if clear {
			return g, true
		}
	}
	return Point2D{}, false
}

func insideTri(a, b, c, p Point2D) bool {
	o1, o2, o3 := orientPts(a, b, p), orientPts(b, c, p), orientPts(c, a, p)
	return (o1 >= 0 && o2 >= 0 && o3 >= 0) || (o1 <= 0 && o2 <= 0 && o3 <= 0)
}
