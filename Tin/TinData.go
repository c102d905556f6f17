package Tin

// Point3D 表示一个三维点
type Point3D struct {
	X, Y, Z float64
	ID      int
}

// Point2D 表示一个二维点
type Point2D struct {
	X, Y float64
}

// Triangle3D 表示一个三维三角形
type Triangle3D struct {
	P1, P2, P3 *Point3D
	ID         int
}

// TIN3D 三维三角不规则网络
type TIN3D struct {
	Points    []*Point3D
	Triangles []*Triangle3D
}

// Input is the planar straight line graph handed to a Solver. Segments
// index Points; Holes are seed points inside regions to remove.
type Input struct {
	Points   []Point2D
	Segments [][2]int
	Holes    []Point2D
}

// Output triangles index Input.Points and are counter-clockwise.
type Output struct {
	Triangles [][3]int
}

// Solver 约束Delaunay三角剖分
// Implementations must keep every segment as a union of triangle edges,
// remove the triangles of every region containing a hole seed, and remove
// the triangles outside the outermost segments.
type Solver interface {
	Triangulate(in Input) (Output, error)
}
