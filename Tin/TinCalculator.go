package Tin

import (
	"fmt"
	"math"
)

// 判断二维点是否在三角形内部（基于重心坐标）
func pointInTriangle(px, py float64, t *Triangle3D) bool {
	x1, y1 := t.P1.X, t.P1.Y
	x2, y2 := t.P2.X, t.P2.Y
	x3, y3 := t.P3.X, t.P3.Y

	denominator := (y2-y3)*(x1-x3) + (x3-x2)*(y1-y3)
	if math.Abs(denominator) < 1e-10 {
		return false // 三角形退化
	}

	a := ((y2-y3)*(px-x3) + (x3-x2)*(py-y3)) / denominator
	b := ((y3-y1)*(px-x3) + (x1-x3)*(py-y3)) / denominator
	c := 1 - a - b

	return a >= 0 && b >= 0 && c >= 0
}

// 使用重心坐标在三角形内插值高程
func interpolateElevationInTriangle(px, py float64, t *Triangle3D) float64 {
	x1, y1, z1 := t.P1.X, t.P1.Y, t.P1.Z
	x2, y2, z2 := t.P2.X, t.P2.Y, t.P2.Z
	x3, y3, z3 := t.P3.X, t.P3.Y, t.P3.Z

	denominator := (y2-y3)*(x1-x3) + (x3-x2)*(y1-y3)
	if math.Abs(denominator) < 1e-10 {
		return (z1 + z2 + z3) / 3.0
	}

	a := ((y2-y3)*(px-x3) + (x3-x2)*(py-y3)) / denominator
	b := ((y3-y1)*(px-x3) + (x1-x3)*(py-y3)) / denominator
	c := 1 - a - b

	return a*z1 + b*z2 + c*z3
}

// GetElevationAt 获取二维点在TIN上的投影高程
func (tin *TIN3D) GetElevationAt(x, y float64) (float64, error) {
	for _, triangle := range tin.Triangles {
		if pointInTriangle(x, y, triangle) {
			return interpolateElevationInTriangle(x, y, triangle), nil
		}
	}
	return 0, fmt.Errorf("point (%.2f, %.2f) is not inside any triangle of the TIN", x, y)
}

// GetElevationsAt 批量获取多个点的高程
func (tin *TIN3D) GetElevationsAt(points []Point2D) ([]float64, error) {
	elevations := make([]float64, len(points))
	for i, point := range points {
		elevation, err := tin.GetElevationAt(point.X, point.Y)
		if err != nil {
			return nil, fmt.Errorf("failed to get elevation for point %d: %w", i, err)
		}
		elevations[i] = elevation
	}
	return elevations, nil
}

// Area 计算三角形面积（三维）
func (t *Triangle3D) Area() float64 {
	nx, ny, nz := t.cross()
	return math.Sqrt(nx*nx+ny*ny+nz*nz) / 2.0
}

// Normal 计算三角形单位法向量
func (t *Triangle3D) Normal() (float64, float64, float64) {
	nx, ny, nz := t.cross()
	length := math.Sqrt(nx*nx + ny*ny + nz*nz)
	if length > 0 {
		nx /= length
		ny /= length
		nz /= length
	}
	return nx, ny, nz
}

func (t *Triangle3D) cross() (float64, float64, float64) {
	ux, uy, uz := t.P2.X-t.P1.X, t.P2.Y-t.P1.Y, t.P2.Z-t.P1.Z
	vx, vy, vz := t.P3.X-t.P1.X, t.P3.Y-t.P1.Y, t.P3.Z-t.P1.Z
	return uy*vz - uz*vy, uz*vx - ux*vz, ux*vy - uy*vx
}

// Stats TIN统计信息，写入构建记录
type Stats struct {
	Points       int     `json:"points"`
	Triangles    int     `json:"triangles"`
	MinZ         float64 `json:"min_z"`
	MaxZ         float64 `json:"max_z"`
	AvgZ         float64 `json:"avg_z"`
	SurfaceArea  float64 `json:"surface_area"`
	UpwardFacing int     `json:"upward_facing"`
}

func (tin *TIN3D) Stats() Stats {
	s := Stats{Points: len(tin.Points), Triangles: len(tin.Triangles)}
	if len(tin.Points) > 0 {
		s.MinZ, s.MaxZ = tin.Points[0].Z, tin.Points[0].Z
		for _, p := range tin.Points {
			s.MinZ = math.Min(s.MinZ, p.Z)
			s.MaxZ = math.Max(s.MaxZ, p.Z)
			s.AvgZ += p.Z
		}
		s.AvgZ /= float64(len(tin.Points))
	}
	for _, t := range tin.Triangles {
		s.SurfaceArea += t.Area()
		if _, _, nz := t.Normal(); nz > 0 {
			s.UpwardFacing++
		}
	}
	return s
}
