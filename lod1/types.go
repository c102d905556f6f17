package lod1

import (
	"math"

	"github.com/paulmach/orb"
)

// Vertex 投影坐标系下的三维点
type Vertex struct {
	X, Y, Z float64
}

// XY returns the planar part of the vertex.
func (v Vertex) XY() orb.Point {
	return orb.Point{v.X, v.Y}
}

// Kind 要素类型
type Kind int

const (
	KindBuilding Kind = iota
	KindBridge
	KindRoofStructure
)

func (k Kind) String() string {
	switch k {
	case KindBridge:
		return "bridge"
	case KindRoofStructure:
		return "roof"
	default:
		return "building"
	}
}

// CityObjectType is the CityJSON object type a footprint is exported as.
func (k Kind) CityObjectType() string {
	if k == KindBridge {
		return "Bridge"
	}
	return "Building"
}

// Grounded reports whether the feature stands on the terrain. Only grounded
// features constrain the terrain triangulation and receive a hole seed.
func (k Kind) Grounded() bool {
	return k == KindBuilding
}

// Footprint 一个建筑或悬空结构的二维轮廓及其高度属性
type Footprint struct {
	ID        string
	Kind      Kind
	Exterior  CCWRing
	Interiors []CWRing

	GroundHeight float64 // 代表点处的地面高程
	BaseHeight   float64 // 底面高度，落地建筑为地面
	RoofHeight   float64

	// Attributes is passed through to the serializer untouched.
	Attributes map[string]interface{}
}

// Polygon rebuilds a closed orb polygon from the oriented rings.
func (fp *Footprint) Polygon() orb.Polygon {
	poly := make(orb.Polygon, 0, 1+len(fp.Interiors))
	poly = append(poly, fp.Exterior.Closed())
	for _, r := range fp.Interiors {
		poly = append(poly, r.Closed())
	}
	return poly
}

// Bound 轮廓外包框
func (fp *Footprint) Bound() orb.Bound {
	return fp.Exterior.Closed().Bound()
}

// Round rounds v to the given number of decimal places.
func Round(v float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}
