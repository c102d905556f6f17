package pipeline

import (
	"github.com/GrainArc/CityLoD1/lod1"
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// footprintSpatial 实现 rtreego.Spatial
type footprintSpatial struct {
	fp   *lod1.Footprint
	poly orb.Polygon
	rect rtreego.Rect
}

func (s *footprintSpatial) Bounds() rtreego.Rect { return s.rect }

const pointSize = 1e-9

// Mask answers whether a point falls on a grounded footprint. Terrain
// samples on or inside a footprint are excluded; points inside a courtyard
// hole remain terrain.
type Mask struct {
	tree *rtreego.Rtree
	n    int
}

func NewMask(fps []*lod1.Footprint) *Mask {
	m := &Mask{tree: rtreego.NewTree(2, 25, 50)}
	for _, fp := range fps {
		b := fp.Bound()
		rect, err := rtreego.NewRect(
			rtreego.Point{b.Min[0], b.Min[1]},
			[]float64{b.Max[0] - b.Min[0] + pointSize, b.Max[1] - b.Min[1] + pointSize},
		)
		if err != nil {
			continue
		}
		m.tree.Insert(&footprintSpatial{fp: fp, poly: fp.Polygon(), rect: rect})
		m.n++
	}
	return m
}

func (m *Mask) Len() int { return m.n }

// Covering returns the footprint covering p, if any.
func (m *Mask) Covering(p orb.Point) (*lod1.Footprint, bool) {
	if m.n == 0 {
		return nil, false
	}
	q, err := rtreego.NewRect(rtreego.Point{p[0], p[1]}, []float64{pointSize, pointSize})
	if err != nil {
		return nil, false
	}
	for _, s := range m.tree.SearchIntersect(q) {
		fs := s.(*footprintSpatial)
		if covers(fs.poly, p) {
			return fs.fp, true
		}
	}
	return nil, false
}

// covers 外环内（含边界）且不在洞内部
func covers(poly orb.Polygon, p orb.Point) bool {
	if !planar.RingContains(poly[0], p) {
		return false
	}
	for _, h := range poly[1:] {
		if planar.RingContains(h, p) && !onRing(h, p) {
			return false
		}
	}
	return true
}

func onRing(r orb.Ring, p orb.Point) bool {
	for i := 0; i+1 < len(r); i++ {
		if lod1.OnSegment(r[i], r[i+1], p) && lod1.Orient2D(r[i], r[i+1], p) == 0 {
			return true
		}
	}
	return false
}

// Filter keeps the samples not covered by any footprint.
func (m *Mask) Filter(samples []lod1.Vertex) []lod1.Vertex {
	out := samples[:0:0]
	for _, v := range samples {
		if _, ok := m.Covering(v.XY()); ok {
			continue
		}
		out = append(out, v)
	}
	return out
}
