package lod1

import (
	"fmt"

	"github.com/paulmach/orb"
)

// CCWRing is an open exterior ring whose winding is counter-clockwise.
// The only way to obtain one is NewExteriorRing, so holding a CCWRing is
// proof that the orientation was checked.
type CCWRing struct {
	pts []orb.Point
}

// CWRing is an open interior ring (hole) wound clockwise.
type CWRing struct {
	pts []orb.Point
}

// NewExteriorRing 构造外环：去掉闭合点、按精度取整，逆时针方向
func NewExteriorRing(raw orb.Ring, precision int) (CCWRing, error) {
	pts, err := normalizeRing(raw, precision)
	if err != nil {
		return CCWRing{}, err
	}
	if orientation(pts) != orb.CCW {
		reversePoints(pts)
	}
	return CCWRing{pts: pts}, nil
}

// NewInteriorRing 构造内环（洞），顺时针方向
func NewInteriorRing(raw orb.Ring, precision int) (CWRing, error) {
	pts, err := normalizeRing(raw, precision)
	if err != nil {
		return CWRing{}, err
	}
	if orientation(pts) != orb.CW {
		reversePoints(pts)
	}
	return CWRing{pts: pts}, nil
}

// Points returns the open vertex sequence. Callers must not modify it.
func (r CCWRing) Points() []orb.Point { return r.pts }
func (r CWRing) Points() []orb.Point  { return r.pts }

func (r CCWRing) Len() int { return len(r.pts) }
func (r CWRing) Len() int  { return len(r.pts) }

// Closed returns a copy with the first point repeated at the end.
func (r CCWRing) Closed() orb.Ring { return closeRing(r.pts) }
func (r CWRing) Closed() orb.Ring  { return closeRing(r.pts) }

func normalizeRing(raw orb.Ring, precision int) ([]orb.Point, error) {
	pts := make([]orb.Point, 0, len(raw))
	for _, p := range raw {
		q := orb.Point{Round(p[0], precision), Round(p[1], precision)}
		if len(pts) > 0 && pts[len(pts)-1] == q {
			continue
		}
		pts = append(pts, q)
	}
	for len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	if len(pts) < 3 {
		return nil, fmt.Errorf("ring has %d distinct points: %w", len(pts), ErrMalformedGeometry)
	}
	if orientation(pts) == 0 {
		return nil, fmt.Errorf("ring has no area: %w", ErrMalformedGeometry)
	}
	if i, j, ok := selfIntersection(pts); ok {
		return nil, fmt.Errorf("ring edges %d and %d intersect: %w", i, j, ErrMalformedGeometry)
	}
	return pts, nil
}

func orientation(pts []orb.Point) orb.Orientation {
	return closeRing(pts).Orientation()
}

func closeRing(pts []orb.Point) orb.Ring {
	ring := make(orb.Ring, len(pts), len(pts)+1)
	copy(ring, pts)
	if len(pts) > 0 {
		ring = append(ring, pts[0])
	}
	return ring
}

func reversePoints(pts []orb.Point) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}

// selfIntersection reports the first pair of non-adjacent edges of the open
// ring that touch or cross.
func selfIntersection(pts []orb.Point) (int, int, bool) {
	n := len(pts)
	for i := 0; i < n; i++ {
		a, b := pts[i], pts[(i+1)%n]
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			c, d := pts[j], pts[(j+1)%n]
			if SegmentsIntersect(a, b, c, d) {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

// Orient2D is twice the signed area of triangle abc; positive when the
// points turn counter-clockwise.
func Orient2D(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// SegmentsIntersect reports whether the closed segments ab and cd share a point.
func SegmentsIntersect(a, b, c, d orb.Point) bool {
	d1 := Orient2D(c, d, a)
	d2 := Orient2D(c, d, b)
	d3 := Orient2D(a, b, c)
	d4 := Orient2D(a, b, d)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && OnSegment(c, d, a)) ||
		(d2 == 0 && OnSegment(c, d, b)) ||
		(d3 == 0 && OnSegment(a, b, c)) ||
		(d4 == 0 && OnSegment(a, b, d))
}

// OnSegment reports whether p, known to be collinear with ab, lies within
// the bounding box of ab.
func OnSegment(a, b, p orb.Point) bool {
	return p[0] >= min(a[0], b[0]) && p[0] <= max(a[0], b[0]) &&
		p[1] >= min(a[1], b[1]) && p[1] <= max(a[1], b[1])
}
