// Package segments collects the undirected boundary edges of all footprint
// rings and the area of interest into one deduplicated table.
package segments

import (
	"fmt"
	"math"
	"sort"

	"github.com/GrainArc/CityLoD1/keyer"
	"github.com/GrainArc/CityLoD1/lod1"
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// EdgeKey 无向边标识，端点按字典序排列，两个方向得到同一个键
type EdgeKey struct {
	A, B keyer.Key
}

// NewEdgeKey orders the endpoints lexicographically.
func NewEdgeKey(a, b keyer.Key) EdgeKey {
	if b.Less(a) {
		a, b = b, a
	}
	return EdgeKey{A: a, B: b}
}

// Edge is one table entry.
type Edge struct {
	Key   EdgeKey
	Count int
}

// Graph 边表
type Graph struct {
	keyer  *keyer.Keyer
	order  []EdgeKey
	counts map[EdgeKey]int
	owners map[EdgeKey][]string
}

func NewGraph(k *keyer.Keyer) *Graph {
	return &Graph{
		keyer:  k,
		counts: make(map[EdgeKey]int),
		owners: make(map[EdgeKey][]string),
	}
}

// AddRing walks the consecutive vertex pairs of an open ring, wraparound
// included. A trailing closing point is tolerated.
func (g *Graph) AddRing(owner string, ring []orb.Point) error {
	keys := make([]keyer.Key, 0, len(ring))
	for _, p := range ring {
		k := g.keyer.Key(p[0], p[1])
		if len(keys) > 0 && keys[len(keys)-1] == k {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) > 1 && keys[0] == keys[len(keys)-1] {
		keys = keys[:len(keys)-1]
	}
	if len(keys) < 3 {
		return fmt.Errorf("ring of %s has %d distinct points: %w", owner, len(keys), lod1.ErrMalformedGeometry)
	}

	for i := range keys {
		ek := NewEdgeKey(keys[i], keys[(i+1)%len(keys)])
		if _, ok := g.counts[ek]; !ok {
			g.order = append(g.order, ek)
		}
		g.counts[ek]++
		if prev := g.owners[ek]; len(prev) == 0 || prev[len(prev)-1] != owner {
			g.owners[ek] = append(prev, owner)
		}
	}
	return nil
}

// AddFootprint adds the exterior and every interior ring.
func (g *Graph) AddFootprint(fp *lod1.Footprint) error {
	if err := g.AddRing(fp.ID, fp.Exterior.Points()); err != nil {
		return err
	}
	for _, r := range fp.Interiors {
		if err := g.AddRing(fp.ID, r.Points()); err != nil {
			return err
		}
	}
	return nil
}

// Edges 按首次插入顺序返回
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.order))
	for i, k := range g.order {
		out[i] = Edge{Key: k, Count: g.counts[k]}
	}
	return out
}

// Shared lists edges referenced more than once. Diagnostics only: shared
// edges are still triangulation constraints.
func (g *Graph) Shared() []Edge {
	var out []Edge
	for _, k := range g.order {
		if c := g.counts[k]; c > 1 {
			out = append(out, Edge{Key: k, Count: c})
		}
	}
	return out
}

// Owners returns the rings that contributed the edge.
func (g *Graph) Owners(k EdgeKey) []string {
	return g.owners[k]
}

func (g *Graph) Len() int { return len(g.order) }

// Endpoints returns the unique edge endpoints as rounded planar vertices,
// in first-insertion order. z is left at zero.
func (g *Graph) Endpoints() []lod1.Vertex {
	seen := make(map[keyer.Key]bool)
	var out []lod1.Vertex
	add := func(k keyer.Key) {
		if seen[k] {
			return
		}
		seen[k] = true
		x, y := g.keyer.Coord(k)
		out = append(out, lod1.Vertex{X: x, Y: y})
	}
	for _, ek := range g.order {
		add(ek.A)
		add(ek.B)
	}
	return out
}

// 端点索引
type endpoint struct {
	key  keyer.Key
	rect rtreego.Rect
}

func (e *endpoint) Bounds() rtreego.Rect { return e.rect }

const pointSize = 1e-6

// SplitNear splits every edge at the ring vertices lying within tol key
// units of it, strictly between its endpoints. Rounding moves a T-junction
// vertex off the wall it sits on; unsplit, the two walls would cross.
// Counts and owners of a split edge pass to its pieces. Returns the number
// of edges split.
func (g *Graph) SplitNear(tol float64) int {
	tree := rtreego.NewTree(2, 25, 50)
	seen := make(map[keyer.Key]bool)
	add := func(k keyer.Key) {
		if seen[k] {
			return
		}
		seen[k] = true
		rect, err := rtreego.NewRect(rtreego.Point{float64(k.X), float64(k.Y)}, []float64{pointSize, pointSize})
		if err != nil {
			return
		}
		tree.Insert(&endpoint{key: k, rect: rect})
	}
	for _, ek := range g.order {
		add(ek.A)
		add(ek.B)
	}

	order := make([]EdgeKey, 0, len(g.order))
	counts := make(map[EdgeKey]int, len(g.counts))
	owners := make(map[EdgeKey][]string, len(g.owners))
	put := func(ek EdgeKey, count int, from []string) {
		if _, ok := counts[ek]; !ok {
			order = append(order, ek)
		}
		counts[ek] += count
	next:
		for _, o := range from {
			for _, have := range owners[ek] {
				if have == o {
					continue next
				}
			}
			owners[ek] = append(owners[ek], o)
		}
	}

	split := 0
	for _, ek := range g.order {
		chain := near(tree, ek, tol)
		if len(chain) == 0 {
			put(ek, g.counts[ek], g.owners[ek])
			continue
		}
		split++
		prev := ek.A
		for _, k := range append(chain, ek.B) {
			put(NewEdgeKey(prev, k), g.counts[ek], g.owners[ek])
			prev = k
		}
	}
	g.order, g.counts, g.owners = order, counts, owners
	return split
}

// near 返回距边 tol 以内的内部顶点，按自 A 到 B 的顺序
func near(tree *rtreego.Rtree, ek EdgeKey, tol float64) []keyer.Key {
	ax, ay := float64(ek.A.X), float64(ek.A.Y)
	dx, dy := float64(ek.B.X)-ax, float64(ek.B.Y)-ay
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return nil
	}
	minx, miny := math.Min(ax, ax+dx)-tol, math.Min(ay, ay+dy)-tol
	bb, err := rtreego.NewRect(rtreego.Point{minx, miny}, []float64{math.Abs(dx) + 2*tol, math.Abs(dy) + 2*tol})
	if err != nil {
		return nil
	}
	type hit struct {
		key keyer.Key
		t   float64
	}
	var hits []hit
	for _, s := range tree.SearchIntersect(bb) {
		k := s.(*endpoint).key
		if k == ek.A || k == ek.B {
			continue
		}
		px, py := float64(k.X)-ax, float64(k.Y)-ay
		t := (px*dx + py*dy) / l2
		if t <= 0 || t >= 1 {
			continue
		}
		if math.Abs(px*dy-py*dx)/math.Sqrt(l2) > tol {
			continue
		}
		hits = append(hits, hit{key: k, t: t})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].t < hits[j].t })
	out := make([]keyer.Key, len(hits))
	for i, h := range hits {
		out[i] = h.key
	}
	return out
}

// Indexed maps every edge to a pair of vertex indices in table, shifted by
// offset. An endpoint absent from the table means the two index spaces were
// built from different inputs.
func (g *Graph) Indexed(table *keyer.Table, offset int) ([][2]int, error) {
	out := make([][2]int, 0, len(g.order))
	for _, ek := range g.order {
		a, ok := table.Index(ek.A)
		if !ok {
			return nil, fmt.Errorf("endpoint %v of edge owned by %v not in vertex table: %w", ek.A, g.owners[ek], lod1.ErrIndexSpaceMismatch)
		}
		b, ok := table.Index(ek.B)
		if !ok {
			return nil, fmt.Errorf("endpoint %v of edge owned by %v not in vertex table: %w", ek.B, g.owners[ek], lod1.ErrIndexSpaceMismatch)
		}
		out = append(out, [2]int{a + offset, b + offset})
	}
	return out, nil
}
