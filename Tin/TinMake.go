package Tin

import (
	"errors"
	"fmt"
	"math"
)

var ErrDuplicatePoint = errors.New("duplicate point")

// ConstraintError 约束线段相交，Segments 为 Input.Segments 中的下标
type ConstraintError struct {
	Segments []int
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint segments %v cross", e.Segments)
}

// Delaunay is the built-in Solver: Bowyer-Watson insertion inside a super
// triangle, then segment recovery by cavity re-triangulation, then removal of
// hole regions and of everything outside the outermost segments.
type Delaunay struct{}

type tri struct {
	v    [3]int
	dead bool
}

// from rotates the triangle so that a comes first and returns the other two
// vertices in counter-clockwise order.
func (t tri) from(a int) (int, int) {
	switch a {
	case t.v[0]:
		return t.v[1], t.v[2]
	case t.v[1]:
		return t.v[2], t.v[0]
	default:
		return t.v[0], t.v[1]
	}
}

func (t tri) has(a int) bool {
	return t.v[0] == a || t.v[1] == a || t.v[2] == a
}

type mesh struct {
	pts         []Point2D
	n           int // 真实点数量，其后三个为超级三角形顶点
	tris        []tri
	edges       map[[2]int]int
	vertTri     []int
	constrained map[[2]int]int
	last        int
}

func undirected(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// 二维叉积，正值表示逆时针
func (m *mesh) orient(a, b, c int) float64 {
	return orientPts(m.pts[a], m.pts[b], m.pts[c])
}

func orientPts(a, b, c Point2D) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// 判断点d是否严格位于三角形abc的外接圆内，与abc的方向无关
func (m *mesh) inCircle(a, b, c, d int) bool {
	pa, pb, pc, pd := m.pts[a], m.pts[b], m.pts[c], m.pts[d]
	adx, ady := pa.X-pd.X, pa.Y-pd.Y
	bdx, bdy := pb.X-pd.X, pb.Y-pd.Y
	cdx, cdy := pc.X-pd.X, pc.Y-pd.Y
	det := (adx*adx+ady*ady)*(bdx*cdy-cdx*bdy) -
		(bdx*bdx+bdy*bdy)*(adx*cdy-cdx*ady) +
		(cdx*cdx+cdy*cdy)*(adx*bdy-bdx*ady)
	if m.orient(a, b, c) < 0 {
		det = -det
	}
	return det > 0
}

func (m *mesh) addTri(a, b, c int) int {
	if m.orient(a, b, c) < 0 {
		b, c = c, b
	}
	id := len(m.tris)
	m.tris = append(m.tris, tri{v: [3]int{a, b, c}})
	m.edges[[2]int{a, b}] = id
	m.edges[[2]int{b, c}] = id
	m.edges[[2]int{c, a}] = id
	m.vertTri[a], m.vertTri[b], m.vertTri[c] = id, id, id
	m.last = id
	return id
}

func (m *mesh) removeTri(id int) {
	t := &m.tris[id]
	t.dead = true
	for k := 0; k < 3; k++ {
		e := [2]int{t.v[k], t.v[(k+1)%3]}
		if m.edges[e] == id {
			delete(m.edges, e)
		}
	}
}

// neighbour across the edge starting at corner k of triangle id
func (m *mesh) neighbour(id, k int) (int, bool) {
	t := m.tris[id]
	nb, ok := m.edges[[2]int{t.v[(k+1)%3], t.v[k]}]
	return nb, ok
}

func (m *mesh) containsPt(id int, p Point2D) bool {
	t := m.tris[id]
	for k := 0; k < 3; k++ {
		if orientPts(m.pts[t.v[k]], m.pts[t.v[(k+1)%3]], p) < 0 {
			return false
		}
	}
	return true
}

// locate 从上次插入的三角形出发游走，找到包含p的三角形
func (m *mesh) locate(p Point2D) (int, bool) {
	t := m.last
	if t < 0 || t >= len(m.tris) || m.tris[t].dead {
		t = -1
		for i := range m.tris {
			if !m.tris[i].dead {
				t = i
				break
			}
		}
		if t < 0 {
			return 0, false
		}
	}

walk:
	for steps := 0; steps <= len(m.tris); steps++ {
		tr := m.tris[t]
		for k := 0; k < 3; k++ {
			if orientPts(m.pts[tr.v[k]], m.pts[tr.v[(k+1)%3]], p) < 0 {
				nb, ok := m.neighbour(t, k)
				if !ok {
					break walk
				}
				t = nb
				continue walk
			}
		}
		return t, true
	}

	for i := range m.tris {
		if !m.tris[i].dead && m.containsPt(i, p) {
			return i, true
		}
	}
	return 0, false
}

func (m *mesh) insert(p int) error {
	t, ok := m.locate(m.pts[p])
	if !ok {
		return fmt.Errorf("point %d outside the super triangle", p)
	}
	for _, v := range m.tris[t].v {
		if m.pts[v] == m.pts[p] {
			return fmt.Errorf("point %d coincides with point %d: %w", p, v, ErrDuplicatePoint)
		}
	}

	// 外接圆包含p的三角形构成空腔
	bad := []int{t}
	inBad := map[int]bool{t: true}
	for i := 0; i < len(bad); i++ {
		for k := 0; k < 3; k++ {
			nb, ok := m.neighbour(bad[i], k)
			if !ok || inBad[nb] {
				continue
			}
			v := m.tris[nb].v
			if m.inCircle(v[0], v[1], v[2], p) {
				inBad[nb] = true
				bad = append(bad, nb)
			}
		}
	}

	var boundary [][2]int
	for _, id := range bad {
		for k := 0; k < 3; k++ {
			nb, ok := m.neighbour(id, k)
			if !ok || !inBad[nb] {
				v := m.tris[id].v
				boundary = append(boundary, [2]int{v[k], v[(k+1)%3]})
			}
		}
	}

	for _, id := range bad {
		m.removeTri(id)
	}
	for _, e := range boundary {
		m.addTri(e[0], e[1], p)
	}
	return nil
}

// around 返回与顶点a相邻的所有三角形
func (m *mesh) around(a int) []int {
	start := -1
	if id := m.vertTri[a]; id >= 0 && !m.tris[id].dead && m.tris[id].has(a) {
		start = id
	} else {
		for i := range m.tris {
			if !m.tris[i].dead && m.tris[i].has(a) {
				start = i
				break
			}
		}
	}
	if start < 0 {
		return nil
	}

	out := []int{start}
	seen := map[int]bool{start: true}
	// 逆时针
	for t := start; ; {
		_, v2 := m.tris[t].from(a)
		nb, ok := m.edges[[2]int{a, v2}]
		if !ok || seen[nb] {
			break
		}
		seen[nb] = true
		out = append(out, nb)
		t = nb
	}
	// 顺时针，仅在扇形未闭合时有效
	for t := start; ; {
		v1, _ := m.tris[t].from(a)
		nb, ok := m.edges[[2]int{v1, a}]
		if !ok || seen[nb] {
			break
		}
		seen[nb] = true
		out = append(out, nb)
		t = nb
	}
	return out
}

func (m *mesh) hasEdge(a, b int) bool {
	if _, ok := m.edges[[2]int{a, b}]; ok {
		return true
	}
	_, ok := m.edges[[2]int{b, a}]
	return ok
}

// recover 恢复约束边ab，穿过的三角形删除后在两侧重新剖分
func (m *mesh) recover(a, b, seg int) error {
	if a == b {
		return nil
	}
	if m.hasEdge(a, b) {
		m.constrain(a, b, seg)
		return nil
	}

	t0, r, l := -1, -1, -1
	for _, t := range m.around(a) {
		v1, v2 := m.tris[t].from(a)
		o1, o2 := m.orient(a, v1, b), m.orient(a, v2, b)
		if o1 == 0 && m.ahead(a, b, v1) {
			return m.split(a, v1, b, seg)
		}
		if o2 == 0 && m.ahead(a, b, v2) {
			return m.split(a, v2, b, seg)
		}
		if o1 > 0 && o2 < 0 {
			t0, r, l = t, v1, v2
			break
		}
	}
	if t0 < 0 {
		return fmt.Errorf("segment %d: no triangle at vertex %d faces vertex %d", seg, a, b)
	}

	cavity := []int{t0}
	lefts, rights := []int{l}, []int{r}
	for {
		if c, ok := m.constrained[undirected(r, l)]; ok {
			return &ConstraintError{Segments: []int{c, seg}}
		}
		t, ok := m.edges[[2]int{l, r}]
		if !ok {
			return fmt.Errorf("segment %d leaves the triangulation", seg)
		}
		cavity = append(cavity, t)
		var x int
		for _, v := range m.tris[t].v {
			if v != l && v != r {
				x = v
			}
		}
		if x == b {
			break
		}
		switch o := m.orient(a, b, x); {
		case o == 0:
			return m.split(a, x, b, seg)
		case o > 0:
			l = x
			lefts = append(lefts, x)
		default:
			r = x
			rights = append(rights, x)
		}
	}

	for _, id := range cavity {
		m.removeTri(id)
	}
	m.fillPseudo(a, b, lefts)
	m.fillPseudo(a, b, rights)
	m.constrain(a, b, seg)
	return nil
}

// ahead reports whether v, collinear with ab, lies strictly between a and b.
func (m *mesh) ahead(a, b, v int) bool {
	pa, pb, pv := m.pts[a], m.pts[b], m.pts[v]
	dot := (pv.X-pa.X)*(pb.X-pa.X) + (pv.Y-pa.Y)*(pb.Y-pa.Y)
	l2 := (pb.X-pa.X)*(pb.X-pa.X) + (pb.Y-pa.Y)*(pb.Y-pa.Y)
	return dot > 0 && dot < l2
}

// split 约束边穿过已有顶点时拆成两段
func (m *mesh) split(a, v, b, seg int) error {
	if err := m.recover(a, v, seg); err != nil {
		return err
	}
	return m.recover(v, b, seg)
}

func (m *mesh) constrain(a, b, seg int) {
	k := undirected(a, b)
	if _, ok := m.constrained[k]; !ok {
		m.constrained[k] = seg
	}
}

// fillPseudo 伪多边形剖分：选取与ab构成的外接圆内不含其他顶点的c，递归两侧
func (m *mesh) fillPseudo(a, b int, chain []int) {
	if len(chain) == 0 {
		return
	}
	ci := 0
	for i := 1; i < len(chain); i++ {
		if m.inCircle(a, b, chain[ci], chain[i]) {
			ci = i
		}
	}
	c := chain[ci]
	m.fillPseudo(a, c, chain[:ci])
	m.fillPseudo(c, b, chain[ci+1:])
	m.addTri(a, b, c)
}

// carve 从种子三角形出发洪泛，约束边阻断扩散
func (m *mesh) carve(seeds []int, eaten []bool) {
	queue := append([]int(nil), seeds...)
	for _, s := range seeds {
		eaten[s] = true
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		t := m.tris[id]
		for k := 0; k < 3; k++ {
			if _, ok := m.constrained[undirected(t.v[k], t.v[(k+1)%3])]; ok {
				continue
			}
			nb, ok := m.neighbour(id, k)
			if !ok || eaten[nb] {
				continue
			}
			eaten[nb] = true
			queue = append(queue, nb)
		}
	}
}

// 创建超级三角形
func superTriangle(points []Point2D) [3]Point2D {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	deltaMax := math.Max(maxX-minX, maxY-minY)
	if deltaMax == 0 {
		deltaMax = 1
	}
	midX := (minX + maxX) / 2
	midY := (minY + maxY) / 2
	return [3]Point2D{
		{X: midX - 20*deltaMax, Y: midY - deltaMax},
		{X: midX, Y: midY + 20*deltaMax},
		{X: midX + 20*deltaMax, Y: midY - deltaMax},
	}
}

// Triangulate 约束Delaunay三角剖分
func (Delaunay) Triangulate(in Input) (Output, error) {
	n := len(in.Points)
	if n < 3 {
		return Output{}, fmt.Errorf("need at least 3 points, got %d", n)
	}
	for i, s := range in.Segments {
		if s[0] < 0 || s[0] >= n || s[1] < 0 || s[1] >= n {
			return Output{}, fmt.Errorf("segment %d references %v outside %d points", i, s, n)
		}
		if s[0] == s[1] {
			return Output{}, fmt.Errorf("segment %d is degenerate", i)
		}
	}

	// 平移到局部坐标，减小外接圆判断的舍入误差
	ox, oy := in.Points[0].X, in.Points[0].Y
	pts := make([]Point2D, n, n+3)
	for i, p := range in.Points {
		pts[i] = Point2D{X: p.X - ox, Y: p.Y - oy}
	}
	st := superTriangle(pts)
	pts = append(pts, st[0], st[1], st[2])

	m := &mesh{
		pts:         pts,
		n:           n,
		edges:       make(map[[2]int]int, 6*n),
		vertTri:     make([]int, n+3),
		constrained: make(map[[2]int]int, len(in.Segments)),
		last:        -1,
	}
	for i := range m.vertTri {
		m.vertTri[i] = -1
	}
	m.addTri(n, n+1, n+2)

	for i := 0; i < n; i++ {
		if err := m.insert(i); err != nil {
			return Output{}, err
		}
	}
	for i, s := range in.Segments {
		if err := m.recover(s[0], s[1], i); err != nil {
			return Output{}, err
		}
	}

	eaten := make([]bool, len(m.tris))
	var outside []int
	for id, t := range m.tris {
		if !t.dead && (t.v[0] >= n || t.v[1] >= n || t.v[2] >= n) {
			outside = append(outside, id)
		}
	}
	if len(in.Segments) > 0 {
		m.carve(outside, eaten)
	} else {
		for _, id := range outside {
			eaten[id] = true
		}
	}
	for _, h := range in.Holes {
		p := Point2D{X: h.X - ox, Y: h.Y - oy}
		id, ok := m.locate(p)
		if !ok || m.tris[id].dead || eaten[id] {
			continue
		}
		m.carve([]int{id}, eaten)
	}

	var out Output
	for id, t := range m.tris {
		if t.dead || eaten[id] {
			continue
		}
		out.Triangles = append(out.Triangles, t.v)
	}
	return out, nil
}
