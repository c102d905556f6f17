package Tin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/GrainArc/CityLoD1/keyer"
	"github.com/GrainArc/CityLoD1/lod1"
	"github.com/GrainArc/CityLoD1/segments"
	"github.com/paulmach/orb"
)

// Hole 孔洞种子，Owner 为对应的要素
type Hole struct {
	Owner string
	Point orb.Point
}

// Adapter assembles the solver input from two vertex blocks: terrain samples
// first, then the constraint vertices of the segment graph. Segment indices
// are rebased by the terrain block length.
type Adapter struct {
	keyer   *keyer.Keyer
	samples []lod1.Vertex
	table   *keyer.Table
	graph   *segments.Graph
	holes   []Hole

	vertices []lod1.Vertex
	segs     [][2]int
	terrain  int
	dropped  int
}

// Result 三角剖分结果，三角形下标指向 Vertices
type Result struct {
	Vertices  []lod1.Vertex
	Triangles [][3]int
}

func NewAdapter(k *keyer.Keyer) *Adapter {
	return &Adapter{keyer: k}
}

// AddSamples appends terrain samples. A sample sharing a key with a
// constraint vertex merges into it when the input is assembled; the merged
// vertex keeps the greater z.
func (a *Adapter) AddSamples(vs []lod1.Vertex) {
	a.samples = append(a.samples, vs...)
	a.vertices = nil
}

// AddConstraints sets the constraint block. table must hold every endpoint
// of graph.
func (a *Adapter) AddConstraints(table *keyer.Table, graph *segments.Graph) {
	a.table = table
	a.graph = graph
	a.vertices = nil
}

func (a *Adapter) AddHole(owner string, p orb.Point) {
	a.holes = append(a.holes, Hole{Owner: owner, Point: p})
}

func (a *Adapter) assemble() error {
	if a.vertices != nil {
		return nil
	}
	// 与约束顶点同键的采样点并入约束顶点，取较高的 z
	var constraint []lod1.Vertex
	if a.table != nil {
		constraint = append([]lod1.Vertex(nil), a.table.Vertices()...)
	}

	terrain := a.keyer.Build(a.samples)
	vertices := make([]lod1.Vertex, 0, terrain.Len()+len(constraint))
	a.dropped = len(a.samples) - terrain.Len()
	for i, k := range terrain.Keys() {
		v := terrain.Vertices()[i]
		if a.table != nil {
			if j, ok := a.table.Index(k); ok {
				a.dropped++
				if v.Z > constraint[j].Z {
					constraint[j].Z = v.Z
				}
				continue
			}
		}
		vertices = append(vertices, v)
	}
	a.terrain = len(vertices)

	a.segs = nil
	if a.table != nil {
		vertices = append(vertices, constraint...)
		if a.graph != nil {
			segs, err := a.graph.Indexed(a.table, a.terrain)
			if err != nil {
				return err
			}
			a.segs = segs
		}
	}
	a.vertices = vertices
	return nil
}

// Vertices 三角剖分使用的顶点顺序
func (a *Adapter) Vertices() ([]lod1.Vertex, error) {
	if err := a.assemble(); err != nil {
		return nil, err
	}
	return a.vertices, nil
}

// Input 组装求解器输入
func (a *Adapter) Input() (Input, error) {
	if err := a.assemble(); err != nil {
		return Input{}, err
	}
	in := Input{Points: VerticesToPoints(a.vertices), Segments: a.segs}
	for _, h := range a.holes {
		in.Holes = append(in.Holes, Point2D{X: h.Point[0], Y: h.Point[1]})
	}
	return in, nil
}

// Validate cross-checks the assembled index space. Every failure is an
// ErrIndexSpaceMismatch: it means the blocks were built from different inputs.
func (a *Adapter) Validate() error {
	if err := a.assemble(); err != nil {
		return err
	}
	seen := make(map[keyer.Key]int, len(a.vertices))
	for i, v := range a.vertices {
		k := a.keyer.Key(v.X, v.Y)
		if j, ok := seen[k]; ok {
			return fmt.Errorf("vertices %d and %d share key %v: %w", j, i, k, lod1.ErrIndexSpaceMismatch)
		}
		seen[k] = i
	}
	if a.graph != nil {
		edges := a.graph.Edges()
		if len(edges) != len(a.segs) {
			return fmt.Errorf("%d segments for %d edges: %w", len(a.segs), len(edges), lod1.ErrIndexSpaceMismatch)
		}
		for i, s := range a.segs {
			if s[0] < a.terrain || s[0] >= len(a.vertices) || s[1] < a.terrain || s[1] >= len(a.vertices) {
				return fmt.Errorf("segment %d index %v outside constraint block [%d,%d): %w", i, s, a.terrain, len(a.vertices), lod1.ErrIndexSpaceMismatch)
			}
			va, vb := a.vertices[s[0]], a.vertices[s[1]]
			got := segments.NewEdgeKey(a.keyer.Key(va.X, va.Y), a.keyer.Key(vb.X, vb.Y))
			if got != edges[i].Key {
				return fmt.Errorf("segment %d re-keys to %v, edge is %v: %w", i, got, edges[i].Key, lod1.ErrIndexSpaceMismatch)
			}
		}
	}
	for _, h := range a.holes {
		if math.IsNaN(h.Point[0]) || math.IsNaN(h.Point[1]) || math.IsInf(h.Point[0], 0) || math.IsInf(h.Point[1], 0) {
			return fmt.Errorf("hole seed of %s is not finite: %w", h.Owner, lod1.ErrIndexSpaceMismatch)
		}
	}
	return nil
}

// Run validates, triangulates and checks the solver output. The solver call
// itself cannot be interrupted; ctx is honoured before and after it.
func (a *Adapter) Run(ctx context.Context, solver Solver) (*Result, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	in, err := a.Input()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Printf("triangulating %d vertices (%d terrain, %d dropped), %d segments, %d holes",
		len(in.Points), a.terrain, a.dropped, len(in.Segments), len(in.Holes))

	out, err := solver.Triangulate(in)
	if err != nil {
		var ce *ConstraintError
		if errors.As(err, &ce) {
			return nil, fmt.Errorf("constraints of %v cross: %w", a.owners(ce.Segments), lod1.ErrConstraintGraph)
		}
		return nil, fmt.Errorf("triangulation failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, t := range out.Triangles {
		for _, j := range t {
			if j < 0 || j >= len(a.vertices) {
				return nil, fmt.Errorf("solver triangle %d references vertex %d of %d: %w", i, j, len(a.vertices), lod1.ErrIndexSpaceMismatch)
			}
		}
	}
	return &Result{Vertices: a.vertices, Triangles: out.Triangles}, nil
}

func (a *Adapter) owners(segs []int) []string {
	if a.graph == nil {
		return nil
	}
	edges := a.graph.Edges()
	seen := make(map[string]bool)
	var out []string
	for _, s := range segs {
		if s < 0 || s >= len(edges) {
			continue
		}
		for _, o := range a.graph.Owners(edges[s].Key) {
			if !seen[o] {
				seen[o] = true
				out = append(out, o)
			}
		}
	}
	return out
}
