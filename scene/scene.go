// Package scene accumulates the global vertex arena and the city objects
// whose surfaces reference it.
package scene

import (
	"errors"
	"fmt"
	"sync"

	"github.com/GrainArc/CityLoD1/lod1"
)

var ErrFinalized = errors.New("scene already finalized")

const (
	GeometrySolid            = "Solid"
	GeometryCompositeSurface = "CompositeSurface"
)

// Geometry 一组边界面，Boundaries 中的下标指向全局顶点表
type Geometry struct {
	Type       string
	LoD        int
	Boundaries []lod1.Face
}

// Object 城市对象
type Object struct {
	ID         string
	Type       string
	Attributes map[string]interface{}
	Geometries []Geometry
}

// Scene is the finished, read-only result of an Assembler.
type Scene struct {
	Vertices []lod1.Vertex
	Objects  []*Object
}

// Object 按标识查找
func (s *Scene) Object(id string) (*Object, bool) {
	for _, o := range s.Objects {
		if o.ID == id {
			return o, true
		}
	}
	return nil, false
}

// Assembler owns the append-only vertex arena. Indices handed out are never
// reassigned; every face is checked against the arena before it is stored.
type Assembler struct {
	mu       sync.Mutex
	vertices []lod1.Vertex
	objects  []*Object
	ids      map[string]int
	done     bool
}

func NewAssembler() *Assembler {
	return &Assembler{ids: make(map[string]int)}
}

func (a *Assembler) claim(id string) error {
	if a.done {
		return ErrFinalized
	}
	if _, ok := a.ids[id]; ok {
		return fmt.Errorf("object %q: %w", id, lod1.ErrDuplicateObjectIdentity)
	}
	return nil
}

// AppendTerrain adds the terrain surface. Triangles index vertices.
func (a *Assembler) AppendTerrain(id string, triangles [][3]int, vertices []lod1.Vertex) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.claim(id); err != nil {
		return err
	}
	for i, t := range triangles {
		for _, j := range t {
			if j < 0 || j >= len(vertices) {
				return fmt.Errorf("terrain triangle %d references vertex %d of %d: %w", i, j, len(vertices), lod1.ErrIndexSpaceMismatch)
			}
		}
	}

	base := len(a.vertices)
	a.vertices = append(a.vertices, vertices...)
	faces := make([]lod1.Face, len(triangles))
	for i, t := range triangles {
		faces[i] = lod1.Face{{t[0] + base, t[1] + base, t[2] + base}}
	}
	a.add(&Object{
		ID:         id,
		Type:       "TINRelief",
		Geometries: []Geometry{{Type: GeometryCompositeSurface, LoD: 1, Boundaries: faces}},
	})
	return nil
}

// AppendSolid adds one object with one Solid geometry per shell. Each shell
// is rebased onto the end of the arena; shells are never deduplicated
// against existing vertices.
func (a *Assembler) AppendSolid(id, objType string, attrs map[string]interface{}, shells ...lod1.Shell) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.claim(id); err != nil {
		return err
	}
	for i := range shells {
		if err := shells[i].CheckIndices(); err != nil {
			return fmt.Errorf("object %q shell %d: %w", id, i, err)
		}
	}

	obj := &Object{ID: id, Type: objType, Attributes: attrs}
	for _, sh := range shells {
		base := len(a.vertices)
		a.vertices = append(a.vertices, sh.Vertices...)
		faces := make([]lod1.Face, len(sh.Faces))
		for fi, f := range sh.Faces {
			face := make(lod1.Face, len(f))
			for li, loop := range f {
				rebased := make([]int, len(loop))
				for k, j := range loop {
					rebased[k] = j + base
				}
				face[li] = rebased
			}
			faces[fi] = face
		}
		obj.Geometries = append(obj.Geometries, Geometry{Type: GeometrySolid, LoD: 1, Boundaries: faces})
	}
	a.add(obj)
	return nil
}

func (a *Assembler) add(o *Object) {
	a.ids[o.ID] = len(a.objects)
	a.objects = append(a.objects, o)
}

// Len 当前顶点数量
func (a *Assembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.vertices)
}

// Finalize freezes the assembler and returns the scene. Later appends fail
// with ErrFinalized.
func (a *Assembler) Finalize() *Scene {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.done = true
	return &Scene{Vertices: a.vertices, Objects: a.objects}
}
