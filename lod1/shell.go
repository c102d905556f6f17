package lod1

import "fmt"

// Face is one planar boundary surface: the outer loop first, then holes.
// Loops hold indices into the owning Shell's vertex buffer.
type Face [][]int

// Shell 单个要素的私有顶点缓冲与面
// Indices are local; they are rebased only when the shell is merged into a scene.
type Shell struct {
	Vertices []Vertex
	Faces    []Face
}

// AddFace appends a face whose loops are given as coordinates. Every loop
// gets fresh vertices, nothing is shared between faces.
func (s *Shell) AddFace(loops ...[]Vertex) {
	face := make(Face, 0, len(loops))
	for _, loop := range loops {
		idx := make([]int, len(loop))
		for i, v := range loop {
			idx[i] = len(s.Vertices)
			s.Vertices = append(s.Vertices, v)
		}
		face = append(face, idx)
	}
	s.Faces = append(s.Faces, face)
}

// Loop resolves one loop of a face to coordinates.
func (s *Shell) Loop(face, loop int) []Vertex {
	idx := s.Faces[face][loop]
	out := make([]Vertex, len(idx))
	for i, j := range idx {
		out[i] = s.Vertices[j]
	}
	return out
}

// CheckIndices verifies every face index points into the vertex buffer.
func (s *Shell) CheckIndices() error {
	for fi, face := range s.Faces {
		for li, loop := range face {
			if len(loop) < 3 {
				return fmt.Errorf("face %d loop %d has %d vertices: %w", fi, li, len(loop), ErrMalformedGeometry)
			}
			for _, j := range loop {
				if j < 0 || j >= len(s.Vertices) {
					return fmt.Errorf("face %d references vertex %d of %d: %w", fi, j, len(s.Vertices), ErrIndexSpaceMismatch)
				}
			}
		}
	}
	return nil
}

// DistinctPositions counts the distinct vertex positions of the shell.
func (s *Shell) DistinctPositions() int {
	seen := make(map[Vertex]struct{}, len(s.Vertices))
	for _, v := range s.Vertices {
		seen[v] = struct{}{}
	}
	return len(seen)
}
