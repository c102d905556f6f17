// Package keyer rounds planar coordinates to a fixed number of decimals and
// uses the rounded integers as vertex identity.
package keyer

import (
	"math"
	"sort"

	"github.com/GrainArc/CityLoD1/lod1"
)

// Key 取整后的坐标标识
type Key struct {
	X, Y int64
}

// Less orders keys by x, then y.
func (k Key) Less(o Key) bool {
	if k.X != o.X {
		return k.X < o.X
	}
	return k.Y < o.Y
}

// Keyer maps coordinates to keys at a fixed precision.
type Keyer struct {
	precision int
	scale     float64
}

func New(precision int) *Keyer {
	return &Keyer{precision: precision, scale: math.Pow(10, float64(precision))}
}

func (k *Keyer) Precision() int { return k.precision }

// Key rounds half away from zero.
func (k *Keyer) Key(x, y float64) Key {
	return Key{X: int64(math.Round(x * k.scale)), Y: int64(math.Round(y * k.scale))}
}

// Coord converts a key back to its rounded coordinate.
func (k *Keyer) Coord(key Key) (float64, float64) {
	return float64(key.X) / k.scale, float64(key.Y) / k.scale
}

// Table 去重后的顶点表，按 (x, y) 排序
type Table struct {
	keyer    *Keyer
	keys     []Key
	vertices []lod1.Vertex
	index    map[Key]int
}

// Build deduplicates samples by key. Coincident samples keep the greatest z;
// downstream ground heights rely on this and it must not become an average.
// Vertices carry the rounded coordinates of their key.
func (k *Keyer) Build(samples []lod1.Vertex) *Table {
	best := make(map[Key]float64, len(samples))
	for _, s := range samples {
		key := k.Key(s.X, s.Y)
		if z, ok := best[key]; !ok || s.Z > z {
			best[key] = s.Z
		}
	}

	keys := make([]Key, 0, len(best))
	for key := range best {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	t := &Table{
		keyer:    k,
		keys:     keys,
		vertices: make([]lod1.Vertex, len(keys)),
		index:    make(map[Key]int, len(keys)),
	}
	for i, key := range keys {
		x, y := k.Coord(key)
		t.vertices[i] = lod1.Vertex{X: x, Y: y, Z: best[key]}
		t.index[key] = i
	}
	return t
}

// Index looks a key up in the hash index.
func (t *Table) Index(key Key) (int, bool) {
	i, ok := t.index[key]
	return i, ok
}

// Search looks a key up by binary search over the sorted keys. It returns
// the same answer as Index.
func (t *Table) Search(key Key) (int, bool) {
	i := sort.Search(len(t.keys), func(i int) bool { return !t.keys[i].Less(key) })
	if i < len(t.keys) && t.keys[i] == key {
		return i, true
	}
	return 0, false
}

// Lookup keys (x, y) and returns the stored vertex.
func (t *Table) Lookup(x, y float64) (lod1.Vertex, bool) {
	i, ok := t.index[t.keyer.Key(x, y)]
	if !ok {
		return lod1.Vertex{}, false
	}
	return t.vertices[i], true
}

func (t *Table) Vertices() []lod1.Vertex { return t.vertices }

func (t *Table) Keys() []Key { return t.keys }

func (t *Table) Len() int { return len(t.keys) }

func (t *Table) Keyer() *Keyer { return t.keyer }

// MinZ 返回样本最低高程，落地建筑以此作为有效地面
func MinZ(samples []lod1.Vertex) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	m := samples[0].Z
	for _, s := range samples[1:] {
		if s.Z < m {
			m = s.Z
		}
	}
	return m, true
}
