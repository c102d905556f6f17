// Package cityjson serializes an assembled scene as a CityJSON 1.1 document.
package cityjson

import (
	"fmt"
	"io"
	"math"

	"github.com/GrainArc/CityLoD1/lod1"
	"github.com/GrainArc/CityLoD1/scene"
	"github.com/goccy/go-json"
	"github.com/paulmach/orb"
)

const Version = "1.1"

// Contact 联系人
type Contact struct {
	ContactName  string `json:"contactName,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
	ContactType  string `json:"contactType,omitempty"`
	Website      string `json:"website,omitempty"`
}

// Meta describes the dataset. Extent is the terrain extent in the plane;
// Margin widens it on every side in the geographicalExtent.
type Meta struct {
	Title           string
	ReferenceDate   string
	ReferenceSystem string
	Contact         *Contact
	Extent          orb.Bound
	Margin          float64
	Precision       int
}

type Transform struct {
	Scale     [3]float64 `json:"scale"`
	Translate [3]float64 `json:"translate"`
}

type Metadata struct {
	Title              string     `json:"title,omitempty"`
	ReferenceDate      string     `json:"referenceDate,omitempty"`
	ReferenceSystem    string     `json:"referenceSystem,omitempty"`
	GeographicalExtent [6]float64 `json:"geographicalExtent"`
	PointOfContact     *Contact   `json:"pointOfContact,omitempty"`
}

type Geometry struct {
	Type       string      `json:"type"`
	LoD        string      `json:"lod"`
	Boundaries interface{} `json:"boundaries"`
}

type CityObject struct {
	Type       string                 `json:"type"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	Geometry   []Geometry             `json:"geometry"`
}

// Document CityJSON 顶层结构
type Document struct {
	Type        string                `json:"type"`
	Version     string                `json:"version"`
	Transform   Transform             `json:"transform"`
	Metadata    Metadata              `json:"metadata"`
	CityObjects map[string]CityObject `json:"CityObjects"`
	Vertices    [][3]int64            `json:"vertices"`
}

// NewDocument quantizes the arena with scale 10^-precision relative to the
// minimum corner; indices of the scene carry over unchanged.
func NewDocument(sc *scene.Scene, meta Meta) (*Document, error) {
	scale := 1 / math.Pow(10, float64(meta.Precision))
	doc := &Document{
		Type:        "CityJSON",
		Version:     Version,
		Transform:   Transform{Scale: [3]float64{scale, scale, scale}},
		CityObjects: make(map[string]CityObject, len(sc.Objects)),
		Vertices:    make([][3]int64, len(sc.Vertices)),
	}

	lo := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, v := range sc.Vertices {
		for i, c := range [3]float64{v.X, v.Y, v.Z} {
			lo[i] = math.Min(lo[i], c)
			hi[i] = math.Max(hi[i], c)
		}
	}
	if len(sc.Vertices) == 0 {
		lo, hi = [3]float64{}, [3]float64{}
	}
	doc.Transform.Translate = lo
	for i, v := range sc.Vertices {
		doc.Vertices[i] = [3]int64{
			int64(math.Round((v.X - lo[0]) / scale)),
			int64(math.Round((v.Y - lo[1]) / scale)),
			int64(math.Round((v.Z - lo[2]) / scale)),
		}
	}

	ext := meta.Extent
	if ext.IsZero() && len(sc.Vertices) > 0 {
		ext = orb.Bound{Min: orb.Point{lo[0], lo[1]}, Max: orb.Point{hi[0], hi[1]}}
	}
	doc.Metadata = Metadata{
		Title:           meta.Title,
		ReferenceDate:   meta.ReferenceDate,
		ReferenceSystem: meta.ReferenceSystem,
		PointOfContact:  meta.Contact,
		GeographicalExtent: [6]float64{
			ext.Min[0] - meta.Margin, ext.Min[1] - meta.Margin, lo[2],
			ext.Max[0] + meta.Margin, ext.Max[1] + meta.Margin, hi[2],
		},
	}

	for _, o := range sc.Objects {
		if _, ok := doc.CityObjects[o.ID]; ok {
			return nil, fmt.Errorf("object %q: %w", o.ID, lod1.ErrDuplicateObjectIdentity)
		}
		co := CityObject{Type: o.Type, Attributes: attributes(o.Attributes)}
		for _, g := range o.Geometries {
			geom, err := geometry(g, len(sc.Vertices))
			if err != nil {
				return nil, fmt.Errorf("object %q: %w", o.ID, err)
			}
			co.Geometry = append(co.Geometry, geom)
		}
		doc.CityObjects[o.ID] = co
	}
	return doc, nil
}

// attributes 去掉空值
func attributes(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if v == nil {
			continue
		}
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func geometry(g scene.Geometry, n int) (Geometry, error) {
	surfaces := make([][][]int, len(g.Boundaries))
	for i, f := range g.Boundaries {
		face := make([][]int, len(f))
		for j, loop := range f {
			for _, k := range loop {
				if k < 0 || k >= n {
					return Geometry{}, fmt.Errorf("surface %d references vertex %d of %d: %w", i, k, n, lod1.ErrIndexSpaceMismatch)
				}
			}
			face[j] = loop
		}
		surfaces[i] = face
	}
	out := Geometry{Type: g.Type, LoD: fmt.Sprint(g.LoD)}
	switch g.Type {
	case scene.GeometrySolid:
		// 只有外壳
		out.Boundaries = [][][][]int{surfaces}
	default:
		out.Boundaries = surfaces
	}
	return out, nil
}

// Encode writes the CityJSON document of sc to w.
func Encode(w io.Writer, sc *scene.Scene, meta Meta) error {
	doc, err := NewDocument(sc, meta)
	if err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Decode reads a document written by Encode.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}
	if doc.Type != "CityJSON" {
		return nil, fmt.Errorf("not a CityJSON document: type %q", doc.Type)
	}
	return &doc, nil
}

// Dequantize 还原实际坐标
func (d *Document) Dequantize(i int) lod1.Vertex {
	v := d.Vertices[i]
	s, t := d.Transform.Scale, d.Transform.Translate
	return lod1.Vertex{
		X: float64(v[0])*s[0] + t[0],
		Y: float64(v[1])*s[1] + t[1],
		Z: float64(v[2])*s[2] + t[2],
	}
}
