// Package dem reads ground elevation rasters and samples them.
package dem

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/GrainArc/CityLoD1/lod1"
	"github.com/paulmach/orb"
)

// Sampler 高程采样
type Sampler interface {
	Sample(x, y float64) (float64, error)
}

// Grid is a north-up raster. Values are row-major, row 0 at the top.
type Grid struct {
	NCols, NRows int
	XMin, YMax   float64 // 左上角
	CellSize     float64
	NoData       float64
	HasNoData    bool
	Values       []float64
}

// Open reads an ESRI ASCII grid (.asc) or a GDAL XYZ file (.xyz, .txt).
// nodata applies to XYZ files, which carry no header.
func Open(path string, nodata float64) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".asc":
		return ReadASCIIGrid(f)
	case ".xyz", ".txt", ".csv":
		return ReadXYZ(f, nodata)
	default:
		return nil, fmt.Errorf("unsupported elevation format %s", filepath.Ext(path))
	}
}

// ReadASCIIGrid 读取ESRI ASCII栅格
func ReadASCIIGrid(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	sc.Split(bufio.ScanWords)

	g := &Grid{}
	var xll, yll float64
	var centre bool
	header := map[string]bool{}
	var pending string
	for len(header) < 6 && sc.Scan() {
		tok := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(tok, 64); err == nil {
			pending = sc.Text()
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("header %s has no value", tok)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("header %s: %w", tok, err)
		}
		switch tok {
		case "ncols":
			g.NCols = int(v)
		case "nrows":
			g.NRows = int(v)
		case "xllcorner":
			xll = v
		case "xllcenter":
			xll, centre = v, true
		case "yllcorner":
			yll = v
		case "yllcenter":
			yll, centre = v, true
		case "cellsize":
			g.CellSize = v
		case "nodata_value":
			g.NoData, g.HasNoData = v, true
		default:
			return nil, fmt.Errorf("unknown header %s", tok)
		}
		header[tok] = true
	}
	if g.NCols <= 0 || g.NRows <= 0 || g.CellSize <= 0 {
		return nil, fmt.Errorf("invalid grid header: %d x %d, cell %v", g.NCols, g.NRows, g.CellSize)
	}
	if centre {
		xll -= g.CellSize / 2
		yll -= g.CellSize / 2
	}
	g.XMin = xll
	g.YMax = yll + float64(g.NRows)*g.CellSize

	g.Values = make([]float64, 0, g.NCols*g.NRows)
	parse := func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("cell %d: %w", len(g.Values), err)
		}
		g.Values = append(g.Values, v)
		return nil
	}
	if pending != "" {
		if err := parse(pending); err != nil {
			return nil, err
		}
	}
	for sc.Scan() && len(g.Values) < g.NCols*g.NRows {
		if err := parse(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(g.Values) != g.NCols*g.NRows {
		return nil, fmt.Errorf("grid has %d cells, header says %d", len(g.Values), g.NCols*g.NRows)
	}
	return g, nil
}

// ReadXYZ 读取GDAL XYZ格式：每行一个像元中心 x y z
func ReadXYZ(r io.Reader, nodata float64) (*Grid, error) {
	type cell struct{ x, y, z float64 }
	var cells []cell
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.FieldsFunc(sc.Text(), func(r rune) bool {
			return r == ' ' || r == '\t' || r == ','
		})
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 3 {
			return nil, fmt.Errorf("line %d: expected x y z", line)
		}
		var c cell
		var err error
		if c.x, err = strconv.ParseFloat(fields[0], 64); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if c.y, err = strconv.ParseFloat(fields[1], 64); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if c.z, err = strconv.ParseFloat(fields[2], 64); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cells = append(cells, c)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("no cells")
	}

	xs := make([]float64, len(cells))
	ys := make([]float64, len(cells))
	for i, c := range cells {
		xs[i], ys[i] = c.x, c.y
	}
	xs, ys = distinct(xs), distinct(ys)
	size := math.Inf(1)
	for i := 1; i < len(xs); i++ {
		size = math.Min(size, xs[i]-xs[i-1])
	}
	for i := 1; i < len(ys); i++ {
		size = math.Min(size, ys[i]-ys[i-1])
	}
	if math.IsInf(size, 1) {
		return nil, fmt.Errorf("cannot infer cell size from %d cells", len(cells))
	}

	g := &Grid{
		NCols:     int(math.Round((xs[len(xs)-1]-xs[0])/size)) + 1,
		NRows:     int(math.Round((ys[len(ys)-1]-ys[0])/size)) + 1,
		XMin:      xs[0] - size/2,
		YMax:      ys[len(ys)-1] + size/2,
		CellSize:  size,
		NoData:    nodata,
		HasNoData: true,
	}
	g.Values = make([]float64, g.NCols*g.NRows)
	for i := range g.Values {
		g.Values[i] = nodata
	}
	for _, c := range cells {
		col, row, ok := g.cellOf(c.x, c.y)
		if !ok {
			return nil, fmt.Errorf("cell (%v, %v) off the inferred grid", c.x, c.y)
		}
		g.Values[row*g.NCols+col] = c.z
	}
	return g, nil
}

func distinct(vs []float64) []float64 {
	sort.Float64s(vs)
	out := vs[:0]
	for _, v := range vs {
		if len(out) == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func (g *Grid) cellOf(x, y float64) (int, int, bool) {
	col := int(math.Floor((x - g.XMin) / g.CellSize))
	row := int(math.Floor((g.YMax - y) / g.CellSize))
	if col < 0 || col >= g.NCols || row < 0 || row >= g.NRows {
		return 0, 0, false
	}
	return col, row, true
}

// Centre 像元中心坐标
func (g *Grid) Centre(col, row int) (float64, float64) {
	return g.XMin + (float64(col)+0.5)*g.CellSize, g.YMax - (float64(row)+0.5)*g.CellSize
}

func (g *Grid) noData(v float64) bool {
	return math.IsNaN(v) || (g.HasNoData && v == g.NoData)
}

// Bound 栅格范围
func (g *Grid) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{g.XMin, g.YMax - float64(g.NRows)*g.CellSize},
		Max: orb.Point{g.XMin + float64(g.NCols)*g.CellSize, g.YMax},
	}
}

// Sample returns the value of the cell containing (x, y). Points outside the
// raster and no-data cells are ErrNoDataElevation, never zero.
func (g *Grid) Sample(x, y float64) (float64, error) {
	col, row, ok := g.cellOf(x, y)
	if !ok {
		return 0, fmt.Errorf("(%.3f, %.3f) outside raster: %w", x, y, lod1.ErrNoDataElevation)
	}
	v := g.Values[row*g.NCols+col]
	if g.noData(v) {
		return 0, fmt.Errorf("(%.3f, %.3f): %w", x, y, lod1.ErrNoDataElevation)
	}
	return v, nil
}

// Cells returns the centres of all valid cells inside bound, z rounded to
// precision decimals.
func (g *Grid) Cells(bound orb.Bound, precision int) []lod1.Vertex {
	var out []lod1.Vertex
	for row := 0; row < g.NRows; row++ {
		for col := 0; col < g.NCols; col++ {
			v := g.Values[row*g.NCols+col]
			if g.noData(v) {
				continue
			}
			x, y := g.Centre(col, row)
			if !bound.Contains(orb.Point{x, y}) {
				continue
			}
			out = append(out, lod1.Vertex{
				X: lod1.Round(x, precision),
				Y: lod1.Round(y, precision),
				Z: lod1.Round(v, precision),
			})
		}
	}
	return out
}
