// Package pipeline builds one region end to end: footprint heights, the
// constrained terrain surface, the extruded solids and the merged scene.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/GrainArc/CityLoD1/Tin"
	"github.com/GrainArc/CityLoD1/Transformer"
	"github.com/GrainArc/CityLoD1/dem"
	"github.com/GrainArc/CityLoD1/extrude"
	"github.com/GrainArc/CityLoD1/keyer"
	"github.com/GrainArc/CityLoD1/lod1"
	"github.com/GrainArc/CityLoD1/scene"
	"github.com/GrainArc/CityLoD1/segments"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
)

// TerrainID 地形对象标识
const TerrainID = "terrain01"

const boundaryOwner = "aoi"

// junctionTolerance 以取整单位计，取整后 T 形连接点离开墙线的最大距离
const junctionTolerance = 1.5

var ErrCancelled = errors.New("build cancelled")

// ProgressFunc returns false to stop the build.
type ProgressFunc func(complete float64, message string) bool

type Options struct {
	Rules          Transformer.HeightRules
	BufferDistance float64
	Workers        int
	Progress       ProgressFunc
	Solver         Tin.Solver // 默认 Tin.Delaunay
}

// Region 一个区域的输入
type Region struct {
	Name     string
	AOI      orb.Polygon // 为空时取全部要素的外包框
	Features []Transformer.RawFeature
	Terrain  *dem.Grid
	Sampler  dem.Sampler // 为空时直接采样 Terrain
}

type Report struct {
	Features         int
	Footprints       int
	Solids           int
	TerrainSamples   int
	TerrainVertices  int
	TerrainTriangles int
	Segments         int
	SharedSegments   int
	Extent           orb.Bound
	Terrain          Tin.Stats
	Defects          lod1.DefectList
	Elapsed          time.Duration
}

type Result struct {
	Scene  *scene.Scene
	Report Report
}

type build struct {
	opts    Options
	region  Region
	keyer   *keyer.Keyer
	sampler dem.Sampler
	report  Report
}

func (b *build) progress(complete float64, message string) error {
	if b.opts.Progress != nil && !b.opts.Progress(complete, message) {
		return ErrCancelled
	}
	return nil
}

// Build runs the region pipeline. Per-feature problems end up in
// Report.Defects; structural errors, cancellation and an unusable terrain
// extent abort the build.
func Build(ctx context.Context, region Region, opts Options) (*Result, error) {
	start := time.Now()
	if region.Terrain == nil {
		return nil, fmt.Errorf("region %s has no terrain grid", region.Name)
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Solver == nil {
		opts.Solver = Tin.Delaunay{}
	}
	b := &build{opts: opts, region: region, keyer: keyer.New(opts.Rules.Precision), sampler: region.Sampler}
	if b.sampler == nil {
		b.sampler = region.Terrain
	}
	b.report.Features = len(region.Features)

	if err := b.progress(0, "deriving footprint heights"); err != nil {
		return nil, err
	}
	fps, err := b.footprints()
	if err != nil {
		return nil, err
	}

	extent, err := b.extent(fps)
	if err != nil {
		return nil, err
	}
	b.report.Extent = extent
	grounded := b.constraints(fps, extent)

	if err := b.progress(0.2, "triangulating terrain"); err != nil {
		return nil, err
	}
	terrain, err := b.terrain(ctx, extent, grounded)
	if err != nil {
		return nil, err
	}

	if err := b.progress(0.6, "extruding solids"); err != nil {
		return nil, err
	}
	shells, errs, err := b.extrude(ctx, fps)
	if err != nil {
		return nil, err
	}

	if err := b.progress(0.9, "assembling scene"); err != nil {
		return nil, err
	}
	asm := scene.NewAssembler()
	if err := asm.AppendTerrain(TerrainID, terrain.Triangles, terrain.Vertices); err != nil {
		return nil, err
	}
	for i, fp := range fps {
		if errs[i] != nil {
			b.report.Defects.Add(fp.ID, "extrude", errs[i])
			continue
		}
		if err := asm.AppendSolid(fp.ID, fp.Kind.CityObjectType(), fp.Attributes, shells[i]); err != nil {
			if lod1.Structural(err) {
				return nil, err
			}
			b.report.Defects.Add(fp.ID, "assemble", err)
			continue
		}
		b.report.Solids++
	}
	sc := asm.Finalize()

	b.report.Elapsed = time.Since(start)
	log.Printf("region %s: %d features, %d solids, %d terrain triangles, %d defects in %v",
		region.Name, b.report.Features, b.report.Solids, b.report.TerrainTriangles, len(b.report.Defects), b.report.Elapsed)
	if err := b.progress(1, "done"); err != nil {
		return nil, err
	}
	return &Result{Scene: sc, Report: b.report}, nil
}

// footprints 推算高度，重复标识终止构建
func (b *build) footprints() ([]*lod1.Footprint, error) {
	seen := map[string]bool{TerrainID: true}
	var fps []*lod1.Footprint
	for _, f := range b.region.Features {
		if seen[f.ID] {
			return nil, fmt.Errorf("feature %q: %w", f.ID, lod1.ErrDuplicateObjectIdentity)
		}
		seen[f.ID] = true
		fp, err := Transformer.BuildFootprint(f, b.sampler, b.opts.Rules)
		if err != nil {
			b.report.Defects.Add(f.ID, "footprint", err)
			continue
		}
		fps = append(fps, fp)
	}
	b.report.Footprints = len(fps)
	return fps, nil
}

// extent is the AOI bound padded by the buffer distance and clipped to the
// cell centres of the grid, so the boundary corners always sample a cell.
func (b *build) extent(fps []*lod1.Footprint) (orb.Bound, error) {
	var bound orb.Bound
	switch {
	case len(b.region.AOI) > 0:
		bound = b.region.AOI.Bound()
	case len(fps) > 0:
		bound = fps[0].Bound()
		for _, fp := range fps[1:] {
			bound = bound.Union(fp.Bound())
		}
	default:
		bound = b.region.Terrain.Bound()
	}
	bound = bound.Pad(b.opts.BufferDistance)

	g := b.region.Terrain
	half := g.CellSize / 2
	gb := g.Bound()
	bound.Min[0] = max(bound.Min[0], gb.Min[0]+half)
	bound.Min[1] = max(bound.Min[1], gb.Min[1]+half)
	bound.Max[0] = min(bound.Max[0], gb.Max[0]-half)
	bound.Max[1] = min(bound.Max[1], gb.Max[1]-half)

	p := b.opts.Rules.Precision
	bound = orb.Bound{
		Min: orb.Point{lod1.Round(bound.Min[0], p), lod1.Round(bound.Min[1], p)},
		Max: orb.Point{lod1.Round(bound.Max[0], p), lod1.Round(bound.Max[1], p)},
	}
	if bound.Max[0] <= bound.Min[0] || bound.Max[1] <= bound.Min[1] {
		return orb.Bound{}, fmt.Errorf("region %s does not overlap the terrain grid: %w", b.region.Name, lod1.ErrNoDataElevation)
	}
	return bound, nil
}

// constraints picks the grounded footprints that can cut the terrain.
// Footprints reaching the extent boundary stay solids but do not cut it.
func (b *build) constraints(fps []*lod1.Footprint, extent orb.Bound) []*lod1.Footprint {
	var out []*lod1.Footprint
	for _, fp := range fps {
		if !fp.Kind.Grounded() {
			continue
		}
		fb := fp.Bound()
		if fb.Min[0] <= extent.Min[0] || fb.Min[1] <= extent.Min[1] || fb.Max[0] >= extent.Max[0] || fb.Max[1] >= extent.Max[1] {
			b.report.Defects.Add(fp.ID, "terrain", fmt.Errorf("bound %v, extent %v: %w", fb, extent, lod1.ErrTerrainBoundary))
			continue
		}
		if err := segments.NewGraph(b.keyer).AddFootprint(fp); err != nil {
			b.report.Defects.Add(fp.ID, "terrain", err)
			continue
		}
		out = append(out, fp)
	}
	return out
}

func boundaryRing(b orb.Bound) orb.Ring {
	return orb.Ring{b.Min, {b.Max[0], b.Min[1]}, b.Max, {b.Min[0], b.Max[1]}, b.Min}
}

// terrain 约束三角网：外包框边界加落地建筑轮廓为约束，建筑内部挖空
func (b *build) terrain(ctx context.Context, extent orb.Bound, grounded []*lod1.Footprint) (*Tin.Result, error) {
	p := b.opts.Rules.Precision
	graph := segments.NewGraph(b.keyer)
	ring := boundaryRing(extent)
	if err := graph.AddRing(boundaryOwner, ring); err != nil {
		return nil, err
	}

	var constraint []lod1.Vertex
	for _, pt := range ring[:len(ring)-1] {
		z, err := b.sampler.Sample(pt[0], pt[1])
		if err != nil {
			return nil, fmt.Errorf("terrain corner: %w", err)
		}
		constraint = append(constraint, lod1.Vertex{X: pt[0], Y: pt[1], Z: lod1.Round(z, p)})
	}

	adapter := Tin.NewAdapter(b.keyer)
	for _, fp := range grounded {
		if err := graph.AddFootprint(fp); err != nil {
			return nil, err
		}
		var missing int
		var first error
		for _, r := range fp.Polygon() {
			for _, pt := range r {
				z, err := b.sampler.Sample(pt[0], pt[1])
				if err != nil {
					z = fp.GroundHeight
					if missing++; first == nil {
						first = err
					}
				}
				constraint = append(constraint, lod1.Vertex{X: pt[0], Y: pt[1], Z: lod1.Round(z, p)})
			}
		}
		if missing > 0 {
			if !errors.Is(first, lod1.ErrNoDataElevation) {
				first = fmt.Errorf("%v: %w", first, lod1.ErrNoDataElevation)
			}
			b.report.Defects.Add(fp.ID, "terrain", fmt.Errorf("%d vertices set to ground height %v: %w", missing, fp.GroundHeight, first))
		}
		seed, err := lod1.InteriorPoint(fp.Exterior, fp.Interiors)
		if err != nil {
			return nil, err
		}
		adapter.AddHole(fp.ID, seed)
	}
	if n := graph.SplitNear(junctionTolerance); n > 0 {
		log.Printf("region %s: %d constraint edges split at nearby vertices", b.region.Name, n)
	}
	table := b.keyer.Build(constraint)

	samples := b.region.Terrain.Cells(extent, p)
	inner := samples[:0:0]
	for _, v := range samples {
		if v.X > extent.Min[0] && v.X < extent.Max[0] && v.Y > extent.Min[1] && v.Y < extent.Max[1] {
			inner = append(inner, v)
		}
	}
	inner = NewMask(grounded).Filter(inner)
	b.report.TerrainSamples = len(inner)

	adapter.AddSamples(inner)
	adapter.AddConstraints(table, graph)
	res, err := adapter.Run(ctx, b.opts.Solver)
	if err != nil {
		return nil, err
	}
	b.report.TerrainVertices = len(res.Vertices)
	b.report.TerrainTriangles = len(res.Triangles)
	b.report.Segments = graph.Len()
	b.report.SharedSegments = len(graph.Shared())

	if tin, err := Tin.NewTIN3D(res.Vertices, res.Triangles); err == nil {
		b.report.Terrain = tin.Stats()
	}
	return res, nil
}

// extrude runs the solids in parallel into private shells; the caller
// merges them in input order.
func (b *build) extrude(ctx context.Context, fps []*lod1.Footprint) ([]lod1.Shell, []error, error) {
	profiles := extrude.NewProfileIndex(b.keyer)
	for _, fp := range fps {
		profiles.Add(fp)
	}

	shells := make([]lod1.Shell, len(fps))
	errs := make([]error, len(fps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i, fp := range fps {
		i, fp := i, fp
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ps, err := profiles.For(fp)
			if err != nil {
				errs[i] = err
				return nil
			}
			sh, err := extrude.Extrude(fp, ps)
			if err != nil {
				errs[i] = err
				return nil
			}
			if err := extrude.Validate(&sh); err != nil {
				errs[i] = err
				return nil
			}
			shells[i] = sh
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return shells, errs, nil
}
