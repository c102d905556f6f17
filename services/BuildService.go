package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/GrainArc/CityLoD1/Transformer"
	"github.com/GrainArc/CityLoD1/cityjson"
	"github.com/GrainArc/CityLoD1/config"
	"github.com/GrainArc/CityLoD1/dem"
	"github.com/GrainArc/CityLoD1/models"
	"github.com/GrainArc/CityLoD1/pipeline"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/mholt/archiver/v3"
	"github.com/paulmach/orb"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BuildRequest 区域构建参数
type BuildRequest struct {
	Region     string   `json:"region" binding:"required"`
	Footprints string   `json:"footprints" binding:"required"` // .geojson 或 .shp
	AOI        string   `json:"aoi"`
	DEM        string   `json:"dem" binding:"required"` // .asc 或 .xyz
	NoData     float64  `json:"nodata"`                  // XYZ 文件的无数据值
	Formats    []string `json:"formats"`                 // cityjson, obj
	Workers    int      `json:"workers"`
}

// BuildOutput 构建结果
type BuildOutput struct {
	TaskID  string          `json:"task_id"`
	Files   []string        `json:"files"`
	Archive string          `json:"archive"`
	Report  pipeline.Report `json:"-"`
}

// BuildService runs region builds and keeps their records. DB may be nil,
// in which case nothing is recorded.
type BuildService struct {
	DB     *gorm.DB
	Config config.Config
}

func NewBuildService(db *gorm.DB, cfg config.Config) *BuildService {
	return &BuildService{DB: db, Config: cfg}
}

var unsafeName = regexp.MustCompile(`[\\/:*?"<>|\s]+`)

func safeName(s string) string {
	s = unsafeName.ReplaceAllString(s, "_")
	if s == "" || s == "." || s == ".." {
		return "region"
	}
	return s
}

func normalizeRequest(req *BuildRequest) error {
	if req.Region == "" {
		return fmt.Errorf("region不能为空")
	}
	if req.Footprints == "" {
		return fmt.Errorf("footprints不能为空")
	}
	if req.DEM == "" {
		return fmt.Errorf("dem不能为空")
	}
	if len(req.Formats) == 0 {
		req.Formats = []string{"cityjson"}
	}
	for _, f := range req.Formats {
		if f != "cityjson" && f != "obj" {
			return fmt.Errorf("unknown output format %q", f)
		}
	}
	return nil
}

// Prepare validates the request, allocates a task id and its output
// directory and records the build as running.
func (s *BuildService) Prepare(req *BuildRequest) (string, error) {
	if err := normalizeRequest(req); err != nil {
		return "", err
	}
	taskID := uuid.New().String()
	if err := os.MkdirAll(s.outputDir(taskID), 0755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}
	if s.DB != nil {
		argsJSON, _ := json.Marshal(req)
		record := &models.BuildRecord{
			TaskID:     taskID,
			Region:     req.Region,
			Status:     models.BuildRunning,
			Args:       datatypes.JSON(argsJSON),
			OutputPath: s.outputDir(taskID),
		}
		if err := s.DB.Create(record).Error; err != nil {
			return "", err
		}
	}
	return taskID, nil
}

func (s *BuildService) outputDir(taskID string) string {
	return filepath.Join(s.Config.Download, taskID)
}

// Region 读取要素、研究区和高程
func (s *BuildService) Region(req BuildRequest) (pipeline.Region, error) {
	var region pipeline.Region
	features, err := Transformer.ReadFootprints(req.Footprints)
	if err != nil {
		return region, err
	}
	var aoi orb.Polygon
	if req.AOI != "" {
		if aoi, err = Transformer.ReadAOI(req.AOI); err != nil {
			return region, err
		}
	}
	grid, err := dem.Open(req.DEM, req.NoData)
	if err != nil {
		return region, err
	}
	sampler := &dem.Fallback{Grid: grid, Radius: s.Config.NoDataSearchRadius}
	if v, ok, _ := s.Config.Fallback(); ok {
		sampler.Value = &v
	}
	return pipeline.Region{Name: req.Region, AOI: aoi, Features: features, Terrain: grid, Sampler: sampler}, nil
}

// Run builds the region of a prepared task and writes the requested
// outputs plus a zip bundle into the task directory.
func (s *BuildService) Run(ctx context.Context, taskID string, req BuildRequest, progress pipeline.ProgressFunc) (*BuildOutput, error) {
	start := time.Now()
	out, err := s.run(ctx, taskID, req, progress)
	s.finish(taskID, out, err, time.Since(start))
	return out, err
}

func (s *BuildService) run(ctx context.Context, taskID string, req BuildRequest, progress pipeline.ProgressFunc) (*BuildOutput, error) {
	if err := normalizeRequest(&req); err != nil {
		return nil, err
	}
	region, err := s.Region(req)
	if err != nil {
		return nil, err
	}
	workers := req.Workers
	if workers <= 0 {
		workers = s.Config.Workers
	}
	res, err := pipeline.Build(ctx, region, pipeline.Options{
		Rules:          s.Config.HeightRules(),
		BufferDistance: s.Config.BufferDistance,
		Workers:        workers,
		Progress:       progress,
	})
	if err != nil {
		return nil, err
	}

	dir := s.outputDir(taskID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	name := safeName(req.Region)
	out := &BuildOutput{TaskID: taskID, Report: res.Report}
	for _, format := range req.Formats {
		var files []string
		switch format {
		case "cityjson":
			files, err = s.writeCityJSON(dir, name, res)
		case "obj":
			files, err = writeOBJ(dir, name, res)
		}
		if err != nil {
			return nil, err
		}
		out.Files = append(out.Files, files...)
	}

	defects := filepath.Join(dir, name+"_defects.json")
	data, _ := json.MarshalIndent(res.Report.Defects.Report(), "", "  ")
	if err := os.WriteFile(defects, data, 0644); err != nil {
		return nil, err
	}
	out.Files = append(out.Files, defects)

	out.Archive = filepath.Join(dir, name+".zip")
	os.Remove(out.Archive)
	if err := archiver.Archive(out.Files, out.Archive); err != nil {
		return nil, fmt.Errorf("打包结果失败: %w", err)
	}
	return out, nil
}

func (s *BuildService) writeCityJSON(dir, name string, res *pipeline.Result) ([]string, error) {
	path := filepath.Join(dir, name+".city.json")
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m := s.Config.Metadata
	meta := cityjson.Meta{
		Title:           m.Title,
		ReferenceDate:   m.ReferenceDate,
		ReferenceSystem: m.ReferenceSystem,
		Contact:         s.Config.Contact(),
		Extent:          res.Report.Extent,
		Margin:          s.Config.ExtentMargin,
		Precision:       s.Config.Precision,
	}
	if meta.Title == "" {
		meta.Title = name
	}
	if err := cityjson.Encode(f, res.Scene, meta); err != nil {
		return nil, err
	}
	return []string{path}, f.Close()
}

func writeOBJ(dir, name string, res *pipeline.Result) ([]string, error) {
	objPath := filepath.Join(dir, name+".obj")
	mtlPath := filepath.Join(dir, name+".mtl")
	mtl, err := os.Create(mtlPath)
	if err != nil {
		return nil, err
	}
	defer mtl.Close()
	if err := cityjson.WriteMTL(mtl); err != nil {
		return nil, err
	}
	obj, err := os.Create(objPath)
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	if err := cityjson.WriteOBJ(obj, res.Scene, nil, filepath.Base(mtlPath)); err != nil {
		return nil, err
	}
	if err := obj.Close(); err != nil {
		return nil, err
	}
	return []string{objPath, mtlPath}, mtl.Close()
}

// finish 更新构建记录
func (s *BuildService) finish(taskID string, out *BuildOutput, runErr error, elapsed time.Duration) {
	if s.DB == nil {
		return
	}
	updates := map[string]interface{}{"elapsed": elapsed.Seconds()}
	switch {
	case runErr == nil:
		rep := out.Report
		defects, _ := json.Marshal(rep.Defects.Report())
		terrain, _ := json.Marshal(rep.Terrain)
		var record models.BuildRecord
		record.SetOutline(rep.Extent)
		updates["status"] = models.BuildCompleted
		updates["defects"] = datatypes.JSON(defects)
		updates["terrain"] = datatypes.JSON(terrain)
		updates["features"] = rep.Features
		updates["solids"] = rep.Solids
		updates["terrain_triangles"] = rep.TerrainTriangles
		updates["outline"] = record.Outline
		updates["output_path"] = out.Archive
	case errors.Is(runErr, pipeline.ErrCancelled) || errors.Is(runErr, context.Canceled):
		updates["status"] = models.BuildCancelled
		updates["error"] = runErr.Error()
	default:
		updates["status"] = models.BuildFailed
		updates["error"] = runErr.Error()
	}
	if err := s.DB.Model(&models.BuildRecord{}).Where("task_id = ?", taskID).Updates(updates).Error; err != nil {
		log.Printf("更新构建记录失败 %s: %v", taskID, err)
	}
}

// Record 查询构建记录
func (s *BuildService) Record(taskID string) (*models.BuildRecord, error) {
	if s.DB == nil {
		return nil, gorm.ErrRecordNotFound
	}
	var record models.BuildRecord
	if err := s.DB.Where("task_id = ?", taskID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ArchivePath 结果压缩包路径
func (s *BuildService) ArchivePath(taskID, region string) (string, error) {
	path := filepath.Join(s.outputDir(taskID), safeName(region)+".zip")
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}
