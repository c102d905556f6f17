package models

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"gorm.io/datatypes"
)

const (
	BuildRunning   = 0
	BuildCompleted = 1
	BuildFailed    = 2
	BuildCancelled = 3
)

type BuildRecord struct {
	ID               int64          `gorm:"primary_key;autoIncrement"`
	TaskID           string         `gorm:"type:varchar(64);uniqueIndex"`
	Region           string         `gorm:"type:varchar(255)"`
	Status           int            // 0 运行中 1 完成 2 失败 3 已取消
	Args             datatypes.JSON `gorm:"type:jsonb"` // 构建参数
	Defects          datatypes.JSON `gorm:"type:jsonb"` // 要素缺陷列表
	Terrain          datatypes.JSON `gorm:"type:jsonb"` // 地形统计
	Features         int
	Solids           int
	TerrainTriangles int
	Outline          []byte // 地形范围 WKB
	OutputPath       string `gorm:"type:varchar(255)"`
	Error            string `gorm:"type:text"`
	Elapsed          float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (BuildRecord) TableName() string {
	return "build_record"
}

// SetOutline 以 WKB 保存范围多边形
func (r *BuildRecord) SetOutline(b orb.Bound) error {
	data, err := wkb.Marshal(b.ToPolygon())
	if err != nil {
		return err
	}
	r.Outline = data
	return nil
}

func (r *BuildRecord) OutlineBound() (orb.Bound, bool) {
	if len(r.Outline) == 0 {
		return orb.Bound{}, false
	}
	g, err := wkb.Unmarshal(r.Outline)
	if err != nil {
		return orb.Bound{}, false
	}
	return g.Bound(), true
}
