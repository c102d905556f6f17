package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/GrainArc/CityLoD1/Transformer"
	"github.com/GrainArc/CityLoD1/cityjson"
)

var MainRouter string
var DSN string
var Dbname string
var Download string
var MainConfig Config

// Metadata CityJSON 元数据
type Metadata struct {
	Title           string `xml:"title"`
	ReferenceDate   string `xml:"referenceDate"`
	ReferenceSystem string `xml:"referenceSystem"`
	ContactName     string `xml:"contactName"`
	EmailAddress    string `xml:"emailAddress"`
	ContactType     string `xml:"contactType"`
	Website         string `xml:"website"`
}

type Config struct {
	XMLName    xml.Name `xml:"config"`
	MainRouter string   `xml:"MainRouter"`
	Download   string   `xml:"download"`
	DBType     string   `xml:"dbtype"`
	Dbname     string   `xml:"dbname"`
	Host       string   `xml:"host"`
	Port       string   `xml:"port"`
	Username   string   `xml:"user"`
	Password   string   `xml:"password"`

	Precision           int     `xml:"Precision"`
	StoreyHeight        float64 `xml:"StoreyHeight"`
	HeightOffset        float64 `xml:"HeightOffset"`
	RoofStructureHeight float64 `xml:"RoofStructureHeight"`
	BufferDistance      float64 `xml:"BufferDistance"`
	ExtentMargin        float64 `xml:"ExtentMargin"`
	NoDataSearchRadius  float64 `xml:"NoDataSearchRadius"`
	// 为空表示不使用固定回退值
	NoDataFallback string `xml:"NoDataFallback"`
	Workers        int    `xml:"Workers"`

	Metadata Metadata `xml:"metadata"`
}

// Default 默认参数
func Default() Config {
	return Config{
		MainRouter:          "8181",
		Download:            "./download",
		DBType:              "sqlite",
		Dbname:              "citylod1",
		Port:                "5432",
		Precision:           3,
		StoreyHeight:        2.8,
		HeightOffset:        1.3,
		RoofStructureHeight: 1.5,
		BufferDistance:      150,
		ExtentMargin:        250,
		Workers:             4,
	}
}

// Load overlays the XML file at path on Default. Elements missing from the
// file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	xmlFile, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer xmlFile.Close()

	if err := xml.NewDecoder(xmlFile).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Precision < 2 || c.Precision > 3 {
		return fmt.Errorf("Precision %d out of range 2..3", c.Precision)
	}
	if c.StoreyHeight <= 0 {
		return fmt.Errorf("StoreyHeight must be positive")
	}
	if c.BufferDistance < 0 || c.ExtentMargin < 0 || c.NoDataSearchRadius < 0 {
		return fmt.Errorf("distances must not be negative")
	}
	switch strings.ToLower(c.DBType) {
	case "sqlite", "postgres", "":
	default:
		return fmt.Errorf("unknown dbtype %q", c.DBType)
	}
	if _, _, err := c.Fallback(); err != nil {
		return err
	}
	return nil
}

// Fallback 解析无数据回退高程
func (c Config) Fallback() (float64, bool, error) {
	s := strings.TrimSpace(c.NoDataFallback)
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("NoDataFallback: %w", err)
	}
	return v, true, nil
}

func (c Config) HeightRules() Transformer.HeightRules {
	return Transformer.HeightRules{
		Precision:           c.Precision,
		StoreyHeight:        c.StoreyHeight,
		HeightOffset:        c.HeightOffset,
		RoofStructureHeight: c.RoofStructureHeight,
	}
}

func (c Config) Contact() *cityjson.Contact {
	m := c.Metadata
	if m.ContactName == "" && m.EmailAddress == "" && m.Website == "" {
		return nil
	}
	return &cityjson.Contact{ContactName: m.ContactName, EmailAddress: m.EmailAddress, ContactType: m.ContactType, Website: m.Website}
}

// Init 读取配置并设置全局变量，配置文件缺失时使用默认值
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if err != nil {
		fmt.Println("config file not found, using defaults:", path)
	}
	MainConfig = cfg
	MainRouter = cfg.MainRouter
	Download = cfg.Download
	Dbname = cfg.Dbname
	DSN = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC", cfg.Host, cfg.Username, cfg.Password, cfg.Dbname, cfg.Port)
	return nil
}
