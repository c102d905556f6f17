package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.xml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `<config>
	<Precision>2</Precision>
	<StoreyHeight>3</StoreyHeight>
	<NoDataFallback> 42.5 </NoDataFallback>
	<metadata><title>Mamre</title><contactName>GIS</contactName></metadata>
</config>`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Precision != 2 || cfg.StoreyHeight != 3 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	// 未出现的元素保持默认值
	if cfg.HeightOffset != 1.3 || cfg.BufferDistance != 150 || cfg.Workers != 4 || cfg.DBType != "sqlite" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if v, ok, err := cfg.Fallback(); err != nil || !ok || v != 42.5 {
		t.Fatalf("Fallback = %v, %v, %v", v, ok, err)
	}
	if r := cfg.HeightRules(); r.Precision != 2 || r.StoreyHeight != 3 || r.RoofStructureHeight != 1.5 {
		t.Fatalf("rules = %+v", r)
	}
	if c := cfg.Contact(); c == nil || c.ContactName != "GIS" {
		t.Fatalf("contact = %+v", c)
	}
	if cfg.Metadata.Title != "Mamre" {
		t.Fatalf("title = %q", cfg.Metadata.Title)
	}
}

func TestLoadRejects(t *testing.T) {
	testCases := map[string]string{
		"precision": `<config><Precision>12</Precision></config>`,
		"coarse":    `<config><Precision>1</Precision></config>`,
		"storey":    `<config><StoreyHeight>0</StoreyHeight></config>`,
		"distance":  `<config><BufferDistance>-1</BufferDistance></config>`,
		"dbtype":    `<config><dbtype>oracle</dbtype></config>`,
		"fallback":  `<config><NoDataFallback>high</NoDataFallback></config>`,
		"xml":       `<config><Precision>`,
	}
	for name, body := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestInitMissingFile(t *testing.T) {
	if err := Init(filepath.Join(t.TempDir(), "none.xml")); err != nil {
		t.Fatal(err)
	}
	if MainRouter != "8181" || Download != "./download" || MainConfig.Contact() != nil {
		t.Fatalf("defaults not installed: %q %q", MainRouter, Download)
	}
	if _, ok, _ := MainConfig.Fallback(); ok {
		t.Fatal("no fallback expected by default")
	}
}
