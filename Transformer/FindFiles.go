package Transformer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mholt/archiver/v3"
)

// FindFiles 递归查找指定扩展名的文件，结果按路径排序
func FindFiles(root string, exts ...string) []string {
	var files []string
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), "._") {
			return nil
		}
		name := strings.ToLower(info.Name())
		for _, ext := range exts {
			if strings.HasSuffix(name, "."+ext) {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	sort.Strings(files)
	return files
}

// readBundle unpacks a zipped shapefile or GeoJSON upload into a scratch
// directory and reads every footprint file found in it.
func readBundle(path string) ([]RawFeature, error) {
	dir, err := os.MkdirTemp("", "footprints-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	if err := archiver.Unarchive(path, dir); err != nil {
		return nil, fmt.Errorf("解压 %s 失败: %w", path, err)
	}
	files := FindFiles(dir, "shp", "geojson")
	if len(files) == 0 {
		return nil, fmt.Errorf("%s contains no .shp or .geojson file", path)
	}
	var out []RawFeature
	for _, f := range files {
		fs, err := ReadFootprints(f)
		if err != nil {
			return nil, err
		}
		out = append(out, fs...)
	}
	return out, nil
}
