package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/GrainArc/CityLoD1/config"
	"github.com/GrainArc/CityLoD1/routers"
	"github.com/GrainArc/CityLoD1/services"
	"github.com/GrainArc/CityLoD1/views"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "config.xml", "XML configuration file")
	serve := flag.Bool("serve", false, "start the HTTP build service instead of a single build")
	region := flag.String("region", "region", "region name, used for output file names")
	footprints := flag.String("footprints", "", "building footprints (.geojson or .shp)")
	aoi := flag.String("aoi", "", "area of interest polygon (.geojson), optional")
	demPath := flag.String("dem", "", "ground elevation (.asc or .xyz)")
	nodata := flag.Float64("nodata", -9999, "no-data value of XYZ elevation files")
	formats := flag.String("formats", "cityjson,obj", "comma separated output formats")
	out := flag.String("out", "", "output directory, overrides the configured download directory")
	record := flag.Bool("record", false, "keep a build record in the configured database")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		log.Fatal(err)
	}
	if *out != "" {
		config.MainConfig.Download = *out
		config.Download = *out
	}

	if *serve {
		if err := config.InitDatabase(); err != nil {
			log.Fatal(err)
		}
		cc := views.NewCityController(services.NewBuildService(config.DB, config.MainConfig))
		r := gin.Default()
		routers.CityRouters(r, cc)
		log.Printf("listening on :%s", config.MainRouter)
		if err := r.Run(":" + config.MainRouter); err != nil {
			log.Fatal(err)
		}
		return
	}

	svc := services.NewBuildService(nil, config.MainConfig)
	if *record {
		if err := config.InitDatabase(); err != nil {
			log.Fatal(err)
		}
		svc.DB = config.DB
	}
	req := services.BuildRequest{
		Region:     *region,
		Footprints: *footprints,
		AOI:        *aoi,
		DEM:        *demPath,
		NoData:     *nodata,
		Formats:    strings.Split(*formats, ","),
	}
	taskID, err := svc.Prepare(&req)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	progress := func(complete float64, message string) bool {
		log.Printf("%3.0f%% %s", complete*100, message)
		return true
	}
	res, err := svc.Run(ctx, taskID, req, progress)
	if err != nil {
		log.Fatal(err)
	}
	rep := res.Report
	fmt.Printf("solids %d  terrain triangles %d  defects %d\n", rep.Solids, rep.TerrainTriangles, len(rep.Defects))
	for _, d := range rep.Defects {
		fmt.Printf("  %s [%s] %v\n", d.FeatureID, d.Stage, d.Err)
	}
	fmt.Println(res.Archive)
}
