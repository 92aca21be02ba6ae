package routers

import (
	"github.com/GrainArc/SheetGeo/logger"
	"github.com/GrainArc/SheetGeo/services"
	"github.com/GrainArc/SheetGeo/views"
	"github.com/gin-gonic/gin"
)

type Options struct {
	Debug        bool
	JWTSecret    string
	AllowOrigins []string
}

// NewEngine builds a gin engine with recovery, request logging, CORS and
// every API route registered.
func NewEngine(svc *services.Services, log *logger.Logger, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log), CORS(opts.AllowOrigins))
	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	APIRouters(r, svc, opts)
	return r
}

func APIRouters(r *gin.Engine, svc *services.Services, opts Options) {
	projects := views.NewProjectHandler(svc)
	assets := views.NewAssetHandler(svc)
	imports := views.NewImportHandler(svc)
	sheets := views.NewSheetHandler(svc)
	reports := views.NewReportHandler(svc)

	api := r.Group("/api", AuthGate(opts.Debug, opts.JWTSecret))
	{
		api.GET("/projects", projects.List)
		api.POST("/projects", projects.Create)
		api.GET("/projects/:id", projects.Get)
		api.PATCH("/projects/:id", projects.Rename)
		api.DELETE("/projects/:id", projects.Delete)
		api.POST("/projects/:id/calibrate", projects.Calibrate)
		api.GET("/projects/:id/transform", projects.Transform)
		api.POST("/projects/:id/convert", projects.Convert)
	}
	{
		api.GET("/projects/:id/assets", assets.ListByProject)
		api.POST("/projects/:id/assets", assets.Create)
		api.GET("/assets/:id", assets.Get)
		api.DELETE("/assets/:id", assets.Delete)
		api.POST("/assets/:id/adjust", assets.Adjust)
		api.GET("/assets/:id/logs", assets.Logs)
		api.GET("/asset-types", assets.ListTypes)
		api.POST("/asset-types", assets.CreateType)
	}
	{
		api.POST("/projects/:id/import-csv", imports.ImportCSV)
		api.GET("/projects/:id/import-batches", imports.ListBatches)
		api.DELETE("/import-batches/:id", imports.DeleteBatch)
		api.PATCH("/import-batches/:id", imports.ReassignType)
		api.GET("/column-presets", imports.ListPresets)
		api.POST("/column-presets", imports.CreatePreset)
		api.POST("/column-presets/suggest", imports.SuggestMapping)
	}
	{
		api.GET("/projects/:id/sheets", sheets.ListByProject)
		api.POST("/projects/:id/sheets", sheets.Upload)
		api.GET("/sheets/:id", sheets.Get)
		api.PATCH("/sheets/:id", sheets.Update)
		api.DELETE("/sheets/:id", sheets.Delete)
		api.POST("/sheets/:id/split", sheets.Split)
		api.POST("/sheets/:id/render", sheets.Render)
		api.POST("/sheets/:id/image", sheets.AttachImage)
		api.GET("/sheets/:id/image", sheets.Image)
	}
	{
		api.GET("/projects/:id/adjustment-report", reports.AdjustmentReport)
		api.GET("/projects/:id/assets.geojson", reports.AssetsGeoJSON)
		api.POST("/projects/:id/export", reports.Export)
		api.GET("/projects/:id/legend.png", reports.Legend)
	}
}
