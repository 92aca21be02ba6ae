package views

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/GrainArc/SheetGeo/response"
	"github.com/GrainArc/SheetGeo/services"
	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reports *services.ReportService
	exports *services.ExportService
}

func NewReportHandler(svc *services.Services) *ReportHandler {
	return &ReportHandler{reports: svc.Reports, exports: svc.Exports}
}

// AdjustmentReport
// @Param format query string false "json (default) or csv"
func (h *ReportHandler) AdjustmentReport(c *gin.Context) {
	projectID, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	format := c.DefaultQuery("format", services.ReportJSON)
	report, err := h.reports.AdjustmentReport(c.Request.Context(), projectID, format)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if format == services.ReportCSV {
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.Filename))
		c.Data(http.StatusOK, report.ContentType, report.Body)
		return
	}
	response.Success(c, json.RawMessage(report.Body))
}

func (h *ReportHandler) AssetsGeoJSON(c *gin.Context) {
	projectID, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	fc, err := h.reports.AssetFeatures(c.Request.Context(), projectID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	body, err := fc.MarshalJSON()
	if err != nil {
		response.InternalError(c)
		return
	}
	c.Data(http.StatusOK, "application/geo+json", body)
}

// Export draws asset markers over the project's rendered sheets.
// @Param sheet_ids body []integer false "subset of sheets, all when empty"
// @Param legend body boolean false "stamp a legend of the drawn types into each export"
func (h *ReportHandler) Export(c *gin.Context) {
	projectID, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	var req services.ExportOptions
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "sheet_ids must be a list of ids")
			return
		}
	}
	exports, err := h.exports.ExportProject(c.Request.Context(), projectID, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "exports": exports})
}

// Legend
// @Summary PNG legend of the asset types present in a project
func (h *ReportHandler) Legend(c *gin.Context) {
	projectID, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	data, err := h.exports.Legend(c.Request.Context(), projectID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}
