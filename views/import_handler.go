package views

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/GrainArc/SheetGeo/apierr"
	"github.com/GrainArc/SheetGeo/response"
	"github.com/GrainArc/SheetGeo/services"
	"github.com/gin-gonic/gin"
)

type ImportHandler struct {
	importer  *services.CSVImporter
	batches   *services.BatchService
	presets   *services.PresetService
	validator *services.FileValidator
}

func NewImportHandler(svc *services.Services) *ImportHandler {
	return &ImportHandler{
		importer:  svc.Importer,
		batches:   svc.Batches,
		presets:   svc.Presets,
		validator: svc.Validator,
	}
}

// ImportCSV
// @Summary Import assets from a CSV file
// @Accept multipart/form-data
// @Param file formData file true "CSV file"
// @Param column_mapping formData string false "JSON object role -> column name"
// @Param fixed_asset_type formData string false "asset type applied to every row"
func (h *ImportHandler) ImportCSV(c *gin.Context) {
	projectID, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	filename, data, err := readUpload(c, "file", h.validator.MaxCSVBytes)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if err := h.validator.ValidateCSV(filename, data); err != nil {
		response.FromError(c, err)
		return
	}
	var mapping map[string]string
	if raw := strings.TrimSpace(c.PostForm("column_mapping")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			response.FromError(c, apierr.InvalidInput("column_mapping", "must be a JSON object of strings"))
			return
		}
	}
	result, err := h.importer.ImportCSV(c.Request.Context(), services.ImportRequest{
		ProjectID:      projectID,
		Filename:       filename,
		Content:        data,
		ColumnMapping:  mapping,
		FixedAssetType: c.PostForm("fixed_asset_type"),
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *ImportHandler) ListBatches(c *gin.Context) {
	projectID, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	batches, err := h.batches.List(c.Request.Context(), projectID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, batches)
}

func (h *ImportHandler) DeleteBatch(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	if err := h.batches.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type reassignRequest struct {
	AssetTypeName string `json:"asset_type_name"`
}

// ReassignType
// @Param asset_type_name body string true "type every asset of the batch gets"
func (h *ImportHandler) ReassignType(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	var req reassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	updated, at, err := h.batches.ReassignType(c.Request.Context(), id, req.AssetTypeName)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"updated": updated, "asset_type": at})
}

func (h *ImportHandler) ListPresets(c *gin.Context) {
	presets, err := h.presets.List(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, presets)
}

func (h *ImportHandler) CreatePreset(c *gin.Context) {
	var req services.PresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	preset, err := h.presets.Create(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, preset)
}

type suggestRequest struct {
	Header []string `json:"header"`
}

func (h *ImportHandler) SuggestMapping(c *gin.Context) {
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "header must be a list of column names")
		return
	}
	mapping, err := h.presets.SuggestMapping(c.Request.Context(), req.Header)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, mapping)
}
