package views

import (
	"net/http"

	"github.com/GrainArc/SheetGeo/response"
	"github.com/GrainArc/SheetGeo/services"
	"github.com/gin-gonic/gin"
)

type AssetHandler struct {
	assets     *services.AssetService
	assetTypes *services.AssetTypeService
}

func NewAssetHandler(svc *services.Services) *AssetHandler {
	return &AssetHandler{assets: svc.Assets, assetTypes: svc.AssetTypes}
}

// ListByProject
// @Param adjusted query bool false "only adjusted assets"
func (h *AssetHandler) ListByProject(c *gin.Context) {
	projectID, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	adjusted := c.Query("adjusted") == "true" || c.Query("adjusted") == "1"
	assets, err := h.assets.ListByProject(c.Request.Context(), projectID, adjusted)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, assets)
}

func (h *AssetHandler) Create(c *gin.Context) {
	projectID, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	var req services.AssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	asset, err := h.assets.Create(c.Request.Context(), projectID, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, asset)
}

func (h *AssetHandler) Get(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	asset, err := h.assets.Get(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, asset)
}

func (h *AssetHandler) Delete(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	if err := h.assets.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Adjust moves an asset and records the adjustment.
// @Param x body number true "new real-world x"
// @Param y body number true "new real-world y"
// @Param notes body string false "free text"
func (h *AssetHandler) Adjust(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	input, err := bindMap(c)
	if err != nil {
		response.FromError(c, err)
		return
	}
	notes, _ := input["notes"].(string)
	log, asset, err := h.assets.Adjust(c.Request.Context(), id, input["x"], input["y"], notes)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"asset": asset, "log": log})
}

func (h *AssetHandler) Logs(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	logs, err := h.assets.ListLogs(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, logs)
}

func (h *AssetHandler) ListTypes(c *gin.Context) {
	types, err := h.assetTypes.List(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, types)
}

func (h *AssetHandler) CreateType(c *gin.Context) {
	var req services.AssetTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	at, err := h.assetTypes.Create(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, at)
}
