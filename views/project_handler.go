package views

import (
	"net/http"

	"github.com/GrainArc/SheetGeo/response"
	"github.com/GrainArc/SheetGeo/services"
	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
)

type ProjectHandler struct {
	projects    *services.ProjectService
	calibration *services.CalibrationService
}

func NewProjectHandler(svc *services.Services) *ProjectHandler {
	return &ProjectHandler{projects: svc.Projects, calibration: svc.Calibration}
}

type projectRequest struct {
	Name string `json:"name"`
}

func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projects.List(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, projects)
}

func (h *ProjectHandler) Create(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	project, err := h.projects.Create(c.Request.Context(), req.Name)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, project)
}

func (h *ProjectHandler) Get(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	project, err := h.projects.Get(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, project)
}

// Rename
// @Param name body string true "new project name"
func (h *ProjectHandler) Rename(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	project, err := h.projects.Rename(c.Request.Context(), id, req.Name)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, project)
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	if err := h.projects.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Calibrate applies any combination of calibration fields.
// @Summary Calibrate a project
// @Param pixel_distance body number false "measured pixel distance, sent with real_distance"
// @Param real_distance body number false "real distance in metres"
// @Param origin_x body number false "origin pixel x"
// @Param origin_y body number false "origin pixel y"
// @Param canvas_rotation body number false "degrees"
// @Param asset_rotation body number false "degrees"
// @Param ref_asset_id body string false "anchor asset id"
// @Param ref_pixel_x body number false "anchor pixel x"
// @Param ref_pixel_y body number false "anchor pixel y"
// @Param coord_unit body string false "meters|degrees|gda94_geo|gda94_mga"
func (h *ProjectHandler) Calibrate(c *gin.Context) {
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
	project, err := h.calibration.Calibrate(c.Request.Context(), id, input)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, project)
}

// Transform returns both 3x3 matrices of the project's current calibration.
func (h *ProjectHandler) Transform(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	cal, err := h.calibration.Calibration(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	var anchor string
	if cal.Anchor != nil {
		anchor = cal.Anchor.AssetID
	}
	response.Success(c, gin.H{
		"pixels_per_meter": cal.Project.PixelsPerMeter,
		"coord_unit":       cal.Project.CoordUnit,
		"anchor_asset_id":  anchor,
		"pixel_to_real":    cal.PixelToReal.Matrix(),
		"real_to_pixel":    cal.RealToPixel.Matrix(),
	})
}

type convertRequest struct {
	Direction string      `json:"direction"`
	Points    []orb.Point `json:"points"`
}

// Convert
// @Param direction body string true "pixel_to_real|real_to_pixel"
// @Param points body [][2]number true "points to convert"
func (h *ProjectHandler) Convert(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "points must be a list of [x, y] pairs")
		return
	}
	points, err := h.calibration.Convert(c.Request.Context(), id, req.Direction, req.Points)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"direction": req.Direction, "points": points})
}
