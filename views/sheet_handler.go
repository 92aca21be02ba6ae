package views

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/GrainArc/SheetGeo/response"
	"github.com/GrainArc/SheetGeo/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SheetHandler struct {
	sheets    *services.SheetService
	validator *services.FileValidator
}

func NewSheetHandler(svc *services.Services) *SheetHandler {
	return &SheetHandler{sheets: svc.Sheets, validator: svc.Validator}
}

func (h *SheetHandler) ListByProject(c *gin.Context) {
	projectID, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	sheets, err := h.sheets.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, sheets)
}

// Upload
// @Summary Upload a PDF, one sheet per page
// @Accept multipart/form-data
// @Param pdf_file formData file true "PDF drawing"
// @Param name formData string false "sheet name (defaults to the file name)"
func (h *SheetHandler) Upload(c *gin.Context) {
	projectID, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	filename, data, err := readUpload(c, "pdf_file", h.validator.MaxPDFBytes)
	if err != nil {
		response.FromError(c, err)
		return
	}
	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		name = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	sheets, err := h.sheets.CreateSheets(c.Request.Context(), projectID, name, filename, data)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, sheets)
}

func (h *SheetHandler) Get(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	sheet, err := h.sheets.Get(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, sheet)
}

// Update
// @Param name body string false ""
// @Param offset_x body number false ""
// @Param offset_y body number false ""
// @Param z_index body integer false ""
// @Param cuts_json body array false "full replacement cut list"
func (h *SheetHandler) Update(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	patch, err := bindMap(c)
	if err != nil {
		response.FromError(c, err)
		return
	}
	sheet, err := h.sheets.Update(c.Request.Context(), id, patch)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, sheet)
}

func (h *SheetHandler) Delete(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	if err := h.sheets.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Split
// @Param p1 body object true "{x, y}"
// @Param p2 body object true "{x, y}"
func (h *SheetHandler) Split(c *gin.Context) {
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
	result, err := h.sheets.Split(c.Request.Context(), id, input["p1"], input["p2"])
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, result)
}

func (h *SheetHandler) Render(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	sheet, err := h.sheets.Render(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, sheet)
}

// AttachImage replaces the rendered raster with an uploaded image.
// @Accept multipart/form-data
// @Param image formData file true "png/jpg/gif/webp"
func (h *SheetHandler) AttachImage(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	filename, data, err := readUpload(c, "image", h.validator.MaxImageBytes)
	if err != nil {
		response.FromError(c, err)
		return
	}
	sheet, err := h.sheets.AttachImage(c.Request.Context(), id, filename, data)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, sheet)
}

func (h *SheetHandler) Image(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	data, key, err := h.sheets.Raster(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	c.Header("ETag", `"`+uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()+`"`)
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}
