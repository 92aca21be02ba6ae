package services

import (
	"bytes"
	"context"
	"image"
	"sort"

	"github.com/GrainArc/SheetGeo/Transformer"
	"github.com/GrainArc/SheetGeo/apierr"
	"github.com/GrainArc/SheetGeo/logger"
	"github.com/GrainArc/SheetGeo/methods"
	"github.com/GrainArc/SheetGeo/models"
	"github.com/fogleman/gg"
	"github.com/paulmach/orb"
)

const exportDir = "exports"

type SheetExport struct {
	SheetID uint   `json:"sheet_id"`
	Name    string `json:"name"`
	File    string `json:"file"`
	Markers int    `json:"markers"`
}

// ExportService draws asset markers over rendered sheets.
type ExportService struct {
	log         *logger.Logger
	store       BlobStore
	sheets      *SheetService
	assets      *AssetService
	calibration *CalibrationService
}

func NewExportService(log *logger.Logger, store BlobStore, sheets *SheetService, assets *AssetService, calibration *CalibrationService) *ExportService {
	return &ExportService{
		log:         log.With("service", "export"),
		store:       store,
		sheets:      sheets,
		assets:      assets,
		calibration: calibration,
	}
}

type ExportOptions struct {
	SheetIDs []uint `json:"sheet_ids"`
	Legend   bool   `json:"legend"`
}

const (
	legendInsetFrac    = 0.4
	legendInsetPadding = 10
)

// ExportProject renders each selected sheet (all when SheetIDs is empty)
// with its visible assets drawn on top and stores one PNG per sheet.
func (s *ExportService) ExportProject(ctx context.Context, projectID uint, opts ExportOptions) ([]SheetExport, error) {
	sheetIDs := opts.SheetIDs
	cal, err := s.calibration.Calibration(ctx, projectID)
	if err != nil {
		return nil, err
	}
	sheets, err := s.sheets.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(sheetIDs) > 0 {
		wanted := make(map[uint]bool, len(sheetIDs))
		for _, id := range sheetIDs {
			wanted[id] = true
		}
		selected := sheets[:0]
		for _, sh := range sheets {
			if wanted[sh.ID] {
				selected = append(selected, sh)
			}
		}
		sheets = selected
	}
	assets, err := s.assets.ListByProject(ctx, projectID, false)
	if err != nil {
		return nil, err
	}

	exports := make([]SheetExport, 0, len(sheets))
	for i := range sheets {
		out, err := s.exportSheet(ctx, &sheets[i], cal, assets, opts.Legend)
		if err != nil {
			return nil, err
		}
		exports = append(exports, *out)
	}
	s.log.Info("project exported", "project_id", projectID, "sheets", len(exports))
	return exports, nil
}

func (s *ExportService) exportSheet(ctx context.Context, sheet *models.Sheet, cal *Calibration, assets []models.Asset, legend bool) (*SheetExport, error) {
	if sheet.RenderedImage == "" {
		rendered, err := s.sheets.Render(ctx, sheet.ID)
		if err != nil {
			return nil, err
		}
		*sheet = *rendered
	}
	raw, err := s.store.Read(sheet.RenderedImage)
	if err != nil {
		s.log.Error("read raster failed", "sheet_id", sheet.ID, "error", err)
		return nil, apierr.Internal(err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		s.log.Error("decode raster failed", "sheet_id", sheet.ID, "error", err)
		return nil, apierr.Internal(err)
	}

	dc := gg.NewContextForImage(img)
	bounds := img.Bounds()
	cuts := sheet.HalfPlanes()
	drawn := 0
	seen := make(map[uint]bool)
	var types []models.AssetType
	for i := range assets {
		a := &assets[i]
		// canvas pixel to sheet-local pixel
		p := cal.ToPixel(a.Current())
		local := orb.Point{p[0] - sheet.OffsetX, p[1] - sheet.OffsetY}
		if !visible(local, bounds, cuts) {
			continue
		}
		drawMarker(dc, local, &a.AssetType)
		drawn++
		if !seen[a.AssetTypeID] {
			seen[a.AssetTypeID] = true
			types = append(types, a.AssetType)
		}
	}

	canvas, _ := dc.Image().(*image.RGBA)
	if legend && len(types) > 0 && canvas != nil {
		sort.Slice(types, func(i, j int) bool { return types[i].Name < types[j].Name })
		raw, err := CreateLegend(types)
		if err != nil {
			s.log.Error("draw legend failed", "sheet_id", sheet.ID, "error", err)
			return nil, apierr.Internal(err)
		}
		inset, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, apierr.Internal(err)
		}
		embedInset(canvas, inset, legendInsetFrac, legendInsetPadding)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, apierr.Internal(err)
	}
	key, err := s.store.Save(exportDir, ".png", buf.Bytes())
	if err != nil {
		s.log.Error("store export failed", "sheet_id", sheet.ID, "error", err)
		return nil, apierr.Internal(err)
	}
	return &SheetExport{SheetID: sheet.ID, Name: sheet.Name, File: key, Markers: drawn}, nil
}

// Legend draws the asset types used by a project's assets, ordered by name.
func (s *ExportService) Legend(ctx context.Context, projectID uint) ([]byte, error) {
	assets, err := s.assets.ListByProject(ctx, projectID, false)
	if err != nil {
		return nil, err
	}
	seen := make(map[uint]bool)
	var types []models.AssetType
	for _, a := range assets {
		if !seen[a.AssetTypeID] {
			seen[a.AssetTypeID] = true
			types = append(types, a.AssetType)
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Name < types[j].Name })
	data, err := CreateLegend(types)
	if err != nil {
		s.log.Error("draw legend failed", "project_id", projectID, "error", err)
		return nil, apierr.Internal(err)
	}
	return data, nil
}

func visible(p orb.Point, bounds image.Rectangle, cuts []Transformer.HalfPlane) bool {
	if p[0] < float64(bounds.Min.X) || p[1] < float64(bounds.Min.Y) ||
		p[0] > float64(bounds.Max.X) || p[1] > float64(bounds.Max.Y) {
		return false
	}
	for _, c := range cuts {
		if !c.Contains(p) {
			return false
		}
	}
	return true
}

func drawMarker(dc *gg.Context, p orb.Point, at *models.AssetType) {
	size := float64(at.Size)
	if size <= 0 {
		size = models.DefaultIconSize
	}
	r := size / 2
	switch at.IconShape {
	case "square":
		dc.DrawRectangle(p[0]-r, p[1]-r, size, size)
	case "triangle":
		top := orb.Point{p[0], p[1] - r}
		left := Transformer.RotatePoint(top, p, 120)
		right := Transformer.RotatePoint(top, p, 240)
		dc.MoveTo(top[0], top[1])
		dc.LineTo(left[0], left[1])
		dc.LineTo(right[0], right[1])
		dc.ClosePath()
	default:
		dc.DrawCircle(p[0], p[1], r)
	}
	red, green, blue := methods.ParseColor(at.Color)
	dc.SetRGB(red, green, blue)
	dc.FillPreserve()
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)
	dc.Stroke()
}
