package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/GrainArc/SheetGeo/apierr"
	"github.com/GrainArc/SheetGeo/logger"
	"github.com/GrainArc/SheetGeo/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pdfDir      = "pdfs"
	renderedDir = "rendered"
	splitSuffix = " (split)"
)

type SheetService struct {
	db        *gorm.DB
	log       *logger.Logger
	store     BlobStore
	renderer  Renderer
	validator *FileValidator
}

func NewSheetService(db *gorm.DB, log *logger.Logger, store BlobStore, renderer Renderer, validator *FileValidator) *SheetService {
	return &SheetService{
		db:        db,
		log:       log.With("service", "sheet"),
		store:     store,
		renderer:  renderer,
		validator: validator,
	}
}

func findSheet(tx *gorm.DB, id uint) (*models.Sheet, error) {
	var sheet models.Sheet
	if err := tx.First(&sheet, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("sheet", id)
		}
		return nil, apierr.Internal(err)
	}
	return &sheet, nil
}

func (s *SheetService) Get(ctx context.Context, id uint) (*models.Sheet, error) {
	return findSheet(s.db.WithContext(ctx), id)
}

// ListByProject returns sheets in stacking order.
func (s *SheetService) ListByProject(ctx context.Context, projectID uint) ([]models.Sheet, error) {
	db := s.db.WithContext(ctx)
	if err := ensureProject(db, projectID); err != nil {
		return nil, err
	}
	var sheets []models.Sheet
	if err := db.Where("project_id = ?", projectID).Order("z_index, id").Find(&sheets).Error; err != nil {
		return nil, apierr.Internal(err)
	}
	return sheets, nil
}

// CreateSheets stores a PDF once and creates one sheet per page, all
// referencing the same blob.
func (s *SheetService) CreateSheets(ctx context.Context, projectID uint, name, filename string, pdf []byte) ([]models.Sheet, error) {
	if err := s.validator.ValidatePDF(filename, pdf); err != nil {
		return nil, err
	}
	if err := ensureProject(s.db.WithContext(ctx), projectID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	pages, err := s.renderer.PageCount(pdf)
	if err != nil || pages < 1 {
		s.log.Warn("page count unavailable, assuming one page", "filename", filename, "error", err)
		pages = 1
	}

	key, err := s.store.Save(pdfDir, ".pdf", pdf)
	if err != nil {
		s.log.Error("store pdf failed", "project_id", projectID, "error", err)
		return nil, apierr.Internal(err)
	}

	sheets := make([]models.Sheet, 0, pages)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxZ int
		if err := tx.Model(&models.Sheet{}).Where("project_id = ?", projectID).
			Select("COALESCE(MAX(z_index), -1)").Scan(&maxZ).Error; err != nil {
			return err
		}
		for page := 1; page <= pages; page++ {
			sheetName := name
			if pages > 1 {
				sheetName = fmt.Sprintf("%s - Page %d", name, page)
			}
			sheets = append(sheets, models.Sheet{
				ProjectID:  projectID,
				Name:       sheetName,
				PdfFile:    key,
				PageNumber: page,
				ZIndex:     maxZ + page,
				Cuts:       datatypes.JSONSlice[models.Cut]{},
			})
		}
		return tx.Omit(clause.Associations).Create(&sheets).Error
	})
	if err != nil {
		if delErr := s.store.Delete(key); delErr != nil {
			s.log.Warn("remove orphaned pdf failed", "key", key, "error", delErr)
		}
		return nil, apierr.Internal(err)
	}
	s.log.Info("sheets created", "project_id", projectID, "pages", pages, "pdf", key)
	return sheets, nil
}

func cutPoint(field string, v interface{}) (models.CutPoint, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return models.CutPoint{}, apierr.InvalidInput(field, "must be an object with x and y")
	}
	x, err := numberField(field+".x", obj["x"])
	if err != nil {
		return models.CutPoint{}, err
	}
	y, err := numberField(field+".y", obj["y"])
	if err != nil {
		return models.CutPoint{}, err
	}
	return models.CutPoint{X: x, Y: y}, nil
}

// parseCuts validates a full replacement cut list. Coordinates must be finite
// numbers; numeric strings are normalised to numbers.
func parseCuts(v interface{}) (datatypes.JSONSlice[models.Cut], error) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, apierr.InvalidInput("cuts_json", "must be a list")
	}
	cuts := make(datatypes.JSONSlice[models.Cut], 0, len(list))
	for i, item := range list {
		field := fmt.Sprintf("cuts_json[%d]", i)
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, apierr.InvalidInput(field, "must be an object")
		}
		p1, err := cutPoint(field+".p1", obj["p1"])
		if err != nil {
			return nil, err
		}
		p2, err := cutPoint(field+".p2", obj["p2"])
		if err != nil {
			return nil, err
		}
		flipped := false
		if raw, ok := obj["flipped"]; ok && raw != nil {
			b, ok := raw.(bool)
			if !ok {
				return nil, apierr.InvalidInput(field+".flipped", "must be a boolean")
			}
			flipped = b
		}
		cuts = append(cuts, models.Cut{P1: p1, P2: p2, Flipped: flipped})
	}
	return cuts, nil
}

type sheetStep func(sh *models.Sheet)

func planSheetUpdate(patch map[string]interface{}) ([]sheetStep, error) {
	var steps []sheetStep
	if v, ok := patch["name"]; ok {
		name, _ := v.(string)
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, apierr.InvalidInput("name", "must be a non-empty string")
		}
		steps = append(steps, func(sh *models.Sheet) { sh.Name = name })
	}
	if v, ok := patch["offset_x"]; ok {
		f, err := numberField("offset_x", v)
		if err != nil {
			return nil, err
		}
		steps = append(steps, func(sh *models.Sheet) { sh.OffsetX = f })
	}
	if v, ok := patch["offset_y"]; ok {
		f, err := numberField("offset_y", v)
		if err != nil {
			return nil, err
		}
		steps = append(steps, func(sh *models.Sheet) { sh.OffsetY = f })
	}
	if v, ok := patch["z_index"]; ok {
		f, err := numberField("z_index", v)
		if err != nil {
			return nil, err
		}
		if f != float64(int(f)) {
			return nil, apierr.InvalidInput("z_index", "must be an integer")
		}
		steps = append(steps, func(sh *models.Sheet) { sh.ZIndex = int(f) })
	}
	if v, ok := patch["cuts_json"]; ok {
		cuts, err := parseCuts(v)
		if err != nil {
			return nil, err
		}
		steps = append(steps, func(sh *models.Sheet) { sh.Cuts = cuts })
	}
	return steps, nil
}

// Update applies a partial update. All fields are validated before any is applied.
func (s *SheetService) Update(ctx context.Context, id uint, patch map[string]interface{}) (*models.Sheet, error) {
	steps, err := planSheetUpdate(patch)
	if err != nil {
		return nil, err
	}
	var sheet *models.Sheet
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sh, err := findSheet(tx, id)
		if err != nil {
			return err
		}
		for _, step := range steps {
			step(sh)
		}
		if err := tx.Omit(clause.Associations).Save(sh).Error; err != nil {
			return apierr.Internal(err)
		}
		sheet = sh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sheet, nil
}

// SplitResult holds both halves of a split.
type SplitResult struct {
	Original *models.Sheet `json:"original"`
	NewSheet *models.Sheet `json:"new_sheet"`
}

// Split divides a sheet along p1->p2. The original keeps the left half-plane
// (flipped=false); a new sibling gets the original's prior cuts plus the right
// half-plane (flipped=true). Cuts accumulate, so visible regions are always
// intersections of every cut in a sheet's chain.
func (s *SheetService) Split(ctx context.Context, id uint, p1Raw, p2Raw interface{}) (*SplitResult, error) {
	p1, err := cutPoint("p1", p1Raw)
	if err != nil {
		return nil, err
	}
	p2, err := cutPoint("p2", p2Raw)
	if err != nil {
		return nil, err
	}

	result := &SplitResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sheet, err := findSheet(tx, id)
		if err != nil {
			return err
		}
		prior := append(datatypes.JSONSlice[models.Cut]{}, sheet.Cuts...)

		sheet.Cuts = append(append(datatypes.JSONSlice[models.Cut]{}, prior...), models.Cut{P1: p1, P2: p2, Flipped: false})
		if err := tx.Omit(clause.Associations).Save(sheet).Error; err != nil {
			return apierr.Internal(err)
		}

		clone := &models.Sheet{
			ProjectID:   sheet.ProjectID,
			Name:        sheet.Name + splitSuffix,
			PdfFile:     sheet.PdfFile,
			PageNumber:  sheet.PageNumber,
			ZIndex:      sheet.ZIndex,
			OffsetX:     sheet.OffsetX,
			OffsetY:     sheet.OffsetY,
			Cuts:        append(prior, models.Cut{P1: p1, P2: p2, Flipped: true}),
			ImageWidth:  sheet.ImageWidth,
			ImageHeight: sheet.ImageHeight,
		}
		if err := tx.Omit(clause.Associations).Create(clone).Error; err != nil {
			return apierr.Internal(err)
		}
		result.Original, result.NewSheet = sheet, clone
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("sheet split", "sheet_id", id, "new_sheet_id", result.NewSheet.ID, "cuts", len(result.Original.Cuts))
	return result, nil
}

func countReferences(tx *gorm.DB, column, key string) (int64, error) {
	if key == "" {
		return 0, nil
	}
	var n int64
	err := tx.Model(&models.Sheet{}).Where(column+" = ?", key).Count(&n).Error
	return n, err
}

// unreferencedBlobs returns the keys no remaining sheet points at.
func unreferencedBlobs(tx *gorm.DB, sheets []models.Sheet) ([]string, error) {
	seen := map[string]bool{}
	var orphans []string
	for _, sh := range sheets {
		for _, ref := range []struct{ column, key string }{
			{"pdf_file", sh.PdfFile},
			{"rendered_image", sh.RenderedImage},
		} {
			if ref.key == "" || seen[ref.key] {
				continue
			}
			seen[ref.key] = true
			n, err := countReferences(tx, ref.column, ref.key)
			if err != nil {
				return nil, err
			}
			if n == 0 {
				orphans = append(orphans, ref.key)
			}
		}
	}
	return orphans, nil
}

func (s *SheetService) removeBlobs(keys []string) {
	for _, key := range keys {
		if err := s.store.Delete(key); err != nil {
			s.log.Warn("remove blob failed", "key", key, "error", err)
		}
	}
}

// Delete removes a sheet. Its PDF and raster are removed only when no other
// sheet still references them.
func (s *SheetService) Delete(ctx context.Context, id uint) error {
	var orphans []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sheet, err := findSheet(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(&models.Sheet{}, id).Error; err != nil {
			return apierr.Internal(err)
		}
		if orphans, err = unreferencedBlobs(tx, []models.Sheet{*sheet}); err != nil {
			return apierr.Internal(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.removeBlobs(orphans)
	s.log.Info("sheet deleted", "sheet_id", id, "blobs_removed", len(orphans))
	return nil
}

// setRaster records a new raster on the sheet and drops the previous one if
// nothing else references it.
func (s *SheetService) setRaster(ctx context.Context, sheet *models.Sheet, key string, width, height int) error {
	previous := sheet.RenderedImage
	var orphans []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(sheet).Updates(map[string]interface{}{
			"rendered_image": key,
			"image_width":    width,
			"image_height":   height,
		}).Error
		if err != nil {
			return err
		}
		if previous != "" && previous != key {
			orphans, err = unreferencedBlobs(tx, []models.Sheet{{RenderedImage: previous}})
		}
		return err
	})
	if err != nil {
		return err
	}
	s.removeBlobs(orphans)
	return nil
}

// Render rasterises a sheet's page through the renderer and caches the result.
// Failures are logged in full; callers get a generic internal error.
func (s *SheetService) Render(ctx context.Context, id uint) (*models.Sheet, error) {
	sheet, err := findSheet(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	fail := func(stage string, err error) (*models.Sheet, error) {
		s.log.Error("render sheet failed", "sheet_id", id, "stage", stage, "error", err)
		return nil, apierr.Internal(fmt.Errorf("%s: %w", stage, err))
	}

	pdf, err := s.store.Read(sheet.PdfFile)
	if err != nil {
		return fail("read pdf", err)
	}
	raster, err := s.renderer.RenderPage(ctx, sheet, pdf)
	if err != nil {
		return fail("render page", err)
	}
	key, err := s.store.Save(renderedDir, ".png", raster.PNG)
	if err != nil {
		return fail("store raster", err)
	}
	if err := s.setRaster(ctx, sheet, key, raster.Width, raster.Height); err != nil {
		s.removeBlobs([]string{key})
		return fail("save sheet", err)
	}
	s.log.Info("sheet rendered", "sheet_id", id, "width", raster.Width, "height", raster.Height)
	return findSheet(s.db.WithContext(ctx), id)
}

// AttachImage stores an externally rendered raster for a sheet.
func (s *SheetService) AttachImage(ctx context.Context, id uint, filename string, data []byte) (*models.Sheet, error) {
	sheet, err := findSheet(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	cfg, err := s.validator.ValidateImage(filename, data)
	if err != nil {
		return nil, err
	}
	key, err := s.store.Save(renderedDir, filepath.Ext(filename), data)
	if err != nil {
		s.log.Error("store raster failed", "sheet_id", id, "error", err)
		return nil, apierr.Internal(err)
	}
	if err := s.setRaster(ctx, sheet, key, cfg.Width, cfg.Height); err != nil {
		s.removeBlobs([]string{key})
		s.log.Error("attach raster failed", "sheet_id", id, "error", err)
		return nil, apierr.Internal(err)
	}
	return findSheet(s.db.WithContext(ctx), id)
}

// Raster returns the cached raster bytes of a sheet.
func (s *SheetService) Raster(ctx context.Context, id uint) ([]byte, string, error) {
	sheet, err := findSheet(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, "", err
	}
	if sheet.RenderedImage == "" {
		return nil, "", apierr.NotFound("rendered image for sheet", id)
	}
	data, err := s.store.Read(sheet.RenderedImage)
	if err != nil {
		s.log.Error("read raster failed", "sheet_id", id, "error", err)
		return nil, "", apierr.Internal(err)
	}
	return data, sheet.RenderedImage, nil
}
