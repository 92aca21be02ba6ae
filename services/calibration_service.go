package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/GrainArc/SheetGeo/Transformer"
	"github.com/GrainArc/SheetGeo/apierr"
	"github.com/GrainArc/SheetGeo/logger"
	"github.com/GrainArc/SheetGeo/methods"
	"github.com/GrainArc/SheetGeo/models"
	"github.com/paulmach/orb"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// calibrationStep is a validated, not yet applied, project mutation.
type calibrationStep func(p *models.Project)

func numberField(field string, v interface{}) (float64, error) {
	f, err := methods.ParseFinite(v)
	if err != nil {
		return 0, apierr.InvalidInput(field, "%s", err.Error())
	}
	return f, nil
}

func planScale(pixelDistance, realDistance interface{}) (calibrationStep, error) {
	pixel, err := numberField("pixel_distance", pixelDistance)
	if err != nil {
		return nil, err
	}
	meters, err := numberField("real_distance", realDistance)
	if err != nil {
		return nil, err
	}
	if meters <= 0 {
		return nil, apierr.InvalidInput("real_distance", "must be greater than zero")
	}
	ppm := pixel / meters
	if !(ppm > 0) || math.IsInf(ppm, 0) {
		return nil, apierr.InvalidInput("pixel_distance", "must give a positive finite scale")
	}
	return func(p *models.Project) {
		p.PixelsPerMeter = ppm
		p.ScaleCalibrated = true
	}, nil
}

func planOrigin(x, y interface{}) (calibrationStep, error) {
	ox, err := numberField("origin_x", x)
	if err != nil {
		return nil, err
	}
	oy, err := numberField("origin_y", y)
	if err != nil {
		return nil, err
	}
	return func(p *models.Project) {
		p.OriginX, p.OriginY = ox, oy
	}, nil
}

func planRotation(canvasDeg interface{}) (calibrationStep, error) {
	deg, err := numberField("canvas_rotation", canvasDeg)
	if err != nil {
		return nil, err
	}
	return func(p *models.Project) { p.CanvasRotation = deg }, nil
}

func planAssetCalibration(assetDeg interface{}, refAssetID string, refPixelX, refPixelY interface{}) (calibrationStep, error) {
	deg, err := numberField("asset_rotation", assetDeg)
	if err != nil {
		return nil, err
	}
	px, err := numberField("ref_pixel_x", refPixelX)
	if err != nil {
		return nil, err
	}
	py, err := numberField("ref_pixel_y", refPixelY)
	if err != nil {
		return nil, err
	}
	ref := strings.TrimSpace(refAssetID)
	return func(p *models.Project) {
		p.AssetRotation = deg
		p.RefAssetID = ref
		p.RefPixelX, p.RefPixelY = px, py
	}, nil
}

func planCoordUnit(unit string) (calibrationStep, error) {
	if !models.ValidCoordUnit(unit) {
		return nil, apierr.InvalidInput("coord_unit", "must be one of %s", strings.Join(models.CoordUnits, ", "))
	}
	return func(p *models.Project) { p.CoordUnit = unit }, nil
}

// SetScale sets pixels per meter from a measured distance pair and marks the
// project scale-calibrated. The flag is never cleared.
func SetScale(p *models.Project, pixelDistance, realDistance interface{}) (float64, error) {
	step, err := planScale(pixelDistance, realDistance)
	if err != nil {
		return 0, err
	}
	step(p)
	return p.PixelsPerMeter, nil
}

func SetOrigin(p *models.Project, x, y interface{}) error {
	step, err := planOrigin(x, y)
	if err != nil {
		return err
	}
	step(p)
	return nil
}

func SetRotation(p *models.Project, canvasDeg interface{}) error {
	step, err := planRotation(canvasDeg)
	if err != nil {
		return err
	}
	step(p)
	return nil
}

// SetAssetCalibration stores the asset rotation and the reference anchor.
// An empty refAssetID clears the anchor.
func SetAssetCalibration(p *models.Project, assetDeg interface{}, refAssetID string, refPixelX, refPixelY interface{}) error {
	step, err := planAssetCalibration(assetDeg, refAssetID, refPixelX, refPixelY)
	if err != nil {
		return err
	}
	step(p)
	return nil
}

func SetCoordUnit(p *models.Project, unit string) error {
	step, err := planCoordUnit(unit)
	if err != nil {
		return err
	}
	step(p)
	return nil
}

// PixelToRealTransform builds the pixel to real-world transform of p.
//
// Without an anchor: translate(-origin), rotate(canvas), scale(1/ppm).
// With an anchor asset: translate(-refPixel), rotate(canvas), scale(1/ppm),
// rotate(asset), translate(anchor position), so the reference pixel lands
// exactly on the anchor's current position.
func PixelToRealTransform(p *models.Project, anchor *models.Asset) Transformer.Affine {
	inv := 1 / p.PixelsPerMeter
	if anchor == nil {
		return Transformer.Compose(
			Transformer.Translate(-p.OriginX, -p.OriginY),
			Transformer.Rotate(p.CanvasRotation),
			Transformer.Scale(inv, inv),
		)
	}
	ref := anchor.Current()
	return Transformer.Compose(
		Transformer.Translate(-p.RefPixelX, -p.RefPixelY),
		Transformer.Rotate(p.CanvasRotation),
		Transformer.Scale(inv, inv),
		Transformer.Rotate(p.AssetRotation),
		Transformer.Translate(ref[0], ref[1]),
	)
}

// Calibration is a project's resolved transform pair.
type Calibration struct {
	Project     *models.Project
	Anchor      *models.Asset
	PixelToReal Transformer.Affine
	RealToPixel Transformer.Affine
}

func NewCalibration(p *models.Project, anchor *models.Asset) (*Calibration, error) {
	fwd := PixelToRealTransform(p, anchor)
	inv, err := fwd.Invert()
	if err != nil {
		return nil, err
	}
	return &Calibration{Project: p, Anchor: anchor, PixelToReal: fwd, RealToPixel: inv}, nil
}

func (c *Calibration) ToReal(p orb.Point) orb.Point  { return c.PixelToReal.Apply(p) }
func (c *Calibration) ToPixel(p orb.Point) orb.Point { return c.RealToPixel.Apply(p) }

const (
	DirectionPixelToReal = "pixel_to_real"
	DirectionRealToPixel = "real_to_pixel"
)

type CalibrationService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCalibrationService(db *gorm.DB, log *logger.Logger) *CalibrationService {
	return &CalibrationService{db: db, log: log.With("service", "calibration")}
}

func stringField(field string, v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	default:
		return "", apierr.InvalidInput(field, "must be a string")
	}
}

func planCalibration(input map[string]interface{}) ([]calibrationStep, error) {
	var steps []calibrationStep
	add := func(step calibrationStep, err error) error {
		if err != nil {
			return err
		}
		steps = append(steps, step)
		return nil
	}

	_, hasPixel := input["pixel_distance"]
	_, hasReal := input["real_distance"]
	if hasPixel || hasReal {
		if err := add(planScale(input["pixel_distance"], input["real_distance"])); err != nil {
			return nil, err
		}
	}
	for _, field := range []string{"origin_x", "origin_y"} {
		v, ok := input[field]
		if !ok {
			continue
		}
		f, err := numberField(field, v)
		if err != nil {
			return nil, err
		}
		if field == "origin_x" {
			steps = append(steps, func(p *models.Project) { p.OriginX = f })
		} else {
			steps = append(steps, func(p *models.Project) { p.OriginY = f })
		}
	}
	if v, ok := input["canvas_rotation"]; ok {
		if err := add(planRotation(v)); err != nil {
			return nil, err
		}
	}
	if v, ok := input["asset_rotation"]; ok {
		deg, err := numberField("asset_rotation", v)
		if err != nil {
			return nil, err
		}
		steps = append(steps, func(p *models.Project) { p.AssetRotation = deg })
	}
	if v, ok := input["ref_asset_id"]; ok {
		ref, err := stringField("ref_asset_id", v)
		if err != nil {
			return nil, err
		}
		ref = strings.TrimSpace(ref)
		steps = append(steps, func(p *models.Project) { p.RefAssetID = ref })
	}
	for _, field := range []string{"ref_pixel_x", "ref_pixel_y"} {
		v, ok := input[field]
		if !ok {
			continue
		}
		f, err := numberField(field, v)
		if err != nil {
			return nil, err
		}
		if field == "ref_pixel_x" {
			steps = append(steps, func(p *models.Project) { p.RefPixelX = f })
		} else {
			steps = append(steps, func(p *models.Project) { p.RefPixelY = f })
		}
	}
	if v, ok := input["coord_unit"]; ok {
		unit, err := stringField("coord_unit", v)
		if err != nil {
			return nil, err
		}
		if err := add(planCoordUnit(unit)); err != nil {
			return nil, err
		}
	}
	return steps, nil
}

// Calibrate validates every supplied field, then applies them together.
// A rejected request leaves the project untouched.
func (s *CalibrationService) Calibrate(ctx context.Context, projectID uint, input map[string]interface{}) (*models.Project, error) {
	steps, err := planCalibration(input)
	if err != nil {
		return nil, err
	}

	var project models.Project
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&project, projectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierr.NotFound("project", projectID)
			}
			return apierr.Internal(err)
		}
		for _, step := range steps {
			step(&project)
		}
		if err := tx.Omit(clause.Associations).Save(&project).Error; err != nil {
			return apierr.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("project calibrated", "project_id", projectID, "fields", len(steps), "pixels_per_meter", project.PixelsPerMeter)
	return &project, nil
}

// Calibration loads a project and its anchor asset, if the anchor still exists.
func (s *CalibrationService) Calibration(ctx context.Context, projectID uint) (*Calibration, error) {
	db := s.db.WithContext(ctx)
	var project models.Project
	if err := db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("project", projectID)
		}
		return nil, apierr.Internal(err)
	}
	return s.calibrationFor(db, &project)
}

func (s *CalibrationService) calibrationFor(db *gorm.DB, project *models.Project) (*Calibration, error) {
	var anchor *models.Asset
	if project.RefAssetID != "" {
		var a models.Asset
		err := db.Where("project_id = ? AND asset_id = ?", project.ID, project.RefAssetID).First(&a).Error
		switch {
		case err == nil:
			anchor = &a
		case errors.Is(err, gorm.ErrRecordNotFound):
			s.log.Debug("anchor asset missing, using origin transform", "project_id", project.ID, "ref_asset_id", project.RefAssetID)
		default:
			return nil, apierr.Internal(err)
		}
	}
	cal, err := NewCalibration(project, anchor)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("project %d: %w", project.ID, err))
	}
	return cal, nil
}

// Convert maps points through the project transform in the given direction.
func (s *CalibrationService) Convert(ctx context.Context, projectID uint, direction string, points []orb.Point) ([]orb.Point, error) {
	if direction != DirectionPixelToReal && direction != DirectionRealToPixel {
		return nil, apierr.InvalidInput("direction", "must be %s or %s", DirectionPixelToReal, DirectionRealToPixel)
	}
	cal, err := s.Calibration(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]orb.Point, len(points))
	for i, p := range points {
		if direction == DirectionPixelToReal {
			out[i] = cal.ToReal(p)
		} else {
			out[i] = cal.ToPixel(p)
		}
	}
	return out, nil
}
