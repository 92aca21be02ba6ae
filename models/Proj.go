package models

import (
	"time"

	"gorm.io/gorm"
)

// Coordinate unit tags. They govern how downstream consumers read real-world values.
const (
	CoordUnitMeters   = "meters"
	CoordUnitDegrees  = "degrees"
	CoordUnitGDA94Geo = "gda94_geo"
	CoordUnitGDA94MGA = "gda94_mga"
)

var CoordUnits = []string{CoordUnitMeters, CoordUnitDegrees, CoordUnitGDA94Geo, CoordUnitGDA94MGA}

func ValidCoordUnit(unit string) bool {
	for _, u := range CoordUnits {
		if u == unit {
			return true
		}
	}
	return false
}

const DefaultPixelsPerMeter = 100.0

// Project is a georeferencing context. Its calibration fields are only
// changed through the calibration service.
type Project struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	Name            string  `gorm:"size:255;not null" json:"name"`
	PixelsPerMeter  float64 `gorm:"not null;default:100" json:"pixels_per_meter"`
	OriginX         float64 `gorm:"not null;default:0" json:"origin_x"`
	OriginY         float64 `gorm:"not null;default:0" json:"origin_y"`
	CanvasRotation  float64 `gorm:"not null;default:0" json:"canvas_rotation"`
	AssetRotation   float64 `gorm:"not null;default:0" json:"asset_rotation"`
	RefAssetID      string  `gorm:"size:255;not null;default:''" json:"ref_asset_id"`
	RefPixelX       float64 `gorm:"not null;default:0" json:"ref_pixel_x"`
	RefPixelY       float64 `gorm:"not null;default:0" json:"ref_pixel_y"`
	CoordUnit       string  `gorm:"size:16;not null;default:meters" json:"coord_unit"`
	ScaleCalibrated bool    `gorm:"not null;default:false" json:"scale_calibrated"`

	Sheets  []Sheet       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Assets  []Asset       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Batches []ImportBatch `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Project) TableName() string {
	return "projects"
}

func NewProject(name string) *Project {
	return &Project{
		Name:           name,
		PixelsPerMeter: DefaultPixelsPerMeter,
		CoordUnit:      CoordUnitMeters,
	}
}

func (p *Project) BeforeSave(tx *gorm.DB) error {
	if p.CoordUnit == "" {
		p.CoordUnit = CoordUnitMeters
	}
	return nil
}
