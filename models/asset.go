package models

import (
	"math"
	"time"

	"github.com/GrainArc/SheetGeo/Transformer"
	"github.com/paulmach/orb"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultIconShape = "circle"
	DefaultColor     = "#FF0000"
	DefaultIconSize  = 20
)

// AssetType is a named display category. Names are unique as stored;
// ingestion resolves them case-insensitively.
type AssetType struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	IconShape string    `gorm:"size:20;not null;default:circle" json:"icon_shape"`
	Color     string    `gorm:"size:7;not null;default:#FF0000" json:"color"`
	Size      int       `gorm:"not null;default:20" json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

func (AssetType) TableName() string {
	return "asset_types"
}

func NewAssetType(name string) *AssetType {
	return &AssetType{Name: name, IconShape: DefaultIconShape, Color: DefaultColor, Size: DefaultIconSize}
}

// ImportBatch records one CSV ingestion run.
type ImportBatch struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProjectID  uint      `gorm:"not null;index" json:"project_id"`
	Filename   string    `gorm:"size:255;not null" json:"filename"`
	AssetCount int       `gorm:"not null;default:0" json:"asset_count"`
	Assets     []Asset   `gorm:"foreignKey:ImportBatchID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ImportBatch) TableName() string {
	return "import_batches"
}

// Asset is a point feature. (ProjectID, AssetID) is the natural key.
type Asset struct {
	ID            uint                                  `gorm:"primaryKey" json:"id"`
	ProjectID     uint                                  `gorm:"not null;uniqueIndex:idx_asset_project_asset_id" json:"project_id"`
	AssetID       string                                `gorm:"size:255;not null;uniqueIndex:idx_asset_project_asset_id" json:"asset_id"`
	Name          string                                `gorm:"size:255" json:"name"`
	AssetTypeID   uint                                  `gorm:"not null;index" json:"asset_type_id"`
	AssetType     AssetType                             `gorm:"foreignKey:AssetTypeID" json:"asset_type"`
	OriginalX     float64                               `gorm:"not null" json:"original_x"`
	OriginalY     float64                               `gorm:"not null" json:"original_y"`
	AdjustedX     *float64                              `json:"adjusted_x"`
	AdjustedY     *float64                              `json:"adjusted_y"`
	IsAdjusted    bool                                  `gorm:"not null;default:false" json:"is_adjusted"`
	Metadata      datatypes.JSONType[map[string]string] `json:"metadata"`
	ImportBatchID *uint                                 `gorm:"index" json:"import_batch_id"`
	Logs          []AdjustmentLog                       `gorm:"foreignKey:AssetRowID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt     time.Time                             `json:"created_at"`
	UpdatedAt     time.Time                             `json:"updated_at"`
}

func (Asset) TableName() string {
	return "assets"
}

func (a *Asset) Original() orb.Point {
	return orb.Point{a.OriginalX, a.OriginalY}
}

// Current is the adjusted position when adjusted, else the original one.
func (a *Asset) Current() orb.Point {
	if a.IsAdjusted && a.AdjustedX != nil && a.AdjustedY != nil {
		return orb.Point{*a.AdjustedX, *a.AdjustedY}
	}
	return a.Original()
}

func (a *Asset) CurrentX() float64 { return a.Current()[0] }
func (a *Asset) CurrentY() float64 { return a.Current()[1] }

// DeltaDistance is how far the current position is from the original one.
func (a *Asset) DeltaDistance() float64 {
	if !a.IsAdjusted {
		return 0
	}
	return Transformer.Distance(a.Original(), a.Current())
}

// MetadataMap never returns nil.
func (a *Asset) MetadataMap() map[string]string {
	if m := a.Metadata.Data(); m != nil {
		return m
	}
	return map[string]string{}
}

func (a *Asset) DisplayName() string {
	if a.Name != "" {
		return a.AssetID + " - " + a.Name
	}
	return a.AssetID
}

// AdjustmentLog is an append-only record of one manual correction.
type AdjustmentLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	AssetRowID    uint      `gorm:"not null;index" json:"asset"`
	Asset         *Asset    `gorm:"foreignKey:AssetRowID" json:"-"`
	FromX         float64   `gorm:"not null" json:"from_x"`
	FromY         float64   `gorm:"not null" json:"from_y"`
	ToX           float64   `gorm:"not null" json:"to_x"`
	ToY           float64   `gorm:"not null" json:"to_y"`
	DeltaX        float64   `gorm:"not null" json:"delta_x"`
	DeltaY        float64   `gorm:"not null" json:"delta_y"`
	DeltaDistance float64   `gorm:"not null" json:"delta_distance"`
	Notes         string    `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
}

func (AdjustmentLog) TableName() string {
	return "adjustment_logs"
}

func (l *AdjustmentLog) BeforeCreate(tx *gorm.DB) error {
	l.DeltaX = l.ToX - l.FromX
	l.DeltaY = l.ToY - l.FromY
	l.DeltaDistance = math.Hypot(l.DeltaX, l.DeltaY)
	return nil
}

// AdjustmentLogs are never rewritten.
func (l *AdjustmentLog) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableLog
}

// Column mapping roles understood by the CSV importer.
const (
	RoleAssetID   = "asset_id"
	RoleAssetType = "asset_type"
	RoleX         = "x"
	RoleY         = "y"
	RoleName      = "name"
)

var MappingRoles = []string{RoleAssetID, RoleAssetType, RoleX, RoleY, RoleName}

// ColumnPreset suggests a CSV column name for a mapping role.
type ColumnPreset struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Role       string    `gorm:"size:20;not null;uniqueIndex:idx_preset_role_column" json:"role"`
	ColumnName string    `gorm:"size:100;not null;uniqueIndex:idx_preset_role_column" json:"column_name"`
	Priority   int       `gorm:"not null;default:0" json:"priority"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ColumnPreset) TableName() string {
	return "column_presets"
}
