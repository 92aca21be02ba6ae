package models

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrImmutableLog = errors.New("adjustment logs are append-only")

// AllModels lists every table in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&Project{},
		&AssetType{},
		&ImportBatch{},
		&Asset{},
		&AdjustmentLog{},
		&Sheet{},
		&ColumnPreset{},
	}
}

// Migrate creates or updates all tables and seeds default rows.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("migrate tables: %w", err)
	}
	if err := seedAssetTypes(db); err != nil {
		return fmt.Errorf("seed asset types: %w", err)
	}
	if err := seedColumnPresets(db); err != nil {
		return fmt.Errorf("seed column presets: %w", err)
	}
	return nil
}

var defaultAssetTypes = []AssetType{
	{Name: "TN Intersection", IconShape: "circle", Color: "#FF0000", Size: 20},
	{Name: "VSL", IconShape: "square", Color: "#0066FF", Size: 20},
	{Name: "CCTV", IconShape: "triangle", Color: "#00AA00", Size: 20},
}

func seedAssetTypes(db *gorm.DB) error {
	for _, at := range defaultAssetTypes {
		var row AssetType
		if err := db.Where(AssetType{Name: at.Name}).Attrs(at).FirstOrCreate(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

var defaultColumnPresets = []ColumnPreset{
	{Role: RoleAssetID, ColumnName: "asset_id", Priority: 100},
	{Role: RoleAssetID, ColumnName: "TN", Priority: 50},
	{Role: RoleAssetType, ColumnName: "asset_type", Priority: 100},
	{Role: RoleAssetType, ColumnName: "Type", Priority: 50},
	{Role: RoleX, ColumnName: "x", Priority: 100},
	{Role: RoleX, ColumnName: "Easting", Priority: 50},
	{Role: RoleY, ColumnName: "y", Priority: 100},
	{Role: RoleY, ColumnName: "Northing", Priority: 50},
	{Role: RoleName, ColumnName: "name", Priority: 100},
}

func seedColumnPresets(db *gorm.DB) error {
	for _, cp := range defaultColumnPresets {
		var row ColumnPreset
		if err := db.Where(ColumnPreset{Role: cp.Role, ColumnName: cp.ColumnName}).Attrs(cp).FirstOrCreate(&row).Error; err != nil {
			return err
		}
	}
	return nil
}
