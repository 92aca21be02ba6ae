package services

import (
	"github.com/GrainArc/SheetGeo/logger"
	"gorm.io/gorm"
)

// Services bundles every domain service over one database and blob store.
type Services struct {
	Projects    *ProjectService
	Calibration *CalibrationService
	Assets      *AssetService
	AssetTypes  *AssetTypeService
	Importer    *CSVImporter
	Batches     *BatchService
	Presets     *PresetService
	Sheets      *SheetService
	Reports     *ReportService
	Exports     *ExportService
	Validator   *FileValidator
}

func New(db *gorm.DB, log *logger.Logger, store BlobStore, renderer Renderer, validator *FileValidator) *Services {
	if validator == nil {
		validator = NewFileValidator(0, 0, 0)
	}
	assets := NewAssetService(db, log)
	calibration := NewCalibrationService(db, log)
	sheets := NewSheetService(db, log, store, renderer, validator)
	return &Services{
		Projects:    NewProjectService(db, log, store),
		Calibration: calibration,
		Assets:      assets,
		AssetTypes:  NewAssetTypeService(db, log),
		Importer:    NewCSVImporter(db, log),
		Batches:     NewBatchService(db, log),
		Presets:     NewPresetService(db, log),
		Sheets:      sheets,
		Reports:     NewReportService(db, log, assets, calibration),
		Exports:     NewExportService(log, store, sheets, assets, calibration),
		Validator:   validator,
	}
}
