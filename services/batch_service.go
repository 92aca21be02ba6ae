package services

import (
	"context"
	"errors"
	"strings"

	"github.com/GrainArc/SheetGeo/apierr"
	"github.com/GrainArc/SheetGeo/logger"
	"github.com/GrainArc/SheetGeo/models"
	"gorm.io/gorm"
)

type BatchService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBatchService(db *gorm.DB, log *logger.Logger) *BatchService {
	return &BatchService{db: db, log: log.With("service", "import_batch")}
}

// List returns a project's import batches, newest first.
func (s *BatchService) List(ctx context.Context, projectID uint) ([]models.ImportBatch, error) {
	db := s.db.WithContext(ctx)
	if err := ensureProject(db, projectID); err != nil {
		return nil, err
	}
	var batches []models.ImportBatch
	if err := db.Where("project_id = ?", projectID).Order("created_at DESC, id DESC").Find(&batches).Error; err != nil {
		return nil, apierr.Internal(err)
	}
	return batches, nil
}

func findBatch(tx *gorm.DB, id uint) (*models.ImportBatch, error) {
	var batch models.ImportBatch
	if err := tx.First(&batch, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("import batch", id)
		}
		return nil, apierr.Internal(err)
	}
	return &batch, nil
}

// deleteAssetsWhere removes matching assets together with their adjustment logs.
func deleteAssetsWhere(tx *gorm.DB, query string, args ...interface{}) (int64, error) {
	ids := tx.Model(&models.Asset{}).Select("id").Where(query, args...)
	if err := tx.Where("asset_row_id IN (?)", ids).Delete(&models.AdjustmentLog{}).Error; err != nil {
		return 0, err
	}
	res := tx.Where(query, args...).Delete(&models.Asset{})
	return res.RowsAffected, res.Error
}

// Delete removes a batch and every asset it imported.
func (s *BatchService) Delete(ctx context.Context, id uint) error {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findBatch(tx, id); err != nil {
			return err
		}
		n, err := deleteAssetsWhere(tx, "import_batch_id = ?", id)
		if err != nil {
			return apierr.Internal(err)
		}
		removed = n
		if err := tx.Delete(&models.ImportBatch{}, id).Error; err != nil {
			return apierr.Internal(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("import batch deleted", "batch_id", id, "assets_removed", removed)
	return nil
}

// ReassignType moves every asset of a batch to the named type, creating the
// type if no case-insensitive match exists. It returns the number of assets updated.
func (s *BatchService) ReassignType(ctx context.Context, id uint, typeName string) (int64, *models.AssetType, error) {
	typeName = strings.TrimSpace(typeName)
	if typeName == "" {
		return 0, nil, apierr.InvalidInput("asset_type_name", "is required")
	}
	var (
		updated int64
		at      *models.AssetType
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findBatch(tx, id); err != nil {
			return err
		}
		cache, err := newAssetTypeCache(tx)
		if err != nil {
			return apierr.Internal(err)
		}
		if at, err = cache.resolve(tx, typeName); err != nil {
			return apierr.Internal(err)
		}
		res := tx.Model(&models.Asset{}).Where("import_batch_id = ?", id).Update("asset_type_id", at.ID)
		if res.Error != nil {
			return apierr.Internal(res.Error)
		}
		updated = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	s.log.Info("import batch reassigned", "batch_id", id, "asset_type", at.Name, "updated", updated)
	return updated, at, nil
}
