package services

import (
	"context"
	"errors"
	"strings"

	"github.com/GrainArc/SheetGeo/apierr"
	"github.com/GrainArc/SheetGeo/logger"
	"github.com/GrainArc/SheetGeo/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AssetService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssetService(db *gorm.DB, log *logger.Logger) *AssetService {
	return &AssetService{db: db, log: log.With("service", "asset")}
}

// AssetRequest creates one asset by hand. AssetTypeID wins over AssetTypeName.
type AssetRequest struct {
	AssetID       string            `json:"asset_id"`
	Name          string            `json:"name"`
	AssetTypeID   uint              `json:"asset_type"`
	AssetTypeName string            `json:"asset_type_name"`
	OriginalX     interface{}       `json:"original_x"`
	OriginalY     interface{}       `json:"original_y"`
	Metadata      map[string]string `json:"metadata"`
}

func findAsset(tx *gorm.DB, id uint) (*models.Asset, error) {
	var asset models.Asset
	if err := tx.Preload("AssetType").First(&asset, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("asset", id)
		}
		return nil, apierr.Internal(err)
	}
	return &asset, nil
}

func ensureProject(tx *gorm.DB, projectID uint) error {
	var count int64
	if err := tx.Model(&models.Project{}).Where("id = ?", projectID).Count(&count).Error; err != nil {
		return apierr.Internal(err)
	}
	if count == 0 {
		return apierr.NotFound("project", projectID)
	}
	return nil
}

func (s *AssetService) Create(ctx context.Context, projectID uint, req AssetRequest) (*models.Asset, error) {
	assetID := strings.TrimSpace(req.AssetID)
	if assetID == "" {
		return nil, apierr.InvalidInput("asset_id", "is required")
	}
	x, err := numberField("original_x", req.OriginalX)
	if err != nil {
		return nil, err
	}
	y, err := numberField("original_y", req.OriginalY)
	if err != nil {
		return nil, err
	}
	typeName := strings.TrimSpace(req.AssetTypeName)
	if req.AssetTypeID == 0 && typeName == "" {
		return nil, apierr.InvalidInput("asset_type", "is required")
	}

	var asset *models.Asset
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureProject(tx, projectID); err != nil {
			return err
		}
		var at models.AssetType
		if req.AssetTypeID != 0 {
			if err := tx.First(&at, req.AssetTypeID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apierr.NotFound("asset type", req.AssetTypeID)
				}
				return apierr.Internal(err)
			}
		} else {
			cache, err := newAssetTypeCache(tx)
			if err != nil {
				return apierr.Internal(err)
			}
			resolved, err := cache.resolve(tx, typeName)
			if err != nil {
				return apierr.Internal(err)
			}
			at = *resolved
		}

		meta := req.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		asset = &models.Asset{
			ProjectID:   projectID,
			AssetID:     assetID,
			Name:        strings.TrimSpace(req.Name),
			AssetTypeID: at.ID,
			OriginalX:   x,
			OriginalY:   y,
			Metadata:    datatypes.NewJSONType(meta),
		}
		if err := tx.Omit(clause.Associations).Create(asset).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apierr.Conflict("asset %q already exists in project %d", assetID, projectID)
			}
			return apierr.Internal(err)
		}
		asset.AssetType = at
		return nil
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}

func (s *AssetService) Get(ctx context.Context, id uint) (*models.Asset, error) {
	return findAsset(s.db.WithContext(ctx), id)
}

// ListByProject returns a project's assets ordered by asset id.
// adjustedOnly restricts the result to manually corrected assets.
func (s *AssetService) ListByProject(ctx context.Context, projectID uint, adjustedOnly bool) ([]models.Asset, error) {
	db := s.db.WithContext(ctx)
	if err := ensureProject(db, projectID); err != nil {
		return nil, err
	}
	q := db.Preload("AssetType").Where("project_id = ?", projectID)
	if adjustedOnly {
		q = q.Where("is_adjusted = ?", true)
	}
	var assets []models.Asset
	if err := q.Order("asset_id").Find(&assets).Error; err != nil {
		return nil, apierr.Internal(err)
	}
	return assets, nil
}

// Delete removes an asset and its adjustment history.
func (s *AssetService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := deleteAssetsWhere(tx, "id = ?", id)
		if err != nil {
			return apierr.Internal(err)
		}
		if n == 0 {
			return apierr.NotFound("asset", id)
		}
		return nil
	})
}

// Adjust moves an asset to (x, y) and appends an adjustment log. The log's
// from position is the asset's current position before the move. Asset and
// log are written in one transaction.
func (s *AssetService) Adjust(ctx context.Context, id uint, x, y interface{}, notes string) (*models.AdjustmentLog, *models.Asset, error) {
	toX, err := numberField("x", x)
	if err != nil {
		return nil, nil, err
	}
	toY, err := numberField("y", y)
	if err != nil {
		return nil, nil, err
	}

	var (
		entry *models.AdjustmentLog
		asset *models.Asset
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := findAsset(tx, id)
		if err != nil {
			return err
		}
		from := a.Current()
		a.AdjustedX, a.AdjustedY = &toX, &toY
		a.IsAdjusted = true
		if err := tx.Omit(clause.Associations).Save(a).Error; err != nil {
			return apierr.Internal(err)
		}
		entry = &models.AdjustmentLog{
			AssetRowID: a.ID,
			FromX:      from[0],
			FromY:      from[1],
			ToX:        toX,
			ToY:        toY,
			Notes:      notes,
		}
		if err := tx.Create(entry).Error; err != nil {
			return apierr.Internal(err)
		}
		asset = a
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("asset adjusted", "asset_id", asset.AssetID, "project_id", asset.ProjectID, "delta_distance", entry.DeltaDistance)
	return entry, asset, nil
}

// ListLogs returns an asset's adjustment history, newest first.
func (s *AssetService) ListLogs(ctx context.Context, id uint) ([]models.AdjustmentLog, error) {
	db := s.db.WithContext(ctx)
	if _, err := findAsset(db, id); err != nil {
		return nil, err
	}
	var logs []models.AdjustmentLog
	if err := db.Where("asset_row_id = ?", id).Order("created_at DESC, id DESC").Find(&logs).Error; err != nil {
		return nil, apierr.Internal(err)
	}
	return logs, nil
}

// ProjectLogs returns every adjustment log of a project, oldest first.
func (s *AssetService) ProjectLogs(ctx context.Context, projectID uint) ([]models.AdjustmentLog, error) {
	var logs []models.AdjustmentLog
	err := s.db.WithContext(ctx).
		Preload("Asset").
		Preload("Asset.AssetType").
		Joins("JOIN assets ON assets.id = adjustment_logs.asset_row_id").
		Where("assets.project_id = ?", projectID).
		Order("adjustment_logs.created_at, adjustment_logs.id").
		Find(&logs).Error
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return logs, nil
}
