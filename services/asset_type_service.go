package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/GrainArc/SheetGeo/apierr"
	"github.com/GrainArc/SheetGeo/logger"
	"github.com/GrainArc/SheetGeo/models"
	"gorm.io/gorm"
)

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// assetTypeCache resolves type names case-insensitively for one request.
// Unknown names are created with default display attributes.
type assetTypeCache struct {
	byKey   map[string]*models.AssetType
	created []string
}

func newAssetTypeCache(tx *gorm.DB) (*assetTypeCache, error) {
	var types []models.AssetType
	if err := tx.Find(&types).Error; err != nil {
		return nil, err
	}
	c := &assetTypeCache{byKey: make(map[string]*models.AssetType, len(types))}
	for i := range types {
		key := strings.ToLower(types[i].Name)
		if _, seen := c.byKey[key]; !seen {
			c.byKey[key] = &types[i]
		}
	}
	return c, nil
}

func (c *assetTypeCache) resolve(tx *gorm.DB, name string) (*models.AssetType, error) {
	key := strings.ToLower(name)
	if at, ok := c.byKey[key]; ok {
		return at, nil
	}
	at := models.NewAssetType(name)
	if err := tx.Create(at).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		// created by a concurrent request since the cache was filled
		at = &models.AssetType{}
		if err := tx.Where("name = ?", name).First(at).Error; err != nil {
			return nil, err
		}
	}
	c.byKey[key] = at
	c.created = append(c.created, key)
	return at, nil
}

// mark and forget drop entries created after a rolled-back savepoint.
func (c *assetTypeCache) mark() int {
	return len(c.created)
}

func (c *assetTypeCache) forget(mark int) {
	for _, key := range c.created[mark:] {
		delete(c.byKey, key)
	}
	c.created = c.created[:mark]
}

type AssetTypeService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssetTypeService(db *gorm.DB, log *logger.Logger) *AssetTypeService {
	return &AssetTypeService{db: db, log: log.With("service", "asset_type")}
}

func (s *AssetTypeService) List(ctx context.Context) ([]models.AssetType, error) {
	var types []models.AssetType
	if err := s.db.WithContext(ctx).Order("name").Find(&types).Error; err != nil {
		return nil, apierr.Internal(err)
	}
	return types, nil
}

// AssetTypeRequest carries optional display attributes; zero values take defaults.
type AssetTypeRequest struct {
	Name      string `json:"name"`
	IconShape string `json:"icon_shape"`
	Color     string `json:"color"`
	Size      int    `json:"size"`
}

func (s *AssetTypeService) Create(ctx context.Context, req AssetTypeRequest) (*models.AssetType, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apierr.InvalidInput("name", "is required")
	}
	at := models.NewAssetType(name)
	if req.IconShape != "" {
		shape := strings.ToLower(req.IconShape)
		if shape != "circle" && shape != "square" && shape != "triangle" {
			return nil, apierr.InvalidInput("icon_shape", "must be circle, square or triangle")
		}
		at.IconShape = shape
	}
	if req.Color != "" {
		if !hexColor.MatchString(req.Color) {
			return nil, apierr.InvalidInput("color", "must be #RRGGBB")
		}
		at.Color = strings.ToUpper(req.Color)
	}
	if req.Size < 0 {
		return nil, apierr.InvalidInput("size", "must not be negative")
	}
	if req.Size > 0 {
		at.Size = req.Size
	}
	if err := s.db.WithContext(ctx).Create(at).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apierr.Conflict("asset type %q already exists", name)
		}
		return nil, apierr.Internal(err)
	}
	return at, nil
}
