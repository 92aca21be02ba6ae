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

type PresetService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPresetService(db *gorm.DB, log *logger.Logger) *PresetService {
	return &PresetService{db: db, log: log.With("service", "column_preset")}
}

func (s *PresetService) ordered(ctx context.Context) ([]models.ColumnPreset, error) {
	var presets []models.ColumnPreset
	err := s.db.WithContext(ctx).Order("role, priority DESC, column_name").Find(&presets).Error
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return presets, nil
}

// List groups candidate column names by role, highest priority first.
func (s *PresetService) List(ctx context.Context) (map[string][]string, error) {
	presets, err := s.ordered(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for _, p := range presets {
		out[p.Role] = append(out[p.Role], p.ColumnName)
	}
	return out, nil
}

type PresetRequest struct {
	Role       string `json:"role"`
	ColumnName string `json:"column_name"`
	Priority   int    `json:"priority"`
}

func (s *PresetService) Create(ctx context.Context, req PresetRequest) (*models.ColumnPreset, error) {
	role := strings.TrimSpace(req.Role)
	col := strings.TrimSpace(req.ColumnName)
	if role == "" {
		return nil, apierr.InvalidInput("role", "is required")
	}
	if col == "" {
		return nil, apierr.InvalidInput("column_name", "is required")
	}
	preset := &models.ColumnPreset{Role: role, ColumnName: col, Priority: req.Priority}
	if err := s.db.WithContext(ctx).Create(preset).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apierr.Conflict("preset %s/%s already exists", role, col)
		}
		return nil, apierr.Internal(err)
	}
	return preset, nil
}

// SuggestMapping picks, per role, the highest-priority preset column present
// in header. Header names match case-insensitively; the header's own spelling
// is returned.
func (s *PresetService) SuggestMapping(ctx context.Context, header []string) (map[string]string, error) {
	presets, err := s.ordered(ctx)
	if err != nil {
		return nil, err
	}
	byLower := make(map[string]string, len(header))
	for _, h := range header {
		h = strings.TrimSpace(h)
		if _, ok := byLower[strings.ToLower(h)]; !ok {
			byLower[strings.ToLower(h)] = h
		}
	}
	out := make(map[string]string)
	for _, p := range presets {
		if _, done := out[p.Role]; done {
			continue
		}
		if col, ok := byLower[strings.ToLower(p.ColumnName)]; ok {
			out[p.Role] = col
		}
	}
	return out, nil
}
