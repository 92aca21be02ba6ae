package services

import (
	"context"
	"errors"
	"strings"

	"github.com/GrainArc/SheetGeo/apierr"
	"github.com/GrainArc/SheetGeo/logger"
	"github.com/GrainArc/SheetGeo/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProjectService struct {
	db    *gorm.DB
	log   *logger.Logger
	store BlobStore
}

func NewProjectService(db *gorm.DB, log *logger.Logger, store BlobStore) *ProjectService {
	return &ProjectService{db: db, log: log.With("service", "project"), store: store}
}

func findProject(tx *gorm.DB, id uint) (*models.Project, error) {
	var project models.Project
	if err := tx.First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("project", id)
		}
		return nil, apierr.Internal(err)
	}
	return &project, nil
}

func (s *ProjectService) List(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := s.db.WithContext(ctx).Order("updated_at DESC, id DESC").Find(&projects).Error; err != nil {
		return nil, apierr.Internal(err)
	}
	return projects, nil
}

func (s *ProjectService) Get(ctx context.Context, id uint) (*models.Project, error) {
	return findProject(s.db.WithContext(ctx), id)
}

// Create makes an uncalibrated project with default scale and units.
func (s *ProjectService) Create(ctx context.Context, name string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apierr.InvalidInput("name", "is required")
	}
	project := models.NewProject(name)
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(project).Error; err != nil {
		return nil, apierr.Internal(err)
	}
	s.log.Info("project created", "project_id", project.ID)
	return project, nil
}

// Rename is the only direct project edit; calibration goes through CalibrationService.
func (s *ProjectService) Rename(ctx context.Context, id uint, name string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apierr.InvalidInput("name", "is required")
	}
	db := s.db.WithContext(ctx)
	project, err := findProject(db, id)
	if err != nil {
		return nil, err
	}
	if err := db.Model(project).Update("name", name).Error; err != nil {
		return nil, apierr.Internal(err)
	}
	return project, nil
}

// Delete removes a project with its sheets, assets, logs and batches, then
// any stored blobs no surviving sheet references.
func (s *ProjectService) Delete(ctx context.Context, id uint) error {
	var orphans []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findProject(tx, id); err != nil {
			return err
		}
		var sheets []models.Sheet
		if err := tx.Where("project_id = ?", id).Find(&sheets).Error; err != nil {
			return apierr.Internal(err)
		}
		if _, err := deleteAssetsWhere(tx, "project_id = ?", id); err != nil {
			return apierr.Internal(err)
		}
		for _, model := range []interface{}{&models.ImportBatch{}, &models.Sheet{}} {
			if err := tx.Where("project_id = ?", id).Delete(model).Error; err != nil {
				return apierr.Internal(err)
			}
		}
		if err := tx.Delete(&models.Project{}, id).Error; err != nil {
			return apierr.Internal(err)
		}
		var err error
		if orphans, err = unreferencedBlobs(tx, sheets); err != nil {
			return apierr.Internal(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, key := range orphans {
		if err := s.store.Delete(key); err != nil {
			s.log.Warn("remove blob failed", "key", key, "error", err)
		}
	}
	s.log.Info("project deleted", "project_id", id, "blobs_removed", len(orphans))
	return nil
}
