package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/GrainArc/SheetGeo/apierr"
	"github.com/GrainArc/SheetGeo/logger"
	"github.com/GrainArc/SheetGeo/methods"
	"github.com/GrainArc/SheetGeo/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultBatchFilename = "unknown.csv"
	loggedRowErrors      = 5
	firstDataRow         = 2
)

// DefaultColumnMapping maps every role to a column of the same name.
func DefaultColumnMapping() map[string]string {
	m := make(map[string]string, len(models.MappingRoles))
	for _, role := range models.MappingRoles {
		m[role] = role
	}
	return m
}

type ImportRequest struct {
	ProjectID      uint
	Filename       string
	Content        []byte
	ColumnMapping  map[string]string
	FixedAssetType string
}

type ImportedAsset struct {
	AssetID string  `json:"asset_id"`
	Created bool    `json:"created"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

type ImportResult struct {
	Created int             `json:"created"`
	Updated int             `json:"updated"`
	Errors  []string        `json:"errors"`
	Assets  []ImportedAsset `json:"assets"`
	BatchID uint            `json:"batch_id"`
	Charset string          `json:"charset"`
}

// columnPlan is the resolved role to column assignment of one import.
type columnPlan struct {
	assetID   string
	assetType string
	x         string
	y         string
	name      string
	mapped    map[string]bool
	fixedType string
}

func resolveMapping(header []string, overrides map[string]string, fixedType string) (*columnPlan, error) {
	mapping := DefaultColumnMapping()
	for role, col := range overrides {
		mapping[role] = col
	}
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}

	required := []string{models.RoleAssetID, models.RoleAssetType, models.RoleX, models.RoleY}
	var missing []string
	for _, role := range required {
		if role == models.RoleAssetType && fixedType != "" {
			continue
		}
		col := mapping[role]
		if col == "" || !present[col] {
			missing = append(missing, fmt.Sprintf("%s (mapped to '%s')", role, col))
		}
	}
	if len(missing) > 0 {
		return nil, apierr.InvalidInput("column_mapping", "Missing columns in CSV: %s", strings.Join(missing, ", "))
	}

	plan := &columnPlan{
		assetID:   mapping[models.RoleAssetID],
		assetType: mapping[models.RoleAssetType],
		x:         mapping[models.RoleX],
		y:         mapping[models.RoleY],
		name:      mapping[models.RoleName],
		mapped:    make(map[string]bool, len(mapping)),
		fixedType: fixedType,
	}
	for _, col := range mapping {
		if col != "" {
			plan.mapped[col] = true
		}
	}
	return plan, nil
}

// csvRow is one data record addressed by column name.
type csvRow struct {
	index  map[string]int
	fields []string
}

func (r csvRow) get(col string) string {
	if col == "" {
		return ""
	}
	i, ok := r.index[col]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return r.fields[i]
}

// importRun is the request-scoped state threaded through every row.
type importRun struct {
	tx      *gorm.DB
	project uint
	batch   *models.ImportBatch
	plan    *columnPlan
	header  []string
	types   *assetTypeCache
	fixed   *models.AssetType
	result  *ImportResult
}

type CSVImporter struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCSVImporter(db *gorm.DB, log *logger.Logger) *CSVImporter {
	return &CSVImporter{db: db, log: log.With("service", "csv_import")}
}

func readHeader(r *csv.Reader) ([]string, map[string]int, error) {
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, apierr.InvalidInput("file", "CSV file is empty")
		}
		return nil, nil, apierr.InvalidInput("file", "could not read CSV header: %v", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		header[i] = h
		if h == "" {
			continue
		}
		if _, dup := index[h]; dup {
			return nil, nil, apierr.InvalidInput("file", "Duplicate column '%s' in CSV header", h)
		}
		index[h] = i
	}
	return header, index, nil
}

// ImportCSV ingests one CSV file into a project. A missing required column
// rejects the whole file before anything is written. Row failures are
// collected in the result and never abort the batch.
func (s *CSVImporter) ImportCSV(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	text, charset, err := methods.DecodeText(req.Content)
	if err != nil {
		return nil, apierr.InvalidInput("file", "could not decode CSV text: %v", err)
	}
	reader := csv.NewReader(bytes.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, index, err := readHeader(reader)
	if err != nil {
		return nil, err
	}
	fixedType := strings.TrimSpace(req.FixedAssetType)
	plan, err := resolveMapping(header, req.ColumnMapping, fixedType)
	if err != nil {
		return nil, err
	}

	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = defaultBatchFilename
	}
	result := &ImportResult{Errors: []string{}, Assets: []ImportedAsset{}, Charset: charset}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureProject(tx, req.ProjectID); err != nil {
			return err
		}
		batch := &models.ImportBatch{ProjectID: req.ProjectID, Filename: filename}
		if err := tx.Omit(clause.Associations).Create(batch).Error; err != nil {
			return apierr.Internal(err)
		}
		types, err := newAssetTypeCache(tx)
		if err != nil {
			return apierr.Internal(err)
		}
		run := &importRun{
			tx:      tx,
			project: req.ProjectID,
			batch:   batch,
			plan:    plan,
			header:  header,
			types:   types,
			result:  result,
		}
		if fixedType != "" {
			if run.fixed, err = types.resolve(tx, fixedType); err != nil {
				return apierr.Internal(err)
			}
		}

		for rowNum := firstDataRow; ; rowNum++ {
			fields, err := reader.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				result.Errors = append(result.Errors, apierr.RowError{Row: rowNum, Reason: fmt.Sprintf("Malformed CSV record: %v", err)}.Error())
				continue
			}
			s.importRow(run, rowNum, csvRow{index: index, fields: fields})
		}

		batch.AssetCount = result.Created + result.Updated
		if err := tx.Model(batch).Update("asset_count", batch.AssetCount).Error; err != nil {
			return apierr.Internal(err)
		}
		result.BatchID = batch.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("csv import finished",
		"project_id", req.ProjectID,
		"batch_id", result.BatchID,
		"created", result.Created,
		"updated", result.Updated,
		"errors", len(result.Errors),
		"charset", charset,
	)
	if len(result.Errors) > 0 {
		n := len(result.Errors)
		if n > loggedRowErrors {
			n = loggedRowErrors
		}
		s.log.Warn("csv import row errors", "project_id", req.ProjectID, "first_errors", result.Errors[:n])
	}
	return result, nil
}

// importRow processes one record under its own savepoint. Any failure,
// including a panic, is recorded against the row and rolled back.
func (s *CSVImporter) importRow(run *importRun, rowNum int, row csvRow) {
	savepoint := fmt.Sprintf("csv_row_%d", rowNum)
	if err := run.tx.SavePoint(savepoint).Error; err != nil {
		s.log.Error("csv import savepoint failed", "row", rowNum, "error", err)
		run.result.Errors = append(run.result.Errors, apierr.RowError{Row: rowNum, Reason: "could not save asset"}.Error())
		return
	}

	mark := run.types.mark()
	var (
		imported *ImportedAsset
		rowErr   *apierr.RowError
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("csv import row panicked", "row", rowNum, "panic", r)
				rowErr = &apierr.RowError{Row: rowNum, Reason: "unexpected error while importing row"}
			}
		}()
		var err error
		imported, err = s.upsertRow(run, row)
		if err != nil {
			var re apierr.RowError
			if errors.As(err, &re) {
				re.Row = rowNum
				rowErr = &re
				return
			}
			s.log.Error("csv import row failed", "row", rowNum, "error", err)
			rowErr = &apierr.RowError{Row: rowNum, Reason: "could not save asset"}
		}
	}()

	if rowErr != nil {
		if err := run.tx.RollbackTo(savepoint).Error; err != nil {
			s.log.Error("csv import rollback to savepoint failed", "row", rowNum, "error", err)
		}
		run.types.forget(mark)
		run.result.Errors = append(run.result.Errors, rowErr.Error())
		return
	}
	if imported.Created {
		run.result.Created++
	} else {
		run.result.Updated++
	}
	run.result.Assets = append(run.result.Assets, *imported)
}

func rowFailure(format string, args ...interface{}) error {
	return apierr.RowError{Reason: fmt.Sprintf(format, args...)}
}

func (s *CSVImporter) upsertRow(run *importRun, row csvRow) (*ImportedAsset, error) {
	plan := run.plan
	assetID := strings.TrimSpace(row.get(plan.assetID))
	if assetID == "" {
		return nil, rowFailure("Missing asset_id (column '%s')", plan.assetID)
	}
	var typeName string
	if run.fixed == nil {
		typeName = strings.TrimSpace(row.get(plan.assetType))
		if typeName == "" {
			return nil, rowFailure("Missing asset_type (column '%s')", plan.assetType)
		}
	}
	x, y, err := parseCoordinates(plan, row)
	if err != nil {
		return nil, err
	}

	assetType := run.fixed
	if assetType == nil {
		if assetType, err = run.types.resolve(run.tx, typeName); err != nil {
			return nil, err
		}
	}
	return s.saveAsset(run, row, assetID, assetType, x, y)
}

func parseCoordinates(plan *columnPlan, row csvRow) (float64, float64, error) {
	rawX := strings.TrimSpace(row.get(plan.x))
	rawY := strings.TrimSpace(row.get(plan.y))
	x, errX := methods.ParseFiniteString(rawX)
	y, errY := methods.ParseFiniteString(rawY)
	var bad []string
	if errX != nil {
		bad = append(bad, fmt.Sprintf("%s=%s", plan.x, rawX))
	}
	if errY != nil {
		bad = append(bad, fmt.Sprintf("%s=%s", plan.y, rawY))
	}
	if len(bad) > 0 {
		return 0, 0, rowFailure("Invalid coordinates (%s)", strings.Join(bad, ", "))
	}
	return x, y, nil
}

func (s *CSVImporter) rowMetadata(run *importRun, row csvRow) map[string]string {
	meta := map[string]string{}
	for i, col := range run.header {
		if col == "" || run.plan.mapped[col] || i >= len(row.fields) {
			continue
		}
		if v := row.fields[i]; v != "" {
			meta[col] = v
		}
	}
	return meta
}

func (s *CSVImporter) saveAsset(run *importRun, row csvRow, assetID string, at *models.AssetType, x, y float64) (*ImportedAsset, error) {
	tx := run.tx
	name := strings.TrimSpace(row.get(run.plan.name))
	meta := datatypes.NewJSONType(s.rowMetadata(run, row))
	batchID := run.batch.ID

	updates := map[string]interface{}{
		"asset_type_id":   at.ID,
		"name":            name,
		"original_x":      x,
		"original_y":      y,
		"metadata":        meta,
		"import_batch_id": batchID,
	}
	update := func() error {
		return tx.Model(&models.Asset{}).
			Where("project_id = ? AND asset_id = ?", run.project, assetID).
			Updates(updates).Error
	}

	var existing int64
	if err := tx.Model(&models.Asset{}).Where("project_id = ? AND asset_id = ?", run.project, assetID).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		if err := update(); err != nil {
			return nil, err
		}
		return &ImportedAsset{AssetID: assetID, Created: false, X: x, Y: y}, nil
	}

	asset := &models.Asset{
		ProjectID:     run.project,
		AssetID:       assetID,
		Name:          name,
		AssetTypeID:   at.ID,
		OriginalX:     x,
		OriginalY:     y,
		Metadata:      meta,
		ImportBatchID: &batchID,
	}
	const createPoint = "csv_asset_create"
	if err := tx.SavePoint(createPoint).Error; err != nil {
		return nil, err
	}
	if err := tx.Omit(clause.Associations).Create(asset).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		// a concurrent import created the same asset; fall back to update
		if err := tx.RollbackTo(createPoint).Error; err != nil {
			return nil, err
		}
		if err := update(); err != nil {
			return nil, err
		}
		return &ImportedAsset{AssetID: assetID, Created: false, X: x, Y: y}, nil
	}
	return &ImportedAsset{AssetID: assetID, Created: true, X: x, Y: y}, nil
}
