package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/GrainArc/SheetGeo/apierr"
	"github.com/GrainArc/SheetGeo/logger"
	"github.com/GrainArc/SheetGeo/methods"
	"github.com/GrainArc/SheetGeo/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gorm.io/gorm"
)

const (
	ReportJSON = "json"
	ReportCSV  = "csv"
)

// Report is a rendered export document.
type Report struct {
	ContentType string
	Filename    string
	Body        []byte
}

type ReportProject struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	CoordUnit string `json:"coord_unit"`
}

type AssetSummary struct {
	AssetID       string  `json:"asset_id"`
	Name          string  `json:"name"`
	AssetType     string  `json:"asset_type"`
	OriginalX     float64 `json:"original_x"`
	OriginalY     float64 `json:"original_y"`
	CurrentX      float64 `json:"current_x"`
	CurrentY      float64 `json:"current_y"`
	DeltaDistance float64 `json:"delta_distance"`
	Adjustments   int     `json:"adjustments"`
}

type LogEntry struct {
	AssetID       string    `json:"asset_id"`
	FromX         float64   `json:"from_x"`
	FromY         float64   `json:"from_y"`
	ToX           float64   `json:"to_x"`
	ToY           float64   `json:"to_y"`
	DeltaX        float64   `json:"delta_x"`
	DeltaY        float64   `json:"delta_y"`
	DeltaDistance float64   `json:"delta_distance"`
	Notes         string    `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
}

type AdjustmentReport struct {
	Project       ReportProject  `json:"project"`
	GeneratedAt   time.Time      `json:"generated_at"`
	AdjustedCount int            `json:"adjusted_count"`
	TotalLogs     int            `json:"total_logs"`
	Summary       []AssetSummary `json:"summary"`
	Logs          []LogEntry     `json:"logs"`
}

func buildAdjustmentReport(project *models.Project, adjusted []models.Asset, logs []models.AdjustmentLog) AdjustmentReport {
	counts := make(map[uint]int, len(adjusted))
	assetIDs := make(map[uint]string, len(adjusted))
	for _, a := range adjusted {
		assetIDs[a.ID] = a.AssetID
	}
	entries := make([]LogEntry, 0, len(logs))
	for _, l := range logs {
		counts[l.AssetRowID]++
		assetID := assetIDs[l.AssetRowID]
		if assetID == "" && l.Asset != nil {
			assetID = l.Asset.AssetID
		}
		entries = append(entries, LogEntry{
			AssetID:       assetID,
			FromX:         l.FromX,
			FromY:         l.FromY,
			ToX:           l.ToX,
			ToY:           l.ToY,
			DeltaX:        l.DeltaX,
			DeltaY:        l.DeltaY,
			DeltaDistance: l.DeltaDistance,
			Notes:         l.Notes,
			CreatedAt:     l.CreatedAt,
		})
	}
	summary := make([]AssetSummary, 0, len(adjusted))
	for i := range adjusted {
		a := &adjusted[i]
		cur := a.Current()
		summary = append(summary, AssetSummary{
			AssetID:       a.AssetID,
			Name:          a.Name,
			AssetType:     a.AssetType.Name,
			OriginalX:     a.OriginalX,
			OriginalY:     a.OriginalY,
			CurrentX:      cur[0],
			CurrentY:      cur[1],
			DeltaDistance: a.DeltaDistance(),
			Adjustments:   counts[a.ID],
		})
	}
	return AdjustmentReport{
		Project:       ReportProject{ID: project.ID, Name: project.Name, CoordUnit: project.CoordUnit},
		GeneratedAt:   time.Now().UTC(),
		AdjustedCount: len(adjusted),
		TotalLogs:     len(logs),
		Summary:       summary,
		Logs:          entries,
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// GenerateAdjustmentReport renders adjusted assets and their logs as "json"
// or "csv". CSV text fields that a spreadsheet could read as a formula are
// prefixed with an apostrophe.
func GenerateAdjustmentReport(project *models.Project, adjusted []models.Asset, logs []models.AdjustmentLog, format string) (*Report, error) {
	report := buildAdjustmentReport(project, adjusted, logs)
	base := fmt.Sprintf("adjustment_report_%d", project.ID)

	switch format {
	case "", ReportJSON:
		body, err := json.Marshal(report)
		if err != nil {
			return nil, err
		}
		return &Report{ContentType: "application/json", Filename: base + ".json", Body: body}, nil
	case ReportCSV:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		san := methods.SanitizeCSVField
		rows := [][]string{{"Asset ID", "Name", "Asset Type", "Original X", "Original Y", "Current X", "Current Y", "Delta Distance", "Adjustments"}}
		for _, s := range report.Summary {
			rows = append(rows, []string{
				san(s.AssetID), san(s.Name), san(s.AssetType),
				formatFloat(s.OriginalX), formatFloat(s.OriginalY),
				formatFloat(s.CurrentX), formatFloat(s.CurrentY),
				formatFloat(s.DeltaDistance), strconv.Itoa(s.Adjustments),
			})
		}
		rows = append(rows, []string{}, []string{"Asset ID", "From X", "From Y", "To X", "To Y", "Delta X", "Delta Y", "Delta Distance", "Notes", "Created At"})
		for _, l := range report.Logs {
			rows = append(rows, []string{
				san(l.AssetID),
				formatFloat(l.FromX), formatFloat(l.FromY),
				formatFloat(l.ToX), formatFloat(l.ToY),
				formatFloat(l.DeltaX), formatFloat(l.DeltaY),
				formatFloat(l.DeltaDistance),
				san(l.Notes),
				l.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		if err := w.WriteAll(rows); err != nil {
			return nil, err
		}
		return &Report{ContentType: "text/csv", Filename: base + ".csv", Body: buf.Bytes()}, nil
	default:
		return nil, apierr.InvalidInput("format", "must be %s or %s", ReportJSON, ReportCSV)
	}
}

type ReportService struct {
	db          *gorm.DB
	log         *logger.Logger
	assets      *AssetService
	calibration *CalibrationService
}

func NewReportService(db *gorm.DB, log *logger.Logger, assets *AssetService, calibration *CalibrationService) *ReportService {
	return &ReportService{db: db, log: log.With("service", "report"), assets: assets, calibration: calibration}
}

func (s *ReportService) AdjustmentReport(ctx context.Context, projectID uint, format string) (*Report, error) {
	project, err := findProject(s.db.WithContext(ctx), projectID)
	if err != nil {
		return nil, err
	}
	adjusted, err := s.assets.ListByProject(ctx, projectID, true)
	if err != nil {
		return nil, err
	}
	logs, err := s.assets.ProjectLogs(ctx, projectID)
	if err != nil {
		return nil, err
	}
	report, err := GenerateAdjustmentReport(project, adjusted, logs, format)
	if err != nil {
		if _, ok := apierr.As(err); ok {
			return nil, err
		}
		s.log.Error("generate adjustment report failed", "project_id", projectID, "error", err)
		return nil, apierr.Internal(err)
	}
	return report, nil
}

// AssetFeatures exports a project's assets as GeoJSON points at their current
// real-world position, with the matching sheet pixel position as properties.
func (s *ReportService) AssetFeatures(ctx context.Context, projectID uint) (*geojson.FeatureCollection, error) {
	cal, err := s.calibration.Calibration(ctx, projectID)
	if err != nil {
		return nil, err
	}
	assets, err := s.assets.ListByProject(ctx, projectID, false)
	if err != nil {
		return nil, err
	}
	fc := geojson.NewFeatureCollection()
	for i := range assets {
		a := &assets[i]
		cur := a.Current()
		px := cal.ToPixel(cur)
		f := geojson.NewFeature(orb.Point{cur[0], cur[1]})
		f.ID = a.AssetID
		f.Properties["asset_id"] = a.AssetID
		f.Properties["name"] = a.Name
		f.Properties["asset_type"] = a.AssetType.Name
		f.Properties["color"] = a.AssetType.Color
		f.Properties["icon_shape"] = a.AssetType.IconShape
		f.Properties["is_adjusted"] = a.IsAdjusted
		f.Properties["original_x"] = a.OriginalX
		f.Properties["original_y"] = a.OriginalY
		f.Properties["delta_distance"] = a.DeltaDistance()
		f.Properties["pixel_x"] = px[0]
		f.Properties["pixel_y"] = px[1]
		f.Properties["metadata"] = a.MetadataMap()
		fc.Append(f)
	}
	fc.ExtraMembers = geojson.Properties{"coord_unit": cal.Project.CoordUnit}
	return fc, nil
}
