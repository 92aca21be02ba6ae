package models_test

import (
	"testing"

	"github.com/GrainArc/SheetGeo/models"
	"github.com/GrainArc/SheetGeo/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateSeedsDefaults(t *testing.T) {
	db := testutil.SetupTestDB(t)

	var types []models.AssetType
	require.NoError(t, db.Order("id").Find(&types).Error)
	require.Len(t, types, 3)
	assert.Equal(t, "TN Intersection", types[0].Name)
	assert.Equal(t, "triangle", types[2].IconShape)

	var presets int64
	require.NoError(t, db.Model(&models.ColumnPreset{}).Count(&presets).Error)
	assert.Equal(t, int64(9), presets)

	// seeding is idempotent
	require.NoError(t, models.Migrate(db))
	require.NoError(t, db.Model(&models.ColumnPreset{}).Count(&presets).Error)
	assert.Equal(t, int64(9), presets)
}

func TestAdjustmentLogDerivesDeltas(t *testing.T) {
	db := testutil.SetupTestDB(t)
	project := testutil.CreateProject(t, db, "site")
	at := testutil.CreateAssetType(t, db, "Pole")
	a := testutil.CreateAsset(t, db, project.ID, at.ID, "A1", 1, 1)

	log := &models.AdjustmentLog{AssetRowID: a.ID, FromX: 1, FromY: 1, ToX: 4, ToY: 5, DeltaX: 99}
	require.NoError(t, db.Create(log).Error)
	assert.Equal(t, 3.0, log.DeltaX)
	assert.Equal(t, 4.0, log.DeltaY)
	assert.Equal(t, 5.0, log.DeltaDistance)

	log.Notes = "edited"
	assert.ErrorIs(t, db.Save(log).Error, models.ErrImmutableLog)
}

func TestAssetCurrentPosition(t *testing.T) {
	a := models.Asset{AssetID: "A1", OriginalX: 1, OriginalY: 2}
	assert.Equal(t, 1.0, a.CurrentX())
	assert.Zero(t, a.DeltaDistance())
	assert.Equal(t, "A1", a.DisplayName())
	assert.Empty(t, a.MetadataMap())

	x, y := 4.0, 6.0
	a.AdjustedX, a.AdjustedY, a.IsAdjusted = &x, &y, true
	a.Name = "Pole"
	assert.Equal(t, 6.0, a.CurrentY())
	assert.Equal(t, 5.0, a.DeltaDistance())
	assert.Equal(t, "A1 - Pole", a.DisplayName())

	a.AdjustedY = nil
	assert.Equal(t, 1.0, a.CurrentX(), "incomplete adjustment falls back to the original")
}

func TestSheetVisibleRegion(t *testing.T) {
	s := models.Sheet{ImageWidth: 100, ImageHeight: 50}
	assert.Len(t, s.VisibleRegion(), 5)

	// keep the left of a downward line at x=40, i.e. x <= 40
	s.Cuts = append(s.Cuts, models.Cut{P1: models.CutPoint{X: 40, Y: 0}, P2: models.CutPoint{X: 40, Y: 10}})
	region := s.VisibleRegion()
	require.NotEmpty(t, region)
	bound := region.Bound()
	assert.InDelta(t, 0.0, bound.Min[0], 1e-9)
	assert.InDelta(t, 40.0, bound.Max[0], 1e-9)

	s.Cuts[0].Flipped = true
	bound = s.VisibleRegion().Bound()
	assert.InDelta(t, 40.0, bound.Min[0], 1e-9)
	assert.InDelta(t, 100.0, bound.Max[0], 1e-9)
}

func TestValidCoordUnit(t *testing.T) {
	for _, u := range models.CoordUnits {
		assert.True(t, models.ValidCoordUnit(u))
	}
	assert.False(t, models.ValidCoordUnit("feet"))
}
