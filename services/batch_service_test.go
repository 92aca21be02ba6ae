package services

import (
	"context"
	"testing"

	"github.com/GrainArc/SheetGeo/apierr"
	"github.com/GrainArc/SheetGeo/models"
	"github.com/GrainArc/SheetGeo/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func importTwo(t *testing.T, f *fixture, projectID uint) *ImportResult {
	t.Helper()
	result, err := f.svc.Importer.ImportCSV(context.Background(), csvRequest(projectID,
		"asset_id,asset_type,x,y",
		"B1,VSL,1,1",
		"B2,VSL,2,2",
	))
	require.NoError(t, err)
	require.Equal(t, 2, result.Created)
	return result
}

func TestReassignBatchType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := testutil.CreateProject(t, f.db, "site")
	result := importTwo(t, f, project.ID)

	updated, at, err := f.svc.Batches.ReassignType(ctx, result.BatchID, "cctv")
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)
	assert.Equal(t, "CCTV", at.Name)
	assert.Equal(t, "CCTV", findImported(t, f, project.ID, "B2").AssetType.Name)

	updated, at, err = f.svc.Batches.ReassignType(ctx, result.BatchID, "Bollard")
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)
	assert.Equal(t, "Bollard", at.Name)
	assert.Equal(t, models.DefaultColor, at.Color)

	_, _, err = f.svc.Batches.ReassignType(ctx, result.BatchID, "  ")
	assertInvalid(t, err, "asset_type_name")

	_, _, err = f.svc.Batches.ReassignType(ctx, 999, "VSL")
	assertCode(t, err, apierr.CodeNotFound)
}

func TestDeleteBatchCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := testutil.CreateProject(t, f.db, "site")
	result := importTwo(t, f, project.ID)
	at := testutil.CreateAssetType(t, f.db, "Manual")
	manual := testutil.CreateAsset(t, f.db, project.ID, at.ID, "M1", 0, 0)

	b1 := findImported(t, f, project.ID, "B1")
	_, _, err := f.svc.Assets.Adjust(ctx, b1.ID, 5, 5, "")
	require.NoError(t, err)

	batches, err := f.svc.Batches.List(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, 2, batches[0].AssetCount)

	require.NoError(t, f.svc.Batches.Delete(ctx, result.BatchID))
	assertCode(t, f.svc.Batches.Delete(ctx, result.BatchID), apierr.CodeNotFound)

	assets, err := f.svc.Assets.ListByProject(ctx, project.ID, false)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, manual.ID, assets[0].ID)

	var logs int64
	require.NoError(t, f.db.Model(&models.AdjustmentLog{}).Count(&logs).Error)
	assert.Zero(t, logs)
}

func TestPresets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	presets, err := f.svc.Presets.List(ctx)
	require.NoError(t, err)
	for _, role := range models.MappingRoles {
		assert.Contains(t, presets, role)
	}
	assert.Equal(t, []string{"asset_id", "TN"}, presets["asset_id"])

	_, err = f.svc.Presets.Create(ctx, PresetRequest{Role: "asset_id", ColumnName: "Tag", Priority: 200})
	require.NoError(t, err)
	_, err = f.svc.Presets.Create(ctx, PresetRequest{Role: "asset_id", ColumnName: "Tag"})
	assertCode(t, err, apierr.CodeConflict)
	_, err = f.svc.Presets.Create(ctx, PresetRequest{Role: "", ColumnName: "Tag"})
	assertInvalid(t, err, "role")

	presets, err = f.svc.Presets.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Tag", presets["asset_id"][0])

	mapping, err := f.svc.Presets.SuggestMapping(ctx, []string{"tn", "TYPE", "Easting", "northing", "Notes"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"asset_id":   "tn",
		"asset_type": "TYPE",
		"x":          "Easting",
		"y":          "northing",
	}, mapping)
}
