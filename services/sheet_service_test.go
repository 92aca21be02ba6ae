package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/GrainArc/SheetGeo/apierr"
	"github.com/GrainArc/SheetGeo/logger"
	"github.com/GrainArc/SheetGeo/models"
	"github.com/GrainArc/SheetGeo/testutil"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func point(x, y float64) map[string]interface{} {
	return map[string]interface{}{"x": x, "y": y}
}

func uploadSheets(t *testing.T, f *fixture, projectID uint, pages int) []models.Sheet {
	t.Helper()
	sheets, err := f.svc.Sheets.CreateSheets(context.Background(), projectID, "Plan", "plan.pdf", testutil.MinimalPDF(pages))
	require.NoError(t, err)
	return sheets
}

func TestCreateSheetsOnePerPage(t *testing.T) {
	f := newFixture(t)
	project := testutil.CreateProject(t, f.db, "site")

	single := uploadSheets(t, f, project.ID, 1)
	require.Len(t, single, 1)
	assert.Equal(t, "Plan", single[0].Name)
	assert.Equal(t, 1, single[0].PageNumber)
	assert.Equal(t, 0, single[0].ZIndex)

	multi := uploadSheets(t, f, project.ID, 3)
	require.Len(t, multi, 3)
	assert.Equal(t, "Plan - Page 2", multi[1].Name)
	assert.Equal(t, 3, multi[2].PageNumber)
	assert.Equal(t, multi[0].PdfFile, multi[2].PdfFile, "pages share one stored pdf")
	assert.Equal(t, []int{1, 2, 3}, []int{multi[0].ZIndex, multi[1].ZIndex, multi[2].ZIndex})

	data, err := f.store.Read(multi[0].PdfFile)
	require.NoError(t, err)
	assert.Equal(t, testutil.MinimalPDF(3), data)

	listed, err := f.svc.Sheets.ListByProject(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 4)
}

func TestCreateSheetsFollowsNestedPageTree(t *testing.T) {
	f := newFixture(t)
	project := testutil.CreateProject(t, f.db, "site")

	sheets, err := f.svc.Sheets.CreateSheets(context.Background(), project.ID, "Tower", "tower.pdf", nestedTreePDF())
	require.NoError(t, err)
	require.Len(t, sheets, 5)
	assert.Equal(t, "Tower - Page 5", sheets[4].Name)

	rendered, err := f.svc.Sheets.Render(context.Background(), sheets[4].ID)
	require.NoError(t, err)
	assert.Equal(t, 612, rendered.ImageWidth)
	assert.Equal(t, 396, rendered.ImageHeight)
}

func TestCreateSheetsRejectsNonPDF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := testutil.CreateProject(t, f.db, "site")

	_, err := f.svc.Sheets.CreateSheets(ctx, project.ID, "x", "plan.txt", testutil.MinimalPDF(1))
	assertInvalid(t, err, "file")
	_, err = f.svc.Sheets.CreateSheets(ctx, project.ID, "x", "plan.pdf", []byte("hello world"))
	assertInvalid(t, err, "file")
	_, err = f.svc.Sheets.CreateSheets(ctx, 999, "x", "plan.pdf", testutil.MinimalPDF(1))
	assertCode(t, err, apierr.CodeNotFound)
}

func TestSplitAccumulatesCuts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := testutil.CreateProject(t, f.db, "site")
	sheet := uploadSheets(t, f, project.ID, 1)[0]

	_, err := f.svc.Sheets.Update(ctx, sheet.ID, map[string]interface{}{"offset_x": 15, "z_index": 4})
	require.NoError(t, err)

	first, err := f.svc.Sheets.Split(ctx, sheet.ID, point(0, 0), point(0, 10))
	require.NoError(t, err)
	require.Len(t, first.Original.Cuts, 1)
	assert.False(t, first.Original.Cuts[0].Flipped)
	require.Len(t, first.NewSheet.Cuts, 1)
	assert.True(t, first.NewSheet.Cuts[0].Flipped)
	assert.Equal(t, "Plan (split)", first.NewSheet.Name)
	assert.Equal(t, sheet.PdfFile, first.NewSheet.PdfFile)
	assert.Equal(t, 15.0, first.NewSheet.OffsetX)
	assert.Equal(t, 4, first.NewSheet.ZIndex)
	assert.Empty(t, first.NewSheet.RenderedImage)

	second, err := f.svc.Sheets.Split(ctx, first.NewSheet.ID, point(0, 5), point(10, 5))
	require.NoError(t, err)
	require.Len(t, second.Original.Cuts, 2)
	require.Len(t, second.NewSheet.Cuts, 2)
	assert.Equal(t, second.Original.Cuts[0], second.NewSheet.Cuts[0], "prior cuts are shared")
	assert.False(t, second.Original.Cuts[1].Flipped)
	assert.True(t, second.NewSheet.Cuts[1].Flipped)

	// the three pieces partition the plane around the cut lines
	sample := orb.Point{-3, 8}
	inside := 0
	for _, id := range []uint{sheet.ID, first.NewSheet.ID, second.NewSheet.ID} {
		sh, err := f.svc.Sheets.Get(ctx, id)
		require.NoError(t, err)
		contained := true
		for _, hp := range sh.HalfPlanes() {
			contained = contained && hp.Contains(sample)
		}
		if contained {
			inside++
		}
	}
	assert.Equal(t, 1, inside)
}

func TestSplitValidatesPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := testutil.CreateProject(t, f.db, "site")
	sheet := uploadSheets(t, f, project.ID, 1)[0]

	_, err := f.svc.Sheets.Split(ctx, sheet.ID, point(0, 0), map[string]interface{}{"x": "abc", "y": 1})
	assertInvalid(t, err, "p2.x")
	_, err = f.svc.Sheets.Split(ctx, sheet.ID, "0,0", point(1, 1))
	assertInvalid(t, err, "p1")
	_, err = f.svc.Sheets.Split(ctx, 999, point(0, 0), point(1, 1))
	assertCode(t, err, apierr.CodeNotFound)

	var count int64
	require.NoError(t, f.db.Model(&models.Sheet{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpdateSheetCuts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := testutil.CreateProject(t, f.db, "site")
	sheet := uploadSheets(t, f, project.ID, 1)[0]

	var cuts interface{}
	require.NoError(t, json.Unmarshal([]byte(`[{"p1":{"x":"1","y":2},"p2":{"x":3,"y":4},"flipped":true}]`), &cuts))
	updated, err := f.svc.Sheets.Update(ctx, sheet.ID, map[string]interface{}{"cuts_json": cuts, "name": "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	require.Len(t, updated.Cuts, 1)
	assert.Equal(t, models.Cut{P1: models.CutPoint{X: 1, Y: 2}, P2: models.CutPoint{X: 3, Y: 4}, Flipped: true}, updated.Cuts[0])

	bad := []string{
		`{"p1":{"x":1,"y":2}}`,
		`[{"p1":{"x":1,"y":2},"p2":{"x":3}}]`,
		`[{"p1":{"x":1,"y":2},"p2":{"x":3,"y":4},"flipped":"yes"}]`,
		`["cut"]`,
	}
	for _, raw := range bad {
		var v interface{}
		require.NoError(t, json.Unmarshal([]byte(raw), &v))
		_, err := f.svc.Sheets.Update(ctx, sheet.ID, map[string]interface{}{"cuts_json": v})
		require.Error(t, err, raw)
		assert.True(t, apierr.IsCode(err, apierr.CodeInvalidInput), raw)
	}

	_, err = f.svc.Sheets.Update(ctx, sheet.ID, map[string]interface{}{"z_index": 1.5})
	assertInvalid(t, err, "z_index")

	stored, err := f.svc.Sheets.Get(ctx, sheet.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Cuts, 1)
}

func TestDeleteSheetKeepsSharedPDF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := testutil.CreateProject(t, f.db, "site")
	sheets := uploadSheets(t, f, project.ID, 2)
	key := sheets[0].PdfFile

	require.NoError(t, f.svc.Sheets.Delete(ctx, sheets[0].ID))
	_, err := f.store.Read(key)
	require.NoError(t, err, "still referenced by page 2")

	require.NoError(t, f.svc.Sheets.Delete(ctx, sheets[1].ID))
	_, err = f.store.Read(key)
	assert.Error(t, err)

	assertCode(t, f.svc.Sheets.Delete(ctx, sheets[1].ID), apierr.CodeNotFound)
}

func TestRenderStoresRaster(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := testutil.CreateProject(t, f.db, "site")
	sheet := uploadSheets(t, f, project.ID, 1)[0]

	rendered, err := f.svc.Sheets.Render(ctx, sheet.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, rendered.RenderedImage)
	assert.Equal(t, 306, rendered.ImageWidth)
	assert.Equal(t, 396, rendered.ImageHeight)

	data, key, err := f.svc.Sheets.Raster(ctx, sheet.ID)
	require.NoError(t, err)
	assert.Equal(t, rendered.RenderedImage, key)
	assert.Equal(t, []byte("\x89PNG"), data[:4])

	again, err := f.svc.Sheets.Render(ctx, sheet.ID)
	require.NoError(t, err)
	_, err = f.store.Read(rendered.RenderedImage)
	assert.Error(t, err, "previous raster removed")
	_, err = f.store.Read(again.RenderedImage)
	assert.NoError(t, err)
}

type failingRenderer struct{ *PreviewRenderer }

func (failingRenderer) RenderPage(context.Context, *models.Sheet, []byte) (*Raster, error) {
	return nil, errors.New("disk full")
}

func TestRenderFailureIsGeneric(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sheets := NewSheetService(f.db, logger.Nop(), f.store, failingRenderer{NewPreviewRenderer(0)}, NewFileValidator(0, 0, 0))
	project := testutil.CreateProject(t, f.db, "site")
	created, err := sheets.CreateSheets(ctx, project.ID, "Plan", "plan.pdf", testutil.MinimalPDF(1))
	require.NoError(t, err)

	_, err = sheets.Render(ctx, created[0].ID)
	assertCode(t, err, apierr.CodeInternal)
	assert.Equal(t, apierr.GenericMessage, apierr.Message(err))
	assert.NotContains(t, apierr.Message(err), "disk full")

	_, err = sheets.Render(ctx, 999)
	assertCode(t, err, apierr.CodeNotFound)

	_, _, err = sheets.Raster(ctx, created[0].ID)
	assertCode(t, err, apierr.CodeNotFound)
}

func TestDeleteProjectRemovesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := testutil.CreateProject(t, f.db, "site")
	keep := testutil.CreateProject(t, f.db, "keep")
	sheets := uploadSheets(t, f, project.ID, 1)
	importTwo(t, f, project.ID)
	importTwo(t, f, keep.ID)

	require.NoError(t, f.svc.Projects.Delete(ctx, project.ID))
	_, err := f.svc.Projects.Get(ctx, project.ID)
	assertCode(t, err, apierr.CodeNotFound)
	_, err = f.store.Read(sheets[0].PdfFile)
	assert.Error(t, err)

	for _, model := range []interface{}{&models.Sheet{}, &models.Asset{}, &models.ImportBatch{}} {
		var n int64
		require.NoError(t, f.db.Model(model).Where("project_id = ?", project.ID).Count(&n).Error)
		assert.Zero(t, n)
	}
	remaining, err := f.svc.Assets.ListByProject(ctx, keep.ID, false)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}
