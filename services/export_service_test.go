package services

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/GrainArc/SheetGeo/apierr"
	"github.com/GrainArc/SheetGeo/models"
	"github.com/GrainArc/SheetGeo/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportProjectDrawsVisibleMarkers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := testutil.CreateProject(t, f.db, "site")
	sheet := uploadSheets(t, f, project.ID, 1)[0]
	at := testutil.CreateAssetType(t, f.db, "Pole")
	// ppm 100: real (1, 1) is pixel (100, 100), inside the 306x396 raster
	testutil.CreateAsset(t, f.db, project.ID, at.ID, "IN", 1, 1)
	testutil.CreateAsset(t, f.db, project.ID, at.ID, "OUT", 50, 50)

	exports, err := f.svc.Exports.ExportProject(ctx, project.ID, ExportOptions{})
	require.NoError(t, err)
	require.Len(t, exports, 1)
	assert.Equal(t, sheet.ID, exports[0].SheetID)
	assert.Equal(t, 1, exports[0].Markers)

	data, err := f.store.Read(exports[0].File)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 306, 396), img.Bounds())

	r, g, b, _ := img.At(100, 100).RGBA()
	assert.Equal(t, uint32(0xffff), r, "marker filled with the type colour")
	assert.Zero(t, g)
	assert.Zero(t, b)
}

func TestExportTriangleMarkerIsEquilateral(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := testutil.CreateProject(t, f.db, "site")
	uploadSheets(t, f, project.ID, 1)
	at := testutil.CreateAssetType(t, f.db, "Valve")
	at.IconShape = "triangle"
	require.NoError(t, f.db.Save(at).Error)
	testutil.CreateAsset(t, f.db, project.ID, at.ID, "V1", 1, 1)

	exports, err := f.svc.Exports.ExportProject(ctx, project.ID, ExportOptions{})
	require.NoError(t, err)
	require.Len(t, exports, 1)
	data, err := f.store.Read(exports[0].File)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	red := func(x, y int) bool {
		r, g, b, _ := img.At(x, y).RGBA()
		return r == 0xffff && g == 0 && b == 0
	}
	// size 20 around (100, 100): apex at y=90, base at y=105
	assert.True(t, red(100, 100), "centre filled")
	assert.True(t, red(100, 95), "below apex filled")
	assert.False(t, red(100, 108), "base sits at half radius below centre")
	assert.False(t, red(92, 102), "outside the left edge")
}

func TestExportProjectHonoursCutsAndSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := testutil.CreateProject(t, f.db, "site")
	sheet := uploadSheets(t, f, project.ID, 1)[0]
	at := testutil.CreateAssetType(t, f.db, "Pole")
	testutil.CreateAsset(t, f.db, project.ID, at.ID, "LEFT", 0.5, 1)
	testutil.CreateAsset(t, f.db, project.ID, at.ID, "RIGHT", 2, 1)

	// vertical cut at x=100 pointing down; the original keeps x < 100
	split, err := f.svc.Sheets.Split(ctx, sheet.ID, point(100, 0), point(100, 10))
	require.NoError(t, err)

	exports, err := f.svc.Exports.ExportProject(ctx, project.ID, ExportOptions{SheetIDs: []uint{split.NewSheet.ID}})
	require.NoError(t, err)
	require.Len(t, exports, 1)
	assert.Equal(t, split.NewSheet.ID, exports[0].SheetID)
	assert.Equal(t, 1, exports[0].Markers)

	all, err := f.svc.Exports.ExportProject(ctx, project.ID, ExportOptions{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].Markers)
	assert.Equal(t, 1, all[1].Markers)
}

func TestExportEmptyProject(t *testing.T) {
	f := newFixture(t)
	project := testutil.CreateProject(t, f.db, "empty")
	exports, err := f.svc.Exports.ExportProject(context.Background(), project.ID, ExportOptions{})
	require.NoError(t, err)
	assert.Empty(t, exports)

	_, err = f.svc.Exports.ExportProject(context.Background(), 404, ExportOptions{})
	assertCode(t, err, apierr.CodeNotFound)
}

func TestExportProjectWithLegend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := testutil.CreateProject(t, f.db, "site")
	uploadSheets(t, f, project.ID, 1)
	at := testutil.CreateAssetType(t, f.db, "Pole")
	testutil.CreateAsset(t, f.db, project.ID, at.ID, "IN", 1, 1)

	plain, err := f.svc.Exports.ExportProject(ctx, project.ID, ExportOptions{})
	require.NoError(t, err)
	withLegend, err := f.svc.Exports.ExportProject(ctx, project.ID, ExportOptions{Legend: true})
	require.NoError(t, err)
	require.Len(t, withLegend, 1)
	assert.Equal(t, 1, withLegend[0].Markers)

	decode := func(key string) image.Image {
		data, err := f.store.Read(key)
		require.NoError(t, err)
		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		return img
	}
	a, b := decode(plain[0].File), decode(withLegend[0].File)
	assert.Equal(t, a.Bounds(), b.Bounds())
	assert.Equal(t, a.At(100, 100), b.At(100, 100), "marker untouched")

	// the inset sits in the bottom-right corner
	differs := false
	for y := 300; y < 386 && !differs; y++ {
		for x := 180; x < 296; x++ {
			if a.At(x, y) != b.At(x, y) {
				differs = true
				break
			}
		}
	}
	assert.True(t, differs)
}

func TestEmbedInsetStaysInside(t *testing.T) {
	canvas := image.NewRGBA(image.Rect(0, 0, 100, 50))
	inset := image.NewRGBA(image.Rect(0, 0, 400, 400))
	for i := range inset.Pix {
		inset.Pix[i] = 0xff
	}
	embedInset(canvas, inset, 0.4, 10)
	// shrunk to 40x40, placed at (50, 0) after clamping to the top edge
	assert.Equal(t, uint8(0xff), canvas.RGBAAt(60, 5).A)
	assert.Zero(t, canvas.RGBAAt(45, 5).A)
}

func TestLegendListsTypesInUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := testutil.CreateProject(t, f.db, "site")
	pole := testutil.CreateAssetType(t, f.db, "Pole")
	testutil.CreateAsset(t, f.db, project.ID, pole.ID, "A1", 1, 1)
	testutil.CreateAsset(t, f.db, project.ID, pole.ID, "A2", 2, 2)

	data, err := f.svc.Exports.Legend(ctx, project.ID)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	// one item: a single column and row
	assert.Equal(t, 2*legendPadding+legendItemHeight, img.Bounds().Dy())

	_, err = f.svc.Exports.Legend(ctx, 404)
	assertCode(t, err, apierr.CodeNotFound)
}

func TestCreateLegendLayout(t *testing.T) {
	types := make([]models.AssetType, 0, 8)
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		types = append(types, *models.NewAssetType(name))
	}
	data, err := CreateLegend(types)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dy(), 2*legendPadding+legendItemHeight)

	empty, err := CreateLegend(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), empty[:4])

	assert.Equal(t, 1, legendColumns(0, 150))
	assert.Equal(t, 1, legendColumns(3, 150))
	assert.LessOrEqual(t, legendColumns(1000, 150), legendMaxColumns)
}
