package services

import (
	"context"
	"testing"

	"github.com/GrainArc/SheetGeo/models"
	"github.com/GrainArc/SheetGeo/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewRendererPageCount(t *testing.T) {
	r := NewPreviewRenderer(0)
	assert.Equal(t, 100.0, r.DPI)

	n, err := r.PageCount(testutil.MinimalPDF(3))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = r.PageCount([]byte("garbage"))
	assert.Error(t, err)

	_, err = r.PageCount(testutil.BuildPDF("<< /Type /Catalog >>"))
	assert.ErrorIs(t, err, ErrNoPages)
}

// nestedTreePDF has five pages split over two intermediate /Pages nodes.
// The first intermediate node, with /Count 2, precedes the root in the file.
func nestedTreePDF() []byte {
	return testutil.BuildPDF(
		"<< /Type /Catalog /Pages 4 0 R >>",
		"<< /Type /Pages /Parent 4 0 R /Kids [5 0 R 6 0 R] /Count 2 /MediaBox [0 0 842 595] >>",
		"<< /Type /Pages /Parent 4 0 R /Kids [7 0 R 8 0 R 9 0 R] /Count 3 >>",
		"<< /Type /Pages /Kids [2 0 R 3 0 R] /Count 5 /MediaBox [0 0 1224 792] >>",
		"<< /Type /Page /Parent 2 0 R >>",
		"<< /Type /Page /Parent 2 0 R >>",
		"<< /Type /Page /Parent 3 0 R /MediaBox [0 0 612 792] >>",
		"<< /Type /Page /Parent 3 0 R /MediaBox [0 0 612 792] >>",
		"<< /Type /Page /Parent 3 0 R >>",
	)
}

func TestPreviewRendererNestedPageTree(t *testing.T) {
	r := NewPreviewRenderer(72)
	data := nestedTreePDF()

	n, err := r.PageCount(data)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	doc, err := openPDF(data)
	require.NoError(t, err)
	// pages 1-2 inherit from their parent node, page 3 has its own box and
	// page 5 inherits from the root
	sizes := map[int][2]float64{
		1: {842, 595},
		2: {842, 595},
		3: {612, 792},
		5: {1224, 792},
	}
	for page, want := range sizes {
		w, h := pageSize(doc, page)
		assert.Equal(t, want, [2]float64{w, h}, "page %d", page)
	}

	raster, err := r.RenderPage(context.Background(), &models.Sheet{Name: "Plan", PageNumber: 5}, data)
	require.NoError(t, err)
	assert.Equal(t, 1224, raster.Width)
	assert.Equal(t, 792, raster.Height)
}

func TestPreviewRendererSize(t *testing.T) {
	doc, err := openPDF(testutil.MinimalPDF(1))
	require.NoError(t, err)

	w, h := NewPreviewRenderer(72).rasterSize(doc, 1)
	assert.Equal(t, 612, w)
	assert.Equal(t, 792, h)

	w, h = NewPreviewRenderer(1200).rasterSize(doc, 1)
	assert.Equal(t, maxRasterPx, h)
	assert.Less(t, w, h)

	w, h = NewPreviewRenderer(72).rasterSize(doc, 7)
	assert.Equal(t, 612, w, "missing page falls back to letter")
	assert.Equal(t, 792, h)

	w, h = NewPreviewRenderer(72).rasterSize(nil, 1)
	assert.Equal(t, 612, w)
	assert.Equal(t, 792, h)
}

func TestPreviewRendererRenderPage(t *testing.T) {
	r := NewPreviewRenderer(36)
	pdf := testutil.MinimalPDF(2)

	raster, err := r.RenderPage(context.Background(), &models.Sheet{Name: "Plan", PageNumber: 2}, pdf)
	require.NoError(t, err)
	assert.Equal(t, 306, raster.Width)
	assert.Equal(t, 396, raster.Height)
	assert.Equal(t, []byte("\x89PNG"), raster.PNG[:4])

	_, err = r.RenderPage(context.Background(), &models.Sheet{PageNumber: 3}, pdf)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.RenderPage(ctx, &models.Sheet{PageNumber: 1}, pdf)
	assert.ErrorIs(t, err, context.Canceled)
}
