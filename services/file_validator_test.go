package services

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/GrainArc/SheetGeo/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestValidatePDF(t *testing.T) {
	v := NewFileValidator(0, 0, 0)
	pdf := testutil.MinimalPDF(1)

	assert.NoError(t, v.ValidatePDF("plan.PDF", pdf))
	assertInvalid(t, v.ValidatePDF("plan.png", pdf), "file")
	assertInvalid(t, v.ValidatePDF("plan.pdf", []byte("not a pdf at all")), "file")

	small := NewFileValidator(16, 0, 0)
	err := small.ValidatePDF("plan.pdf", pdf)
	assertInvalid(t, err, "file")
	assert.Contains(t, err.Error(), "exceeds maximum allowed size")
}

func TestValidateImage(t *testing.T) {
	v := NewFileValidator(0, 0, 0)
	data := pngBytes(t, 40, 30)

	cfg, err := v.ValidateImage("sheet.png", data)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 30, cfg.Height)

	_, err = v.ValidateImage("sheet.bmp", data)
	assertInvalid(t, err, "file")
	_, err = v.ValidateImage("sheet.png", []byte("plain text"))
	assertInvalid(t, err, "file")
	_, err = v.ValidateImage("sheet.png", data[:20])
	assertInvalid(t, err, "file")

	_, err = NewFileValidator(0, 10, 0).ValidateImage("sheet.png", data)
	assertInvalid(t, err, "file")
}

func TestValidateCSV(t *testing.T) {
	v := NewFileValidator(0, 0, 0)
	assert.NoError(t, v.ValidateCSV("assets.csv", []byte("asset_id,x,y\nA,1,2\n")))
	assertInvalid(t, v.ValidateCSV("assets.csv", nil), "file")
	assertInvalid(t, v.ValidateCSV("assets.csv", pngBytes(t, 2, 2)), "file")
	assertInvalid(t, NewFileValidator(0, 0, 4).ValidateCSV("assets.csv", []byte("asset_id\n")), "file")
}
