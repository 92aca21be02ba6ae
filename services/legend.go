package services

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"sync"

	"github.com/GrainArc/SheetGeo/models"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/paulmach/orb"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	xdraw "golang.org/x/image/draw"
)

const (
	legendItemHeight   = 40
	legendSymbolSize   = 24
	legendTextOffsetX  = 50
	legendPadding      = 15
	legendMinItemWidth = 150
	legendMaxColumns   = 6
	legendFontSize     = 14
)

var (
	legendFontOnce sync.Once
	legendFont     *truetype.Font
	legendFontErr  error
)

func loadLegendFont() (*truetype.Font, error) {
	legendFontOnce.Do(func() {
		legendFont, legendFontErr = truetype.Parse(goregular.TTF)
	})
	return legendFont, legendFontErr
}

func textWidth(face font.Face, text string) int {
	width := 0
	for _, r := range text {
		advance, ok := face.GlyphAdvance(r)
		if !ok {
			width += legendFontSize
			continue
		}
		width += advance.Round()
	}
	return width
}

func legendColumns(n, itemWidth int) int {
	if n == 0 {
		return 1
	}
	cols := int(math.Sqrt(float64(n) * legendItemHeight / float64(itemWidth)))
	if cols < 1 {
		cols = 1
	}
	if cols > legendMaxColumns {
		cols = legendMaxColumns
	}
	if cols > n {
		cols = n
	}
	return cols
}

// CreateLegend draws one symbol and label per asset type in a grid and
// returns the PNG.
func CreateLegend(types []models.AssetType) ([]byte, error) {
	ttf, err := loadLegendFont()
	if err != nil {
		return nil, err
	}
	face := truetype.NewFace(ttf, &truetype.Options{Size: legendFontSize, DPI: 72, Hinting: font.HintingFull})
	defer face.Close()

	itemWidth := legendMinItemWidth
	for _, at := range types {
		if w := legendTextOffsetX + textWidth(face, at.Name) + 20; w > itemWidth {
			itemWidth = w
		}
	}
	cols := legendColumns(len(types), itemWidth)
	rows := (len(types) + cols - 1) / cols
	if rows == 0 {
		rows = 1
	}
	width := cols*itemWidth + legendPadding*2
	height := rows*legendItemHeight + legendPadding*2

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	dc := gg.NewContextForRGBA(img)
	dc.SetFontFace(face)
	for i := range types {
		at := types[i]
		x := float64(legendPadding + (i%cols)*itemWidth)
		y := float64(legendPadding + (i/cols)*legendItemHeight)
		cy := y + legendItemHeight/2

		symbol := at
		symbol.Size = legendSymbolSize
		drawMarker(dc, orb.Point{x + legendSymbolSize/2 + 4, cy}, &symbol)

		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(at.Name, x+legendTextOffsetX, cy, 0, 0.35)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// embedInset draws inset into the bottom-right corner of canvas, shrunk to at
// most maxFrac of the canvas width and kept inside the canvas.
func embedInset(canvas *image.RGBA, inset image.Image, maxFrac float64, padding int) {
	cb := canvas.Bounds()
	ib := inset.Bounds()
	if ib.Empty() || cb.Empty() {
		return
	}
	w, h := ib.Dx(), ib.Dy()
	if limit := int(float64(cb.Dx()) * maxFrac); limit > 0 && w > limit {
		h = h * limit / w
		w = limit
	}
	if w < 1 || h < 1 {
		return
	}
	x := cb.Max.X - w - padding
	y := cb.Max.Y - h - padding
	if x < cb.Min.X {
		x = cb.Min.X
	}
	if y < cb.Min.Y {
		y = cb.Min.Y
	}
	xdraw.ApproxBiLinear.Scale(canvas, image.Rect(x, y, x+w, y+h), inset, ib, xdraw.Over, nil)
}
