package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/GrainArc/SheetGeo/Transformer"
	"github.com/GrainArc/SheetGeo/models"
	"github.com/fogleman/gg"
	"github.com/ledongthuc/pdf"
	"github.com/paulmach/orb"
)

var ErrNoPages = errors.New("pdf has no pages")

// Raster is one rendered page as PNG bytes.
type Raster struct {
	PNG    []byte
	Width  int
	Height int
}

// Renderer turns a PDF page into a raster. Implementations must be safe for
// concurrent use.
type Renderer interface {
	RenderPage(ctx context.Context, sheet *models.Sheet, data []byte) (*Raster, error)
	PageCount(data []byte) (int, error)
}

const (
	letterWidth  = 612.0
	letterHeight = 792.0
	maxRasterPx  = 4096
)

// PreviewRenderer draws a placeholder raster with the page outline, sized
// from the page MediaBox and clipped to the sheet's visible region. It does
// not rasterise PDF content.
type PreviewRenderer struct {
	DPI float64
}

func NewPreviewRenderer(dpi float64) *PreviewRenderer {
	if dpi <= 0 {
		dpi = 100
	}
	return &PreviewRenderer{DPI: dpi}
}

// openPDF parses the trailer and cross-reference data. The reader panics on
// some malformed input instead of returning an error.
func openPDF(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("malformed pdf: %v", p)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

func numPages(r *pdf.Reader) (n int, err error) {
	defer func() {
		if p := recover(); p != nil {
			n, err = 0, fmt.Errorf("malformed page tree: %v", p)
		}
	}()
	if n = r.NumPage(); n < 1 {
		return 0, ErrNoPages
	}
	return n, nil
}

// inherited looks key up on v and then on its /Parent chain, the way page
// attributes such as /MediaBox are inherited through the page tree.
func inherited(v pdf.Value, key string) pdf.Value {
	for depth := 0; depth < 64 && !v.IsNull(); depth++ {
		if found := v.Key(key); !found.IsNull() {
			return found
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

// pageSize returns the MediaBox of page (1-based) in points, or US letter
// when the page or its box cannot be read.
func pageSize(r *pdf.Reader, page int) (w, h float64) {
	defer func() {
		if recover() != nil {
			w, h = letterWidth, letterHeight
		}
	}()
	p := r.Page(page)
	if p.V.IsNull() {
		return letterWidth, letterHeight
	}
	box := inherited(p.V, "MediaBox")
	if box.Len() != 4 {
		return letterWidth, letterHeight
	}
	w = math.Abs(box.Index(2).Float64() - box.Index(0).Float64())
	h = math.Abs(box.Index(3).Float64() - box.Index(1).Float64())
	if w == 0 || h == 0 {
		return letterWidth, letterHeight
	}
	return w, h
}

// PageCount reads /Count from the root of the page tree.
func (r *PreviewRenderer) PageCount(data []byte) (int, error) {
	doc, err := openPDF(data)
	if err != nil {
		return 0, err
	}
	return numPages(doc)
}

func (r *PreviewRenderer) rasterSize(doc *pdf.Reader, page int) (int, int) {
	w, h := letterWidth, letterHeight
	if doc != nil {
		w, h = pageSize(doc, page)
	}
	scale := r.DPI / 72
	if long := math.Max(w, h) * scale; long > maxRasterPx {
		scale *= maxRasterPx / long
	}
	return int(math.Round(w * scale)), int(math.Round(h * scale))
}

func (r *PreviewRenderer) RenderPage(ctx context.Context, sheet *models.Sheet, data []byte) (*Raster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := openPDF(data)
	if err != nil {
		return nil, err
	}
	pages, err := numPages(doc)
	if err != nil {
		return nil, err
	}
	if sheet.PageNumber < 1 || sheet.PageNumber > pages {
		return nil, fmt.Errorf("page %d out of range (1-%d)", sheet.PageNumber, pages)
	}
	width, height := r.rasterSize(doc, sheet.PageNumber)

	dc := gg.NewContext(width, height)
	bounds := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{float64(width), float64(height)}}
	region := Transformer.VisibleRegion(bounds, sheet.HalfPlanes())
	if len(region) > 0 {
		tracePath(dc, region)
		dc.Clip()

		dc.SetRGB(1, 1, 1)
		dc.DrawRectangle(0, 0, float64(width), float64(height))
		dc.Fill()

		dc.SetRGBA(0.2, 0.4, 0.8, 0.15)
		step := math.Max(float64(width), float64(height)) / 20
		for x := step; x < float64(width); x += step {
			dc.DrawLine(x, 0, x, float64(height))
		}
		for y := step; y < float64(height); y += step {
			dc.DrawLine(0, y, float64(width), y)
		}
		dc.SetLineWidth(1)
		dc.Stroke()

		dc.SetRGB(0.3, 0.3, 0.3)
		dc.DrawStringAnchored(fmt.Sprintf("%s (Page %d)", sheet.Name, sheet.PageNumber), float64(width)/2, float64(height)/2, 0.5, 0.5)
		dc.ResetClip()

		tracePath(dc, region)
		dc.SetRGB(0.1, 0.1, 0.1)
		dc.SetLineWidth(2)
		dc.Stroke()
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return &Raster{PNG: buf.Bytes(), Width: width, Height: height}, nil
}

func tracePath(dc *gg.Context, ring orb.Ring) {
	dc.NewSubPath()
	for i, p := range ring {
		if i == 0 {
			dc.MoveTo(p[0], p[1])
		} else {
			dc.LineTo(p[0], p[1])
		}
	}
	dc.ClosePath()
}
