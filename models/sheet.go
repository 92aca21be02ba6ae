package models

import (
	"time"

	"github.com/GrainArc/SheetGeo/Transformer"
	"github.com/paulmach/orb"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CutPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p CutPoint) Point() orb.Point {
	return orb.Point{p.X, p.Y}
}

// Cut is one directed cut line. Flipped selects the complementary half-plane.
type Cut struct {
	P1      CutPoint `json:"p1"`
	P2      CutPoint `json:"p2"`
	Flipped bool     `json:"flipped"`
}

func (c Cut) HalfPlane() Transformer.HalfPlane {
	return Transformer.HalfPlane{A: c.P1.Point(), B: c.P2.Point(), Flipped: c.Flipped}
}

// Sheet is one drawing page placed on a project's canvas. PdfFile is a
// storage key that several sheets may share.
type Sheet struct {
	ID            uint                     `gorm:"primaryKey" json:"id"`
	ProjectID     uint                     `gorm:"not null;index" json:"project_id"`
	Name          string                   `gorm:"size:255;not null" json:"name"`
	PdfFile       string                   `gorm:"size:512;not null;index" json:"pdf_file"`
	PageNumber    int                      `gorm:"not null;default:1" json:"page_number"`
	ZIndex        int                      `gorm:"not null;default:0" json:"z_index"`
	OffsetX       float64                  `gorm:"not null;default:0" json:"offset_x"`
	OffsetY       float64                  `gorm:"not null;default:0" json:"offset_y"`
	Cuts          datatypes.JSONSlice[Cut] `gorm:"column:cuts_json" json:"cuts_json"`
	RenderedImage string                   `gorm:"size:512" json:"rendered_image"`
	ImageWidth    int                      `json:"image_width"`
	ImageHeight   int                      `json:"image_height"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

func (Sheet) TableName() string {
	return "sheets"
}

func (s *Sheet) BeforeSave(tx *gorm.DB) error {
	if s.Cuts == nil {
		s.Cuts = datatypes.JSONSlice[Cut]{}
	}
	if s.PageNumber == 0 {
		s.PageNumber = 1
	}
	return nil
}

func (s *Sheet) AfterFind(tx *gorm.DB) error {
	if s.Cuts == nil {
		s.Cuts = datatypes.JSONSlice[Cut]{}
	}
	return nil
}

// HalfPlanes returns the cut chain in order.
func (s *Sheet) HalfPlanes() []Transformer.HalfPlane {
	out := make([]Transformer.HalfPlane, 0, len(s.Cuts))
	for _, c := range s.Cuts {
		out = append(out, c.HalfPlane())
	}
	return out
}

// VisibleRegion is the part of the rendered page left after every cut.
func (s *Sheet) VisibleRegion() orb.Ring {
	bounds := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{float64(s.ImageWidth), float64(s.ImageHeight)}}
	return Transformer.VisibleRegion(bounds, s.HalfPlanes())
}
