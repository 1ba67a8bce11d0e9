package survey

import (
	"fmt"

	"github.com/golang/geo/r2"
)

// Block groups templates that share source and receiver borders. A border
// with zero width or height is not applied.
type Block struct {
	Name      string
	Templates []Template
	SrcBorder r2.Rect
	RecBorder r2.Rect
}

// Validate checks the block has templates and that each is well formed.
func (b *Block) Validate() error {
	if len(b.Templates) == 0 {
		return fmt.Errorf("%w: block %q needs at least one template", ErrInvalidSurvey, b.Name)
	}
	for i := range b.Templates {
		if err := b.Templates[i].Validate(); err != nil {
			return fmt.Errorf("block %q: %w", b.Name, err)
		}
	}
	return nil
}

// ShotCount sums the template shot counts.
func (b *Block) ShotCount() int {
	n := 0
	for i := range b.Templates {
		n += b.Templates[i].ShotCount()
	}
	return n
}

// BoundingRect unions the rolled, border-clipped template extents.
func (b *Block) BoundingRect() Extent {
	ext := Extent{Src: r2.EmptyRect(), Rec: r2.EmptyRect(), Cmp: r2.EmptyRect()}
	for i := range b.Templates {
		e := b.Templates[i].BoundingRect(b.SrcBorder, b.RecBorder, true)
		ext.Src = ext.Src.Union(e.Src)
		ext.Rec = ext.Rec.Union(e.Rec)
		ext.Cmp = ext.Cmp.Union(e.Cmp)
	}
	return ext
}
