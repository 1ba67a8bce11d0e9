// Package records holds the source, receiver and relation tables produced
// by geometry generation and consumed by geometry based binning.
package records

import (
	"fmt"
	"slices"
	"sort"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/roll.survey/internal/geom"
)

// Record codes written by the final pass.
const (
	SourceCode   = "E1"
	ReceiverCode = "G1"
)

// Point is a source or receiver station.
type Point struct {
	Line  int
	Point int
	Index int // block index % 10 + 1
	Code  string
	Depth float64
	East  float64
	North float64
	LocX  float64
	LocY  float64
	Elev  float64
	Uniq  int
	InXps int
}

// Key returns the (index, line, point) identity of the station.
func (p *Point) Key() Key {
	return Key{Index: p.Index, Line: p.Line, Point: p.Point}
}

// Local returns the local (x, y, elevation) position.
func (p *Point) Local() r3.Vector {
	return r3.Vector{X: p.LocX, Y: p.LocY, Z: p.Elev}
}

// Relation ties one shot to a contiguous run of receiver points on one
// receiver line.
type Relation struct {
	SrcLine  int
	SrcPoint int
	SrcIndex int
	RecNo    int // shot sequence number, 1-based
	RecLine  int
	RecMin   int
	RecMax   int
	RecIndex int
	Uniq     int
	InSps    int
	InRps    int
}

// SrcKey returns the identity of the shot the relation belongs to.
func (r *Relation) SrcKey() Key {
	return Key{Index: r.SrcIndex, Line: r.SrcLine, Point: r.SrcPoint}
}

// Span is the number of receiver points the relation covers.
func (r *Relation) Span() int {
	return r.RecMax - r.RecMin + 1
}

// Key identifies a station.
type Key struct {
	Index int
	Line  int
	Point int
}

// Compare orders keys by index, line, then point.
func (k Key) Compare(o Key) int {
	switch {
	case k.Index != o.Index:
		return sign(k.Index - o.Index)
	case k.Line != o.Line:
		return sign(k.Line - o.Line)
	default:
		return sign(k.Point - o.Point)
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Index, k.Line, k.Point)
}

func sign(d int) int {
	switch {
	case d < 0:
		return -1
	case d > 0:
		return 1
	}
	return 0
}

// Tables is the output of a geometry run.
type Tables struct {
	Src []Point
	Rec []Point
	Rel []Relation
}

// Counts returns the table lengths.
func (t *Tables) Counts() (src, rec, rel int) {
	return len(t.Src), len(t.Rec), len(t.Rel)
}

// Clone returns a deep copy.
func (t *Tables) Clone() *Tables {
	return &Tables{
		Src: slices.Clone(t.Src),
		Rec: slices.Clone(t.Rec),
		Rel: slices.Clone(t.Rel),
	}
}

// Trim releases spare capacity left by chunked growth.
func (t *Tables) Trim() {
	t.Src = slices.Clip(t.Src)
	t.Rec = slices.Clip(t.Rec)
	t.Rel = slices.Clip(t.Rel)
}

// DedupReceivers removes receivers whose (index, line, point) was seen
// earlier in the table. The first occurrence wins and order is kept.
func (t *Tables) DedupReceivers() int {
	seen := make(map[Key]struct{}, len(t.Rec))
	out := t.Rec[:0]
	for _, p := range t.Rec {
		k := p.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	removed := len(t.Rec) - len(out)
	clear(t.Rec[len(out):])
	t.Rec = out
	return removed
}

// Finalize applies the bookkeeping fields and the final sort orders.
func (t *Tables) Finalize() {
	t.DedupReceivers()
	for i := range t.Src {
		t.Src[i].Uniq = 1
		t.Src[i].InXps = 1
		t.Src[i].Code = SourceCode
	}
	for i := range t.Rec {
		t.Rec[i].Uniq = 1
		t.Rec[i].InXps = 1
		t.Rec[i].Code = ReceiverCode
	}
	for i := range t.Rel {
		t.Rel[i].Uniq = 1
		t.Rel[i].InSps = 1
		t.Rel[i].InRps = 1
	}
	t.Trim()
	SortSourcesByPoint(t.Src)
	SortStations(t.Rec)
	SortRelations(t.Rel)
}

// SortSourcesByPoint orders sources by (index, point, line).
func SortSourcesByPoint(src []Point) {
	sort.SliceStable(src, func(i, j int) bool {
		a, b := &src[i], &src[j]
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		if a.Point != b.Point {
			return a.Point < b.Point
		}
		return a.Line < b.Line
	})
}

// SortStations orders stations by (index, line, point).
func SortStations(pts []Point) {
	sort.SliceStable(pts, func(i, j int) bool {
		return pts[i].Key().Compare(pts[j].Key()) < 0
	})
}

// SortRelations orders relations by source identity, then receiver index,
// line, min and max point.
func SortRelations(rel []Relation) {
	sort.SliceStable(rel, func(i, j int) bool {
		return compareRelations(&rel[i], &rel[j]) < 0
	})
}

func compareRelations(a, b *Relation) int {
	if c := a.SrcKey().Compare(b.SrcKey()); c != 0 {
		return c
	}
	switch {
	case a.RecIndex != b.RecIndex:
		return sign(a.RecIndex - b.RecIndex)
	case a.RecLine != b.RecLine:
		return sign(a.RecLine - b.RecLine)
	case a.RecMin != b.RecMin:
		return sign(a.RecMin - b.RecMin)
	default:
		return sign(a.RecMax - b.RecMax)
	}
}

// FillLocal derives local coordinates from East/North for any table whose
// local coordinates are all zero, as happens with imported geometry.
func (t *Tables) FillLocal(toLocal geom.Affine) {
	fillLocal(t.Src, toLocal)
	fillLocal(t.Rec, toLocal)
}

func fillLocal(pts []Point, toLocal geom.Affine) {
	for i := range pts {
		if pts[i].LocX != 0 || pts[i].LocY != 0 {
			return
		}
	}
	for i := range pts {
		pts[i].LocX, pts[i].LocY = toLocal.Map(pts[i].East, pts[i].North)
	}
}
