package records

import "sort"

// Span is a half open range [Lo, Hi) of relation records.
type Span struct {
	Lo, Hi int
}

// Len is the number of records in the span.
func (s Span) Len() int { return s.Hi - s.Lo }

// PrepareForBinning returns a copy of t with sources and receivers sorted by
// (index, line, point) and relations by source identity, plus the relation
// span of every source in the copy's Src order. t keeps its own order.
func (t *Tables) PrepareForBinning() (*Tables, []Span) {
	c := t.Clone()
	SortStations(c.Src)
	SortStations(c.Rec)
	SortRelations(c.Rel)
	return c, RelationSpans(c.Src, c.Rel)
}

// RelationSpans walks sorted sources and sorted relations once, with a
// marker that only moves forward. Relations whose shot has no source record
// are skipped; a source without relations gets an empty span. When several
// shots share a station, the first of them owns every relation of that
// station and the others get an empty span, so each trace is binned once.
func RelationSpans(src []Point, rel []Relation) []Span {
	spans := make([]Span, len(src))
	marker := 0
	for i := range src {
		k := src[i].Key()
		if i > 0 && src[i-1].Key() == k {
			spans[i] = Span{Lo: marker, Hi: marker}
			continue
		}
		for marker < len(rel) && rel[marker].SrcKey().Compare(k) < 0 {
			marker++
		}
		lo := marker
		for marker < len(rel) && rel[marker].SrcKey() == k {
			marker++
		}
		spans[i] = Span{Lo: lo, Hi: marker}
	}
	return spans
}

// SelectReceivers appends to dst the receivers covered by rels, one
// relation at a time and in relation order. Rec must be sorted by (index,
// line, point).
func SelectReceivers(rec []Point, rels []Relation, dst []Point) []Point {
	for i := range rels {
		r := &rels[i]
		lo := sort.Search(len(rec), func(j int) bool {
			return rec[j].Key().Compare(Key{Index: r.RecIndex, Line: r.RecLine, Point: r.RecMin}) >= 0
		})
		for j := lo; j < len(rec); j++ {
			p := &rec[j]
			if p.Index != r.RecIndex || p.Line != r.RecLine || p.Point > r.RecMax {
				break
			}
			dst = append(dst, *p)
		}
	}
	return dst
}
