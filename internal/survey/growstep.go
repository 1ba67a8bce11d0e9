package survey

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// GrowStep is one dimension of repetition: Count copies spaced by Increment.
// It is used both to grow a seed into points and to roll a template.
type GrowStep struct {
	Count     int
	Increment r3.Vector
}

// Step is shorthand for a GrowStep literal.
func Step(count int, dx, dy, dz float64) GrowStep {
	return GrowStep{Count: count, Increment: r3.Vector{X: dx, Y: dy, Z: dz}}
}

// identityStep repeats once and does not move.
var identityStep = GrowStep{Count: 1}

// Grow is a fixed three dimensional grow structure. Dimension 0 is the
// outermost loop and dimension 2 the innermost.
type Grow [3]GrowStep

// Pad3 turns up to three steps into a Grow. Missing dimensions are inserted
// at the front as identity steps, so a single step becomes the innermost
// dimension.
func Pad3(steps ...GrowStep) (Grow, error) {
	var g Grow
	if len(steps) > len(g) {
		return g, fmt.Errorf("%w: %d grow steps, at most 3 allowed", ErrInvalidSurvey, len(steps))
	}
	pad := len(g) - len(steps)
	for i := 0; i < pad; i++ {
		g[i] = identityStep
	}
	copy(g[pad:], steps)
	return g, nil
}

// MustPad3 is Pad3 for literal fixtures; it panics on more than 3 steps.
func MustPad3(steps ...GrowStep) Grow {
	g, err := Pad3(steps...)
	if err != nil {
		panic(err)
	}
	return g
}

// Normalize replaces zero-valued dimensions (Count 0 and no increment) with
// identity steps. It lets partially filled configurations behave as padded.
func (g Grow) Normalize() Grow {
	for i := range g {
		if g[i].Count == 0 && g[i].Increment == (r3.Vector{}) {
			g[i] = identityStep
		}
	}
	return g
}

// Validate rejects dimensions with a count below 1.
func (g Grow) Validate() error {
	for i, s := range g {
		if s.Count < 1 {
			return fmt.Errorf("%w: grow step %d has count %d", ErrInvalidSurvey, i, s.Count)
		}
	}
	return nil
}

// Len is the number of positions generated, count0*count1*count2.
func (g Grow) Len() int {
	n := 1
	for _, s := range g {
		if s.Count < 1 {
			return 0
		}
		n *= s.Count
	}
	return n
}

// Offset returns i*inc0 + j*inc1 + k*inc2.
func (g Grow) Offset(i, j, k int) r3.Vector {
	return g[0].Increment.Mul(float64(i)).
		Add(g[1].Increment.Mul(float64(j))).
		Add(g[2].Increment.Mul(float64(k)))
}

// Extent is the offset of the last position, sum of (count-1)*inc.
func (g Grow) Extent() r3.Vector {
	var v r3.Vector
	for _, s := range g {
		if s.Count > 1 {
			v = v.Add(s.Increment.Mul(float64(s.Count - 1)))
		}
	}
	return v
}

// Expand returns origin+Offset(i,j,k) for every position in nested order.
func (g Grow) Expand(origin r3.Vector) []r3.Vector {
	pts := make([]r3.Vector, 0, g.Len())
	it := g.Iter()
	for it.Next() {
		pts = append(pts, origin.Add(it.Offset()))
	}
	return pts
}

// Iter returns a Cartesian iterator over g.
func (g Grow) Iter() *Cartesian {
	return &Cartesian{grow: g}
}

// Cartesian walks the positions of a Grow in nested order, dimension 0
// outermost. Offsets are computed from the indices rather than accumulated.
//
//	it := g.Iter()
//	for it.Next() {
//		p := origin.Add(it.Offset())
//	}
type Cartesian struct {
	grow    Grow
	idx     [3]int
	started bool
	done    bool
}

// Next advances to the next position and reports whether there is one.
func (c *Cartesian) Next() bool {
	if c.done {
		return false
	}
	if !c.started {
		c.started = true
		if c.grow.Len() == 0 {
			c.done = true
			return false
		}
		return true
	}
	for d := len(c.idx) - 1; d >= 0; d-- {
		c.idx[d]++
		if c.idx[d] < c.grow[d].Count {
			return true
		}
		c.idx[d] = 0
	}
	c.done = true
	return false
}

// Index returns the current (i, j, k).
func (c *Cartesian) Index() (i, j, k int) {
	return c.idx[0], c.idx[1], c.idx[2]
}

// Offset returns the displacement of the current position.
func (c *Cartesian) Offset() r3.Vector {
	return c.grow.Offset(c.idx[0], c.idx[1], c.idx[2])
}
