// Package surveytest provides small hand-checkable surveys for tests.
package surveytest

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/banshee-data/roll.survey/internal/geom"
	"github.com/banshee-data/roll.survey/internal/survey"
)

// Orthogonal returns a single flat template with 2 source lines of 3 points
// (50 m inline, 300 m crossline) and 2 receiver lines of 4 points (25 m,
// 200 m), binned on 25 x 12.5 m bins over a 100 x 275 m output area.
//
// Sources sit at x in {0, 50, 100}, y in {0, 300}; receivers at x in
// {12.5, 37.5, 62.5, 87.5}, y in {10, 210}. Every midpoint falls strictly
// inside a bin, and the 48 traces give, for each of the bin rows 0, 8, 12
// and 20, folds 2, 4, 4, 2 across bin columns 0..3.
func Orthogonal() *survey.Survey {
	s := survey.New("orthogonal")
	s.Grid.BinSize = r2.Point{X: 25, Y: 12.5}
	s.Grid.BinShift = r2.Point{X: 12.5, Y: 6.25}
	s.Grid.StakeOrigin = r2.Point{X: 1000, Y: 1000}
	s.Grid.StakeSize = r2.Point{X: 25, Y: 10}
	s.Grid.MaxFold = 8
	s.Output = geom.Rect(0, 0, 100, 275)
	s.Offset.Rect = geom.Rect(-1000, -1000, 2000, 2000)

	s.Blocks = []survey.Block{{
		Name: "block-1",
		Templates: []survey.Template{{
			Name: "template-1",
			Roll: survey.MustPad3(),
			Seeds: []survey.Seed{
				{
					Name:   "src",
					Source: true,
					Grow:   survey.MustPad3(survey.Step(2, 0, 300, 0), survey.Step(3, 50, 0, 0)),
				},
				{
					Name:   "rec",
					Origin: r3.Vector{X: 12.5, Y: 10},
					Grow:   survey.MustPad3(survey.Step(2, 0, 200, 0), survey.Step(4, 25, 0, 0)),
				},
			},
		}},
	}}
	return s
}

// Rolled returns the Orthogonal template rolled n times 100 m inline and
// m times 600 m crossline, over an output area that covers the roll.
func Rolled(n, m int) *survey.Survey {
	s := Orthogonal()
	s.Name = "rolled"
	s.Blocks[0].Templates[0].Roll = survey.MustPad3(
		survey.Step(m, 0, 600, 0),
		survey.Step(n, 100, 0, 0),
	)
	s.Output = geom.Rect(0, 0, float64(n)*100, float64(m)*600)
	return s
}

// Overlapped returns the Orthogonal template rolled n times 50 m inline, a
// step shorter than the 100 m source spread, so consecutive roll positions
// shoot from the same source stations.
func Overlapped(n int) *survey.Survey {
	s := Orthogonal()
	s.Name = "overlapped"
	s.Blocks[0].Templates[0].Roll = survey.MustPad3(survey.Step(n, 50, 0, 0))
	s.Output = geom.Rect(0, 0, 100+float64(n)*50, 275)
	return s
}

// SplitLine returns a survey whose single shot sees receiver line 10 in two
// disjoint runs, separated by a receiver on another line: receiver seed "a"
// covers points 0..2 of line 10, seed "b" one point on line 20 and seed "c"
// points 6..8 of line 10 again.
func SplitLine() *survey.Survey {
	s := survey.New("split-line")
	s.Grid.BinSize = r2.Point{X: 10, Y: 10}
	s.Grid.StakeOrigin = r2.Point{}
	s.Grid.StakeSize = r2.Point{X: 10, Y: 10}
	s.Output = geom.Rect(-100, -100, 400, 400)
	s.Offset.Rect = geom.Rect(-1000, -1000, 2000, 2000)

	s.Blocks = []survey.Block{{
		Name: "block-1",
		Templates: []survey.Template{{
			Name: "template-1",
			Roll: survey.MustPad3(),
			Seeds: []survey.Seed{
				{Name: "src", Source: true, Origin: r3.Vector{X: 40, Y: 150}, Grow: survey.MustPad3()},
				{Name: "a", Origin: r3.Vector{X: 0, Y: 100}, Grow: survey.MustPad3(survey.Step(3, 10, 0, 0))},
				{Name: "b", Origin: r3.Vector{X: 40, Y: 200}, Grow: survey.MustPad3()},
				{Name: "c", Origin: r3.Vector{X: 60, Y: 100}, Grow: survey.MustPad3(survey.Step(3, 10, 0, 0))},
			},
		}},
	}}
	return s
}

// MustPrepare computes transforms and seed points, panicking on error.
func MustPrepare(s *survey.Survey) *survey.Transforms {
	tr, err := s.CalcTransforms()
	if err != nil {
		panic(err)
	}
	if err := s.Prepare(tr); err != nil {
		panic(err)
	}
	return tr
}
