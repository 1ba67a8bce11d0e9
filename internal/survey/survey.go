// Package survey holds the survey configuration tree (survey, block,
// template, seed), its grow and roll expansion and the coordinate transforms
// derived from the bin grid.
package survey

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang/geo/r2"

	"github.com/banshee-data/roll.survey/internal/geom"
)

// ErrInvalidSurvey marks configuration errors found before a run starts.
var ErrInvalidSurvey = errors.New("invalid survey")

// BinningMethod selects the reflection model used to place midpoints.
type BinningMethod int

const (
	MethodCMP BinningMethod = iota
	MethodPlane
	MethodSphere
)

var methodNames = [...]string{"cmp", "plane", "sphere"}

func (m BinningMethod) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return fmt.Sprintf("BinningMethod(%d)", int(m))
	}
	return methodNames[m]
}

// ParseBinningMethod accepts "cmp", "plane" or "sphere".
func ParseBinningMethod(s string) (BinningMethod, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return MethodCMP, nil
	}
	for i, n := range methodNames {
		if n == name {
			return BinningMethod(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown binning method %q", ErrInvalidSurvey, s)
}

// BinGrid holds the local grid placement, bin size and line/stake numbering.
type BinGrid struct {
	Origin      r2.Point // global position of the local origin
	Azimuth     float64  // rotation of the local grid, degrees
	Scale       r2.Point // local to global scale factors
	BinSize     r2.Point
	BinShift    r2.Point // display shift of stake numbers, usually half a bin
	StakeOrigin r2.Point // (stake, line) numbers at the local origin
	StakeSize   r2.Point // (stake, line) intervals
	MaxFold     int      // trace slots per bin in the analysis ledger; 0 derives it
}

// DefaultBinGrid is a unit-scale 25 m grid numbered from (1000, 1000).
func DefaultBinGrid() BinGrid {
	return BinGrid{
		Scale:       r2.Point{X: 1, Y: 1},
		BinSize:     r2.Point{X: 25, Y: 25},
		BinShift:    r2.Point{X: 12.5, Y: 12.5},
		StakeOrigin: r2.Point{X: 1000, Y: 1000},
		StakeSize:   r2.Point{X: 25, Y: 25},
	}
}

// OffsetLimits restricts the traces that are binned. Rect bounds the
// (inline, crossline) offset vector; a RadMax of zero disables the radial
// test.
type OffsetLimits struct {
	Rect   r2.Rect
	RadMin float64
	RadMax float64
}

// Angles limits the angle of incidence for plane and sphere reflectors.
type Angles struct {
	ReflectMin float64 // degrees
	ReflectMax float64 // degrees
}

// Binning holds the reflection model and interval velocity.
type Binning struct {
	Method   BinningMethod
	Velocity float64 // m/s
}

// Unique configures unique offset slotting.
type Unique struct {
	Apply    bool
	DOffset  float64
	DAzimuth float64
}

// Analysis holds the bin widths of the histograms and the wavenumber axes
// of the stack responses.
type Analysis struct {
	OffsetStep    float64 // m, offset histogram
	AzimuthStep   float64 // deg, azimuth/offset histogram
	AziOffsetStep float64 // m, azimuth/offset histogram

	KrMax, KrStep           float64 // 1/m, radial stack from zero
	KxyMin, KxyMax, KxyStep float64 // 1/m, Kx-Ky stack on both axes
}

// DefaultAnalysis returns 50 m offset bins, 5 deg by 100 m azimuth/offset
// bins, a 0..50 /km radial axis and a -50..50 /km Kx-Ky axis.
func DefaultAnalysis() Analysis {
	return Analysis{
		OffsetStep:    50,
		AzimuthStep:   5,
		AziOffsetStep: 100,
		KrMax:         0.05,
		KrStep:        0.0005,
		KxyMin:        -0.05,
		KxyMax:        0.05,
		KxyStep:       0.001,
	}
}

// Survey is the root of the configuration tree.
type Survey struct {
	Name     string
	Blocks   []Block
	Patterns []Pattern

	Grid    BinGrid
	Output  r2.Rect // local area that is binned
	Offset  OffsetLimits
	Angles  Angles
	Binning Binning
	Unique   Unique
	Analysis Analysis

	GlobalPlane  geom.Plane
	GlobalSphere geom.Sphere
}

// New returns an empty survey with default analysis parameters.
func New(name string) *Survey {
	return &Survey{
		Name:         name,
		Grid:         DefaultBinGrid(),
		Angles:       Angles{ReflectMin: 0, ReflectMax: 45},
		Binning:      Binning{Method: MethodCMP, Velocity: 2000},
		Unique:       Unique{DOffset: 200, DAzimuth: 180},
		Analysis:     DefaultAnalysis(),
		GlobalPlane:  geom.DefaultPlane(),
		GlobalSphere: geom.DefaultSphere(),
	}
}

// Validate runs the integrity checks that must pass before any run.
func (s *Survey) Validate() error {
	if len(s.Blocks) == 0 {
		return fmt.Errorf("%w: a survey needs at least one block", ErrInvalidSurvey)
	}
	for i := range s.Blocks {
		if err := s.Blocks[i].Validate(); err != nil {
			return err
		}
	}
	for bi := range s.Blocks {
		for ti := range s.Blocks[bi].Templates {
			t := &s.Blocks[bi].Templates[ti]
			for si := range t.Seeds {
				if err := s.validateSeed(&t.Seeds[si]); err != nil {
					return fmt.Errorf("template %q: %w", t.Name, err)
				}
			}
		}
	}

	g := s.Grid
	if g.BinSize.X <= 0 || g.BinSize.Y <= 0 {
		return fmt.Errorf("%w: bin size must be positive, got %v x %v", ErrInvalidSurvey, g.BinSize.X, g.BinSize.Y)
	}
	if g.Scale.X == 0 || g.Scale.Y == 0 {
		return fmt.Errorf("%w: grid scale must be non-zero", ErrInvalidSurvey)
	}
	if g.StakeSize.X == 0 || g.StakeSize.Y == 0 {
		return fmt.Errorf("%w: stake and line intervals must be non-zero", ErrInvalidSurvey)
	}
	if g.MaxFold < 0 {
		return fmt.Errorf("%w: max fold must not be negative", ErrInvalidSurvey)
	}
	if !geom.IsSet(s.Output) {
		return fmt.Errorf("%w: output area must have non-zero width and height", ErrInvalidSurvey)
	}
	if s.Angles.ReflectMin > s.Angles.ReflectMax {
		return fmt.Errorf("%w: reflection angle min %v exceeds max %v", ErrInvalidSurvey, s.Angles.ReflectMin, s.Angles.ReflectMax)
	}
	if s.Binning.Method < MethodCMP || s.Binning.Method > MethodSphere {
		return fmt.Errorf("%w: unsupported binning method %v", ErrInvalidSurvey, s.Binning.Method)
	}
	return s.Analysis.validate()
}

func (a Analysis) validate() error {
	if a.OffsetStep <= 0 || a.AzimuthStep <= 0 || a.AziOffsetStep <= 0 {
		return fmt.Errorf("%w: histogram bin widths must be positive", ErrInvalidSurvey)
	}
	if a.KrMax <= 0 || a.KrStep <= 0 || a.KxyStep <= 0 || a.KxyMax <= a.KxyMin {
		return fmt.Errorf("%w: wavenumber ranges must be increasing with positive steps", ErrInvalidSurvey)
	}
	return nil
}

func (s *Survey) validateSeed(seed *Seed) error {
	switch seed.Kind {
	case RollingGrid, FixedGrid:
		if err := seed.Grow.Validate(); err != nil {
			return fmt.Errorf("seed %q: %w", seed.Name, err)
		}
	case Well:
		if err := seed.Well.Validate(); err != nil {
			return fmt.Errorf("seed %q: %w", seed.Name, err)
		}
	case Circle, Spiral:
	default:
		return fmt.Errorf("%w: seed %q has unknown kind %d", ErrInvalidSurvey, seed.Name, int(seed.Kind))
	}
	if seed.Pattern < NoPattern || seed.Pattern > len(s.Patterns) {
		return fmt.Errorf("%w: seed %q refers to pattern %d of %d", ErrInvalidSurvey, seed.Name, seed.Pattern, len(s.Patterns))
	}
	return nil
}

// PatternFor resolves a seed's pattern reference in the survey registry.
func (s *Survey) PatternFor(seed *Seed) (*Pattern, bool) {
	if seed.Pattern <= NoPattern || seed.Pattern > len(s.Patterns) {
		return nil, false
	}
	return &s.Patterns[seed.Pattern-1], true
}

// SeedPatterns returns the distinct patterns referenced by the survey's
// seeds, in the order they are first referenced.
func (s *Survey) SeedPatterns() []*Pattern {
	var out []*Pattern
	seen := make(map[int]bool)
	for i := range s.Blocks {
		for j := range s.Blocks[i].Templates {
			seeds := s.Blocks[i].Templates[j].Seeds
			for k := range seeds {
				p, ok := s.PatternFor(&seeds[k])
				if !ok || seen[seeds[k].Pattern] {
					continue
				}
				seen[seeds[k].Pattern] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// ShotCount is the number of shots in the survey, before border clipping.
func (s *Survey) ShotCount() int {
	n := 0
	for i := range s.Blocks {
		n += s.Blocks[i].ShotCount()
	}
	return n
}

// Prepare computes every seed's point array. Call it after CalcTransforms.
func (s *Survey) Prepare(tr *Transforms) error {
	for bi := range s.Blocks {
		for ti := range s.Blocks[bi].Templates {
			t := &s.Blocks[bi].Templates[ti]
			for si := range t.Seeds {
				if err := t.Seeds[si].Prepare(tr.ToLocal); err != nil {
					return fmt.Errorf("block %q template %q: %w", s.Blocks[bi].Name, t.Name, err)
				}
			}
		}
	}
	return nil
}

// BoundingRect unions the extents of all blocks.
func (s *Survey) BoundingRect() Extent {
	ext := Extent{Src: r2.EmptyRect(), Rec: r2.EmptyRect(), Cmp: r2.EmptyRect()}
	for i := range s.Blocks {
		e := s.Blocks[i].BoundingRect()
		ext.Src = ext.Src.Union(e.Src)
		ext.Rec = ext.Rec.Union(e.Rec)
		ext.Cmp = ext.Cmp.Union(e.Cmp)
	}
	return ext
}
