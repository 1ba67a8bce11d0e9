package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/banshee-data/roll.survey/internal/fsutil"
	"github.com/banshee-data/roll.survey/internal/geom"
	"github.com/banshee-data/roll.survey/internal/survey"
)

// ExampleConfigPath is the path of the example survey shipped with the repo.
const ExampleConfigPath = "config/orthogonal.json"

// Vec2 is an (x, y) pair, written as a two element JSON array.
type Vec2 [2]float64

// Vec3 is an (x, y, z) triple, written as a three element JSON array.
type Vec3 [3]float64

func (v Vec2) point() r2.Point   { return r2.Point{X: v[0], Y: v[1]} }
func (v Vec3) vector() r3.Vector { return r3.Vector{X: v[0], Y: v[1], Z: v[2]} }

// RectConfig is an axis aligned rectangle given by corner and size.
type RectConfig struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (r *RectConfig) rect() r2.Rect {
	if r == nil {
		return r2.Rect{}
	}
	return geom.Rect(r.X, r.Y, r.W, r.H)
}

// StepConfig is one grow or roll step.
type StepConfig struct {
	Count     int  `json:"count"`
	Increment Vec3 `json:"increment"`
}

// GridConfig places the bin grid. Omitted vectors take the defaults of
// survey.DefaultBinGrid.
type GridConfig struct {
	Origin      Vec2    `json:"origin"`
	Azimuth     float64 `json:"azimuth,omitempty"`
	Scale       *Vec2   `json:"scale,omitempty"`
	BinSize     *Vec2   `json:"bin_size,omitempty"`
	BinShift    *Vec2   `json:"bin_shift,omitempty"`
	StakeOrigin *Vec2   `json:"stake_origin,omitempty"`
	StakeSize   *Vec2   `json:"stake_size,omitempty"`
}

// CircleConfig parameterises a circle seed.
type CircleConfig struct {
	Radius   float64 `json:"radius"`
	Azimuth0 float64 `json:"azimuth0,omitempty"`
	Spacing  float64 `json:"spacing"`
}

// SpiralConfig parameterises an Archimedean spiral seed.
type SpiralConfig struct {
	RadMin   float64 `json:"rad_min"`
	RadMax   float64 `json:"rad_max"`
	RadInc   float64 `json:"rad_inc"`
	Azimuth0 float64 `json:"azimuth0,omitempty"`
	Spacing  float64 `json:"spacing"`
}

// StationConfig is one survey station of a well trajectory.
type StationConfig struct {
	MD    float64 `json:"md"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
	Z     float64 `json:"z"`
}

// WellConfig places receivers along a well trajectory.
type WellConfig struct {
	Name     string          `json:"name,omitempty"`
	Stations []StationConfig `json:"stations"`
	AHD0     float64         `json:"ahd0"`
	DAHD     float64         `json:"dahd"`
	NAHD     int             `json:"nahd"`
}

// SeedConfig is one source or receiver seed.
type SeedConfig struct {
	Name    string        `json:"name"`
	Kind    string        `json:"kind,omitempty"` // rolling (default), fixed, circle, spiral, well
	Source  bool          `json:"source,omitempty"`
	Origin  Vec3          `json:"origin"`
	Pattern int           `json:"pattern,omitempty"` // 1-based, 0 for none
	Azimuth bool          `json:"azimuth,omitempty"`
	Grow    []StepConfig  `json:"grow,omitempty"`
	Circle  *CircleConfig `json:"circle,omitempty"`
	Spiral  *SpiralConfig `json:"spiral,omitempty"`
	Well    *WellConfig   `json:"well,omitempty"`
}

// TemplateConfig is a template with its roll steps.
type TemplateConfig struct {
	Name  string       `json:"name"`
	Roll  []StepConfig `json:"roll,omitempty"`
	Seeds []SeedConfig `json:"seeds"`
}

// BlockConfig is a block of templates with optional borders.
type BlockConfig struct {
	Name      string           `json:"name"`
	SrcBorder *RectConfig      `json:"src_border,omitempty"`
	RecBorder *RectConfig      `json:"rec_border,omitempty"`
	Templates []TemplateConfig `json:"templates"`
}

// PatternSeedConfig is one element group of a pattern.
type PatternSeedConfig struct {
	Origin Vec3         `json:"origin"`
	Grow   []StepConfig `json:"grow,omitempty"`
}

// PatternConfig is a source or receiver array.
type PatternConfig struct {
	Name  string              `json:"name"`
	Seeds []PatternSeedConfig `json:"seeds"`
}

// PlaneConfig is the global dipping reflector.
type PlaneConfig struct {
	Anchor  Vec3    `json:"anchor"`
	Azimuth float64 `json:"azimuth"`
	Dip     float64 `json:"dip"`
}

// SphereConfig is the global spherical reflector.
type SphereConfig struct {
	Origin Vec3    `json:"origin"`
	Radius float64 `json:"radius"`
}

// SurveyConfig is the JSON form of a survey. Scalar analysis parameters
// are optional; the Get* methods return their defaults.
type SurveyConfig struct {
	Name     string          `json:"name"`
	Grid     GridConfig      `json:"grid"`
	Output   RectConfig      `json:"output"`
	Patterns []PatternConfig `json:"patterns,omitempty"`
	Blocks   []BlockConfig   `json:"blocks"`
	Plane    *PlaneConfig    `json:"plane,omitempty"`
	Sphere   *SphereConfig   `json:"sphere,omitempty"`

	// Binning params
	Method     *string     `json:"method,omitempty"`   // cmp, plane, sphere
	Velocity   *float64    `json:"velocity,omitempty"` // m/s
	ReflectMin *float64    `json:"reflect_min,omitempty"`
	ReflectMax *float64    `json:"reflect_max,omitempty"`
	MaxFold    *int        `json:"max_fold,omitempty"` // 0 derives it from a basic run
	OffsetRect *RectConfig `json:"offset_rect,omitempty"`
	RadialMin  *float64    `json:"radial_min,omitempty"`
	RadialMax  *float64    `json:"radial_max,omitempty"`

	// Unique offset params
	UniqueApply    *bool    `json:"unique_apply,omitempty"`
	UniqueDOffset  *float64 `json:"unique_d_offset,omitempty"`
	UniqueDAzimuth *float64 `json:"unique_d_azimuth,omitempty"`

	// Histogram widths
	HistOffsetStep    *float64 `json:"hist_offset_step,omitempty"`     // m
	HistAzimuthStep   *float64 `json:"hist_azimuth_step,omitempty"`    // deg
	HistAziOffsetStep *float64 `json:"hist_azi_offset_step,omitempty"` // m

	// Stack response wavenumbers, 1/m
	KrMax   *float64 `json:"kr_max,omitempty"`
	KrStep  *float64 `json:"kr_step,omitempty"`
	KxyMin  *float64 `json:"kxy_min,omitempty"`
	KxyMax  *float64 `json:"kxy_max,omitempty"`
	KxyStep *float64 `json:"kxy_step,omitempty"`
}

// LoadSurveyConfig loads a SurveyConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadSurveyConfig(path string) (*SurveyConfig, error) {
	return LoadSurveyConfigFS(fsutil.OSFileSystem{}, path)
}

// LoadSurveyConfigFS is LoadSurveyConfig reading from fsys.
func LoadSurveyConfigFS(fsys fsutil.FileSystem, path string) (*SurveyConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &SurveyConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

const maxFileSize = 1 * 1024 * 1024 // 1MB

// SaveSurveyConfig validates cfg and writes it to path as indented JSON.
func SaveSurveyConfig(fsys fsutil.FileSystem, path string, cfg *SurveyConfig) error {
	if ext := filepath.Ext(path); ext != ".json" {
		return fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := fsys.WriteFile(filepath.Clean(path), append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MustLoadExampleConfig loads ExampleConfigPath from the current directory
// or one of its parents. It panics if the file cannot be loaded and is
// intended for tests.
func MustLoadExampleConfig() *SurveyConfig {
	candidates := []string{
		ExampleConfigPath,
		"../../" + ExampleConfigPath, // from internal/config/ or cmd/rollsurvey/
	}
	for _, path := range candidates {
		if cfg, err := LoadSurveyConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + ExampleConfigPath + " - run tests from repository root")
}

// Validate checks values that can be judged without building the survey.
func (c *SurveyConfig) Validate() error {
	if len(c.Blocks) == 0 {
		return fmt.Errorf("at least one block is required")
	}
	if c.Method != nil {
		if _, err := survey.ParseBinningMethod(*c.Method); err != nil {
			return err
		}
	}
	if c.Velocity != nil && *c.Velocity < 0 {
		return fmt.Errorf("velocity must be non-negative, got %f", *c.Velocity)
	}
	if c.GetReflectMin() > c.GetReflectMax() {
		return fmt.Errorf("reflect_min %f exceeds reflect_max %f", c.GetReflectMin(), c.GetReflectMax())
	}
	if c.MaxFold != nil && *c.MaxFold < 0 {
		return fmt.Errorf("max_fold must be non-negative, got %d", *c.MaxFold)
	}
	if c.GetRadialMin() < 0 || c.GetRadialMax() < 0 {
		return fmt.Errorf("radial offsets must be non-negative")
	}
	if c.GetUniqueDOffset() <= 0 || c.GetUniqueDAzimuth() <= 0 {
		return fmt.Errorf("unique_d_offset and unique_d_azimuth must be positive")
	}
	if c.GetHistOffsetStep() <= 0 || c.GetHistAzimuthStep() <= 0 || c.GetHistAziOffsetStep() <= 0 {
		return fmt.Errorf("histogram steps must be positive")
	}
	if c.GetKrMax() <= 0 || c.GetKrStep() <= 0 {
		return fmt.Errorf("kr_max and kr_step must be positive")
	}
	if c.GetKxyStep() <= 0 || c.GetKxyMax() <= c.GetKxyMin() {
		return fmt.Errorf("kxy range %f..%f step %f is invalid", c.GetKxyMin(), c.GetKxyMax(), c.GetKxyStep())
	}
	for _, b := range c.Blocks {
		for _, t := range b.Templates {
			if len(t.Roll) > 3 {
				return fmt.Errorf("template %q has %d roll steps (max 3)", t.Name, len(t.Roll))
			}
			for _, sd := range t.Seeds {
				if _, err := survey.ParseSeedKind(sd.Kind); err != nil {
					return fmt.Errorf("template %q: %w", t.Name, err)
				}
				if len(sd.Grow) > 3 {
					return fmt.Errorf("seed %q has %d grow steps (max 3)", sd.Name, len(sd.Grow))
				}
			}
		}
	}
	return nil
}

// GetMethod returns the binning method or the default, cmp.
func (c *SurveyConfig) GetMethod() survey.BinningMethod {
	if c.Method == nil {
		return survey.MethodCMP
	}
	m, err := survey.ParseBinningMethod(*c.Method)
	if err != nil {
		return survey.MethodCMP
	}
	return m
}

// GetVelocity returns the interval velocity or the default.
func (c *SurveyConfig) GetVelocity() float64 {
	if c.Velocity == nil {
		return 2000 // default
	}
	return *c.Velocity
}

// GetReflectMin returns the minimum angle of incidence or the default.
func (c *SurveyConfig) GetReflectMin() float64 {
	if c.ReflectMin == nil {
		return 0 // default
	}
	return *c.ReflectMin
}

// GetReflectMax returns the maximum angle of incidence or the default.
func (c *SurveyConfig) GetReflectMax() float64 {
	if c.ReflectMax == nil {
		return 45 // default
	}
	return *c.ReflectMax
}

// GetMaxFold returns the ledger depth. Zero means derive it.
func (c *SurveyConfig) GetMaxFold() int {
	if c.MaxFold == nil {
		return 0
	}
	return *c.MaxFold
}

// GetRadialMin returns the minimum radial offset or the default.
func (c *SurveyConfig) GetRadialMin() float64 {
	if c.RadialMin == nil {
		return 0
	}
	return *c.RadialMin
}

// GetRadialMax returns the maximum radial offset. Zero disables the test.
func (c *SurveyConfig) GetRadialMax() float64 {
	if c.RadialMax == nil {
		return 0
	}
	return *c.RadialMax
}

// GetUniqueApply returns the unique_apply value or the default.
func (c *SurveyConfig) GetUniqueApply() bool {
	if c.UniqueApply == nil {
		return false
	}
	return *c.UniqueApply
}

// GetUniqueDOffset returns the unique offset slot width or the default.
func (c *SurveyConfig) GetUniqueDOffset() float64 {
	if c.UniqueDOffset == nil {
		return 200 // default
	}
	return *c.UniqueDOffset
}

// GetUniqueDAzimuth returns the unique azimuth slot width or the default.
func (c *SurveyConfig) GetUniqueDAzimuth() float64 {
	if c.UniqueDAzimuth == nil {
		return 180 // default
	}
	return *c.UniqueDAzimuth
}

// GetHistOffsetStep returns the offset histogram bin width or the default.
func (c *SurveyConfig) GetHistOffsetStep() float64 {
	if c.HistOffsetStep == nil {
		return 50 // default
	}
	return *c.HistOffsetStep
}

// GetHistAzimuthStep returns the azimuth bin width of the azimuth/offset
// histogram or the default.
func (c *SurveyConfig) GetHistAzimuthStep() float64 {
	if c.HistAzimuthStep == nil {
		return 5 // default
	}
	return *c.HistAzimuthStep
}

// GetHistAziOffsetStep returns the offset bin width of the azimuth/offset
// histogram or the default.
func (c *SurveyConfig) GetHistAziOffsetStep() float64 {
	if c.HistAziOffsetStep == nil {
		return 100 // default
	}
	return *c.HistAziOffsetStep
}

func (c *SurveyConfig) GetKrMax() float64   { return orDefault(c.KrMax, 0.05) }
func (c *SurveyConfig) GetKrStep() float64  { return orDefault(c.KrStep, 0.0005) }
func (c *SurveyConfig) GetKxyMin() float64  { return orDefault(c.KxyMin, -0.05) }
func (c *SurveyConfig) GetKxyMax() float64  { return orDefault(c.KxyMax, 0.05) }
func (c *SurveyConfig) GetKxyStep() float64 { return orDefault(c.KxyStep, 0.001) }

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// Build converts the configuration into a validated survey.
func (c *SurveyConfig) Build() (*survey.Survey, error) {
	s := survey.New(c.Name)
	c.buildGrid(&s.Grid)
	s.Grid.MaxFold = c.GetMaxFold()
	s.Output = c.Output.rect()
	s.Offset = survey.OffsetLimits{Rect: c.OffsetRect.rect(), RadMin: c.GetRadialMin(), RadMax: c.GetRadialMax()}
	s.Angles = survey.Angles{ReflectMin: c.GetReflectMin(), ReflectMax: c.GetReflectMax()}
	s.Binning = survey.Binning{Method: c.GetMethod(), Velocity: c.GetVelocity()}
	s.Unique = survey.Unique{Apply: c.GetUniqueApply(), DOffset: c.GetUniqueDOffset(), DAzimuth: c.GetUniqueDAzimuth()}
	s.Analysis = survey.Analysis{
		OffsetStep:    c.GetHistOffsetStep(),
		AzimuthStep:   c.GetHistAzimuthStep(),
		AziOffsetStep: c.GetHistAziOffsetStep(),
		KrMax:         c.GetKrMax(),
		KrStep:        c.GetKrStep(),
		KxyMin:        c.GetKxyMin(),
		KxyMax:        c.GetKxyMax(),
		KxyStep:       c.GetKxyStep(),
	}
	if c.Plane != nil {
		s.GlobalPlane = geom.NewPlane(c.Plane.Anchor.vector(), c.Plane.Azimuth, c.Plane.Dip)
	}
	if c.Sphere != nil {
		s.GlobalSphere = geom.Sphere{Origin: c.Sphere.Origin.vector(), Radius: c.Sphere.Radius}
	}

	for _, pc := range c.Patterns {
		p := survey.Pattern{Name: pc.Name}
		for _, ps := range pc.Seeds {
			g, err := grow(ps.Grow)
			if err != nil {
				return nil, fmt.Errorf("pattern %q: %w", pc.Name, err)
			}
			p.Seeds = append(p.Seeds, survey.PatternSeed{Origin: ps.Origin.vector(), Grow: g})
		}
		s.Patterns = append(s.Patterns, p)
	}

	for _, bc := range c.Blocks {
		b := survey.Block{Name: bc.Name, SrcBorder: bc.SrcBorder.rect(), RecBorder: bc.RecBorder.rect()}
		for _, tc := range bc.Templates {
			t, err := buildTemplate(tc)
			if err != nil {
				return nil, fmt.Errorf("block %q: %w", bc.Name, err)
			}
			b.Templates = append(b.Templates, t)
		}
		s.Blocks = append(s.Blocks, b)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *SurveyConfig) buildGrid(g *survey.BinGrid) {
	gc := c.Grid
	g.Origin = gc.Origin.point()
	g.Azimuth = gc.Azimuth
	set := func(dst *r2.Point, v *Vec2) {
		if v != nil {
			*dst = v.point()
		}
	}
	set(&g.Scale, gc.Scale)
	set(&g.BinSize, gc.BinSize)
	set(&g.BinShift, gc.BinShift)
	set(&g.StakeOrigin, gc.StakeOrigin)
	set(&g.StakeSize, gc.StakeSize)
}

func buildTemplate(tc TemplateConfig) (survey.Template, error) {
	roll, err := grow(tc.Roll)
	if err != nil {
		return survey.Template{}, fmt.Errorf("template %q roll: %w", tc.Name, err)
	}
	t := survey.Template{Name: tc.Name, Roll: roll}
	for _, sc := range tc.Seeds {
		seed, err := buildSeed(sc)
		if err != nil {
			return survey.Template{}, fmt.Errorf("template %q: %w", tc.Name, err)
		}
		t.Seeds = append(t.Seeds, seed)
	}
	return t, nil
}

func buildSeed(sc SeedConfig) (survey.Seed, error) {
	kind, err := survey.ParseSeedKind(sc.Kind)
	if err != nil {
		return survey.Seed{}, err
	}
	g, err := grow(sc.Grow)
	if err != nil {
		return survey.Seed{}, fmt.Errorf("seed %q: %w", sc.Name, err)
	}
	seed := survey.Seed{
		Name:    sc.Name,
		Kind:    kind,
		Source:  sc.Source,
		Origin:  sc.Origin.vector(),
		Pattern: sc.Pattern,
		Azimuth: sc.Azimuth,
		Grow:    g,
		Circle:  survey.DefaultCircle(),
		Spiral:  survey.DefaultSpiral(),
		Well:    survey.DefaultWell(),
	}
	if cc := sc.Circle; cc != nil {
		seed.Circle = survey.CircleParams{Radius: cc.Radius, Azimuth0: cc.Azimuth0, Spacing: cc.Spacing}
	}
	if sp := sc.Spiral; sp != nil {
		seed.Spiral = survey.SpiralParams{RadMin: sp.RadMin, RadMax: sp.RadMax, RadInc: sp.RadInc, Azimuth0: sp.Azimuth0, Spacing: sp.Spacing}
	}
	if wc := sc.Well; wc != nil {
		w := survey.WellParams{Name: wc.Name, AHD0: wc.AHD0, DAHD: wc.DAHD, NAHD: wc.NAHD}
		for _, st := range wc.Stations {
			w.Stations = append(w.Stations, survey.Station{MD: st.MD, East: st.East, North: st.North, Z: st.Z})
		}
		seed.Well = w
	}
	return seed, nil
}

func grow(steps []StepConfig) (survey.Grow, error) {
	gs := make([]survey.GrowStep, len(steps))
	for i, st := range steps {
		gs[i] = survey.GrowStep{Count: st.Count, Increment: st.Increment.vector()}
	}
	return survey.Pad3(gs...)
}
