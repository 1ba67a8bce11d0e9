package config

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/roll.survey/internal/binning"
	"github.com/banshee-data/roll.survey/internal/fsutil"
	"github.com/banshee-data/roll.survey/internal/survey"
	"github.com/banshee-data/roll.survey/internal/testutil"
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrBool(v bool) *bool          { return &v }

const minimalJSON = `{
  "name": "line",
  "output": {"x": 0, "y": 0, "w": 100, "h": 100},
  "blocks": [{
    "name": "b",
    "templates": [{
      "name": "t",
      "seeds": [
        {"name": "s", "source": true, "origin": [0, 0, 0]},
        {"name": "r", "origin": [50, 0, 0], "grow": [{"count": 3, "increment": [25, 0, 0]}]}
      ]
    }]
  }]
}`

func TestLoadSurveyConfig_Defaults(t *testing.T) {
	cfg, err := LoadSurveyConfig(testutil.WriteFile(t, "line.json", minimalJSON))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetMethod() != survey.MethodCMP {
		t.Errorf("GetMethod() = %v, want cmp", cfg.GetMethod())
	}
	if cfg.GetVelocity() != 2000 {
		t.Errorf("GetVelocity() = %f, want 2000", cfg.GetVelocity())
	}
	if cfg.GetReflectMin() != 0 || cfg.GetReflectMax() != 45 {
		t.Errorf("reflection angles = %f..%f, want 0..45", cfg.GetReflectMin(), cfg.GetReflectMax())
	}
	if cfg.GetMaxFold() != 0 {
		t.Errorf("GetMaxFold() = %d, want 0", cfg.GetMaxFold())
	}
	if cfg.GetUniqueApply() {
		t.Error("GetUniqueApply() = true, want false")
	}
	if cfg.GetUniqueDOffset() != 200 || cfg.GetUniqueDAzimuth() != 180 {
		t.Errorf("unique slots = %f, %f, want 200, 180", cfg.GetUniqueDOffset(), cfg.GetUniqueDAzimuth())
	}
	if cfg.GetHistOffsetStep() != 50 || cfg.GetHistAzimuthStep() != 5 || cfg.GetHistAziOffsetStep() != 100 {
		t.Errorf("histogram steps = %f, %f, %f, want 50, 5, 100",
			cfg.GetHistOffsetStep(), cfg.GetHistAzimuthStep(), cfg.GetHistAziOffsetStep())
	}

	s, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if s.Analysis != survey.DefaultAnalysis() {
		t.Errorf("Analysis = %+v, want the defaults", s.Analysis)
	}
	if s.Grid.BinSize != survey.DefaultBinGrid().BinSize {
		t.Errorf("BinSize = %v, want the default grid", s.Grid.BinSize)
	}
	seeds := s.Blocks[0].Templates[0].Seeds
	if len(seeds) != 2 || !seeds[0].Source || seeds[1].Source {
		t.Fatalf("unexpected seeds: %+v", seeds)
	}
	if got := seeds[1].Grow.Len(); got != 3 {
		t.Errorf("receiver seed expands to %d points, want 3", got)
	}
	if s.ShotCount() != 1 {
		t.Errorf("ShotCount() = %d, want 1", s.ShotCount())
	}
}

func TestLoadSurveyConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"wrong extension", "survey.xml", minimalJSON},
		{"invalid json", "bad.json", `{"name": "x",`},
		{"no blocks", "empty.json", `{"name": "x"}`},
		{"unknown method", "method.json", strings.Replace(minimalJSON, `"name": "line",`, `"name": "line", "method": "kirchhoff",`, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadSurveyConfig(testutil.WriteFile(t, tt.file, tt.body)); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}

	if _, err := LoadSurveyConfig("/nonexistent/path/to/survey.json"); err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestSaveSurveyConfig_RoundTrip(t *testing.T) {
	mem := fsutil.NewMemoryFileSystem()
	if err := mem.WriteFile("/in/line.json", []byte(minimalJSON), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadSurveyConfigFS(mem, "/in/line.json")
	if err != nil {
		t.Fatalf("LoadSurveyConfigFS: %v", err)
	}

	if err := SaveSurveyConfig(mem, "/out/line.json", cfg); err != nil {
		t.Fatalf("SaveSurveyConfig: %v", err)
	}
	got, err := LoadSurveyConfigFS(mem, "/out/line.json")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-saved +loaded):\n%s", diff)
	}

	if err := SaveSurveyConfig(mem, "/out/line.yaml", cfg); err == nil {
		t.Error("Expected extension error, got nil")
	}
	if err := SaveSurveyConfig(mem, "/out/empty.json", &SurveyConfig{}); err == nil {
		t.Error("Expected validation error, got nil")
	}
	if mem.Exists("/out/empty.json") {
		t.Error("invalid config should not be written")
	}
}

func TestLoadSurveyConfig_TooLarge(t *testing.T) {
	body := `{"name": "` + strings.Repeat("x", 1024*1024) + `"}`
	_, err := LoadSurveyConfig(testutil.WriteFile(t, "big.json", body))
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("Expected size error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *SurveyConfig {
		return &SurveyConfig{Blocks: []BlockConfig{{Name: "b"}}}
	}
	tests := []struct {
		name    string
		mutate  func(*SurveyConfig)
		wantErr bool
	}{
		{"minimal", func(*SurveyConfig) {}, false},
		{"plane method", func(c *SurveyConfig) { c.Method = ptrString("plane") }, false},
		{"unknown method", func(c *SurveyConfig) { c.Method = ptrString("migration") }, true},
		{"negative velocity", func(c *SurveyConfig) { c.Velocity = ptrFloat64(-1) }, true},
		{"angles reversed", func(c *SurveyConfig) { c.ReflectMin = ptrFloat64(50) }, true},
		{"negative max fold", func(c *SurveyConfig) { c.MaxFold = ptrInt(-2) }, true},
		{"negative radial", func(c *SurveyConfig) { c.RadialMax = ptrFloat64(-5) }, true},
		{"zero unique slot", func(c *SurveyConfig) { c.UniqueDOffset = ptrFloat64(0) }, true},
		{"unique apply", func(c *SurveyConfig) { c.UniqueApply = ptrBool(true) }, false},
		{"zero offset histogram step", func(c *SurveyConfig) { c.HistOffsetStep = ptrFloat64(0) }, true},
		{"negative azimuth step", func(c *SurveyConfig) { c.HistAzimuthStep = ptrFloat64(-5) }, true},
		{"custom histogram steps", func(c *SurveyConfig) {
			c.HistOffsetStep, c.HistAzimuthStep, c.HistAziOffsetStep = ptrFloat64(25), ptrFloat64(10), ptrFloat64(250)
		}, false},
		{"zero kr step", func(c *SurveyConfig) { c.KrStep = ptrFloat64(0) }, true},
		{"kxy range reversed", func(c *SurveyConfig) { c.KxyMin = ptrFloat64(0.1) }, true},
		{"too many roll steps", func(c *SurveyConfig) {
			c.Blocks[0].Templates = []TemplateConfig{{Name: "t", Roll: make([]StepConfig, 4)}}
		}, true},
		{"unknown seed kind", func(c *SurveyConfig) {
			c.Blocks[0].Templates = []TemplateConfig{{Name: "t", Seeds: []SeedConfig{{Name: "s", Kind: "hexagon"}}}}
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuild_InvalidSurvey(t *testing.T) {
	cfg := &SurveyConfig{
		Name:   "no receivers",
		Output: RectConfig{W: 100, H: 100},
		Blocks: []BlockConfig{{Name: "b", Templates: []TemplateConfig{{
			Name:  "t",
			Seeds: []SeedConfig{{Name: "s", Source: true}},
		}}}},
	}
	_, err := cfg.Build()
	if !errors.Is(err, survey.ErrInvalidSurvey) {
		t.Errorf("Build() error = %v, want ErrInvalidSurvey", err)
	}
}

func TestBuild_SeedKinds(t *testing.T) {
	cfg := &SurveyConfig{
		Name:     "kinds",
		Output:   RectConfig{X: -500, Y: -500, W: 1000, H: 1000},
		Patterns: []PatternConfig{{Name: "p", Seeds: []PatternSeedConfig{{Grow: []StepConfig{{Count: 3, Increment: Vec3{5, 0, 0}}}}}}},
		Plane:    &PlaneConfig{Anchor: Vec3{0, 0, -1000}, Azimuth: 90, Dip: 5},
		Sphere:   &SphereConfig{Origin: Vec3{0, 0, -3000}, Radius: 1500},
		Blocks: []BlockConfig{{
			Name:      "b",
			SrcBorder: &RectConfig{X: -100, Y: -100, W: 200, H: 200},
			Templates: []TemplateConfig{{
				Name: "t",
				Seeds: []SeedConfig{
					{Name: "s", Source: true, Pattern: 1},
					{Name: "c", Kind: "circle", Circle: &CircleConfig{Radius: 100, Spacing: 50}},
					{Name: "sp", Kind: "spiral", Spiral: &SpiralConfig{RadMin: 10, RadMax: 200, RadInc: 50, Spacing: 25}},
					{Name: "w", Kind: "well", Well: &WellConfig{
						Stations: []StationConfig{{MD: 0, Z: 0}, {MD: 1000, Z: -1000}},
						AHD0:     100, DAHD: 100, NAHD: 5,
					}},
				},
			}},
		}},
	}
	s, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	seeds := s.Blocks[0].Templates[0].Seeds
	wantKinds := []survey.SeedKind{survey.RollingGrid, survey.Circle, survey.Spiral, survey.Well}
	for i, k := range wantKinds {
		if seeds[i].Kind != k {
			t.Errorf("seed %d kind = %v, want %v", i, seeds[i].Kind, k)
		}
	}
	if seeds[1].Circle.Radius != 100 || seeds[2].Spiral.RadMax != 200 || seeds[3].Well.NAHD != 5 {
		t.Errorf("seed parameters not carried over: %+v", seeds[1:])
	}
	if p, ok := s.PatternFor(&seeds[0]); !ok || p.ElementCount() != 3 {
		t.Errorf("pattern not resolved: %v, %v", p, ok)
	}
	if s.GlobalPlane.Dip != 5 || s.GlobalSphere.Radius != 1500 {
		t.Errorf("reflectors not carried over: %+v %+v", s.GlobalPlane, s.GlobalSphere)
	}
	if s.Blocks[0].SrcBorder.Hi().X != 100 {
		t.Errorf("SrcBorder = %v", s.Blocks[0].SrcBorder)
	}
}

func TestExampleConfig_BinsLikeFixture(t *testing.T) {
	cfg := MustLoadExampleConfig()
	s, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	tr, err := s.CalcTransforms()
	if err != nil {
		t.Fatalf("CalcTransforms() error: %v", err)
	}
	if err := s.Prepare(tr); err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	out, err := binning.BinFromTemplates(context.Background(), s, tr, binning.Options{Full: true})
	if err != nil {
		t.Fatalf("BinFromTemplates() error: %v", err)
	}
	if out.Nx != 4 || out.Ny != 22 {
		t.Errorf("grid = %d x %d, want 4 x 22", out.Nx, out.Ny)
	}
	if out.Traces() != 48 {
		t.Errorf("Traces() = %d, want 48", out.Traces())
	}
	if out.Ledger == nil || out.Ledger.MaxFold != 8 {
		t.Errorf("expected a ledger of depth 8")
	}
}

func TestBuild_AnalysisSettings(t *testing.T) {
	cfg, err := LoadSurveyConfig(testutil.WriteFile(t, "line.json", minimalJSON))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	cfg.UniqueApply = ptrBool(true)
	cfg.HistOffsetStep = ptrFloat64(25)
	cfg.HistAzimuthStep = ptrFloat64(10)
	cfg.HistAziOffsetStep = ptrFloat64(250)
	cfg.KxyStep = ptrFloat64(0.002)

	s, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if !s.Unique.Apply {
		t.Error("Unique.Apply = false, want true")
	}
	want := survey.DefaultAnalysis()
	want.OffsetStep, want.AzimuthStep, want.AziOffsetStep, want.KxyStep = 25, 10, 250, 0.002
	if s.Analysis != want {
		t.Errorf("Analysis = %+v, want %+v", s.Analysis, want)
	}
}
