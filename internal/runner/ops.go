// Package runner is the control surface of the survey engine. It exposes
// geometry generation and the two binning runs both as plain blocking calls
// and through a Runner that executes one run at a time in the background,
// reports progress and messages, and can be stopped.
package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/roll.survey/internal/analysis"
	"github.com/banshee-data/roll.survey/internal/binning"
	"github.com/banshee-data/roll.survey/internal/monitoring"
	"github.com/banshee-data/roll.survey/internal/progress"
	"github.com/banshee-data/roll.survey/internal/records"
	"github.com/banshee-data/roll.survey/internal/survey"
)

var logf = monitoring.Tagged("runner")

// Mode selects the run.
type Mode string

const (
	ModeGeometry     Mode = "geometry"
	ModeBinTemplates Mode = "bin-templates"
	ModeBinGeometry  Mode = "bin-geometry"
)

// ParseMode accepts the Mode names.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeGeometry, ModeBinTemplates, ModeBinGeometry:
		return m, nil
	}
	return "", fmt.Errorf("unknown run mode %q", s)
}

// Request describes one run.
type Request struct {
	Mode     Mode
	Strategy records.Strategy // geometry only

	// Full fills the trace ledger. Unique, RMS, Histograms and Inspect
	// need it.
	Full bool
	// Unique slots offsets with the survey's unique parameters. A full run
	// of a survey whose Unique.Apply is set slots them regardless.
	Unique     bool
	WriteBack  bool // store slotted offsets and azimuths in the ledger
	RMS        bool
	Histograms bool

	// Histogram bin widths. Zero takes the survey's Analysis value.
	OffsetStep    float64
	AzimuthStep   float64
	AziOffsetStep float64

	// Inspect computes the slices, spider and stack responses through
	// Focus, or through the bin of highest fold when Focus is nil.
	Inspect bool
	Focus   *analysis.Bin
	// StackPatterns adds the response of every pattern used by the
	// survey's seeds to the Kx-Ky stack.
	StackPatterns bool
}

// Result holds the data products of a run. Fields a run does not produce
// are nil.
type Result struct {
	Tables     *records.Tables
	Output     *binning.Output
	Envelope   analysis.Envelope
	Unique     *analysis.UniqueStats
	RMS        *analysis.RMS
	OffsetHist *analysis.Histogram
	AziHist    *analysis.AzimuthHistogram
	Inspection *analysis.Inspection
}

// Hooks receive progress and user facing messages. Both may be nil.
type Hooks struct {
	Progress progress.Func
	Message  func(string)
}

func (h Hooks) say(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	logf("%s", msg)
	if h.Message != nil {
		h.Message(msg)
	}
}

// prepare validates s and computes its transforms and seed points.
func prepare(s *survey.Survey) (*survey.Transforms, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	tr, err := s.CalcTransforms()
	if err != nil {
		return nil, err
	}
	if err := s.Prepare(tr); err != nil {
		return nil, err
	}
	return tr, nil
}

// checkRequest rejects analysis options that need a ledger on a basic run.
func checkRequest(req Request) error {
	if !req.Full && (req.Unique || req.RMS || req.Histograms || req.Inspect) {
		return fmt.Errorf("%w: unique offsets, rms offsets, histograms and inspection need a full binning run", survey.ErrInvalidSurvey)
	}
	if req.OffsetStep < 0 || req.AzimuthStep < 0 || req.AziOffsetStep < 0 {
		return fmt.Errorf("%w: histogram steps must not be negative", survey.ErrInvalidSurvey)
	}
	return nil
}

// GenerateGeometry builds the source, receiver and relation tables of s.
func GenerateGeometry(ctx context.Context, s *survey.Survey, strategy records.Strategy, h Hooks) (tables *records.Tables, err error) {
	const op = string(ModeGeometry)
	err = guard(op, func() error {
		tr, err := prepare(s)
		if err != nil {
			return fail(op, err)
		}
		h.say("creating geometry for %q", s.Name)
		tables, err = records.Generate(ctx, s, tr, records.Options{Strategy: strategy, Progress: h.Progress})
		if err != nil {
			return fail(op, err)
		}
		src, rec, rel := tables.Counts()
		h.say("geometry: %d sources, %d receivers, %d relations", src, rec, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// BinFromTemplates bins s directly from its templates, then runs the
// requested analysis passes.
func BinFromTemplates(ctx context.Context, s *survey.Survey, req Request, h Hooks) (res *Result, err error) {
	const op = string(ModeBinTemplates)
	err = guard(op, func() error {
		if err := checkRequest(req); err != nil {
			return fail(op, err)
		}
		tr, err := prepare(s)
		if err != nil {
			return fail(op, err)
		}
		h.say("binning %q from templates", s.Name)
		out, err := binning.BinFromTemplates(ctx, s, tr, binning.Options{Full: req.Full, Progress: h.Progress})
		if err != nil {
			return fail(op, err)
		}
		res = &Result{Output: out}
		return fail(op, analyse(ctx, s, req, h, res))
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// BinFromGeometry bins tables. Their record order is left as generated.
func BinFromGeometry(ctx context.Context, s *survey.Survey, tables *records.Tables, req Request, h Hooks) (res *Result, err error) {
	const op = string(ModeBinGeometry)
	err = guard(op, func() error {
		if err := checkRequest(req); err != nil {
			return fail(op, err)
		}
		tr, err := prepare(s)
		if err != nil {
			return fail(op, err)
		}
		h.say("binning %q from geometry", s.Name)
		out, err := binning.BinFromGeometry(ctx, s, tr, tables, binning.Options{Full: req.Full, Progress: h.Progress})
		if err != nil {
			return fail(op, err)
		}
		res = &Result{Tables: tables, Output: out}
		return fail(op, analyse(ctx, s, req, h, res))
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// analyse runs the post-binning passes in order and fills res.
func analyse(ctx context.Context, s *survey.Survey, req Request, h Hooks, res *Result) error {
	out := res.Output
	opts := analysis.Options{WriteBack: req.WriteBack, Progress: h.Progress}

	if req.Unique || (req.Full && s.Unique.Apply) {
		st, err := analysis.UniqueOffsets(ctx, out, s.Unique, opts)
		if err != nil {
			return err
		}
		res.Unique = &st
		h.say("unique offsets: %d of %d traces", st.Unique, st.Traces)
		opts.UniqueOnly = true
	}

	res.Envelope = analysis.ComputeEnvelope(out)
	e := res.Envelope
	h.say("fold: min %d max %d", e.MinFold, e.MaxFold)
	if e.MaxFold > 0 {
		h.say("min-offsets: %.2f..%.2f m, max-offsets: %.2f..%.2f m",
			e.MinMinOffset, e.MaxMinOffset, e.MinMaxOffset, e.MaxMaxOffset)
	}

	if req.RMS {
		rms, err := analysis.RMSOffsets(ctx, out, opts)
		if err != nil {
			return err
		}
		res.RMS = rms
		h.say("rms offsets: %.2f..%.2f m", rms.Min, rms.Max)
	}

	if req.Histograms {
		dO, dA, dAO := histogramSteps(s.Analysis, req)
		hist, err := analysis.OffsetHistogram(out, dO, opts)
		switch {
		case errors.Is(err, analysis.ErrNoTraces):
			h.say("histograms: no traces")
		case err != nil:
			return err
		default:
			res.OffsetHist = hist
			if res.AziHist, err = analysis.AzimuthOffsetHistogram(out, dA, dAO, opts); err != nil {
				return err
			}
			h.say("histograms: %g m offset bins, %g deg by %g m azimuth/offset bins", dO, dA, dAO)
		}
	}

	if req.Inspect {
		in, err := inspect(ctx, s, req, out, opts)
		if err != nil {
			return err
		}
		res.Inspection = in
		h.say("inspected bin (%d, %d): fold %d", in.Bin.X, in.Bin.Y, out.FoldAt(in.Bin.X, in.Bin.Y))
	}
	return nil
}

// histogramSteps returns the request's bin widths, falling back to the
// survey's for any left at zero.
func histogramSteps(a survey.Analysis, req Request) (offset, azimuth, aziOffset float64) {
	pick := func(v, def float64) float64 {
		if v > 0 {
			return v
		}
		return def
	}
	return pick(req.OffsetStep, a.OffsetStep), pick(req.AzimuthStep, a.AzimuthStep), pick(req.AziOffsetStep, a.AziOffsetStep)
}

func inspect(ctx context.Context, s *survey.Survey, req Request, out *binning.Output, opts analysis.Options) (*analysis.Inspection, error) {
	bin := analysis.FoldiestBin(out)
	if req.Focus != nil {
		bin = *req.Focus
	}
	a := s.Analysis
	p := analysis.InspectParams{
		BinSize: s.Grid.BinSize,
		Kr:      analysis.KRange{Min: 0, Max: a.KrMax, Step: a.KrStep},
		Kxy:     analysis.KRange{Min: a.KxyMin, Max: a.KxyMax, Step: a.KxyStep},
	}
	if req.StackPatterns {
		for _, pat := range s.SeedPatterns() {
			p.Patterns = append(p.Patterns, pat.Elements())
		}
	}
	return analysis.Inspect(ctx, out, bin, p, opts)
}
