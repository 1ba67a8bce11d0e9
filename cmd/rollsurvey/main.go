// Command rollsurvey generates the geometry of a seismic survey described by
// a JSON config, bins it, and optionally keeps the results in sqlite.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/banshee-data/roll.survey/internal/analysis"
	"github.com/banshee-data/roll.survey/internal/config"
	"github.com/banshee-data/roll.survey/internal/records"
	"github.com/banshee-data/roll.survey/internal/report"
	"github.com/banshee-data/roll.survey/internal/runner"
	"github.com/banshee-data/roll.survey/internal/store"
	"github.com/banshee-data/roll.survey/internal/version"
)

// errUsage marks a command line problem; main exits with status 2.
var errUsage = errors.New("usage")

type options struct {
	configPath string
	mode       string
	strategy   string
	full       bool
	unique     bool
	writeBack  bool
	rms        bool
	hist       bool
	histOffset float64
	histAzi    float64
	histAziOff float64
	inspect    bool
	focus      string
	patterns   bool
	dbPath     string
	geometryID string
	plotsDir   string
	htmlPath   string
	list       bool
	quiet      bool
	version    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("rollsurvey", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.configPath, "config", config.ExampleConfigPath, "Survey config file (.json)")
	fs.StringVar(&o.mode, "mode", string(runner.ModeBinTemplates), "Run mode: geometry, bin-templates or bin-geometry")
	fs.StringVar(&o.strategy, "strategy", "shot", "Geometry strategy: shot or template")
	fs.BoolVar(&o.full, "full", false, "Fill the trace ledger (needed by -unique, -rms, -hist and -inspect)")
	fs.BoolVar(&o.unique, "unique", false, "Slot offsets with the survey's unique parameters")
	fs.BoolVar(&o.writeBack, "writeback", false, "Store slotted offsets and azimuths in the ledger")
	fs.BoolVar(&o.rms, "rms", false, "Compute rms offset increments")
	fs.BoolVar(&o.hist, "hist", false, "Compute offset and azimuth/offset histograms")
	fs.Float64Var(&o.histOffset, "hist-offset", 0, "Offset histogram bin width in m (0 takes the config's)")
	fs.Float64Var(&o.histAzi, "hist-azimuth", 0, "Azimuth histogram bin width in degrees (0 takes the config's)")
	fs.Float64Var(&o.histAziOff, "hist-azi-offset", 0, "Offset bin width of the azimuth/offset histogram in m (0 takes the config's)")
	fs.BoolVar(&o.inspect, "inspect", false, "Compute slices, spider and stack responses through one bin")
	fs.StringVar(&o.focus, "bin", "", "Bin to inspect as ix,iy (default: highest fold)")
	fs.BoolVar(&o.patterns, "stack-patterns", false, "Add the seeds' pattern responses to the Kx-Ky stack")
	fs.StringVar(&o.dbPath, "db", "", "sqlite database for results (disabled when empty)")
	fs.StringVar(&o.geometryID, "geometry", "", "Run id of stored geometry to bin in bin-geometry mode")
	fs.StringVar(&o.plotsDir, "plots", "", "Directory for PNG plots of the binning results")
	fs.StringVar(&o.htmlPath, "html", "", "HTML file for interactive charts of the binning results")
	fs.BoolVar(&o.list, "list", false, "List runs stored in -db and exit")
	fs.BoolVar(&o.quiet, "quiet", false, "Only print the summary")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}
	if o.list && o.dbPath == "" {
		return nil, fmt.Errorf("%w: -list needs -db", errUsage)
	}
	if o.focus != "" && !o.inspect {
		return nil, fmt.Errorf("%w: -bin needs -inspect", errUsage)
	}
	if o.geometryID != "" && o.dbPath == "" {
		return nil, fmt.Errorf("%w: -geometry needs -db", errUsage)
	}
	return o, nil
}

func (o *options) request() (runner.Request, error) {
	mode, err := runner.ParseMode(o.mode)
	if err != nil {
		return runner.Request{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	strategy, err := records.ParseStrategy(o.strategy)
	if err != nil {
		return runner.Request{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	req := runner.Request{
		Mode:          mode,
		Strategy:      strategy,
		Full:          o.full,
		Unique:        o.unique,
		WriteBack:     o.writeBack,
		RMS:           o.rms,
		Histograms:    o.hist,
		OffsetStep:    o.histOffset,
		AzimuthStep:   o.histAzi,
		AziOffsetStep: o.histAziOff,
		Inspect:       o.inspect,
		StackPatterns: o.patterns,
	}
	if o.focus != "" {
		var b analysis.Bin
		if _, err := fmt.Sscanf(o.focus, "%d,%d", &b.X, &b.Y); err != nil {
			return runner.Request{}, fmt.Errorf("%w: invalid bin %q: %v", errUsage, o.focus, err)
		}
		req.Focus = &b
	}
	return req, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Print(err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if o.version {
		fmt.Fprintln(stdout, version.String("rollsurvey"))
		return nil
	}

	var db *store.DB
	if o.dbPath != "" {
		if db, err = store.Open(o.dbPath); err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
	}
	if o.list {
		return listRuns(ctx, db, stdout)
	}

	req, err := o.request()
	if err != nil {
		return err
	}
	cfg, err := config.LoadSurveyConfig(o.configPath)
	if err != nil {
		return err
	}
	s, err := cfg.Build()
	if err != nil {
		return err
	}

	r := runner.New(s, notifier(stderr, o.quiet))

	if req.Mode == runner.ModeBinGeometry {
		if err := loadGeometry(ctx, r, db, o.geometryID, req.Strategy); err != nil {
			return err
		}
	}

	res, err := execute(ctx, r, req)
	if err != nil {
		return err
	}
	printSummary(stdout, req, res)
	if err := writeReports(o, s.Name, req, res, stdout); err != nil {
		return err
	}

	if db == nil {
		return nil
	}
	var saved *store.Run
	if req.Mode == runner.ModeGeometry {
		saved, err = db.SaveGeometry(ctx, s.Name, res.Tables)
	} else {
		saved, err = db.SaveBins(ctx, s.Name, res.Output)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "saved %s run %s\n", saved.Kind, saved.ID)
	return nil
}

// execute starts req on r and waits for it.
func execute(ctx context.Context, r *runner.Runner, req runner.Request) (*runner.Result, error) {
	if err := r.Start(ctx, req); err != nil {
		return nil, err
	}
	r.Wait()

	st := r.GetState()
	switch st.Status {
	case runner.StatusCancelled:
		return nil, fmt.Errorf("%s run cancelled at %d%%", req.Mode, st.Percent)
	case runner.StatusError:
		return nil, errors.New(st.Error)
	}
	return r.Result(), nil
}

// loadGeometry gives r the tables of a stored geometry run, or generates
// them when no run id is given.
func loadGeometry(ctx context.Context, r *runner.Runner, db *store.DB, id string, strategy records.Strategy) error {
	if id == "" {
		_, err := execute(ctx, r, runner.Request{Mode: runner.ModeGeometry, Strategy: strategy})
		return err
	}
	runID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid run id %q: %v", errUsage, id, err)
	}
	tables, err := db.LoadGeometry(ctx, runID)
	if err != nil {
		return err
	}
	return r.SetTables(tables)
}

func notifier(w io.Writer, quiet bool) func(runner.Event) {
	last := -1
	return func(ev runner.Event) {
		if quiet {
			return
		}
		switch ev.Kind {
		case runner.EventProgress:
			if ev.Percent/10 != last/10 {
				last = ev.Percent
				fmt.Fprintf(w, "%3d%%\n", ev.Percent)
			}
		case runner.EventMessage:
			fmt.Fprintln(w, ev.Message)
		case runner.EventDone:
			last = -1
		}
	}
}

func printSummary(w io.Writer, req runner.Request, res *runner.Result) {
	if req.Mode == runner.ModeGeometry {
		src, rec, rel := res.Tables.Counts()
		fmt.Fprintf(w, "sources: %d\nreceivers: %d\nrelations: %d\n", src, rec, rel)
		return
	}

	out := res.Output
	e := res.Envelope
	fmt.Fprintf(w, "grid: %d x %d\ntraces: %d\nfold: %d..%d\n", out.Nx, out.Ny, out.Traces(), e.MinFold, e.MaxFold)
	fmt.Fprintf(w, "min-offset: %.2f..%.2f m\nmax-offset: %.2f..%.2f m\n",
		e.MinMinOffset, e.MaxMinOffset, e.MinMaxOffset, e.MaxMaxOffset)
	if res.Unique != nil {
		fmt.Fprintf(w, "unique: %d of %d traces\n", res.Unique.Unique, res.Unique.Traces)
	}
	if res.RMS != nil {
		fmt.Fprintf(w, "rms offset increment: %.2f..%.2f m\n", res.RMS.Min, res.RMS.Max)
	}
	if res.OffsetHist != nil {
		fmt.Fprintf(w, "offset histogram: %d bins, %.0f traces\n", len(res.OffsetHist.Counts), res.OffsetHist.Total())
	}
	if res.AziHist != nil {
		rows, cols := res.AziHist.Counts.Dims()
		fmt.Fprintf(w, "azimuth/offset histogram: %d x %d\n", rows, cols)
	}
	if in := res.Inspection; in != nil {
		fmt.Fprintf(w, "inspected bin: %d,%d with %d legs\n", in.Bin.X, in.Bin.Y, len(in.Spider))
		fmt.Fprintf(w, "inline slice: %d traces\ncrossline slice: %d traces\n", len(in.OffsetInline), len(in.OffsetCrossline))
	}
}

func writeReports(o *options, name string, req runner.Request, res *runner.Result, stdout io.Writer) error {
	if req.Mode == runner.ModeGeometry || (o.plotsDir == "" && o.htmlPath == "") {
		return nil
	}
	set := report.Set{Name: name, Output: res.Output, RMS: res.RMS, OffsetHist: res.OffsetHist, AziHist: res.AziHist}

	if o.plotsDir != "" {
		files, err := report.SavePlots(o.plotsDir, set)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintf(stdout, "wrote %s\n", f)
		}
	}
	if o.htmlPath != "" {
		f, err := os.Create(o.htmlPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", o.htmlPath, err)
		}
		if err := report.WriteHTML(f, set); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s\n", o.htmlPath)
	}
	return nil
}

func listRuns(ctx context.Context, db *store.DB, w io.Writer) error {
	runs, err := db.Runs(ctx, "")
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-8s  %-20s  %s\n", r.ID, r.Kind, r.Survey, r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
