package pipeline

import (
	"context"
	"fmt"

	"github.com/banshee-data/confinement/internal/config"
	"github.com/banshee-data/confinement/internal/confinement"
	"github.com/banshee-data/confinement/internal/dataset"
	"github.com/banshee-data/confinement/internal/fsutil"
	"github.com/banshee-data/confinement/internal/geom"
	"github.com/banshee-data/confinement/internal/metadata"
	"github.com/banshee-data/confinement/internal/monitoring"
	"github.com/banshee-data/confinement/internal/movingwindow"
	"github.com/banshee-data/confinement/internal/network"
	"github.com/banshee-data/confinement/internal/report"
	"github.com/banshee-data/confinement/internal/segmentation"
	"github.com/banshee-data/confinement/internal/store"
	"github.com/paulmach/orb/geojson"
)

// Runner runs the stages against datasets on a filesystem. Store and
// Metadata are optional.
type Runner struct {
	FS       fsutil.FileSystem
	Config   *config.RunConfig
	Store    *store.Store
	Metadata *metadata.Writer
}

// NewRunner returns a Runner with the default configuration when cfg is nil.
func NewRunner(fsys fsutil.FileSystem, cfg *config.RunConfig) *Runner {
	if cfg == nil {
		cfg = config.DefaultRunConfig()
	}
	return &Runner{FS: fsys, Config: cfg}
}

// Params converts the run configuration to stage tolerances.
func (r *Runner) Params() confinement.Params {
	return confinement.Params{
		FilterByLength:   r.Config.GetFilterByLength(),
		SplitTolerance:   r.Config.GetSplitTolerance(),
		CorrectionRadius: r.Config.GetCorrectionRadius(),
		BankOffset:       r.Config.GetBankOffset(),
		Epsilon:          geom.Epsilon,
	}
}

// Fields returns the configured field names.
func (r *Runner) Fields() dataset.Fields {
	return dataset.Fields{
		RouteID:      r.Config.GetRouteField(),
		Confinement:  r.Config.GetConfinementField(),
		Constriction: r.Config.GetConstrictionField(),
		SegmentID:    r.Config.GetSegmentField(),
	}
}

// WindowConfig converts the run configuration to sampler parameters.
func (r *Runner) WindowConfig() movingwindow.Config {
	return movingwindow.Config{
		SeedDistance:    r.Config.GetSeedDistance(),
		Windows:         r.Config.GetWindowSizes(),
		LengthTolerance: r.Config.GetWindowLengthTolerance(),
		SplitTolerance:  r.Config.GetSplitTolerance(),
		Workers:         r.Config.GetWorkers(),
	}
}

// session tracks one stage run in the store and the run metadata.
type session struct {
	r     *Runner
	stage string
	runID string
	meta  *metadata.Run
}

func (r *Runner) begin(ctx context.Context, stage string, params map[string]interface{}) (*session, error) {
	s := &session{r: r, stage: stage}
	if r.Store != nil {
		id, err := r.Store.BeginRun(ctx, stage, params)
		if err != nil {
			return nil, stageErr(StageStore, "", err)
		}
		s.runID = id
	}
	if r.Metadata != nil {
		s.meta = r.Metadata.Start()
		for _, k := range sortedParams(params) {
			s.meta.AddParameter(k, params[k])
		}
	}
	return s, nil
}

func (s *session) output(name, path string) {
	if s.meta != nil {
		s.meta.AddOutput(name, path)
	}
}

func (s *session) warn(msg string) {
	monitoring.Stage(s.stage)("warning: %s", msg)
	if s.meta != nil {
		s.meta.AddMessage(metadata.Warning, msg)
	}
}

func (s *session) result(name string, v interface{}) {
	if s.meta != nil {
		s.meta.AddResult(name, v)
	}
}

// end closes the session with the outcome of the stage and returns err.
func (s *session) end(ctx context.Context, err error) error {
	status, metaStatus, msg := store.StatusSuccess, metadata.StatusSuccess, ""
	if err != nil {
		status, metaStatus, msg = store.StatusFailed, metadata.StatusFailure, err.Error()
		if s.meta != nil {
			s.meta.AddMessage(metadata.Error, msg)
		}
	}
	if s.meta != nil {
		s.r.Metadata.Finish(s.meta, metaStatus)
	}
	if s.r.Store != nil && s.runID != "" {
		if ferr := s.r.Store.FinishRun(context.WithoutCancel(ctx), s.runID, status, msg); ferr != nil && err == nil {
			err = stageErr(StageStore, "", ferr)
		}
	}
	return err
}

func (s *session) record(fn func(st *store.Store, runID string) error) error {
	if s.r.Store == nil || s.runID == "" {
		return nil
	}
	return stageErr(StageStore, "", fn(s.r.Store, s.runID))
}

func (r *Runner) load(path string) (*geojson.FeatureCollection, error) {
	fc, err := dataset.Read(r.FS, path)
	return fc, stageErr(StageLoad, path, err)
}

func (r *Runner) write(s *session, name, path string, fc *geojson.FeatureCollection) error {
	if path == "" {
		return nil
	}
	if err := dataset.Write(r.FS, path, fc); err != nil {
		return stageErr(StageWrite, path, err)
	}
	s.output(name, path)
	return nil
}

// MarginsInput names the three input datasets of stages 1 to 3.
type MarginsInput struct {
	Network string
	Valley  string
	Channel string
}

// MarginsOutput names the datasets written by Margins. Empty paths are
// skipped.
type MarginsOutput struct {
	Margins        string
	State          string
	Channel        string
	BankPolygons   string
	MarginSegments string
}

// MarginsResult is everything stages 1 to 3 produced.
type MarginsResult struct {
	Extraction  *confinement.Extraction
	Banks       *confinement.Banks
	Attribution *confinement.Attribution
	Reaches     []network.Reach
	Routes      []network.Route
}

// Margins runs margin extraction, bank classification and attribution.
// Every input contract is checked before any geometry runs.
func (r *Runner) Margins(ctx context.Context, in MarginsInput, out MarginsOutput) (res *MarginsResult, err error) {
	p := r.Params()
	fields := r.Fields()
	s, err := r.begin(ctx, StageMargins, map[string]interface{}{
		"FilterByLength":   p.FilterByLength,
		"SplitTolerance":   p.SplitTolerance,
		"CorrectionRadius": p.CorrectionRadius,
		"StreamNetwork":    in.Network,
		"ValleyBottom":     in.Valley,
		"ChannelPolygon":   in.Channel,
	})
	if err != nil {
		return nil, err
	}
	defer func() { err = s.end(ctx, err) }()

	netFC, err := r.load(in.Network)
	if err != nil {
		return nil, err
	}
	reaches, err := dataset.Reaches(netFC, fields.RouteID)
	if err != nil {
		return nil, stageErr(StageLoad, in.Network, err)
	}
	valleyFC, err := r.load(in.Valley)
	if err != nil {
		return nil, err
	}
	valley, err := dataset.Polygons(valleyFC, "valley bottom")
	if err != nil {
		return nil, stageErr(StageLoad, in.Valley, err)
	}
	channelFC, err := r.load(in.Channel)
	if err != nil {
		return nil, err
	}
	channel, err := dataset.Polygons(channelFC, "channel polygon")
	if err != nil {
		return nil, stageErr(StageLoad, in.Channel, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ext, err := confinement.ExtractMargins(channel, valley, p)
	if err != nil {
		return nil, stageErr(StageMargins, in.Channel, err)
	}

	routes := network.Dissolve(reaches, network.ScopeNetwork, p.Epsilon)
	banks, err := confinement.ClassifyBanks(ext, routes, network.Dangles(reaches, p.Epsilon), p)
	if err != nil {
		return nil, stageErr(StageBanks, in.Network, err)
	}
	for _, d := range banks.Diagnostics {
		s.warn(d.Message)
	}

	attr, err := confinement.Attribute(ctx, routes, reaches, banks.Segments, p)
	if err != nil {
		return nil, stageErr(StageAttribute, in.Network, err)
	}
	if err := confinement.Validate(attr.Segments, routes, 1e-6); err != nil {
		return nil, stageErr(StageAttribute, in.Network, err)
	}

	res = &MarginsResult{Extraction: ext, Banks: banks, Attribution: attr, Reaches: reaches, Routes: routes}
	if err := r.write(s, "ConfiningMargins", out.Margins, dataset.Margins(banks.Margins)); err != nil {
		return nil, err
	}
	if err := r.write(s, "ConfinementState", out.State, dataset.Segments(attr.Segments, reaches, fields)); err != nil {
		return nil, err
	}
	if err := r.write(s, "ConfinedChannel", out.Channel, dataset.ConfinedPolygon(ext.Confined)); err != nil {
		return nil, err
	}
	if err := r.write(s, "BankPolygons", out.BankPolygons, dataset.BankPolygons(banks.Polygons)); err != nil {
		return nil, err
	}
	if err := r.write(s, "MarginSegments", out.MarginSegments, dataset.MarginSegments(banks.Segments)); err != nil {
		return nil, err
	}

	if err := s.record(func(st *store.Store, id string) error {
		if err := st.RecordMargins(ctx, id, banks.Margins); err != nil {
			return err
		}
		return st.RecordSegments(ctx, id, attr.Segments)
	}); err != nil {
		return nil, err
	}

	s.result("MarginCount", len(banks.Margins))
	s.result("MarginsRemoved", ext.Removed)
	s.result("SegmentCount", len(attr.Segments))
	monitoring.Stage(StageMargins)("%d margins, %d segments on %d routes", len(banks.Margins), len(attr.Segments), len(routes))
	return res, nil
}

// loadState reads an attributed network and dissolves it by route.
func (r *Runner) loadState(path string) ([]network.Route, []confinement.State, error) {
	fc, err := r.load(path)
	if err != nil {
		return nil, nil, err
	}
	reaches, states, err := dataset.StateLines(fc, r.Fields())
	if err != nil {
		return nil, nil, stageErr(StageLoad, path, err)
	}
	return network.Dissolve(reaches, network.ScopeRoute, geom.Epsilon), states, nil
}

// FixedSegments cuts the attributed network at state into units of
// size and writes their ratios to out.
func (r *Runner) FixedSegments(ctx context.Context, state, out string, size float64) (units []segmentation.Unit, err error) {
	s, err := r.begin(ctx, StageSegments, map[string]interface{}{"Mode": "fixed", "SegmentSize": size, "State": state})
	if err != nil {
		return nil, err
	}
	defer func() { err = s.end(ctx, err) }()

	routes, states, err := r.loadState(state)
	if err != nil {
		return nil, err
	}
	units, err = segmentation.Fixed(ctx, routes, states, size, r.Config.GetSplitTolerance())
	if err != nil {
		return nil, stageErr(StageSegments, state, err)
	}
	if err := r.write(s, "FixedSegments", out, dataset.Units(units, r.Fields())); err != nil {
		return nil, err
	}
	if err := s.record(func(st *store.Store, id string) error { return st.RecordUnits(ctx, id, units) }); err != nil {
		return nil, err
	}
	s.result("SegmentCount", len(units))
	return units, nil
}

// CustomSegments computes ratios for a network that already carries
// segment IDs and confinement flags.
func (r *Runner) CustomSegments(ctx context.Context, attributed, out string) (ratios []confinement.Ratio, err error) {
	s, err := r.begin(ctx, StageSegments, map[string]interface{}{"Mode": "custom", "Network": attributed})
	if err != nil {
		return nil, err
	}
	defer func() { err = s.end(ctx, err) }()

	fc, err := r.load(attributed)
	if err != nil {
		return nil, err
	}
	fields := r.Fields()
	lines, err := dataset.AttributedLines(fc, fields)
	if err != nil {
		return nil, stageErr(StageLoad, attributed, err)
	}
	ratios = segmentation.Custom(lines)
	if err := r.write(s, "CustomSegments", out, dataset.CustomRatios(lines, ratios, fields)); err != nil {
		return nil, err
	}
	s.result("SegmentCount", len(ratios))
	return ratios, nil
}

// OverlaySegments locates user segment lines on the attributed network
// at state and writes one unit per segment.
func (r *Runner) OverlaySegments(ctx context.Context, state, segments, out string) (units []segmentation.Unit, err error) {
	s, err := r.begin(ctx, StageSegments, map[string]interface{}{"Mode": "overlay", "State": state, "Segments": segments})
	if err != nil {
		return nil, err
	}
	defer func() { err = s.end(ctx, err) }()

	routes, states, err := r.loadState(state)
	if err != nil {
		return nil, err
	}
	fc, err := r.load(segments)
	if err != nil {
		return nil, err
	}
	user, err := dataset.UserSegments(fc, r.Fields().SegmentID)
	if err != nil {
		return nil, stageErr(StageLoad, segments, err)
	}
	units, diags, err := segmentation.Overlay(ctx, routes, states, user, r.Config.GetSplitTolerance())
	if err != nil {
		return nil, stageErr(StageSegments, segments, err)
	}
	for _, d := range diags {
		s.warn(d.Message)
	}
	if err := r.write(s, "CustomSegments", out, dataset.Units(units, r.Fields())); err != nil {
		return nil, err
	}
	if err := s.record(func(st *store.Store, id string) error { return st.RecordUnits(ctx, id, units) }); err != nil {
		return nil, err
	}
	s.result("SegmentCount", len(units))
	return units, nil
}

// WindowOutput names the datasets written by Window. Empty paths are
// skipped; ReportDir enables the PNG and HTML profiles.
type WindowOutput struct {
	Seeds     string
	Windows   string
	Endpoints string
	ReportDir string
}

// Window runs the moving-window sampler on the attributed network at state.
func (r *Runner) Window(ctx context.Context, state string, out WindowOutput) (res *movingwindow.Result, err error) {
	cfg := r.WindowConfig()
	s, err := r.begin(ctx, StageWindow, map[string]interface{}{
		"SeedPointDistance": cfg.SeedDistance,
		"WindowSizes":       cfg.Windows,
		"LengthTolerance":   cfg.LengthTolerance,
		"State":             state,
	})
	if err != nil {
		return nil, err
	}
	defer func() { err = s.end(ctx, err) }()

	routes, states, err := r.loadState(state)
	if err != nil {
		return nil, err
	}
	sampled, err := movingwindow.Sample(ctx, routes, states, cfg)
	if err != nil {
		return nil, stageErr(StageWindow, state, err)
	}
	for _, w := range sampled.Warnings {
		s.warn(w.String())
	}

	fields := r.Fields()
	if err := r.write(s, "SeedPoints", out.Seeds, dataset.Seeds(sampled.Seeds, cfg.Windows, fields)); err != nil {
		return nil, err
	}
	if err := r.write(s, "MovingWindows", out.Windows, dataset.Windows(sampled.Windows, fields)); err != nil {
		return nil, err
	}
	if err := r.write(s, "WindowEndpoints", out.Endpoints, dataset.Endpoints(sampled.Endpoints, fields)); err != nil {
		return nil, err
	}
	if out.ReportDir != "" {
		files, err := report.Write(r.FS, out.ReportDir, fmt.Sprintf("Moving window profiles: %s", state), *sampled)
		if err != nil {
			return nil, stageErr(StageReport, out.ReportDir, err)
		}
		for _, f := range files {
			s.output("Report", f)
		}
	}
	if err := s.record(func(st *store.Store, id string) error { return st.RecordWindows(ctx, id, *sampled) }); err != nil {
		return nil, err
	}
	s.result("SeedCount", len(sampled.Seeds))
	s.result("WindowCount", len(sampled.Windows))
	s.result("WarningCount", len(sampled.Warnings))
	return sampled, nil
}
