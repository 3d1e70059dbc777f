package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/confinement/internal/config"
	"github.com/banshee-data/confinement/internal/monitoring"
	"github.com/banshee-data/confinement/internal/project"
	"github.com/banshee-data/confinement/internal/security"
)

// resolveInput returns the filesystem path of a project input.
func resolveInput(p *project.Project, id string) (string, error) {
	in, err := p.Input(id)
	if err != nil {
		return "", stageErr(StageProject, id, err)
	}
	path, err := p.Resolve(in.Path)
	if err != nil {
		return "", stageErr(StageProject, id, err)
	}
	return path, nil
}

func resolveOutput(p *project.Project, a *project.Analysis, typ string) (string, error) {
	o, ok := a.Output(typ)
	if !ok {
		return "", nil
	}
	path, err := p.Resolve(o.Path)
	if err != nil {
		return "", stageErr(StageProject, a.Name, err)
	}
	return path, nil
}

// RunRealization runs stages 1 to 3 for a realization and then every
// analysis registered on it, writing to the paths the project document
// names. Every reference is resolved before any stage runs.
func (r *Runner) RunRealization(ctx context.Context, p *project.Project, name string) error {
	logf := monitoring.Stage(StageProject)

	rz, err := p.Realization(name)
	if err != nil {
		return stageErr(StageProject, name, err)
	}
	var in MarginsInput
	if in.Network, err = resolveInput(p, rz.Inputs.StreamNetwork.Ref); err != nil {
		return err
	}
	if in.Valley, err = resolveInput(p, rz.Inputs.ValleyBottom.Ref); err != nil {
		return err
	}
	if in.Channel, err = resolveInput(p, rz.Inputs.ChannelPolygon.Ref); err != nil {
		return err
	}
	var out MarginsOutput
	if out.Margins, err = p.Resolve(rz.Outputs.ConfiningMargins.Path); err != nil {
		return stageErr(StageProject, name, err)
	}
	if out.State, err = p.Resolve(rz.Outputs.RawConfiningState.Path); err != nil {
		return stageErr(StageProject, name, err)
	}

	jobs := make([]func() error, 0, len(rz.AnalysisList()))
	for _, a := range rz.AnalysisList() {
		job, err := r.analysisJob(ctx, p, a, out.State)
		if err != nil {
			return err
		}
		jobs = append(jobs, job)
	}

	logf("realization %q: %d analyses", name, len(jobs))
	if _, err := r.Margins(ctx, in, out); err != nil {
		return err
	}
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := job(); err != nil {
			return err
		}
	}
	return nil
}

// analysisJob resolves an analysis into a closure over its parameters and
// output paths.
func (r *Runner) analysisJob(ctx context.Context, p *project.Project, a *project.Analysis, state string) (func() error, error) {
	switch a.Type() {
	case project.MovingWindow:
		dist, err := a.FloatParam("SeedPointDistance")
		if err != nil {
			return nil, stageErr(StageProject, a.Name, err)
		}
		raw, err := a.StringParam("WindowSizes")
		if err != nil {
			return nil, stageErr(StageProject, a.Name, err)
		}
		sizes, err := project.ParseWindowSizes(raw)
		if err != nil {
			return nil, stageErr(StageProject, a.Name, err)
		}
		if len(sizes) == 0 {
			return nil, stageErr(StageProject, a.Name, fmt.Errorf("parameter WindowSizes %q lists no sizes", raw))
		}
		var out WindowOutput
		if out.Seeds, err = resolveOutput(p, a, project.OutputSeedPoints); err != nil {
			return nil, err
		}
		if out.Windows, err = resolveOutput(p, a, project.OutputMovingWindows); err != nil {
			return nil, err
		}
		if out.Endpoints, err = resolveOutput(p, a, project.OutputWindowEnds); err != nil {
			return nil, err
		}
		if dir := r.Config.GetReportDir(); dir != "" {
			out.ReportDir = filepath.Join(dir, security.SanitizeFilename(a.Name))
		}
		sub := r.with(&config.RunConfig{SeedDistance: &dist, WindowSizes: sizes})
		return func() error {
			_, err := sub.Window(ctx, state, out)
			return err
		}, nil

	case project.FixedSegments:
		size, err := a.FloatParam("SegmentSize")
		if err != nil {
			return nil, stageErr(StageProject, a.Name, err)
		}
		out, err := resolveOutput(p, a, project.OutputFixedSegments)
		if err != nil {
			return nil, err
		}
		return func() error {
			_, err := r.FixedSegments(ctx, state, out, size)
			return err
		}, nil

	case project.CustomSegments:
		id, err := a.StringParam("SegmentedNetwork")
		if err != nil {
			return nil, stageErr(StageProject, a.Name, err)
		}
		segments, err := resolveInput(p, id)
		if err != nil {
			return nil, err
		}
		out, err := resolveOutput(p, a, project.OutputCustomSegments)
		if err != nil {
			return nil, err
		}
		sub := r
		if field, ok := a.Param("SegmentField"); ok && field != "" {
			sub = r.with(&config.RunConfig{SegmentField: &field})
		}
		return func() error {
			_, err := sub.OverlaySegments(ctx, state, segments, out)
			return err
		}, nil
	}
	return nil, stageErr(StageProject, a.Name, fmt.Errorf("unsupported analysis type %q", a.Type()))
}

// with returns a copy of r whose configuration is overridden by o.
func (r *Runner) with(o *config.RunConfig) *Runner {
	cp := *r
	cp.Config = r.Config.Merge(o)
	return &cp
}
