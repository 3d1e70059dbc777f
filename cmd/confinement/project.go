package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/confinement/internal/fsutil"
	"github.com/banshee-data/confinement/internal/project"
	"github.com/spf13/cobra"
)

func loadProject(path string) (*project.Project, error) {
	return project.Load(fsutil.OSFileSystem{}, path)
}

func saveProject(p *project.Project, path string) error {
	return p.Save(fsutil.OSFileSystem{}, path)
}

// editProject loads a project, applies fn and saves it.
func editProject(path string, fn func(p *project.Project) error) error {
	p, err := loadProject(path)
	if err != nil {
		return err
	}
	if err := fn(p); err != nil {
		return err
	}
	return saveProject(p, path)
}

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create and edit confinement project documents",
	}
	cmd.AddCommand(
		newProjectNewCmd(),
		newProjectAddInputCmd(),
		newProjectAddRealizationCmd(),
		newProjectAddAnalysisCmd(),
		newProjectShowCmd(),
	)
	return cmd
}

func newProjectNewCmd() *cobra.Command {
	var (
		name string
		meta map[string]string
	)
	cmd := &cobra.Command{
		Use:   "new PROJECT",
		Short: "Create an empty project document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			fsys := fsutil.OSFileSystem{}
			if fsys.Exists(path) {
				return fmt.Errorf("%s already exists", path)
			}
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}
			p := project.New(name, filepath.Dir(path))
			for k, v := range meta {
				p.AddMetadata(k, v)
			}
			return saveProject(p, path)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Project name (defaults to the file name)")
	cmd.Flags().StringToStringVar(&meta, "meta", nil, "Metadata key=value pairs")
	return cmd
}

func newProjectAddInputCmd() *cobra.Command {
	var name, rel, source string
	cmd := &cobra.Command{
		Use:   "add-input PROJECT",
		Short: "Register an input dataset, optionally copying it into the project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editProject(args[0], func(p *project.Project) error {
				if rel == "" {
					if source == "" {
						return fmt.Errorf("add-input needs --path or --source")
					}
					rel = "Inputs/" + filepath.Base(source)
				}
				if _, err := p.AddInput(name, rel, source); err != nil {
					return err
				}
				if source == "" {
					return nil
				}
				dst, err := p.Resolve(rel)
				if err != nil {
					return err
				}
				fsys := fsutil.OSFileSystem{}
				data, err := fsys.ReadFile(source)
				if err != nil {
					return fmt.Errorf("read %s: %w", source, err)
				}
				return fsys.WriteFile(dst, data, 0o644)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Input ID and name")
	cmd.Flags().StringVar(&rel, "path", "", "Path inside the project folder (defaults to Inputs/<file>)")
	cmd.Flags().StringVar(&source, "source", "", "Dataset to copy into the project")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newProjectAddRealizationCmd() *cobra.Command {
	var name, network, valley, channel string
	cmd := &cobra.Command{
		Use:   "add-realization PROJECT",
		Short: "Register a realization on three project inputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editProject(args[0], func(p *project.Project) error {
				_, err := p.AddRealization(name, network, valley, channel)
				return err
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "Realization name")
	f.StringVar(&network, "network", "", "Stream network input ID")
	f.StringVar(&valley, "valley", "", "Valley bottom input ID")
	f.StringVar(&channel, "channel", "", "Channel polygon input ID")
	for _, n := range []string{"name", "network", "valley", "channel"} {
		_ = cmd.MarkFlagRequired(n)
	}
	return cmd
}

func newProjectAddAnalysisCmd() *cobra.Command {
	var (
		realization, name, kind string
		seedDistance, size      float64
		windows                 []float64
		segments, segField      string
	)
	cmd := &cobra.Command{
		Use:   "add-analysis PROJECT",
		Short: "Register a moving-window, fixed or custom segment analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editProject(args[0], func(p *project.Project) error {
				rz, err := p.Realization(realization)
				if err != nil {
					return err
				}
				switch kind {
				case "moving-window":
					_, err = rz.AddMovingWindow(name, seedDistance, windows)
				case "fixed":
					_, err = rz.AddFixedSegments(name, size)
				case "custom":
					_, err = p.AddCustomSegments(realization, name, segments, segField)
				default:
					err = fmt.Errorf("unknown analysis type %q (want moving-window, fixed or custom)", kind)
				}
				return err
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&realization, "realization", "", "Realization name")
	f.StringVar(&name, "name", "", "Analysis name")
	f.StringVar(&kind, "type", "moving-window", "moving-window, fixed or custom")
	f.Float64Var(&seedDistance, "seed-distance", 50, "Seed point distance (moving-window)")
	f.Float64SliceVar(&windows, "windows", []float64{100}, "Window sizes (moving-window)")
	f.Float64Var(&size, "size", 200, "Segment size (fixed)")
	f.StringVar(&segments, "segments", "", "Segment dataset input ID (custom)")
	f.StringVar(&segField, "segment-field", "SegID", "Segment ID field (custom)")
	_ = cmd.MarkFlagRequired("realization")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newProjectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show PROJECT",
		Short: "Print the inputs, realizations and analyses of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Project %s (%s)\n", p.Name, p.ProjectType)
			for _, m := range p.Meta {
				fmt.Fprintf(w, "  %s: %s\n", m.Name, m.Value)
			}
			fmt.Fprintln(w, "Inputs:")
			for _, in := range p.Inputs {
				fmt.Fprintf(w, "  %-16s %s\n", in.ID, in.Path)
			}
			fmt.Fprintln(w, "Realizations:")
			for _, rz := range p.Realizations {
				fmt.Fprintf(w, "  %s (created %s)\n", rz.Name, rz.DateCreated)
				for _, a := range rz.AnalysisList() {
					fmt.Fprintf(w, "    %s [%s]\n", a.Name, a.Type())
					for _, prm := range a.Params {
						fmt.Fprintf(w, "      %s = %s\n", prm.Name, prm.Value)
					}
				}
			}
			return nil
		},
	}
}
