package main

import (
	"fmt"

	"github.com/banshee-data/confinement/internal/config"
	"github.com/banshee-data/confinement/internal/pipeline"
	"github.com/spf13/cobra"
)

func newMarginsCmd(g *globalOptions) *cobra.Command {
	var (
		in       pipeline.MarginsInput
		out      pipeline.MarginsOutput
		filter   float64
		routeFld string
	)
	cmd := &cobra.Command{
		Use:   "margins",
		Short: "Extract confining margins and attribute the stream network",
		Long: `Runs margin extraction, bank classification and attribution.
The attributed network (--out-state) feeds the segments and window commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o := &config.RunConfig{}
			if cmd.Flags().Changed("filter") {
				o.FilterByLength = &filter
			}
			if cmd.Flags().Changed("route-field") {
				o.RouteField = &routeFld
			}
			s, err := g.newSession(cmd, o)
			if err != nil {
				return err
			}
			res, err := s.runner.Margins(cmd.Context(), in, out)
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%d margins, %d segments\n",
					len(res.Banks.Margins), len(res.Attribution.Segments))
			}
			return s.finish(err)
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Network, "network", "", "Stream network (GeoJSON lines)")
	f.StringVar(&in.Valley, "valley", "", "Valley bottom polygon (GeoJSON)")
	f.StringVar(&in.Channel, "channel", "", "Channel polygon (GeoJSON)")
	f.StringVar(&out.Margins, "out-margins", "", "Confining margins output")
	f.StringVar(&out.State, "out-state", "", "Attributed network output")
	f.StringVar(&out.Channel, "out-channel", "", "Confined channel polygon output")
	f.StringVar(&out.BankPolygons, "out-banks", "", "Bank polygon fragments output")
	f.StringVar(&out.MarginSegments, "out-margin-segments", "", "Margins cut at the centerline output")
	f.Float64Var(&filter, "filter", 5, "Remove margins this long or shorter (0 keeps all)")
	f.StringVar(&routeFld, "route-field", "RouteID", "Stream network field holding the route ID")
	for _, name := range []string{"network", "valley", "channel", "out-margins", "out-state"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newSegmentsCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segments",
		Short: "Summarise confinement over fixed or custom segments",
	}

	var (
		fixedState, fixedOut string
		size                 float64
	)
	fixed := &cobra.Command{
		Use:   "fixed",
		Short: "Cut every route into segments of a fixed length",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o := &config.RunConfig{}
			if cmd.Flags().Changed("size") {
				o.SegmentSize = &size
			}
			s, err := g.newSession(cmd, o)
			if err != nil {
				return err
			}
			units, err := s.runner.FixedSegments(cmd.Context(), fixedState, fixedOut, s.runner.Config.GetSegmentSize())
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%d segments\n", len(units))
			}
			return s.finish(err)
		},
	}
	fixed.Flags().StringVar(&fixedState, "state", "", "Attributed network from the margins command")
	fixed.Flags().Float64Var(&size, "size", 200, "Segment length")
	fixed.Flags().StringVar(&fixedOut, "out", "", "Segments output")
	_ = fixed.MarkFlagRequired("state")
	_ = fixed.MarkFlagRequired("out")

	var (
		customNetwork, customState, customSegments, customOut string
		segField, confField, constrField                      string
	)
	custom := &cobra.Command{
		Use:   "custom",
		Short: "Summarise confinement per segment ID",
		Long: `With --network, the input already carries segment IDs and confinement
flags. With --state and --segments, the segment lines are first located on
the attributed network.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o := &config.RunConfig{}
			if cmd.Flags().Changed("segment-field") {
				o.SegmentField = &segField
			}
			if cmd.Flags().Changed("confinement-field") {
				o.ConfinementField = &confField
			}
			if cmd.Flags().Changed("constriction-field") {
				o.ConstrictionField = &constrField
			}
			if (customNetwork == "") == (customState == "") {
				return fmt.Errorf("use either --network or --state")
			}
			if customState != "" && customSegments == "" {
				return fmt.Errorf("--state requires --segments")
			}
			s, err := g.newSession(cmd, o)
			if err != nil {
				return err
			}
			var n int
			if customNetwork != "" {
				ratios, rerr := s.runner.CustomSegments(cmd.Context(), customNetwork, customOut)
				n, err = len(ratios), rerr
			} else {
				units, rerr := s.runner.OverlaySegments(cmd.Context(), customState, customSegments, customOut)
				n, err = len(units), rerr
			}
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%d segments\n", n)
			}
			return s.finish(err)
		},
	}
	cf := custom.Flags()
	cf.StringVar(&customNetwork, "network", "", "Segmented network carrying confinement flags")
	cf.StringVar(&customState, "state", "", "Attributed network from the margins command")
	cf.StringVar(&customSegments, "segments", "", "Segment lines to overlay on --state")
	cf.StringVar(&customOut, "out", "", "Segment ratios output")
	cf.StringVar(&segField, "segment-field", "SegID", "Segment ID field")
	cf.StringVar(&confField, "confinement-field", "IsConfined", "Confinement flag field")
	cf.StringVar(&constrField, "constriction-field", "IsConstric", "Constriction flag field")
	_ = custom.MarkFlagRequired("out")

	cmd.AddCommand(fixed, custom)
	return cmd
}

func newWindowCmd(g *globalOptions) *cobra.Command {
	var (
		state    string
		out      pipeline.WindowOutput
		routeFld string
		distance float64
		windows  []float64
	)
	cmd := &cobra.Command{
		Use:   "window",
		Short: "Sample confinement in moving windows along every route",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o := &config.RunConfig{}
			if cmd.Flags().Changed("route-field") {
				o.RouteField = &routeFld
			}
			if cmd.Flags().Changed("seed-distance") {
				o.SeedDistance = &distance
			}
			if cmd.Flags().Changed("windows") {
				o.WindowSizes = windows
			}
			s, err := g.newSession(cmd, o)
			if err != nil {
				return err
			}
			if out.ReportDir == "" {
				out.ReportDir = s.runner.Config.GetReportDir()
			}
			res, err := s.runner.Window(cmd.Context(), state, out)
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%d seeds, %d windows, %d warnings\n",
					len(res.Seeds), len(res.Windows), len(res.Warnings))
			}
			return s.finish(err)
		},
	}
	f := cmd.Flags()
	f.StringVar(&state, "state", "", "Attributed network from the margins command")
	f.StringVar(&routeFld, "route-field", "RouteID", "Route ID field")
	f.Float64Var(&distance, "seed-distance", 50, "Distance between seed points")
	f.Float64SliceVar(&windows, "windows", []float64{100}, "Window sizes, e.g. 100,250")
	f.StringVar(&out.Seeds, "out-seeds", "", "Seed points output")
	f.StringVar(&out.Windows, "out-windows", "", "Window lines output")
	f.StringVar(&out.Endpoints, "out-endpoints", "", "Window end points output")
	f.StringVar(&out.ReportDir, "report", "", "Write PNG and HTML profiles to this folder")
	for _, name := range []string{"state", "out-seeds", "out-windows"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newRunCmd(g *globalOptions) *cobra.Command {
	var realization string
	cmd := &cobra.Command{
		Use:   "run PROJECT",
		Short: "Run a project realization and all of its analyses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(args[0])
			if err != nil {
				return err
			}
			s, err := g.newSession(cmd, nil)
			if err != nil {
				return err
			}
			err = s.runner.RunRealization(cmd.Context(), p, realization)
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "realization %q complete\n", realization)
			}
			return s.finish(err)
		},
	}
	cmd.Flags().StringVar(&realization, "realization", "", "Realization name")
	_ = cmd.MarkFlagRequired("realization")
	return cmd
}
