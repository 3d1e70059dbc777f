package main

import (
	"fmt"
	"log"

	"github.com/banshee-data/confinement/internal/config"
	"github.com/banshee-data/confinement/internal/fsutil"
	"github.com/banshee-data/confinement/internal/metadata"
	"github.com/banshee-data/confinement/internal/monitoring"
	"github.com/banshee-data/confinement/internal/pipeline"
	"github.com/banshee-data/confinement/internal/store"
	"github.com/banshee-data/confinement/internal/version"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath   string
	dbPath       string
	metadataPath string
	workers      int
	quiet        bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "confinement",
		Short:         "Valley confinement analysis for river networks",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.quiet {
				monitoring.SetLogger(nil)
			} else {
				monitoring.SetLogger(log.Printf)
			}
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Run configuration file (.json, .yaml or .yml)")
	pf.StringVar(&opts.dbPath, "db", "", "SQLite results database (disabled when empty)")
	pf.StringVar(&opts.metadataPath, "metadata", "", "Write run metadata XML to this file")
	pf.IntVar(&opts.workers, "workers", 0, "Routes processed in parallel (0 = GOMAXPROCS)")
	pf.BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress stage progress logging")

	root.AddCommand(
		newMarginsCmd(opts),
		newSegmentsCmd(opts),
		newWindowCmd(opts),
		newProjectCmd(),
		newRunCmd(opts),
	)
	return root
}

// session is a configured runner plus the resources to release after the
// command.
type session struct {
	runner   *pipeline.Runner
	opts     *globalOptions
	fs       fsutil.FileSystem
	database *store.Store
	meta     *metadata.Writer
}

// newSession loads the configuration file, applies the command-line
// overrides and opens the optional outputs.
func (o *globalOptions) newSession(cmd *cobra.Command, overrides *config.RunConfig) (*session, error) {
	cfg := config.DefaultRunConfig()
	if o.configPath != "" {
		fileCfg, err := config.LoadRunConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	if cmd.Flags().Changed("workers") {
		w := o.workers
		overrides = mergeOverride(overrides, &config.RunConfig{Workers: &w})
	}
	cfg = cfg.Merge(overrides)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fsys := fsutil.OSFileSystem{}
	s := &session{runner: pipeline.NewRunner(fsys, cfg), opts: o, fs: fsys}

	dbPath := o.dbPath
	if dbPath == "" {
		dbPath = cfg.GetDatabase()
	}
	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open results database: %w", err)
		}
		s.database = st
		s.runner.Store = st
	}
	if o.metadataPath != "" {
		s.meta = metadata.NewWriter(version.ToolName, version.String(), "", nil)
		s.runner.Metadata = s.meta
	}
	return s, nil
}

// close writes the metadata file and closes the database.
func (s *session) close() error {
	var first error
	if s.meta != nil {
		if err := s.meta.Write(s.fs, s.opts.metadataPath); err != nil {
			first = err
		}
	}
	if s.database != nil {
		if err := s.database.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// finish closes the session, keeping the command error when both fail.
func (s *session) finish(err error) error {
	if cerr := s.close(); cerr != nil && err == nil {
		return cerr
	}
	return err
}

func mergeOverride(base, o *config.RunConfig) *config.RunConfig {
	if base == nil {
		return o
	}
	return base.Merge(o)
}
