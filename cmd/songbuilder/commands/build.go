package commands

import (
	"context"
	"os/signal"
	"syscall"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/songbuilder/internal/build"
	"git.home.luguber.info/inful/songbuilder/internal/builder"
	"git.home.luguber.info/inful/songbuilder/internal/descriptor"
	"git.home.luguber.info/inful/songbuilder/internal/logfields"
	"git.home.luguber.info/inful/songbuilder/internal/metrics"
)

// BuildFlags are shared by build and watch.
type BuildFlags struct {
	Songbook        string   `arg:"" help:"Songbook descriptor (.sg)" type:"path"`
	DataDir         []string `short:"d" name:"datadir" help:"Data directory searched before the descriptor's own; repeatable" env:"SONGBUILDER_DATADIR" type:"path"`
	Steps           []string `short:"s" help:"Comma-separated steps to run instead of the defaults" env:"SONGBUILDER_STEPS" sep:","`
	Output          string   `short:"o" help:"Directory for generated files" env:"SONGBUILDER_OUTPUT" default:"." type:"path"`
	LaTeX           string   `name:"latex" help:"LaTeX engine used by the pdf step" env:"SONGBUILDER_LATEX" default:"lualatex"`
	Indexer         string   `help:"Index generator used by the sbx step" env:"SONGBUILDER_INDEXER" default:"songbook-makeindex"`
	MetricsTextfile string   `name:"metrics-textfile" help:"Write Prometheus metrics to this file after each build" env:"SONGBUILDER_METRICS_TEXTFILE"`
}

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	BuildFlags `embed:""`
}

func (b *BuildCmd) Run(g *Global) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_, err := newSession(&b.BuildFlags, g).run(ctx)
	return err
}

// session runs builds for one set of flags. Metrics accumulate across the
// builds of a watch session.
type session struct {
	flags    *BuildFlags
	g        *Global
	registry *prom.Registry
	recorder *metrics.PrometheusRecorder
}

func newSession(flags *BuildFlags, g *Global) *session {
	reg := prom.NewRegistry()
	return &session{flags: flags, g: g, registry: reg, recorder: metrics.NewPrometheusRecorder(reg)}
}

func (s *session) builderOptions() []builder.Option {
	opts := []builder.Option{
		builder.WithOutputDir(s.flags.Output),
		builder.WithLaTeX(s.flags.LaTeX),
		builder.WithIndexer(s.flags.Indexer),
		builder.WithLogger(s.g.Logger),
	}
	if s.g.Runner != nil {
		opts = append(opts, builder.WithRunner(s.g.Runner))
	}
	return opts
}

// run loads the descriptor, builds it and prints the summary. It returns the
// datadirs of the loaded descriptor, or nil when loading failed.
func (s *session) run(ctx context.Context) ([]string, error) {
	logger := s.g.Logger
	defer s.writeMetrics()

	desc, err := descriptor.Load(s.flags.Songbook,
		descriptor.WithBaseDataDirs(s.flags.DataDir...),
		descriptor.WithLogger(logger))
	if err != nil {
		s.recorder.IncLoadFailure("load")
		return nil, err
	}

	basename := descriptor.Basename(s.flags.Songbook)
	orch, err := build.New(desc, basename, builder.Factory(s.builderOptions()...),
		build.WithRecorder(s.recorder),
		build.WithLogger(logger))
	if err != nil {
		s.recorder.IncLoadFailure("construct")
		return desc.DataDirs(), err
	}

	steps := build.ParseSteps(s.flags.Steps)
	if len(steps) == 0 {
		steps = builder.DefaultSteps
	}
	execErr := orch.Execute(ctx, steps)
	if err := RenderSummary(s.g.Stdout, orch.Report()); err != nil {
		logger.Warn("Failed to print build summary", logfields.Error(err))
	}
	return desc.DataDirs(), execErr
}

func (s *session) writeMetrics() {
	if s.flags.MetricsTextfile == "" {
		return
	}
	if err := metrics.WriteTextfile(s.registry, s.flags.MetricsTextfile); err != nil {
		s.g.Logger.Error("Failed to write metrics textfile",
			logfields.Path(s.flags.MetricsTextfile), logfields.Error(err))
	}
}
