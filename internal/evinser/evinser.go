package evinser

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/StinkyLord/sbom-evinser/internal/collector"
	"github.com/StinkyLord/sbom-evinser/internal/config"
	"github.com/StinkyLord/sbom-evinser/internal/logging"
	"github.com/StinkyLord/sbom-evinser/internal/metrics"
	"github.com/StinkyLord/sbom-evinser/internal/output"
	"github.com/StinkyLord/sbom-evinser/internal/resolver"
	"github.com/StinkyLord/sbom-evinser/internal/slicer"
	"github.com/StinkyLord/sbom-evinser/internal/store"
	"github.com/StinkyLord/sbom-evinser/internal/telemetry"
)

// Options are the per-run settings of the evinse command.
type Options struct {
	Input      string
	Output     string
	Language   string
	ProjectDir string

	Annotate     bool
	WithDataFlow bool

	// Force empties the namespace store before collecting.
	Force                bool
	SkipMavenCollector   bool
	WithDeepJarCollector bool

	// Pre-generated slice files, read instead of running the slicer when
	// they exist.
	UsagesSlicesFile   string
	DataFlowSlicesFile string
}

// Runner executes one evidence-generation run.
type Runner struct {
	Config *config.Config
	Log    *logging.Logger
	// Slicer defaults to one built from Config.
	Slicer *slicer.Slicer
	Now    func() time.Time
}

// Run generates evidence for opts.Input and writes it to opts.Output. Only a
// store failure or a failure to read or write the document is returned as an
// error; slice phases that fail are logged and skipped.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	log := r.logger()
	ctx, span := telemetry.Tracer().Start(ctx, "evinse",
		oteltrace.WithAttributes(attribute.String("language", opts.Language)))
	defer span.End()

	st, err := r.openStore(ctx, opts.Force)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "namespace store unavailable")
		return nil, err
	}
	defer st.Close()

	if isJVM(opts.Language) && !opts.SkipMavenCollector {
		r.collect(ctx, st, opts)
	}

	res := resolver.New(st, resolver.NewCache(), log, r.Config.Resolver.Concurrency)
	ev := &Evidence{}
	r.usagesPhase(ctx, res, opts, ev)
	if opts.WithDataFlow {
		r.dataFlowPhase(ctx, res, opts, ev)
	}

	asm := &Assembler{Log: log, Now: r.Now}
	_, sum, err := asm.Assemble(ev, opts.Input, opts.Output, opts.Annotate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assemble failed")
		return sum, err
	}
	log.Infow("resolver cache", "types", res.Cache().Len())
	return sum, nil
}

func (r *Runner) openStore(ctx context.Context, force bool) (*store.Store, error) {
	cfg := r.Config
	st, err := store.Open(ctx, store.Options{
		Path:      cfg.StorePath(),
		DSN:       cfg.Store.DSN,
		CacheSize: cfg.Store.CacheSize,
	})
	if err != nil {
		return nil, err
	}
	if force {
		if err := st.Reset(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
		r.logger().Infow("namespace store reset", "path", cfg.StorePath())
	}
	return st, nil
}

func (r *Runner) collect(ctx context.Context, st *store.Store, opts Options) {
	ctx, span := telemetry.Tracer().Start(ctx, "evinse.collect")
	defer span.End()
	log := r.logger()

	repo := r.Config.Collector.MavenRepo
	if repo == "" {
		repo = collector.DefaultRepoDir()
	}
	c := &collector.Collector{
		Store:       st,
		RepoDir:     repo,
		Log:         log,
		Concurrency: r.Config.Resolver.Concurrency,
	}

	bom, err := output.LoadBOM(opts.Input)
	if err != nil {
		r.skip(span, "collect", err)
		return
	}
	n, err := c.CollectBOM(ctx, bom)
	if err != nil {
		r.skip(span, "collect", err)
		return
	}
	if opts.WithDeepJarCollector {
		deep, err := c.CollectRepo(ctx, repo)
		if err != nil {
			r.skip(span, "collect", err)
			return
		}
		n += deep
	}
	log.Infow("namespace collection done", "repository", repo, "inserted", n)
	metrics.Phases.WithLabelValues("collect", "ok").Inc()
}

func (r *Runner) usagesPhase(ctx context.Context, res *resolver.Resolver, opts Options, ev *Evidence) {
	ctx, span := telemetry.Tracer().Start(ctx, "evinse.usages")
	defer span.End()

	file, err := r.sliceFile(ctx, opts, opts.UsagesSlicesFile, slicer.SliceTypeUsages, ev)
	if err != nil {
		r.skip(span, slicer.SliceTypeUsages, err)
		return
	}
	u, err := slicer.ReadUsageSlice(file)
	if err != nil {
		r.skip(span, slicer.SliceTypeUsages, err)
		return
	}
	ev.UsagesSlicesFile = file

	l := &Linker{Language: opts.Language, Resolver: res, Log: r.logger()}
	linked, err := l.Link(ctx, u)
	if linked != nil {
		ev.Locations = linked.Locations
		ev.Services = linked.Services
	}
	if err != nil {
		r.skip(span, slicer.SliceTypeUsages, err)
		return
	}
	span.SetAttributes(
		attribute.Int("purls", len(linked.Locations)),
		attribute.Int("services", len(linked.Services)))
	metrics.Phases.WithLabelValues(slicer.SliceTypeUsages, "ok").Inc()
}

func (r *Runner) dataFlowPhase(ctx context.Context, res *resolver.Resolver, opts Options, ev *Evidence) {
	ctx, span := telemetry.Tracer().Start(ctx, "evinse.data-flow")
	defer span.End()

	file, err := r.sliceFile(ctx, opts, opts.DataFlowSlicesFile, slicer.SliceTypeDataFlow, ev)
	if err != nil {
		r.skip(span, slicer.SliceTypeDataFlow, err)
		return
	}
	df, err := slicer.ReadDataFlowSlice(file)
	if err != nil {
		r.skip(span, slicer.SliceTypeDataFlow, err)
		return
	}
	ev.DataFlowSlicesFile = file

	b := &FrameBuilder{Language: opts.Language, Resolver: res, Log: r.logger()}
	frames, err := b.Build(ctx, df)
	ev.Frames = frames
	if err != nil {
		r.skip(span, slicer.SliceTypeDataFlow, err)
		return
	}
	span.SetAttributes(attribute.Int("purls", len(frames)))
	metrics.Phases.WithLabelValues(slicer.SliceTypeDataFlow, "ok").Inc()
}

// sliceFile returns preGenerated when that file exists and otherwise runs the
// slicer, recording its temp dir in ev for cleanup.
func (r *Runner) sliceFile(ctx context.Context, opts Options, preGenerated, sliceType string, ev *Evidence) (string, error) {
	if preGenerated != "" {
		if _, err := os.Stat(preGenerated); err == nil {
			r.logger().Infow("using existing slice", "type", sliceType, "file", preGenerated)
			return preGenerated, nil
		}
	}
	result, err := r.slicer().CreateSlice(ctx, opts.Language, opts.ProjectDir, sliceType)
	if err != nil {
		return "", err
	}
	ev.TempDirs = append(ev.TempDirs, result.TempDir)
	return result.SlicesFile, nil
}

func (r *Runner) skip(span oteltrace.Span, phase string, err error) {
	r.logger().Warnw("skipping phase", "phase", phase, "error", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, phase+" skipped")
	metrics.Phases.WithLabelValues(phase, "skipped").Inc()
}

func (r *Runner) slicer() *slicer.Slicer {
	if r.Slicer != nil {
		return r.Slicer
	}
	return &slicer.Slicer{
		Binary:     r.Config.Slicer.Command,
		Timeout:    r.Config.SlicerTimeout(),
		SliceDepth: r.Config.Slicer.SliceDepth,
		Log:        r.logger(),
	}
}

func (r *Runner) logger() *logging.Logger {
	if r.Log == nil {
		return logging.Nop()
	}
	return r.Log
}

func isJVM(language string) bool {
	return language == "java" || language == "jar"
}
