package scheduler

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"reportharness/internal/compare"
	"reportharness/internal/config"
	"reportharness/internal/containerizer"
	"reportharness/internal/engine"
	"reportharness/internal/environment"
	"reportharness/internal/gateway"
	"reportharness/internal/job"
	"reportharness/internal/metrics"
	"reportharness/internal/results"
	"reportharness/pkg/logging"

	"github.com/sourcegraph/conc/pool"
)

// Ledger entry names written by the scheduler.
const (
	ErrEnvironment = "Environment Error"
	ErrRunTest     = "run test error"
	RecordGeneral  = "General"
)

// GatewayFactory creates the gateway client for an environment published on port.
type GatewayFactory func(port int) (gateway.Client, error)

// Deps are the collaborators of a Scheduler.
type Deps struct {
	Runtime containerizer.ContainerRuntime
	// NewGateway defaults to the configured API at gateway.host:port.
	NewGateway GatewayFactory
	// Metrics defaults to a fresh recorder.
	Metrics *metrics.Recorder
	// Progress is called after every finished test case.
	Progress func(done, total int, ledger *results.Ledger)
	Logger   logging.Logger
}

// Scheduler discovers test cases and runs each in its own environment.
type Scheduler struct {
	cfg    config.Config
	deps   Deps
	images *environment.ImageBuilder
	log    logging.Logger
}

// New creates a Scheduler.
func New(cfg config.Config, deps Deps) *Scheduler {
	if deps.Logger == nil {
		deps.Logger = logging.For("Scheduler")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.NewGateway == nil {
		deps.NewGateway = func(port int) (gateway.Client, error) {
			base := "http://" + net.JoinHostPort(cfg.Gateway.Host, strconv.Itoa(port))
			return gateway.New(cfg.Gateway.API, base, cfg.Timing.ResponseTimeout, deps.Logger.With("Gateway"))
		}
	}
	return &Scheduler{
		cfg:    cfg,
		deps:   deps,
		images: environment.NewImageBuilder(deps.Runtime, cfg.Gateway, deps.Logger.With("ImageBuilder")),
		log:    deps.Logger,
	}
}

// Discover lists the test case directories under the test path in directory
// order, restricted to the configured tests when any are named.
func (s *Scheduler) Discover() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.TestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list test cases in %s: %w", s.cfg.TestPath, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if len(s.cfg.Tests) > 0 && !slices.Contains(s.cfg.Tests, e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// RunAll runs every discovered test case and returns their ledgers in
// discovery order. In parallel mode every case is launched at once; ports
// are still assigned in discovery order before each launch.
func (s *Scheduler) RunAll(ctx context.Context) ([]*results.Ledger, error) {
	names, err := s.Discover()
	if err != nil {
		return nil, err
	}
	s.log.Info("%d test cases found", len(names))

	ports := NewPortAllocator(s.cfg.BasePort)
	ledgers := make([]*results.Ledger, len(names))
	progress := newProgress(len(names), s.deps.Progress)

	if !s.cfg.RunParallel {
		for i, name := range names {
			if ctx.Err() != nil {
				s.log.Warn("Run cancelled, skipping %d remaining test cases", len(names)-i)
				ledgers = ledgers[:i]
				break
			}
			port, slot := ports.Next()
			ledgers[i] = s.RunOne(ctx, name, port, slot)
			progress.done(ledgers[i])
		}
	} else {
		p := pool.New()
		for i, name := range names {
			port, slot := ports.Next()
			p.Go(func() {
				ledgers[i] = s.RunOne(ctx, name, port, slot)
				progress.done(ledgers[i])
			})
		}
		p.Wait()
	}

	for _, l := range ledgers {
		s.deps.Metrics.RecordLedger(l)
	}
	return ledgers, nil
}

// RunOne runs one test case against its own environment published on port.
// slot offsets the engine host ports so concurrent environments never
// collide. The environment is always offered for teardown, whatever failed.
func (s *Scheduler) RunOne(ctx context.Context, name string, port, slot int) *results.Ledger {
	log := s.log.With("Test " + name)
	ledger := results.NewLedger(name)
	dir := filepath.Join(s.cfg.TestPath, name)
	outputDir := filepath.Join(dir, compare.OutputDirName)

	log.Info("Running test case on port %d", port)
	if err := clearDir(outputDir); err != nil {
		log.Warn("Failed to clear %s: %v", outputDir, err)
	}

	apps, err := appFiles(dir)
	if err != nil {
		ledger.AddError(ErrEnvironment, "input files", err)
		return ledger
	}

	image, err := s.images.Build(ctx)
	if err != nil {
		s.deps.Metrics.RecordError("image", err)
		ledger.AddError(ErrEnvironment, "gateway image", err)
		return ledger
	}

	prov := environment.NewProvisioner(s.deps.Runtime, s.cfg, environment.Options{
		OutputDir:          outputDir,
		GatewayImage:       image,
		EngineHostPortBase: s.cfg.Engine.HostPortBase + slot*s.cfg.Engine.PoolSize,
	}, log.With("Environment"))
	defer s.teardown(ctx, prov, log)

	start := time.Now()
	err = prov.Create(ctx, port, apps)
	s.deps.Metrics.ObserveEnvironment(time.Since(start), err)
	if err != nil {
		log.Error(err, "Environment creation failed")
		s.deps.Metrics.RecordError("environment", err)
		ledger.AddError(ErrEnvironment, "create", err)
		return ledger
	}

	// engines need time to load the apps
	if err := sleep(ctx, s.cfg.Timing.SettleDelay); err != nil {
		ledger.AddError(ErrRunTest, "settle", err)
		return ledger
	}

	s.runJobs(ctx, dir, port, prov.Environment(), ledger, log)
	return ledger
}

// runJobs runs every job description of the test case, each followed by the
// baseline comparison. Jobs share the environment and are serialized unless
// concurrent jobs are enabled.
func (s *Scheduler) runJobs(ctx context.Context, dir string, port int, env environment.Environment, ledger *results.Ledger, log logging.Logger) {
	files, err := jobFiles(dir)
	if err != nil {
		ledger.AddResult(results.Record{Name: RecordGeneral})
		ledger.AddError(ErrRunTest, "job descriptions", err)
		return
	}
	if len(files) == 0 {
		log.Warn("No job descriptions found in %s", dir)
		return
	}

	gw, err := s.deps.NewGateway(port)
	if err != nil {
		ledger.AddResult(results.Record{Name: RecordGeneral})
		ledger.AddError(ErrRunTest, "gateway client", err)
		return
	}

	var counter job.SelectionCounter
	if len(env.EngineHostPorts) > 0 {
		counter = engine.NewClient(s.cfg.Engine.Host, env.EngineHostPorts[0], s.cfg.Timing.EngineRPCTimeout, log.With("Engine"))
	}

	p := pool.New()
	if !s.cfg.ConcurrentJobs {
		p = p.WithMaxGoroutines(1)
	}
	for _, file := range files {
		p.Go(func() {
			desc, err := job.Load(file)
			if err != nil {
				ledger.AddResult(results.Record{Name: RecordGeneral})
				ledger.AddError(ErrRunTest, filepath.Base(file), err)
				return
			}

			job.NewClient(job.Params{
				Gateway:     gw,
				Counter:     counter,
				Timing:      s.cfg.Timing,
				TestCaseDir: dir,
				OutputDir:   filepath.Join(dir, compare.OutputDirName),
				Ledger:      ledger,
				Metrics:     s.deps.Metrics,
				Logger:      log.With("Job " + filepath.Base(file)),
			}).Run(ctx, desc)

			cmp := compare.New(dir, ledger, log.With("Compare"))
			for _, ext := range s.cfg.CompareExtensions {
				cmp.Run(ctx, ext)
			}
		})
	}
	p.Wait()
}

// teardown copies the diagnostic log and removes the environment. It runs
// on a fresh context so an interrupted run still cleans up.
func (s *Scheduler) teardown(ctx context.Context, prov *environment.Provisioner, log logging.Logger) {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timing.TeardownTimeout)
	defer cancel()

	_ = sleep(ctx, s.cfg.Timing.DiagnosticDelay)
	if err := prov.CopyDiagnosticLog(tctx); err != nil {
		log.Warn("Failed to copy gateway log: %v", err)
	}

	if !s.cfg.RemoveEnvironment {
		log.Info("Keeping environment %s", prov.Environment().ID)
		return
	}
	if err := prov.Destroy(tctx); err != nil {
		s.deps.Metrics.RecordError("teardown", err)
		log.Warn("Environment teardown incomplete: %v", err)
	}
}

// clearDir removes the contents of dir, creating it when missing.
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return os.MkdirAll(dir, 0755)
}

// appFiles returns the absolute paths of the engine apps of a test case.
func appFiles(dir string) ([]string, error) {
	return filesWithExt(dir, ".qvf")
}

// jobFiles returns the job descriptions of a test case.
func jobFiles(dir string) ([]string, error) {
	return filesWithExt(dir, ".json")
}

func filesWithExt(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ext) {
			files = append(files, filepath.Join(abs, e.Name()))
		}
	}
	return files, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
