package environment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"reportharness/internal/config"
	"reportharness/internal/containerizer"
	"reportharness/pkg/logging"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"
)

// EngineAlias is the network alias every engine container answers to.
const EngineAlias = "engine"

// AppsDir is the mount point of the shared volume inside engine containers.
const AppsDir = "/apps"

// Environment is the set of resources owned by one test case run.
type Environment struct {
	ID               string
	Network          string
	Volume           string
	EngineContainers []string
	GatewayContainer string
	GatewayPort      int
	EngineHostPorts  []int
}

// Options are the per-run inputs of a Provisioner.
type Options struct {
	// OutputDir receives the gateway diagnostic log.
	OutputDir string
	// GatewayImage is the image the gateway container runs, either the
	// configured one or the tag returned by ImageBuilder.
	GatewayImage string
	// EngineHostPortBase is the first host port of this environment's engine pool.
	EngineHostPortBase int
}

// Provisioner creates and tears down one isolated environment: a network, a
// shared volume, a pool of engine containers and one gateway container.
type Provisioner struct {
	runtime containerizer.ContainerRuntime
	cfg     config.Config
	opts    Options
	log     logging.Logger

	mu             sync.Mutex
	env            Environment
	networkCreated bool
	volumeCreated  bool
}

// NewProvisioner creates a Provisioner. Nothing is created until Create is called.
func NewProvisioner(runtime containerizer.ContainerRuntime, cfg config.Config, opts Options, log logging.Logger) *Provisioner {
	if opts.GatewayImage == "" {
		opts.GatewayImage = cfg.Gateway.Image
	}
	id := uuid.New().String()
	return &Provisioner{
		runtime: runtime,
		cfg:     cfg,
		opts:    opts,
		log:     log,
		env: Environment{
			ID:      id,
			Network: fmt.Sprintf("%s-network-%s", cfg.ResourcePrefix, id),
			Volume:  fmt.Sprintf("%s-volume-%s", cfg.ResourcePrefix, id),
		},
	}
}

// Environment returns a snapshot of the resources created so far.
func (p *Provisioner) Environment() Environment {
	p.mu.Lock()
	defer p.mu.Unlock()
	env := p.env
	env.EngineContainers = append([]string(nil), p.env.EngineContainers...)
	env.EngineHostPorts = append([]int(nil), p.env.EngineHostPorts...)
	return env
}

// Create provisions the environment with the gateway published on port and
// copies inputFiles onto the shared volume. Independent steps run
// concurrently; any failure aborts the call with a *CreateError and leaves
// already created resources for Destroy.
func (p *Provisioner) Create(ctx context.Context, port int, inputFiles []string) error {
	p.log.Info("Creating environment %s on port %d", p.env.ID, port)

	if err := p.createStorage(ctx); err != nil {
		return &CreateError{Step: "network and volume", Err: err}
	}
	if err := p.createContainers(ctx, port); err != nil {
		return &CreateError{Step: "containers", Err: err}
	}
	if err := p.startContainers(ctx); err != nil {
		return &CreateError{Step: "start", Err: err}
	}
	if err := p.uploadFiles(ctx, inputFiles); err != nil {
		return &CreateError{Step: "file upload", Err: err}
	}

	p.log.Info("Environment %s ready", p.env.ID)
	return nil
}

func (p *Provisioner) createStorage(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := p.runtime.CreateNetwork(gctx, p.env.Network); err != nil {
			return err
		}
		p.mu.Lock()
		p.networkCreated = true
		p.mu.Unlock()
		return nil
	})
	g.Go(func() error {
		if err := p.runtime.CreateVolume(gctx, p.env.Volume); err != nil {
			return err
		}
		p.mu.Lock()
		p.volumeCreated = true
		p.mu.Unlock()
		return nil
	})
	return g.Wait()
}

func (p *Provisioner) createContainers(ctx context.Context, port int) error {
	poolSize := p.cfg.Engine.PoolSize
	engines := make([]string, poolSize)
	hostPorts := make([]int, poolSize)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < poolSize; i++ {
		hostPorts[i] = p.opts.EngineHostPortBase + i
		cfg := containerizer.ContainerConfig{
			Name:         fmt.Sprintf("%s-engine-%d-%s", p.cfg.ResourcePrefix, i, p.env.ID),
			Image:        p.cfg.Engine.Image,
			Network:      p.env.Network,
			NetworkAlias: EngineAlias,
			Mounts:       []containerizer.Mount{{Source: p.env.Volume, Target: AppsDir}},
			Ports:        []containerizer.PortMapping{{HostPort: hostPorts[i], ContainerPort: p.cfg.Engine.Port}},
			CPUs:         p.cfg.Engine.CPUs,
			Args:         p.cfg.Engine.Args,
		}
		g.Go(func() error {
			id, err := p.runtime.CreateContainer(gctx, cfg)
			if err != nil {
				return err
			}
			engines[i] = id
			return nil
		})
	}

	var gateway string
	g.Go(func() error {
		id, err := p.runtime.CreateContainer(gctx, containerizer.ContainerConfig{
			Name:    fmt.Sprintf("%s-gateway-%s", p.cfg.ResourcePrefix, p.env.ID),
			Image:   p.opts.GatewayImage,
			Network: p.env.Network,
			Ports:   []containerizer.PortMapping{{HostPort: port, ContainerPort: p.cfg.Gateway.Port}},
			CPUs:    p.cfg.Gateway.CPUs,
		})
		if err != nil {
			return err
		}
		gateway = id
		return nil
	})

	err := g.Wait()

	// record whatever exists, even after a failure, so Destroy can remove it
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range engines {
		if id != "" {
			p.env.EngineContainers = append(p.env.EngineContainers, id)
		}
	}
	p.env.EngineHostPorts = hostPorts
	p.env.GatewayContainer = gateway
	p.env.GatewayPort = port
	return err
}

func (p *Provisioner) containers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := append([]string(nil), p.env.EngineContainers...)
	if p.env.GatewayContainer != "" {
		ids = append(ids, p.env.GatewayContainer)
	}
	return ids
}

func (p *Provisioner) startContainers(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range p.containers() {
		g.Go(func() error {
			return p.runtime.StartContainer(gctx, id)
		})
	}
	return g.Wait()
}

// uploadFiles copies every input file into the first engine container. The
// target directory is the shared volume so every engine sees the files.
func (p *Provisioner) uploadFiles(ctx context.Context, files []string) error {
	if len(files) == 0 {
		return nil
	}
	p.mu.Lock()
	if len(p.env.EngineContainers) == 0 {
		p.mu.Unlock()
		return fmt.Errorf("no engine container to copy files into")
	}
	target := p.env.EngineContainers[0]
	p.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, file := range files {
		g.Go(func() error {
			p.log.Debug("Copying %s into %s", filepath.Base(file), AppsDir)
			return p.runtime.CopyToContainer(gctx, file, target, AppsDir+"/")
		})
	}
	return g.Wait()
}

// Destroy stops and removes every created container, then removes the
// network and the volume. Container failures are returned as a
// *DestroyError; network and volume failures are only logged.
func (p *Provisioner) Destroy(ctx context.Context) error {
	ids := p.containers()
	p.log.Info("Destroying environment %s (%d containers)", p.env.ID, len(ids))

	var errs []error

	stop := pool.New().WithErrors()
	for _, id := range ids {
		stop.Go(func() error {
			return p.runtime.StopContainer(ctx, id)
		})
	}
	if err := stop.Wait(); err != nil {
		errs = append(errs, err)
	}

	var removedMu sync.Mutex
	removed := make(map[string]bool, len(ids))
	remove := pool.New().WithErrors()
	for _, id := range ids {
		remove.Go(func() error {
			if err := p.runtime.RemoveContainer(ctx, id); err != nil {
				return err
			}
			removedMu.Lock()
			removed[id] = true
			removedMu.Unlock()
			return nil
		})
	}
	if err := remove.Wait(); err != nil {
		errs = append(errs, err)
	}

	// containers that could not be removed stay tracked for a later Destroy
	p.mu.Lock()
	var engines []string
	for _, id := range p.env.EngineContainers {
		if !removed[id] {
			engines = append(engines, id)
		}
	}
	p.env.EngineContainers = engines
	if removed[p.env.GatewayContainer] {
		p.env.GatewayContainer = ""
	}
	networkCreated, volumeCreated := p.networkCreated, p.volumeCreated
	p.mu.Unlock()

	if networkCreated {
		if err := p.runtime.RemoveNetwork(ctx, p.env.Network); err != nil {
			p.log.Warn("Failed to remove network %s: %v", p.env.Network, err)
		} else {
			p.setCreated(&p.networkCreated, false)
		}
	}
	if volumeCreated {
		if err := p.runtime.RemoveVolume(ctx, p.env.Volume); err != nil {
			p.log.Warn("Failed to remove volume %s: %v", p.env.Volume, err)
		} else {
			p.setCreated(&p.volumeCreated, false)
		}
	}

	if len(errs) > 0 {
		return &DestroyError{Errs: errs}
	}
	return nil
}

func (p *Provisioner) setCreated(flag *bool, v bool) {
	p.mu.Lock()
	*flag = v
	p.mu.Unlock()
}

// CopyDiagnosticLog copies the gateway's internal log file into the output
// directory. Callers treat a failure as non-fatal.
func (p *Provisioner) CopyDiagnosticLog(ctx context.Context) error {
	p.mu.Lock()
	gateway := p.env.GatewayContainer
	p.mu.Unlock()

	if gateway == "" {
		return fmt.Errorf("no gateway container to copy the log from")
	}
	if err := os.MkdirAll(p.opts.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return p.runtime.CopyFromContainer(ctx, gateway, p.cfg.Gateway.LogPath, p.opts.OutputDir+string(filepath.Separator))
}
