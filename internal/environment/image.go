package environment

import (
	"context"
	"fmt"
	"sync"

	"reportharness/internal/config"
	"reportharness/internal/containerizer"
	"reportharness/pkg/logging"
)

// ImageBuilder resolves the gateway image once per process. With a local
// build configured the image is built on the first call; later calls return
// the cached tag or the cached error.
type ImageBuilder struct {
	runtime containerizer.ContainerRuntime
	cfg     config.GatewayConfig
	log     logging.Logger

	once sync.Once
	tag  string
	err  error
}

// NewImageBuilder creates an ImageBuilder for the gateway configuration.
func NewImageBuilder(runtime containerizer.ContainerRuntime, cfg config.GatewayConfig, log logging.Logger) *ImageBuilder {
	return &ImageBuilder{runtime: runtime, cfg: cfg, log: log}
}

// Build returns the image gateway containers should run.
func (b *ImageBuilder) Build(ctx context.Context) (string, error) {
	b.once.Do(func() {
		if !b.cfg.UseLocalBuild {
			b.tag = b.cfg.Image
			return
		}
		b.log.Info("Building gateway image %s from %s", b.cfg.LocalTag, b.cfg.BuildContext)
		if err := b.runtime.BuildImage(ctx, b.cfg.LocalTag, b.cfg.BuildContext); err != nil {
			b.err = fmt.Errorf("gateway image build failed: %w", err)
			return
		}
		b.tag = b.cfg.LocalTag
	})
	return b.tag, b.err
}
