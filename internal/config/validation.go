package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks the configuration for values no run can work with. All
// problems are collected and returned together as a
// ConfigurationErrorCollection.
func (c Config) Validate() error {
	var errs ConfigurationErrorCollection

	if strings.TrimSpace(c.TestPath) == "" {
		errs.AddField("testPath", "is required")
	}
	validatePort(&errs, "basePort", c.BasePort)
	validatePort(&errs, "engine.port", c.Engine.Port)
	validatePort(&errs, "engine.hostPortBase", c.Engine.HostPortBase)
	validatePort(&errs, "gateway.port", c.Gateway.Port)

	if c.Engine.PoolSize < 1 {
		errs.AddField("engine.poolSize", fmt.Sprintf("must be at least 1, got %d", c.Engine.PoolSize))
	}
	if strings.TrimSpace(c.Engine.Image) == "" {
		errs.AddField("engine.image", "is required")
	}

	validateOneOf(&errs, "gateway.api", c.Gateway.API, []string{GatewayAPIV1, GatewayAPILegacy})
	if c.Gateway.UseLocalBuild {
		if strings.TrimSpace(c.Gateway.BuildContext) == "" {
			errs.AddField("gateway.buildContext", "is required when gateway.useLocalBuild is set",
				"point buildContext at the directory holding the gateway Dockerfile")
		}
		if strings.TrimSpace(c.Gateway.LocalTag) == "" {
			errs.AddField("gateway.localTag", "is required when gateway.useLocalBuild is set")
		}
	} else if strings.TrimSpace(c.Gateway.Image) == "" {
		errs.AddField("gateway.image", "is required unless gateway.useLocalBuild is set")
	}

	if c.Timing.PollInterval <= 0 {
		errs.AddField("timing.pollInterval", "must be positive")
	}
	if c.Timing.ResponseTimeout <= 0 {
		errs.AddField("timing.responseTimeout", "must be positive")
	}
	if c.Timing.TeardownTimeout <= 0 {
		errs.AddField("timing.teardownTimeout", "must be positive", "teardown runs on its own context bounded by this value")
	}
	if c.Timing.EngineRPCTimeout < 0 {
		errs.AddField("timing.engineRPCTimeout", "must not be negative", "use 0 to wait for engine calls without a limit")
	}
	if c.Timing.MaxPollDuration < 0 {
		errs.AddField("timing.maxPollDuration", "must not be negative", "use 0 to poll without an upper bound")
	}
	delays := []struct {
		field string
		value time.Duration
	}{
		{"timing.settleDelay", c.Timing.SettleDelay},
		{"timing.uploadSettleDelay", c.Timing.UploadSettleDelay},
		{"timing.diagnosticDelay", c.Timing.DiagnosticDelay},
	}
	for _, d := range delays {
		if d.value < 0 {
			errs.AddField(d.field, "must not be negative")
		}
	}

	if len(c.CompareExtensions) == 0 {
		errs.AddField("compareExtensions", "must list at least one extension")
	}
	for _, ext := range c.CompareExtensions {
		if strings.HasPrefix(ext, ".") || strings.TrimSpace(ext) == "" {
			errs.AddField("compareExtensions", fmt.Sprintf("invalid extension %q", ext), "write extensions without a leading dot, e.g. csv")
		}
	}

	validateOneOf(&errs, "containerRuntime", c.ContainerRuntime, []string{"docker"})

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validatePort(errs *ConfigurationErrorCollection, field string, port int) {
	if port < 1 || port > 65535 {
		errs.AddField(field, fmt.Sprintf("must be a valid port, got %d", port))
	}
}

func validateOneOf(errs *ConfigurationErrorCollection, field, value string, allowed []string) {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return
		}
	}
	errs.AddField(field, fmt.Sprintf("must be one of: %s, got %q", strings.Join(allowed, ", "), value))
}
