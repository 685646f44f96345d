package config

import "time"

const (
	// DefaultTestPath is where test case directories are looked up.
	DefaultTestPath = "./assets"

	// DefaultBasePort is the first gateway host port.
	DefaultBasePort = 8099

	// DefaultEngineImage is the analytics engine image used for the backend pool.
	DefaultEngineImage = "qlikcore/engine:12.612.0"

	// DefaultGatewayImage is the published reporting gateway image.
	DefaultGatewayImage = "senseexcel/ser-engine-rest:latest"

	// DefaultGatewayLogPath is the gateway's log file inside its container.
	DefaultGatewayLogPath = "/root/senseexcel/ser-engine-rest/ser-engine-rest-reporting.log"
)

// GetDefaultConfig returns the configuration used when no file or flag overrides a value.
func GetDefaultConfig() Config {
	return Config{
		RunParallel:       false,
		LogLevel:          "info",
		TestPath:          DefaultTestPath,
		BasePort:          DefaultBasePort,
		RemoveEnvironment: true,
		ResourcePrefix:    "rh",
		ContainerRuntime:  "docker",
		ConcurrentJobs:    false,
		CompareExtensions: []string{"csv"},
		Engine: EngineConfig{
			Image:        DefaultEngineImage,
			PoolSize:     2,
			Port:         9076,
			HostPortBase: 9076,
			Host:         "localhost",
			CPUs:         "1",
			Args: []string{
				"-S", "DocumentDirectory=/apps",
				"-S", "AcceptEULA=yes",
				"-S", "SessionLogVerbosity=5",
			},
		},
		Gateway: GatewayConfig{
			Image:    DefaultGatewayImage,
			Port:     80,
			Host:     "localhost",
			CPUs:     "2",
			API:      GatewayAPIV1,
			LogPath:  DefaultGatewayLogPath,
			LocalTag: "reportharness/gateway:local",
		},
		Timing: TimingConfig{
			PollInterval:      time.Second,
			MaxPollDuration:   30 * time.Minute,
			ResponseTimeout:   10 * time.Second,
			SettleDelay:       10 * time.Second,
			UploadSettleDelay: time.Second,
			DiagnosticDelay:   time.Second,
			TeardownTimeout:   2 * time.Minute,
			EngineRPCTimeout:  30 * time.Second,
		},
	}
}
