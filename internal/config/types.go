package config

import "time"

// Config is the complete configuration of a harness run. It is built once at
// process start and passed to every component constructor.
type Config struct {
	// RunParallel launches every test case at once instead of one at a time.
	RunParallel bool `yaml:"runParallel" toml:"runParallel"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel" toml:"logLevel"`
	// LogFile additionally writes log output to this file when set.
	LogFile string `yaml:"logFile,omitempty" toml:"logFile"`

	// TestPath is the root directory holding one subdirectory per test case.
	TestPath string `yaml:"testPath" toml:"testPath"`
	// Tests restricts the run to these test case names when non-empty.
	Tests []string `yaml:"tests,omitempty" toml:"tests"`

	// BasePort is the host port of the first test case's gateway.
	BasePort int `yaml:"basePort" toml:"basePort"`

	Engine  EngineConfig  `yaml:"engine" toml:"engine"`
	Gateway GatewayConfig `yaml:"gateway" toml:"gateway"`
	Timing  TimingConfig  `yaml:"timing" toml:"timing"`

	// RemoveEnvironment tears the containers, network and volume down after
	// each test case. Disable to keep them around for debugging.
	RemoveEnvironment bool `yaml:"removeEnvironment" toml:"removeEnvironment"`
	// ResourcePrefix prefixes every created network, volume and container name.
	ResourcePrefix string `yaml:"resourcePrefix" toml:"resourcePrefix"`
	// ContainerRuntime selects the container CLI (docker).
	ContainerRuntime string `yaml:"containerRuntime" toml:"containerRuntime"`

	// ConcurrentJobs runs sibling job descriptions of one test case at the
	// same time against the shared gateway. Off by default.
	ConcurrentJobs bool `yaml:"concurrentJobs" toml:"concurrentJobs"`
	// CompareExtensions lists the artifact extensions compared against the baseline.
	CompareExtensions []string `yaml:"compareExtensions" toml:"compareExtensions"`
}

// EngineConfig describes the pool of backend analytics engines.
type EngineConfig struct {
	Image string `yaml:"image" toml:"image"`
	// PoolSize is the number of engine containers per environment.
	PoolSize int `yaml:"poolSize" toml:"poolSize"`
	// Port is the engine's service port inside the container.
	Port int `yaml:"port" toml:"port"`
	// HostPortBase is the first host port engines are published on.
	// Environments receive consecutive, non-overlapping ranges.
	HostPortBase int `yaml:"hostPortBase" toml:"hostPortBase"`
	// Host is the address the harness uses to reach published engine ports.
	Host string `yaml:"host" toml:"host"`
	// CPUs limits each engine container.
	CPUs string `yaml:"cpus" toml:"cpus"`
	// Args are passed to the engine after the image name.
	Args []string `yaml:"args,omitempty" toml:"args"`
}

// GatewayConfig describes the reporting gateway container and its HTTP API.
type GatewayConfig struct {
	Image string `yaml:"image" toml:"image"`
	// Port is the gateway's HTTP port inside the container.
	Port int `yaml:"port" toml:"port"`
	// Host is the address the harness uses to reach the published gateway port.
	Host string `yaml:"host" toml:"host"`
	// CPUs limits the gateway container.
	CPUs string `yaml:"cpus" toml:"cpus"`
	// API selects the wire contract: "v1" or "legacy".
	API string `yaml:"api" toml:"api"`
	// LogPath is the gateway's internal log file copied after each run.
	LogPath string `yaml:"logPath" toml:"logPath"`

	// UseLocalBuild builds the gateway image from BuildContext once per process
	// instead of using Image.
	UseLocalBuild bool   `yaml:"useLocalBuild" toml:"useLocalBuild"`
	BuildContext  string `yaml:"buildContext,omitempty" toml:"buildContext"`
	LocalTag      string `yaml:"localTag" toml:"localTag"`
}

// TimingConfig groups every delay and timeout used during a run.
type TimingConfig struct {
	// PollInterval is the delay between two job status requests.
	PollInterval time.Duration `yaml:"pollInterval" toml:"pollInterval"`
	// MaxPollDuration bounds the status loop of one job. Zero disables the bound.
	MaxPollDuration time.Duration `yaml:"maxPollDuration" toml:"maxPollDuration"`
	// ResponseTimeout applies to every gateway HTTP request.
	ResponseTimeout time.Duration `yaml:"responseTimeout" toml:"responseTimeout"`
	// SettleDelay is waited after environment creation so engines can start.
	SettleDelay time.Duration `yaml:"settleDelay" toml:"settleDelay"`
	// UploadSettleDelay is waited after the bundle upload so the gateway can unpack it.
	UploadSettleDelay time.Duration `yaml:"uploadSettleDelay" toml:"uploadSettleDelay"`
	// DiagnosticDelay is waited before the gateway log is copied.
	DiagnosticDelay time.Duration `yaml:"diagnosticDelay" toml:"diagnosticDelay"`
	// TeardownTimeout bounds environment destruction.
	TeardownTimeout time.Duration `yaml:"teardownTimeout" toml:"teardownTimeout"`
	// EngineRPCTimeout bounds one expected-count query against an engine.
	EngineRPCTimeout time.Duration `yaml:"engineRPCTimeout" toml:"engineRPCTimeout"`
}

// Gateway API variants.
const (
	GatewayAPIV1     = "v1"
	GatewayAPILegacy = "legacy"
)
