// Package config provides configuration management for reportharness.
//
// A Config value is built once at process start from three layers, later
// layers overriding earlier ones:
//
//   - GetDefaultConfig
//   - a configuration file (.yaml, .yml and .json are read with yaml.v3,
//     .toml with BurntSushi/toml)
//   - command line flags applied by the cmd package
//
// The resulting value is validated with Config.Validate and passed by value
// to every component constructor; no package reads configuration globally.
//
// # Configuration File
//
// Without an explicit --config flag, reportharness.yaml in the working
// directory is used when present. Durations are written as Go duration
// strings:
//
//	testPath: ./assets
//	runParallel: true
//	basePort: 8099
//	engine:
//	  image: qlikcore/engine:12.612.0
//	  poolSize: 2
//	gateway:
//	  api: v1
//	  useLocalBuild: true
//	  buildContext: ../ser-engine-rest
//	timing:
//	  pollInterval: 1s
//	  maxPollDuration: 30m
//
// # Errors
//
// Load and validation failures are reported as ConfigurationError values;
// validation collects every problem into a ConfigurationErrorCollection so
// a user can fix all of them at once.
package config
