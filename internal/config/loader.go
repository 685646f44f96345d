package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"reportharness/pkg/logging"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFileName is looked up in the working directory when no
// explicit config file is given.
const DefaultConfigFileName = "reportharness.yaml"

// LoadConfig returns the default configuration overlaid with the file at
// path. An empty path falls back to DefaultConfigFileName; a missing default
// file is not an error, a missing explicit file is.
func LoadConfig(path string) (Config, error) {
	config := GetDefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			logging.Info("ConfigLoader", "No %s found, using defaults", path)
			return config, nil
		}
		return Config{}, NewConfigurationError(path, KindIO, "cannot read configuration file", err)
	}

	if err := decode(path, data, &config); err != nil {
		return Config{}, err
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", path)
	return config, nil
}

// decode unmarshals data into config based on the file extension. JSON is
// decoded by the YAML parser since every JSON document is valid YAML.
func decode(path string, data []byte, config *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", ".json", "":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
			return NewConfigurationError(path, KindParse, "malformed configuration", err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), config)
		if err != nil {
			return NewConfigurationError(path, KindParse, "malformed configuration", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return NewConfigurationError(path, KindParse,
				fmt.Sprintf("unknown key %q", undecoded[0].String()), nil)
		}
	default:
		return NewConfigurationError(path, KindIO, fmt.Sprintf("unsupported file extension %q", ext), nil)
	}
	return nil
}
