// Package config loads cmd/bake's instance configuration: the default
// rule file, job count, and log verbosity a user would otherwise have to
// repeat on every invocation. The pure core (pkg/bake's Matcher, Expander,
// Registry, Solver) takes no config of its own — this is purely a CLI
// convenience, read once at startup.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the shape of a .bake.yaml file.
type Config struct {
	// RulesFile is the default rule-definition file to load, used when
	// no -f/--rules flag is given.
	RulesFile string `yaml:"rules_file"`

	// Jobs is the default -j concurrency hint.
	Jobs int `yaml:"jobs"`

	// Verbose turns on -v's step tracing by default.
	Verbose bool `yaml:"verbose"`
}

// Default returns the configuration used when no .bake.yaml is present.
func Default() Config {
	return Config{RulesFile: "Bakefile", Jobs: 0, Verbose: false}
}

// Load reads and parses a .bake.yaml file at path. A missing file is not
// an error: Default() is returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
