package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the configuration file looked up in the working directory.
const DefaultFileName = ".vidembed.yml"

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	cfg, err := LoadFrom(viper.New())
	if err != nil {
		// defaults are static and always validate
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteFile writes the configuration to path, refusing to overwrite an
// existing file unless force is set.
func (c *Config) WriteFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
