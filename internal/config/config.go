// Package config provides configuration management for vidembed using Viper
// for loading from files, environment variables and command-line flags.
//
// The configuration covers the site being processed (source and destination
// directories, which files carry directives, what to do with unknown tags),
// the embed registry (identifier escaping and extra providers), the preview
// server and development options such as live reload.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/vidembed/internal/directive"
	"github.com/conneroisu/vidembed/internal/embed"
	"github.com/conneroisu/vidembed/internal/errors"
	"github.com/conneroisu/vidembed/internal/registry"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "VIDEMBED"

type Config struct {
	Site        SiteConfig        `mapstructure:"site" yaml:"site"`
	Embed       EmbedConfig       `mapstructure:"embed" yaml:"embed"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Development DevelopmentConfig `mapstructure:"development" yaml:"development"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

type SiteConfig struct {
	Source      string   `mapstructure:"source" yaml:"source"`
	Destination string   `mapstructure:"destination" yaml:"destination"`
	Extensions  []string `mapstructure:"extensions" yaml:"extensions"`
	Exclude     []string `mapstructure:"exclude" yaml:"exclude"`
	UnknownTags string   `mapstructure:"unknown_tags" yaml:"unknown_tags"`
	Workers     int      `mapstructure:"workers" yaml:"workers"`
	Manifest    string   `mapstructure:"manifest" yaml:"manifest"`
}

type EmbedConfig struct {
	EscapeIdentifiers bool             `mapstructure:"escape_identifiers" yaml:"escape_identifiers"`
	Providers         []ProviderConfig `mapstructure:"providers" yaml:"providers,omitempty"`
}

// ProviderConfig declares an extra embed tag. Width and height default to
// 640x510 when omitted.
type ProviderConfig struct {
	Name            string   `mapstructure:"name" yaml:"name"`
	URLTemplate     string   `mapstructure:"url_template" yaml:"url_template"`
	Width           int      `mapstructure:"width" yaml:"width"`
	Height          int      `mapstructure:"height" yaml:"height"`
	DimensionsFirst bool     `mapstructure:"dimensions_first" yaml:"dimensions_first"`
	Attributes      []string `mapstructure:"attributes" yaml:"attributes"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

type DevelopmentConfig struct {
	LiveReload bool          `mapstructure:"live_reload" yaml:"live_reload"`
	Debounce   time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("site.source", ".")
	v.SetDefault("site.destination", "_site")
	v.SetDefault("site.extensions", []string{".html", ".md", ".markdown"})
	v.SetDefault("site.exclude", []string{".git", "node_modules", "_site"})
	v.SetDefault("site.unknown_tags", string(directive.PolicyError))
	v.SetDefault("site.workers", 4)
	v.SetDefault("site.manifest", ".vidembed-manifest.yml")
	v.SetDefault("embed.escape_identifiers", false)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 4000)
	v.SetDefault("development.live_reload", true)
	v.SetDefault("development.debounce", 300*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration held by the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// --log-level is bound at the root of the key space
	if v.IsSet("log-level") {
		config.Log.Level = v.GetString("log-level")
	}

	// Slices set through env vars arrive as a single space separated string
	if len(config.Site.Extensions) == 1 && strings.Contains(config.Site.Extensions[0], " ") {
		config.Site.Extensions = strings.Fields(config.Site.Extensions[0])
	}
	for i, ext := range config.Site.Extensions {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			config.Site.Extensions[i] = "." + ext
		}
	}

	for i := range config.Embed.Providers {
		p := &config.Embed.Providers[i]
		if p.Width == 0 {
			p.Width = embed.DefaultWidth
		}
		if p.Height == 0 {
			p.Height = embed.DefaultHeight
		}
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// UnknownTagPolicy returns the parsed site.unknown_tags policy.
func (c *Config) UnknownTagPolicy() directive.Policy {
	policy, err := directive.ParsePolicy(c.Site.UnknownTags)
	if err != nil {
		return directive.PolicyError
	}
	return policy
}

// Tags converts the configured providers into embed tags.
func (c *Config) Tags() []embed.Tag {
	tags := make([]embed.Tag, 0, len(c.Embed.Providers))
	for _, p := range c.Embed.Providers {
		tags = append(tags, p.Tag())
	}
	return tags
}

// Tag converts one provider declaration into an embed tag.
func (p ProviderConfig) Tag() embed.Tag {
	return embed.Tag{
		Provider:        p.Name,
		URLTemplate:     p.URLTemplate,
		Width:           p.Width,
		Height:          p.Height,
		DimensionsFirst: p.DimensionsFirst,
		ExtraAttributes: p.Attributes,
	}
}

// NewRegistry builds the registry for this configuration: the built-in
// providers first, then configured providers, which replace a built-in of the
// same name.
func (c *Config) NewRegistry() *registry.Registry {
	reg := registry.Default(registry.WithEscaping(c.Embed.EscapeIdentifiers))
	for _, tag := range c.Tags() {
		reg.RegisterTag(tag)
	}
	return reg
}

// Address returns the preview server listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if err := validateSiteConfig(&config.Site); err != nil {
		return fmt.Errorf("site config: %w", err)
	}

	if err := validateEmbedConfig(&config.Embed); err != nil {
		return fmt.Errorf("embed config: %w", err)
	}

	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if config.Development.Debounce < 0 {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "development.debounce must not be negative")
	}

	return nil
}

func validateSiteConfig(config *SiteConfig) error {
	if err := validatePath(config.Source); err != nil {
		return fmt.Errorf("invalid source '%s': %w", config.Source, err)
	}
	if err := validatePath(config.Destination); err != nil {
		return fmt.Errorf("invalid destination '%s': %w", config.Destination, err)
	}

	src, _ := filepath.Abs(config.Source)
	dst, _ := filepath.Abs(config.Destination)
	if src == dst {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "destination must differ from source")
	}

	if len(config.Extensions) == 0 {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "at least one extension is required")
	}

	if _, err := directive.ParsePolicy(config.UnknownTags); err != nil {
		return err
	}

	if config.Workers < 1 || config.Workers > 64 {
		return fmt.Errorf("workers must be between 1 and 64, got %d", config.Workers)
	}

	return nil
}

func validateEmbedConfig(config *EmbedConfig) error {
	seen := make(map[string]bool, len(config.Providers))
	for _, p := range config.Providers {
		if err := p.Tag().Validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return errors.ErrInvalidTag(p.Name, "provider declared twice")
		}
		seen[p.Name] = true
	}
	return nil
}

func validateServerConfig(config *ServerConfig) error {
	// 0 asks the system for a free port
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	return nil
}

// validatePath validates a directory path
func validatePath(path string) error {
	if path == "" {
		return errors.ErrInvalidPath(path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
