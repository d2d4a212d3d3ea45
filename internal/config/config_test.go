package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/vidembed/internal/directive"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func()
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "defaults",
			setup: func() {
				viper.Reset()
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ".", cfg.Site.Source)
				assert.Equal(t, "_site", cfg.Site.Destination)
				assert.Equal(t, []string{".html", ".md", ".markdown"}, cfg.Site.Extensions)
				assert.Equal(t, directive.PolicyError, cfg.UnknownTagPolicy())
				assert.Equal(t, 4, cfg.Site.Workers)
				assert.False(t, cfg.Embed.EscapeIdentifiers)
				assert.Equal(t, "localhost:4000", cfg.Address())
				assert.True(t, cfg.Development.LiveReload)
				assert.Equal(t, 300*time.Millisecond, cfg.Development.Debounce)
				assert.Equal(t, "info", cfg.Log.Level)
			},
		},
		{
			name: "overrides",
			setup: func() {
				viper.Reset()
				viper.Set("site.source", "content")
				viper.Set("site.destination", "public")
				viper.Set("site.extensions", []string{"html", ".txt"})
				viper.Set("site.unknown_tags", "keep")
				viper.Set("server.port", 8080)
				viper.Set("log-level", "debug")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "content", cfg.Site.Source)
				assert.Equal(t, "public", cfg.Site.Destination)
				assert.Equal(t, []string{".html", ".txt"}, cfg.Site.Extensions)
				assert.Equal(t, directive.PolicyKeep, cfg.UnknownTagPolicy())
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "debug", cfg.Log.Level)
			},
		},
		{
			name: "custom provider gets default dimensions",
			setup: func() {
				viper.Reset()
				viper.Set("embed.providers", []map[string]interface{}{
					{"name": "dailymotion", "url_template": "https://www.dailymotion.com/embed/video/{id}", "attributes": []string{"allowfullscreen"}},
				})
			},
			check: func(t *testing.T, cfg *Config) {
				require.Len(t, cfg.Embed.Providers, 1)
				assert.Equal(t, 640, cfg.Embed.Providers[0].Width)
				assert.Equal(t, 510, cfg.Embed.Providers[0].Height)

				reg := cfg.NewRegistry()
				assert.Equal(t, 4, reg.Count())
				out, err := reg.Render("dailymotion", "x7")
				require.NoError(t, err)
				assert.Equal(t,
					`<iframe src="https://www.dailymotion.com/embed/video/x7" width="640" height="510" frameborder="0" allowfullscreen></iframe>`,
					out)
			},
		},
		{
			name: "invalid port",
			setup: func() {
				viper.Reset()
				viper.Set("server.port", 70000)
			},
			expectError: true,
		},
		{
			name: "invalid unknown tag policy",
			setup: func() {
				viper.Reset()
				viper.Set("site.unknown_tags", "ignore")
			},
			expectError: true,
		},
		{
			name: "destination equals source",
			setup: func() {
				viper.Reset()
				viper.Set("site.source", "site")
				viper.Set("site.destination", "./site")
			},
			expectError: true,
		},
		{
			name: "provider without placeholder",
			setup: func() {
				viper.Reset()
				viper.Set("embed.providers", []map[string]interface{}{
					{"name": "broken", "url_template": "https://example.com/"},
				})
			},
			expectError: true,
		},
		{
			name: "duplicate provider",
			setup: func() {
				viper.Reset()
				viper.Set("embed.providers", []map[string]interface{}{
					{"name": "dup", "url_template": "https://example.com/{id}"},
					{"name": "dup", "url_template": "https://example.org/{id}"},
				})
			},
			expectError: true,
		},
		{
			name: "zero workers",
			setup: func() {
				viper.Reset()
				viper.Set("site.workers", 0)
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			t.Cleanup(viper.Reset)

			cfg, err := Load()
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestNewRegistry_ConfigOverridesBuiltin(t *testing.T) {
	v := viper.New()
	v.Set("embed.providers", []map[string]interface{}{
		{"name": "youtube", "url_template": "https://www.youtube-nocookie.com/embed/{id}", "dimensions_first": true},
	})
	v.Set("embed.escape_identifiers", true)

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	reg := cfg.NewRegistry()
	assert.True(t, reg.Escaping())
	assert.Equal(t, 3, reg.Count())

	out, err := reg.Render("youtube", "a b")
	require.NoError(t, err)
	assert.Equal(t,
		`<iframe width="640" height="510" src="https://www.youtube-nocookie.com/embed/a%20b" frameborder="0"></iframe>`,
		out)
}

func TestLoadFrom_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(`
site:
  source: pages
  destination: out
  unknown_tags: remove
development:
  debounce: 750ms
embed:
  providers:
    - name: twitch
      url_template: "https://player.twitch.tv/?video={id}"
      width: 620
      height: 378
`), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "pages", cfg.Site.Source)
	assert.Equal(t, directive.PolicyRemove, cfg.UnknownTagPolicy())
	assert.Equal(t, 750*time.Millisecond, cfg.Development.Debounce)
	require.Len(t, cfg.Tags(), 1)
	assert.Equal(t, 620, cfg.Tags()[0].Width)
}

func TestWriteFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)

	cfg := Default()
	require.NoError(t, cfg.WriteFile(path, false))
	assert.Error(t, cfg.WriteFile(path, false))
	require.NoError(t, cfg.WriteFile(path, true))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	loaded, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
