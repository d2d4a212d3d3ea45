package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/vidembed/internal/config"
	"github.com/conneroisu/vidembed/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vidembed",
	Short: "Expand video embed tags into iframe markup",
	Long: `vidembed turns embed directives such as {% youtube dQw4w9WgXcQ %} into
the iframe markup the provider expects.

Built-in tags:
  youtube    http://www.youtube.com/embed/<id>
  vimeo      http://player.vimeo.com/video/<id>
  bliptv     http://blip.tv/play/<id>.html?p=1

Quick Start:
  vidembed render youtube dQw4w9WgXcQ   Render one embed
  vidembed expand post.md               Expand directives in a file
  vidembed build                        Expand a whole site
  vidembed serve                        Preview the site with live reload
  vidembed list                         List registered tags`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .vidembed.yml, can also use VIDEMBED_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig points viper at the config file and enables environment
// overrides with the VIDEMBED_ prefix. A missing config file is not an error.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(strings.TrimSuffix(config.DefaultFileName, ".yml"))
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig applies flag overrides, loads the configuration and builds the
// logger for a command.
func loadConfig(cmd *cobra.Command, overrides map[string]interface{}) (*config.Config, logging.Logger, error) {
	for key, value := range overrides {
		viper.Set(key, value)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLogger(cfg *config.Config, w io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    w,
		Component: "vidembed",
	}), nil
}
