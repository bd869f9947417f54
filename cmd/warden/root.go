package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/warden/internal/logging"
	"github.com/aretw0/warden/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfigFile = "warden.yaml"

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden supervises components in isolated worker processes",
	Long: `Warden runs each configured component in its own worker process, restarts
it according to its keep-alive policy and routes named signals to it.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initViper)

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is ./"+defaultConfigFile+" when present)")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", "text", "log format: text or json")
	flags.String("http-addr", "", "control API address (overrides http.addr)")
	flags.String("redis-addr", "", "Redis address (overrides redis.addr)")

	for _, key := range []string{"config", "log-level", "log-format", "http-addr", "redis-addr"} {
		_ = viper.BindPFlag(key, flags.Lookup(key))
	}
}

// initViper binds WARDEN_* environment variables, e.g. WARDEN_HTTP_ADDR.
func initViper() {
	viper.SetEnvPrefix("WARDEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads the config file and applies flag and environment overrides.
func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	cfg, err := config.Load(path)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, fs.ErrNotExist):
		cfg = config.Default()
	default:
		return nil, err
	}

	if viper.IsSet("log-level") {
		cfg.Log.Level = viper.GetString("log-level")
	}
	if viper.IsSet("log-format") {
		cfg.Log.Format = viper.GetString("log-format")
	}
	if viper.IsSet("http-addr") {
		cfg.HTTP.Addr = viper.GetString("http-addr")
	}
	if viper.IsSet("redis-addr") {
		cfg.Redis.Addr = viper.GetString("redis-addr")
	}
	return cfg, nil
}

// newLogger builds the application logger and exports the level to workers.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	os.Setenv(logging.EnvLevel, level.String())
	return logging.NewWithFormat(level, cfg.Log.Format)
}

// controlAddr resolves the control API address used by client commands.
func controlAddr() string {
	if addr := viper.GetString("http-addr"); addr != "" {
		return addr
	}
	if cfg, err := loadConfig(); err == nil && cfg.HTTP.Addr != "" {
		return cfg.HTTP.Addr
	}
	return ":8700"
}
