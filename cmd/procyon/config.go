package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Supported values for the "backend" setting.
const (
	backendBolt     = "bolt"
	backendLog      = "log"
	backendSQLite   = "sqlite"
	backendPostgres = "postgres"
)

// config is the CLI configuration.
//
// Values are read from flags, PROCYON_* environment variables and the
// procyon.yaml configuration file, in that order of precedence.
type config struct {
	Backend  string         `mapstructure:"backend"`
	Bolt     fileConfig     `mapstructure:"bolt"`
	SQLite   fileConfig     `mapstructure:"sqlite"`
	Postgres postgresConfig `mapstructure:"postgres"`
	Plans    plansConfig    `mapstructure:"plans"`
	Log      logConfig      `mapstructure:"log"`
}

type fileConfig struct {
	Path string `mapstructure:"path"`
}

type postgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type plansConfig struct {
	Dir string `mapstructure:"dir"`
}

type logConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max-size-mb"`
	MaxBackups int    `mapstructure:"max-backups"`
	MaxAgeDays int    `mapstructure:"max-age-days"`
	Debug      bool   `mapstructure:"debug"`
}

// bindFlags declares the persistent configuration flags on root and binds
// them to v.
func bindFlags(root *cobra.Command, v *viper.Viper) {
	f := root.PersistentFlags()

	f.String("config", "", "path to the configuration file (default ./procyon.yaml)")
	f.String("backend", backendBolt, "persistence backend: bolt, log, sqlite or postgres")
	f.String("bolt.path", "procyon.boltdb", "path to the BoltDB file used by the bolt and log backends")
	f.String("sqlite.path", "procyon.sqlite", "path to the SQLite database file")
	f.String("postgres.dsn", "", "PostgreSQL connection string")
	f.String("plans.dir", "", "directory containing migration plan files")
	f.String("log.file", "", "also write log messages to this file, rotating it as it grows")
	f.Int("log.max-size-mb", 10, "size of the log file before it is rotated")
	f.Int("log.max-backups", 3, "number of rotated log files to keep")
	f.Int("log.max-age-days", 7, "number of days to keep rotated log files")
	f.Bool("log.debug", false, "include debug messages in the log")

	if err := v.BindPFlags(f); err != nil {
		panic(err)
	}
}

// loadConfig reads the configuration file named by the --config flag, if
// any, and returns the merged configuration.
func loadConfig(cmd *cobra.Command, v *viper.Viper) (config, error) {
	v.SetEnvPrefix("PROCYON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("procyon")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return config{}, fmt.Errorf("unable to read configuration: %w", err)
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return config{}, fmt.Errorf("unable to decode configuration: %w", err)
	}

	switch cfg.Backend {
	case backendBolt, backendLog, backendSQLite:
	case backendPostgres:
		if cfg.Postgres.DSN == "" {
			return config{}, fmt.Errorf("the %s backend requires a DSN", backendPostgres)
		}
	default:
		return config{}, fmt.Errorf("unsupported backend '%s'", cfg.Backend)
	}

	return cfg, nil
}
