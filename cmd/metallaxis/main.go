// Package main provides the metallaxis command-line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/SL-LAIDLAW/metallaxis/internal/config"
	"github.com/SL-LAIDLAW/metallaxis/internal/query"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// usageError marks errors caused by bad arguments rather than bad data.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// app carries the state shared by subcommands once the root has initialised.
type app struct {
	cfgFile  string
	verbose  bool
	settings config.Settings
	logger   *zap.Logger
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{}
	cmd := newRootCmd(a)
	err := cmd.ExecuteContext(ctx)
	if a.logger != nil {
		a.logger.Sync()
	}
	if err == nil {
		return ExitSuccess
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var ue *usageError
	var fe *query.InvalidFilterError
	if errors.As(err, &ue) || errors.As(err, &fe) {
		return ExitUsage
	}
	return ExitError
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "metallaxis",
		Short: "Ingest, annotate and query VCF variant files",
		Long: `metallaxis validates VCF files (plain, gzip, bzip2 or xz), computes summary
statistics, expands INFO fields into columns and stores everything in an
indexed DuckDB database that can be annotated with Ensembl VEP and queried.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "Config file (default ~/.metallaxis.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().String("workdir", "", "Directory for stores and scratch files")

	root.AddCommand(newIngestCmd(a))
	root.AddCommand(newAnnotateCmd(a))
	root.AddCommand(newQueryCmd(a))
	root.AddCommand(newShowCmd(a))
	root.AddCommand(newExportCmd(a))
	root.AddCommand(newConfigCmd())

	return root
}

// flagKeys maps command-line flags to the config keys they override.
var flagKeys = map[string]string{
	"workdir":           config.KeyWorkDir,
	"chunk-size":        config.KeyChunkSize,
	"compression":       config.KeyCompression,
	"compression-level": config.KeyCompressionLevel,
	"export-parquet":    config.KeyExportParquet,
	"url":               config.KeyAnnotateURL,
	"batch-size":        config.KeyBatchSize,
	"max-retries":       config.KeyMaxRetries,
}

// init reads the config file, environment and flags, then builds the logger.
func (a *app) init(cmd *cobra.Command) error {
	v := viper.GetViper()
	config.SetDefaults(v)
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigName(config.FileName)
		v.SetConfigType(config.FileType)
	}
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || a.cfgFile != "" {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	// config get/set work on raw values and must run even when the stored
	// configuration does not validate.
	if isConfigCmd(cmd) {
		return nil
	}

	settings, err := config.Load(v)
	if err != nil {
		return &usageError{err}
	}
	a.settings = settings

	logger, err := newLogger(settings.LogLevel, a.verbose)
	if err != nil {
		return &usageError{err}
	}
	a.logger = logger
	return nil
}

// newLogger builds a console logger on stderr.
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.KeyLogLevel, err)
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Development = false
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func isConfigCmd(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" {
			return true
		}
	}
	return false
}
