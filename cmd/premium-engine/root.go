package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/iwvelando/premium-engine/internal/cache"
	"github.com/iwvelando/premium-engine/internal/config"
	"github.com/iwvelando/premium-engine/internal/premium"
	"github.com/iwvelando/premium-engine/internal/quote"
	"github.com/iwvelando/premium-engine/internal/store"
	"github.com/iwvelando/premium-engine/internal/tariff"
	"github.com/iwvelando/premium-engine/pkg/constants"
	"github.com/iwvelando/premium-engine/pkg/validation"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	configFile   string
	envFile      string
	logLevel     string
	outputFormat string
	tariffFile   string
}

// app holds what every command needs once flags are parsed.
type app struct {
	opts   *rootOptions
	conf   *config.Configuration
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "premium-engine",
		Short: "Price motor insurance premiums from a tariff document",
		Long: `premium-engine prices motor insurance coverages from a tariff document
and issues quotes, on the command line or over HTTP.

Examples:
  premium-engine quote --category 1 --horse-power 10
  premium-engine quote --category 2 --sub-type under3.5 --horse-power 10 --pack comfort
  premium-engine validate --tariff tariff.yaml
  premium-engine serve --server-config server-config.yaml`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", constants.DefaultConfigFile, "path to configuration file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the configuration")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.outputFormat, "output-format", "", "type of output override: pretty, csv, json")
	root.PersistentFlags().StringVar(&opts.tariffFile, "tariff", "", "tariff document file, overrides the configured source")

	root.AddCommand(
		newQuoteCmd(opts),
		newValidateCmd(opts),
		newServeCmd(opts),
		newTariffCmd(opts),
		newTokenCmd(opts),
		newHistoryCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load reads the environment and configuration and builds the logger.
func (o *rootOptions) load(cmd *cobra.Command) (*app, error) {
	if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file %s: %w", o.envFile, err)
	}

	configPath := o.configFile
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
			configPath = ""
		}
	}
	conf, err := config.LoadConfiguration(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration at %s: %w", o.configFile, err)
	}
	if o.tariffFile != "" {
		conf.Tariff.Source = config.TariffSourceFile
		conf.Tariff.File = o.tariffFile
	}
	if o.outputFormat != "" {
		conf.Output.Format = o.outputFormat
	}
	conf.Output.Format = strings.ToLower(conf.Output.Format)
	if conf.Output.Format == "" {
		conf.Output.Format = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(conf.Output.Format); err != nil {
		return nil, err
	}

	logger, err := initializeLogger(conf.Logging, o.logLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	for _, problem := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+problem, zap.String("op", "main.load"))
	}
	return &app{opts: o, conf: conf, logger: logger}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// loadTariff reads the tariff document from the configured source.
func (a *app) loadTariff(ctx context.Context) (*tariff.Document, error) {
	var (
		doc *tariff.Document
		err error
	)
	switch a.conf.Tariff.Source {
	case config.TariffSourceFile:
		doc, err = tariff.Load(ctx, tariff.NewFileSource(a.conf.Tariff.File))
	case config.TariffSourcePostgres:
		pool, poolErr := tariff.OpenPool(ctx, a.conf.Database.DSN)
		if poolErr != nil {
			return nil, poolErr
		}
		defer pool.Close()
		doc, err = tariff.Load(ctx, tariff.NewPostgresSource(pool))
	default:
		doc, err = tariff.Default()
	}
	if err != nil {
		return nil, err
	}

	a.logger.Info("loaded tariff",
		zap.String("op", "main.loadTariff"),
		zap.String("version", doc.Version()),
		zap.String("origin", doc.Origin()))
	return doc, nil
}

// quoteService wires the quote store and cache when they are configured.
// The returned function releases their connections.
func (a *app) quoteService(ctx context.Context, doc *tariff.Document) (*quote.Service, func(), error) {
	var (
		opts    []quote.Option
		closers []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if dsn := a.conf.Database.DSN; dsn != "" {
		db, err := store.Open(dsn)
		if err != nil {
			return nil, cleanup, err
		}
		if sqlDB, err := db.DB(); err == nil {
			closers = append(closers, func() { _ = sqlDB.Close() })
		}
		if a.conf.Database.Migrate {
			if err := store.Migrate(db); err != nil {
				cleanup()
				return nil, func() {}, err
			}
		}
		opts = append(opts, quote.WithStore(store.NewRepository(db)))
	}

	if addr := a.conf.Redis.Addr; addr != "" {
		client, err := cache.Open(ctx, addr, a.conf.Redis.Password, a.conf.Redis.DB)
		if err != nil {
			// A missing cache only slows lookups down.
			a.logger.Warn("quote cache unavailable",
				zap.String("op", "main.quoteService"),
				zap.String("addr", addr),
				zap.Error(err))
		} else {
			closers = append(closers, func() { _ = client.Close() })
			opts = append(opts, quote.WithCache(cache.NewRedisCache(client)))
		}
	}

	return quote.NewService(premium.NewEngine(doc, a.logger), a.logger, opts...), cleanup, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "premium-engine version %s\n", version)
		},
	}
}
