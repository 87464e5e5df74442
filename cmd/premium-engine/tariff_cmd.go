package main

import (
	"fmt"

	"github.com/iwvelando/premium-engine/internal/config"
	"github.com/iwvelando/premium-engine/internal/tariff"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTariffCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tariff",
		Short: "Inspect and publish tariff documents",
	}
	cmd.AddCommand(newTariffExportCmd(opts), newTariffPublishCmd(opts))
	return cmd
}

func newTariffExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print the active tariff document as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			doc, err := a.loadTariff(cmd.Context())
			if err != nil {
				return err
			}
			data, err := tariff.EncodeYAML(doc)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newTariffPublishCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <file>",
		Short: "Validate a tariff file and store it in Postgres",
		Long: `Validate a tariff document file and store it as the active tariff in
the configured database. Servers using the postgres tariff source pick it up
on their next start.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if a.conf.Database.DSN == "" {
				return fmt.Errorf("database.dsn is required to publish a tariff")
			}

			ctx := cmd.Context()
			doc, err := tariff.Load(ctx, tariff.NewFileSource(args[0]))
			if err != nil {
				return err
			}

			pool, err := tariff.OpenPool(ctx, a.conf.Database.DSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			src := tariff.NewPostgresSource(pool)
			if err := src.EnsureSchema(ctx); err != nil {
				return err
			}
			if err := src.Publish(ctx, doc); err != nil {
				return err
			}

			a.logger.Info("published tariff",
				zap.String("op", "main.tariffPublish"),
				zap.String("version", doc.Version()),
				zap.String("source", a.conf.Tariff.Source))
			if a.conf.Tariff.Source != config.TariffSourcePostgres {
				a.logger.Warn("tariff.source is not postgres; this instance will not read the published tariff",
					zap.String("op", "main.tariffPublish"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published tariff %s to %s\n", doc.Version(), src.Describe())
			return nil
		},
	}
}
