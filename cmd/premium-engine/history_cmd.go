package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/iwvelando/premium-engine/internal/store"
	"github.com/iwvelando/premium-engine/pkg/format"
	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the most recently issued quotes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if a.conf.Database.DSN == "" {
				return fmt.Errorf("database.dsn is required to list quotes")
			}
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}

			db, err := store.Open(a.conf.Database.DSN)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			recs, err := store.NewRepository(db).Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list quotes: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "REFERENCE\tISSUED\tCATEGORY\tPACK\tTOTAL")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					r.Reference, r.IssuedAt.Format("2006-01-02 15:04"), r.Category, r.PackCode, format.Currency(r.TotalPremium))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of quotes to list")
	return cmd
}
