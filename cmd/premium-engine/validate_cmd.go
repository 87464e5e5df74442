package main

import (
	"errors"
	"fmt"

	"github.com/iwvelando/premium-engine/internal/apperr"
	"github.com/iwvelando/premium-engine/internal/tariff"
	"github.com/spf13/cobra"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var dump bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the tariff document",
		Long: `Load the configured tariff document and report every problem found.

Examples:
  premium-engine validate
  premium-engine validate --tariff tariff.yaml
  premium-engine validate --tariff tariff.json --dump`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			doc, err := a.loadTariff(cmd.Context())
			if err != nil {
				var e *apperr.Error
				if errors.As(err, &e) && len(e.Violations) > 0 {
					fmt.Fprintf(out, "%s\n", e.Message)
					for _, v := range e.Violations {
						fmt.Fprintf(out, "  - %s\n", v)
					}
				}
				return err
			}

			fmt.Fprintf(out, "tariff %s from %s is valid: %d categories, %d coverages, %d packs\n",
				doc.Version(), doc.Origin(), len(doc.Categories()), len(doc.CoverageIDs()), len(doc.Packs()))
			if dump {
				data, err := tariff.EncodeYAML(doc)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dump, "dump", false, "print the normalized document as YAML")
	return cmd
}
