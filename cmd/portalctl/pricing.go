package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"serviceportal/internal/catalog"
	"serviceportal/internal/models"
	"serviceportal/internal/services"
)

func tierRecord(t catalog.Tier) *models.PricingTier {
	return &models.PricingTier{
		Service:     string(t.Service),
		ProgramType: t.ProgramType,
		ProjectType: t.ProjectType,
		Level:       t.Level,
		BaseFee:     t.BaseFee,
		Tranche1Fee: t.Tranche1Fee,
		ProgramFee:  t.ProgramFee,
		AdvanceFee:  t.AdvanceFee,
		IsActive:    true,
	}
}

func pricingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Inspect or seed pricing tiers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the effective tiers (defaults merged with overrides)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			tiers, err := services.NewPricingService(e.store, nil, 0, e.log).List(context.Background())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SERVICE\tPROGRAM\tPROJECT\tLEVEL\tBASE\tTRANCHE1\tPROGRAM FEE\tADVANCE")
			for _, t := range tiers {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", t.Service, t.ProgramType, t.ProjectType, t.Level,
					t.BaseFee.StringFixed(2), t.Tranche1Fee.StringFixed(2), t.ProgramFee.StringFixed(2), t.AdvanceFee.StringFixed(2))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Write the built-in tiers as editable database rows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			pricing := services.NewPricingService(e.store, nil, 0, e.log)
			for _, t := range catalog.DefaultTiers() {
				if err := pricing.Upsert(context.Background(), tierRecord(t)); err != nil {
					return fmt.Errorf("seed %s/%s: %w", t.Service, t.ProgramType, err)
				}
			}
			fmt.Printf("Seeded %d pricing tiers\n", len(catalog.DefaultTiers()))
			return nil
		},
	})
	return cmd
}
