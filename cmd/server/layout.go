package main

import (
	"github.com/spf13/cobra"

	"github.com/rl1809/grocery-inventory/internal/config"
	"github.com/rl1809/grocery-inventory/internal/core/domain"
	"github.com/rl1809/grocery-inventory/internal/core/store"
)

func newLayoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Validate and print the resolved shelf layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			layout, err := config.LoadLayout(cfg.Shop.LayoutFile)
			if err != nil {
				return err
			}

			// build it once so capacity violations are reported here
			shop := store.New[domain.Product]()
			if err := shop.Initialize(layout); err != nil {
				return err
			}

			out, err := config.MarshalLayout(shop.Layout())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
