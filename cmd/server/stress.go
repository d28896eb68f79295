package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rl1809/grocery-inventory/internal/adapter/handler"
	"github.com/rl1809/grocery-inventory/internal/config"
	"github.com/rl1809/grocery-inventory/internal/core/domain"
	"github.com/rl1809/grocery-inventory/internal/core/service"
	"github.com/rl1809/grocery-inventory/internal/core/store"
	"github.com/rl1809/grocery-inventory/internal/stress"
)

func newStressCommand() *cobra.Command {
	opts := stress.DefaultOptions()
	var target string

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Fire concurrent moves at a shop and check the name index afterwards",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			layout, err := config.LoadLayout(cfg.Shop.LayoutFile)
			if err != nil {
				return err
			}

			if target != "" {
				conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
				if err != nil {
					return fmt.Errorf("dial %s: %w", target, err)
				}
				defer conn.Close()

				res, err := stress.Run(cmd.Context(), stress.GRPCTarget{Client: handler.NewShopClient(conn)}, layout, opts, logger)
				if err != nil {
					return err
				}
				res.Report(cmd.OutOrStdout())
				return nil
			}

			shop := store.New[domain.Product]()
			if err := shop.Initialize(layout); err != nil {
				return err
			}
			svc := service.NewShopService(shop, nil, 0, service.WithLogger(logger))
			defer svc.Close()

			res, err := stress.Run(cmd.Context(), svc, layout, opts, logger)
			if err != nil {
				return err
			}
			res.Report(cmd.OutOrStdout())

			if err := stress.Verify(svc); err != nil {
				return fmt.Errorf("FAIL: %w", err)
			}
			logger.Info("name index consistent", zap.Int("placements", len(svc.Placements())))
			fmt.Fprintln(cmd.OutOrStdout(), "PASS: name index matches shelves")
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "gRPC address of a running shop; empty runs in-process")
	cmd.Flags().IntVar(&opts.Workers, "workers", opts.Workers, "Concurrent movers")
	cmd.Flags().IntVar(&opts.Moves, "moves", opts.Moves, "Moves per worker")
	cmd.Flags().Float64Var(&opts.FillRate, "fill", opts.FillRate, "Fraction of zones stocked before moving")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", opts.Seed, "Random seed")
	return cmd
}
