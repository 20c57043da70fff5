package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gitlab.ozon.dev/qwestard/orders/internal/client"
	"gitlab.ozon.dev/qwestard/orders/internal/registry"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Register a demo order and stream address updates for it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		events, _ := cmd.Flags().GetInt("events")
		ctx := cmd.Context()

		var opts []client.Option
		opts = append(opts, client.WithLogger(log))
		if len(cfg.EtcdEndpoints) > 0 {
			reg, err := registry.NewEtcdRegistry(cfg.EtcdEndpoints, log)
			if err != nil {
				return err
			}
			defer reg.Close()
			opts = append(opts, client.WithRegistry(reg))
		}

		c, err := client.Dial(ctx, cfg, opts...)
		if err != nil {
			return err
		}
		defer c.Close()

		orderID, err := c.StartOrder(ctx, client.SampleStart())
		if err != nil {
			return err
		}
		log.Info("order ID", zap.String("order_id", orderID))

		updated, err := c.UpdateOrder(ctx, client.SampleEvents(events, client.SampleTime))
		if err != nil {
			return err
		}
		log.Info("received update response", zap.Bools("updated", updated))
		return nil
	},
}

func init() {
	clientCmd.Flags().Int("events", 5, "number of address updates to stream")
	rootCmd.AddCommand(clientCmd)
}
