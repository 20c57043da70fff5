package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gitlab.ozon.dev/qwestard/orders/internal/client"
	"gitlab.ozon.dev/qwestard/orders/internal/config"
	"gitlab.ozon.dev/qwestard/orders/internal/logger"
)

var (
	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "orders",
	Short:         "Order registration gRPC service and demo client.",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		var err error
		cfg, err = config.LoadFromPath(path)
		if err != nil {
			return err
		}
		if host, _ := cmd.Flags().GetString("host"); host != "" {
			cfg.Host = host
		}
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.Port = port
		}

		log, err = logger.New(cfg.LogLevel)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML config file; environment variables override it")
	rootCmd.PersistentFlags().String("host", "", "server host (overrides ORDERS_HOST)")
	rootCmd.PersistentFlags().String("port", "", "server port (overrides ORDERS_PORT)")
}

func main() {
	err := rootCmd.Execute()
	if log != nil {
		_ = log.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, errorMessage(err))
		os.Exit(1)
	}
}

// errorMessage renders a failed call as "error: <code>: <details>"; other
// failures keep cobra's usual prefix.
func errorMessage(err error) string {
	var cerr *client.ClientError
	if errors.As(err, &cerr) {
		return "error: " + cerr.Error()
	}
	return "Error: " + err.Error()
}
