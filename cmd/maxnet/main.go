package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/maxnet-vpn/maxnet/internal/interfaces/cli/migrate"
	"github.com/maxnet-vpn/maxnet/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "maxnet",
		Short: "maxnet - VPN access lifecycle service",
		Long:  `maxnet manages VPN access credentials end to end: webhook-driven grants, address pool allocation, WireGuard peer reconciliation and expiry.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
