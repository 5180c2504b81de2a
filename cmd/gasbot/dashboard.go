package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Fechomap/cargas-gas-sub000/internal/config"
	"github.com/Fechomap/cargas-gas-sub000/internal/dashboard"
	"github.com/Fechomap/cargas-gas-sub000/internal/db"
)

func newDashboardCmd() *cobra.Command {
	var configPath string
	var port int

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Serve the read-only HTTP dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			gormDB, err := db.Connect(cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Database)
			if err != nil {
				return err
			}

			if port == 0 {
				port = cfg.Dashboard.Port
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return dashboard.Start(ctx, dashboard.StartOpts{
				DB:   gormDB,
				Port: port,
				Out:  cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "gasbot.yaml", "path to config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	return cmd
}
