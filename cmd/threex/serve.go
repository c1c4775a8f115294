package main

import (
	"github.com/spf13/cobra"

	"pkt.systems/pslog"

	"threex/internal/config"
	"threex/internal/models"
	"threex/internal/server"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			registry := models.NewRegistry(cfg)
			defer registry.StopAll()
			if registry.Count() == 0 {
				logger.Warn("no providers enabled; every chat request will be rejected")
			}
			logger.Info("providers ready", "providers", registry.Enabled())

			srv := server.New(server.Config{AllowedOrigins: cfg.Server.AllowedOrigins}, registry)
			return server.ListenAndServe(cmd.Context(), cfg.Server.Addr, srv.Handler())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
