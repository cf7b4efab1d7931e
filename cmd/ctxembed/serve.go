package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"ctxembed/internal/gateway"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP embedding gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := setup(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		addr := rt.cfg.Gateway.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		srv := gateway.NewServer(rt.provider, rt.cfg.Gateway.Token)
		slog.Info("starting gateway",
			"addr", addr,
			"provider", rt.provider.Provider(),
			"model", rt.provider.Model(),
			"auth", rt.cfg.Gateway.Token != "",
		)
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "override gateway listen address")
}
