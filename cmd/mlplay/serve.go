package main

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlplayground/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve inspect, run, predict and the artifact registry over HTTP until
interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("addr") {
				a.cfg.Addr = addr
			}
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			s := server.New(store, server.Options{
				MaxUploadBytes: int64(a.cfg.MaxUploadMB) << 20,
				PreviewRows:    a.cfg.PreviewRows,
			})
			return s.ListenAndServe(ctx, a.cfg.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:8501)")
	return cmd
}
