package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/fuzzbrake/internal/simulation"
	"github.com/nvandessel/fuzzbrake/internal/visualization"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and control panel",
		Long: `Start the simulation behind an HTTP JSON API with a browser control panel.

The simulation ticks in real time for as long as the server runs. Use the
panel or the API to start, stop, reset and retune it.

Examples:
  fuzzbrake serve
  fuzzbrake serve --addr :9000 --open`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			if cmd.Flags().Changed("addr") {
				env.cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
			}
			open, _ := cmd.Flags().GetBool("open")

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			engine := env.newSimulation()
			srv := visualization.NewServer(engine, env.cfg.Server, env.logger)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.ListenAndServe(gctx)
			})
			g.Go(func() error {
				err := simulation.NewDriver(engine, env.logger).Run(gctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})

			if addr := waitForAddr(gctx, srv); addr != "" {
				url := "http://" + addr + "/"
				fmt.Fprintf(cmd.ErrOrStderr(), "Serving fuzzbrake on %s\n", url)
				if open {
					if err := visualization.OpenBrowser(gctx, url); err != nil {
						env.logger.Warn("failed to open browser", "url", url, "error", err)
					}
				}
			}

			return g.Wait()
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default: server.addr from config)")
	cmd.Flags().Bool("open", false, "Open the control panel in the default browser")

	return cmd
}

// waitForAddr polls until the server is listening. It returns "" if ctx ends first.
func waitForAddr(ctx context.Context, srv *visualization.Server) string {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if addr := srv.Addr(); addr != "" {
			return addr
		}
		select {
		case <-ctx.Done():
			return ""
		case <-ticker.C:
		}
	}
}
