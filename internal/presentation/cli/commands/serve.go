package commands

import (
	"context"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/connectsync/internal/adapters/ws"
	"github.com/jbctechsolutions/connectsync/internal/application/notify"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var (
		addr   string
		listen bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Stream events to websocket clients",
		Long: `Run an HTTP server that streams events over a websocket.

Clients connect to /ws and receive every sync and listener event as a JSON
message. POST /api/sync with {"device_id": "...", "thread_id": 0} starts a
sync whose events are broadcast to all clients. GET /healthz reports
liveness.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := requireContainer()
			if err != nil {
				return err
			}
			cfg := c.Config()
			if addr == "" {
				addr = cfg.Server.Address
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			broadcaster := ws.NewBroadcaster(c.Logger())
			server := ws.NewServer(broadcaster, c, cfg.DefaultDevice, cfg.Server.AllowedOrigins, c.Logger())

			var wg sync.WaitGroup
			if listen {
				svc, err := c.NotifyService(notify.WithSink(broadcaster))
				if err != nil {
					return err
				}
				if err := c.RunPruner(ctx); err != nil {
					return err
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					svc.Run(ctx)
				}()
			}
			if err := c.WatchConfig(appLoader(), globalFlags.ConfigFile); err != nil {
				c.Logger().Warn("config reload disabled", "error", err.Error())
			}

			formatterFor(cmd).Info("Listening on %s", addr)
			err = server.ListenAndServe(ctx, addr)
			cancel()
			wg.Wait()
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.address from config)")
	cmd.Flags().BoolVar(&listen, "listen", true, "also stream SMS, call, file and device events")

	return cmd
}
