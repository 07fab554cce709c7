package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/connectsync/internal/application/notify"
	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	syncdomain "github.com/jbctechsolutions/connectsync/internal/domain/sync"
	"github.com/jbctechsolutions/connectsync/internal/presentation/cli/output"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print notifications for incoming SMS, calls and files",
		Long: `Listen on the session bus until interrupted.

Incoming SMS, call state changes and shared files are printed as
notifications, filtered by the notifications section of the config.
Events already shown by another connectsync process are skipped. The
config file is watched and notification settings apply immediately.

With -o json every event is printed as one JSON line instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := requireContainer()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			format := outputFormat()
			printer := output.NewEventPrinter(
				output.WithEventWriter(cmd.OutOrStdout()),
				output.WithEventFormat(format),
				output.WithEventColor(format != output.FormatJSON && output.IsColorSupported()),
			)

			var opts []notify.Option
			if format == output.FormatJSON {
				opts = append(opts, notify.WithSink(printer))
			} else {
				opts = append(opts,
					notify.WithSink(statusOnly(printer)),
					notify.WithNotifier(printNotifications(formatterFor(cmd))),
				)
			}
			svc, err := c.NotifyService(opts...)
			if err != nil {
				return err
			}
			if err := c.RunPruner(ctx); err != nil {
				return err
			}
			if err := c.WatchConfig(appLoader(), globalFlags.ConfigFile); err != nil {
				c.Logger().Warn("config reload disabled", "error", err.Error())
			}

			svc.Run(ctx)
			return nil
		},
	}
	return cmd
}

// statusOnly forwards device changes and errors. Notifications are printed
// by the notifier instead.
func statusOnly(sink ports.EventSink) ports.EventSink {
	return ports.EventSinkFunc(func(evt syncdomain.Event) {
		switch evt.(type) {
		case syncdomain.DevicesChanged, syncdomain.Error:
			sink.Publish(evt)
		}
	})
}

// printNotifications renders notifications as one line each.
func printNotifications(f *output.Formatter) notify.Notifier {
	return notify.NotifierFunc(func(_ context.Context, n notify.Notification) {
		origin := f.Dim("(" + n.DeviceID + ")")
		if n.Body == "" {
			f.Println("%s %s", f.Bold(n.Summary), origin)
			return
		}
		f.Println("%s %s: %s", f.Bold(n.Summary), origin, n.Body)
	})
}
