package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/connectsync/internal/presentation/cli/output"
)

// NewSendCmd creates the send command.
func NewSendCmd() *cobra.Command {
	var (
		to       string
		threadID int64
	)

	cmd := &cobra.Command{
		Use:   "send <message...>",
		Short: "Send an SMS",
		Long: `Send a message through a device.

Use --thread to reply into an existing conversation or --to to message a
number directly.`,
		Example: `  connectsync send --to +15550100 "on my way"
  connectsync send --thread 42 running late`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (to == "") == (threadID == 0) {
				return fmt.Errorf("exactly one of --to or --thread is required")
			}
			c, err := requireContainer()
			if err != nil {
				return err
			}
			device, err := deviceID(c)
			if err != nil {
				return err
			}

			formatter := formatterFor(cmd)
			body := strings.Join(args, " ")

			var spinner *output.Spinner
			if formatter.Format() != output.FormatJSON {
				spinner = output.NewSpinner("Sending...", output.WithSpinnerWriter(cmd.ErrOrStderr()),
					output.WithSpinnerColor(output.IsColorSupported()))
				spinner.Start()
			}
			err = c.Send(cmd.Context(), device, threadID, to, body)
			if spinner != nil {
				spinner.Stop()
			}
			if err != nil {
				return err
			}

			if formatter.Format() == output.FormatJSON {
				return formatter.JSON(map[string]any{"sent": true, "device_id": device, "thread_id": threadID, "to": to})
			}
			return formatter.Success("Message sent via %s", device)
		},
	}

	cmd.Flags().StringVarP(&to, "to", "t", "", "recipient phone number")
	cmd.Flags().Int64Var(&threadID, "thread", 0, "conversation thread id")

	return cmd
}
