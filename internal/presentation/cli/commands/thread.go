package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/connectsync/internal/application"
	"github.com/jbctechsolutions/connectsync/internal/domain/sms"
	syncdomain "github.com/jbctechsolutions/connectsync/internal/domain/sync"
	"github.com/jbctechsolutions/connectsync/internal/presentation/cli/output"
)

// NewThreadCmd creates the thread command.
func NewThreadCmd() *cobra.Command {
	var reply bool

	cmd := &cobra.Command{
		Use:   "thread <thread-id>",
		Short: "Sync the messages of one conversation",
		Long: `Sync one conversation thread from a device.

The daemon's stored messages arrive first, followed by anything newer the
phone sends. With --reply an interactive prompt opens once the sync
completes; each line is sent into the thread. Exit with Ctrl-D.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			threadID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || threadID <= 0 {
				return fmt.Errorf("invalid thread id %q", args[0])
			}
			c, err := requireContainer()
			if err != nil {
				return err
			}
			device, err := deviceID(c)
			if err != nil {
				return err
			}

			res, err := runSync(cmd, c, syncdomain.Target{DeviceID: device, ThreadID: threadID})
			if err != nil {
				return err
			}
			formatter := formatterFor(cmd)
			if outputFormat() == output.FormatTable {
				if err := renderThread(formatter, threadMessages(res.Items)); err != nil {
					return err
				}
			}
			if !reply {
				return nil
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt: "> ",
				Stdout: cmd.OutOrStdout(),
				Stdin:  io.NopCloser(cmd.InOrStdin()),
			})
			if err != nil {
				return fmt.Errorf("could not create readline: %w", err)
			}
			defer rl.Close()
			return replyLoop(cmd.Context(), rl, formatter, c, device, threadID)
		},
	}

	cmd.Flags().BoolVarP(&reply, "reply", "r", false, "open a prompt to reply after syncing")

	return cmd
}

// lineReader is the part of readline the reply loop needs.
type lineReader interface {
	Readline() (string, error)
}

func replyLoop(ctx context.Context, rl lineReader, formatter *output.Formatter, c *application.Container, device string, threadID int64) error {
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := c.Send(ctx, device, threadID, "", line); err != nil {
			formatter.Error("Send failed: %s", err.Error())
			continue
		}
		formatter.Success("sent")
		if ctx.Err() != nil {
			break
		}
	}
	return nil
}

func renderThread(formatter *output.Formatter, msgs []sms.Message) error {
	if len(msgs) == 0 {
		formatter.Info("No messages")
		return nil
	}

	tableData := output.TableData{
		Columns: []output.TableColumn{
			{Header: "DATE", Width: 16, Align: output.AlignLeft},
			{Header: "", Width: 1, Align: output.AlignLeft},
			{Header: "ADDRESS", Width: 16, Align: output.AlignLeft},
			{Header: "MESSAGE", Width: 50, Align: output.AlignLeft},
		},
		Rows: make([][]string, 0, len(msgs)),
	}
	for _, m := range msgs {
		dir := ">"
		if m.Incoming() {
			dir = "<"
		}
		body := m.Body
		if body == "" && len(m.Attachments) > 0 {
			body = "[attachment]"
		}
		tableData.Rows = append(tableData.Rows, []string{
			formatDate(m.Date), dir, m.PrimaryAddress(), truncateString(body, 50),
		})
	}
	return formatter.Table(tableData)
}
