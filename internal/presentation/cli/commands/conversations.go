package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/connectsync/internal/domain/sms"
	syncdomain "github.com/jbctechsolutions/connectsync/internal/domain/sync"
	"github.com/jbctechsolutions/connectsync/internal/presentation/cli/output"
)

// NewConversationsCmd creates the conversations command.
func NewConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Short:   "Sync and list a device's conversations",
		Aliases: []string{"convs"},
		Long: `Sync the conversation list of a device.

Cached conversations are shown first, then live updates from the phone
until it goes quiet. With -o table the list is printed once the sync
completes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := requireContainer()
			if err != nil {
				return err
			}
			device, err := deviceID(c)
			if err != nil {
				return err
			}

			res, err := runSync(cmd, c, syncdomain.Target{DeviceID: device})
			if err != nil {
				return err
			}
			if outputFormat() == output.FormatTable {
				return renderConversations(formatterFor(cmd), latestSummaries(res.Items))
			}
			return nil
		},
	}
	return cmd
}

func renderConversations(formatter *output.Formatter, convs []sms.ConversationSummary) error {
	if len(convs) == 0 {
		formatter.Info("No conversations")
		return nil
	}

	tableData := output.TableData{
		Columns: []output.TableColumn{
			{Header: "THREAD", Width: 8, Align: output.AlignRight},
			{Header: "DATE", Width: 16, Align: output.AlignLeft},
			{Header: "WITH", Width: 24, Align: output.AlignLeft},
			{Header: "LAST MESSAGE", Width: 40, Align: output.AlignLeft},
		},
		Rows: make([][]string, 0, len(convs)),
	}
	for _, c := range convs {
		title := c.Title()
		if c.Unread {
			title += " *"
		}
		last := c.LastMessage
		if last == "" && c.HasAttachments {
			last = "[attachment]"
		}
		tableData.Rows = append(tableData.Rows, []string{
			strconv.FormatInt(c.ThreadID, 10),
			formatDate(c.Timestamp),
			truncateString(title, 24),
			truncateString(last, 40),
		})
	}

	if err := formatter.Table(tableData); err != nil {
		return err
	}
	formatter.Println("")
	formatter.Println("%s", formatter.Dim(fmt.Sprintf("Total: %d conversation(s)", len(convs))))
	return nil
}
