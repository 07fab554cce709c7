package commands

import (
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/connectsync/internal/adapters/dedup"
	"github.com/jbctechsolutions/connectsync/internal/presentation/cli/output"
)

// NewDedupCmd creates the dedup command group.
func NewDedupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Inspect and prune the notification dedup store",
	}

	cmd.AddCommand(newDedupPruneCmd())
	cmd.AddCommand(newDedupStatsCmd())

	return cmd
}

func newDedupPruneCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove old dedup keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := requireContainer()
			if err != nil {
				return err
			}
			gate, err := c.DedupGate()
			if err != nil {
				return err
			}
			if olderThan <= 0 {
				olderThan = c.Config().Dedup.Retention
			}

			n, err := dedup.PruneOnce(cmd.Context(), gate, olderThan, c.Logger())
			if err != nil {
				return err
			}
			formatter := formatterFor(cmd)
			if formatter.Format() == output.FormatJSON {
				return formatter.JSON(map[string]any{"pruned": n, "older_than": olderThan.String()})
			}
			return formatter.Success("Pruned %d key(s) older than %s", n, olderThan)
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age cutoff (default: dedup.retention from config)")

	return cmd
}

func newDedupStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show stored dedup keys per class",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := requireContainer()
			if err != nil {
				return err
			}
			gate, err := c.DedupGate()
			if err != nil {
				return err
			}
			stats, err := gate.Stats(cmd.Context())
			if err != nil {
				return err
			}

			formatter := formatterFor(cmd)
			if formatter.Format() == output.FormatJSON {
				return formatter.JSON(stats)
			}

			classes := make([]string, 0, len(stats.ByClass))
			for class := range stats.ByClass {
				classes = append(classes, class)
			}
			sort.Strings(classes)

			tableData := output.TableData{
				Columns: []output.TableColumn{
					{Header: "CLASS", Width: 8, Align: output.AlignLeft},
					{Header: "KEYS", Width: 10, Align: output.AlignRight},
				},
				Rows: make([][]string, 0, len(classes)+1),
			}
			for _, class := range classes {
				tableData.Rows = append(tableData.Rows, []string{class, strconv.FormatInt(stats.ByClass[class], 10)})
			}
			tableData.Rows = append(tableData.Rows, []string{"total", strconv.FormatInt(stats.Entries, 10)})
			return formatter.Table(tableData)
		},
	}
}
