package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/connectsync/internal/domain/metrics"
	syncdomain "github.com/jbctechsolutions/connectsync/internal/domain/sync"
	"github.com/jbctechsolutions/connectsync/internal/presentation/cli/output"
)

// HistoryOutput is the JSON form of the history command.
type HistoryOutput struct {
	Since   time.Time            `json:"since"`
	Summary *metrics.Summary     `json:"summary"`
	Recent  []metrics.SyncRecord `json:"recent"`
}

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	var (
		since time.Duration
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past sync runs",
		Long: `Show how recent syncs ended.

The summary groups runs by profile and counts how each one completed:
on the hard cap, after the phone went quiet, or because the phone never
answered. Aborted runs were cancelled before a deadline was reached.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := requireContainer()
			if err != nil {
				return err
			}
			store, err := c.History()
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("history is disabled (history.enabled: false)")
			}

			filter := metrics.Since(since)
			if globalFlags.Device != "" {
				filter = filter.WithDevice(globalFlags.Device)
			}
			summary, err := store.GetSummary(cmd.Context(), filter)
			if err != nil {
				return err
			}
			filter.Limit = limit
			recent, err := store.GetSyncs(cmd.Context(), filter)
			if err != nil {
				return err
			}

			formatter := formatterFor(cmd)
			if formatter.Format() == output.FormatJSON {
				return formatter.JSON(HistoryOutput{Since: filter.StartDate, Summary: summary, Recent: recent})
			}
			return renderHistory(formatter, summary, recent)
		},
	}

	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "how far back to look")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of recent runs to list")

	return cmd
}

func renderHistory(formatter *output.Formatter, summary *metrics.Summary, recent []metrics.SyncRecord) error {
	if summary.TotalRuns == 0 {
		formatter.Info("No sync runs recorded")
		return nil
	}

	formatter.Header("Summary")
	for _, pm := range summary.Profiles {
		formatter.SubHeader(pm.Profile)
		formatter.Item("Runs", strconv.FormatInt(pm.TotalRuns, 10))
		formatter.Item("Warm", strconv.FormatInt(pm.WarmRuns, 10))
		formatter.Item("Outcomes", outcomes(pm))
		formatter.Item("Items received", strconv.FormatInt(pm.ItemsReceived, 10))
		formatter.Item("Errors", strconv.FormatInt(pm.Errors, 10))
		formatter.Item("Avg duration", pm.AvgDuration.Round(time.Millisecond).String())
		formatter.Item("Max duration", pm.MaxDuration.Round(time.Millisecond).String())
	}
	formatter.Println("")

	tableData := output.TableData{
		Columns: []output.TableColumn{
			{Header: "STARTED", Width: 16, Align: output.AlignLeft},
			{Header: "TARGET", Width: 24, Align: output.AlignLeft},
			{Header: "OUTCOME", Width: 18, Align: output.AlignLeft},
			{Header: "ITEMS", Width: 6, Align: output.AlignRight},
			{Header: "TIME", Width: 8, Align: output.AlignRight},
		},
		Rows: make([][]string, 0, len(recent)),
	}
	for _, r := range recent {
		target := r.DeviceID
		if r.ThreadID != 0 {
			target += "/" + strconv.FormatInt(r.ThreadID, 10)
		}
		tableData.Rows = append(tableData.Rows, []string{
			formatDate(r.StartedAt.UnixMilli()),
			truncateString(target, 24),
			r.Outcome,
			strconv.Itoa(r.Cached + r.Received),
			r.Duration().Round(100 * time.Millisecond).String(),
		})
	}
	return formatter.Table(tableData)
}

// outcomes renders a profile's outcome counts, aborted last.
func outcomes(pm metrics.ProfileMetrics) string {
	var parts []string
	for _, reason := range []syncdomain.Reason{syncdomain.ReasonActivity, syncdomain.ReasonPeer, syncdomain.ReasonHard} {
		if n := pm.ByOutcome[string(reason)]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", strings.TrimSuffix(string(reason), "_deadline"), n))
		}
	}
	if pm.AbortedRuns > 0 {
		parts = append(parts, fmt.Sprintf("%s %d", metrics.OutcomeAborted, pm.AbortedRuns))
	}
	return strings.Join(parts, ", ")
}
