package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/connectsync/internal/application"
	"github.com/jbctechsolutions/connectsync/internal/domain/sms"
	syncdomain "github.com/jbctechsolutions/connectsync/internal/domain/sync"
	"github.com/jbctechsolutions/connectsync/internal/presentation/cli/output"
)

// syncResult is what a finished sync produced.
type syncResult struct {
	Items    []syncdomain.Item
	Complete *syncdomain.SyncComplete
}

// runSync drives a sequence for target to completion. Events are printed as
// they arrive unless the output is a table, which is rendered at the end.
func runSync(cmd *cobra.Command, c *application.Container, target syncdomain.Target) (syncResult, error) {
	seq, err := c.NewSequence(target)
	if err != nil {
		return syncResult{}, err
	}

	format := outputFormat()
	printer := output.NewEventPrinter(
		output.WithEventWriter(cmd.OutOrStdout()),
		output.WithEventFormat(format),
		output.WithEventColor(format != output.FormatJSON && output.IsColorSupported()),
	)

	obs := c.ObserveSync(seq)
	defer func() { _ = obs.Finish(cmd.Context()) }()

	var res syncResult
	for evt := range seq.All(cmd.Context()) {
		obs.Publish(evt)
		switch e := evt.(type) {
		case syncdomain.ItemReceived:
			res.Items = append(res.Items, e.Item)
		case syncdomain.SyncComplete:
			res.Complete = &e
		}
		if format != output.FormatTable {
			printer.Publish(evt)
		}
	}
	if res.Complete == nil {
		if err := cmd.Context().Err(); err != nil {
			return res, err
		}
		return res, fmt.Errorf("sync of %s ended early", target)
	}
	return res, nil
}

// latestSummaries keeps the newest summary per thread, newest first.
func latestSummaries(items []syncdomain.Item) []sms.ConversationSummary {
	byThread := make(map[int64]sms.ConversationSummary)
	for _, item := range items {
		s, ok := item.(sms.ConversationSummary)
		if !ok {
			continue
		}
		if prev, seen := byThread[s.ThreadID]; !seen || s.Timestamp >= prev.Timestamp {
			byThread[s.ThreadID] = s
		}
	}
	out := make([]sms.ConversationSummary, 0, len(byThread))
	for _, s := range byThread {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ThreadID < out[j].ThreadID
	})
	return out
}

// threadMessages deduplicates messages by id, oldest first.
func threadMessages(items []syncdomain.Item) []sms.Message {
	seen := make(map[string]struct{})
	var out []sms.Message
	for _, item := range items {
		m, ok := item.(sms.Message)
		if !ok {
			continue
		}
		if _, dup := seen[m.ItemID()]; dup {
			continue
		}
		seen[m.ItemID()] = struct{}{}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func formatDate(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

// truncateString truncates a string to the specified length with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
