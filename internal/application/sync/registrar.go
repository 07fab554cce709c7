// Package sync drives incremental conversation syncs: it registers signal
// filters, primes the daemon and the phone, then turns the resulting signal
// stream into a lazy, deadline-bounded event sequence.
package sync

import (
	"context"

	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	"github.com/jbctechsolutions/connectsync/internal/domain/bus"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/logging"
)

// RegisterMatches adds one filter per rule and returns how many succeeded.
// A failed rule only narrows what the session sees, so failures are logged
// and otherwise ignored.
func RegisterMatches(ctx context.Context, conn ports.BusConnection, rules []bus.MatchRule, logger *logging.Logger) int {
	ok := 0
	for _, rule := range rules {
		if err := conn.AddMatch(ctx, rule); err != nil {
			logger.WarnContext(ctx, "match rule not registered",
				"rule", rule.String(),
				"error", err.Error(),
			)
			continue
		}
		ok++
	}
	logger.DebugContext(ctx, "match rules registered", "registered", ok, "requested", len(rules))
	return ok
}
