// Package peer provides typed proxies for the KDE Connect objects the sync
// core and its helpers talk to. Proxies are stateless wrappers over a bus
// connection and never fail to build.
package peer

import (
	"context"
	"fmt"

	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	"github.com/jbctechsolutions/connectsync/internal/domain/bus"
	"github.com/jbctechsolutions/connectsync/internal/domain/sms"
)

// Address is a KDE Connect ConversationAddress, encoded as (s).
type Address struct {
	Address string
}

// Conversations is the daemon-side conversation store of one device.
type Conversations struct {
	conn     ports.BusConnection
	deviceID string
}

// NewConversations returns the store proxy for deviceID.
func NewConversations(conn ports.BusConnection, deviceID string) *Conversations {
	return &Conversations{conn: conn, deviceID: deviceID}
}

func (c *Conversations) call(ctx context.Context, method string, args ...any) ([]any, error) {
	return c.conn.Call(ctx, bus.Call{
		Destination: bus.Destination,
		Path:        bus.DevicePath(c.deviceID),
		Interface:   bus.InterfaceConversations,
		Method:      method,
		Args:        args,
	})
}

// ActiveConversations returns the newest cached message of every thread the
// daemon knows about. Malformed entries are skipped and counted.
func (c *Conversations) ActiveConversations(ctx context.Context) ([]sms.Message, int, error) {
	body, err := c.call(ctx, "activeConversations")
	if err != nil {
		return nil, 0, fmt.Errorf("activeConversations: %w", err)
	}
	if len(body) == 0 {
		return nil, 0, nil
	}
	msgs, skipped := sms.ParseMessages(body[0])
	return msgs, skipped, nil
}

// RequestAllConversationThreads asks the daemon to emit every known thread.
func (c *Conversations) RequestAllConversationThreads(ctx context.Context) error {
	_, err := c.call(ctx, "requestAllConversationThreads")
	return err
}

// RequestConversation asks the daemon to emit messages [start, end) of a thread
// from its local store, followed by conversationLoaded.
func (c *Conversations) RequestConversation(ctx context.Context, threadID int64, start, end int32) error {
	_, err := c.call(ctx, "requestConversation", threadID, start, end)
	return err
}

// ReplyToConversation sends body into an existing thread.
func (c *Conversations) ReplyToConversation(ctx context.Context, threadID int64, body string) error {
	_, err := c.call(ctx, "replyToConversation", threadID, body, []any{})
	return err
}

// SendWithoutConversation sends body to recipients, creating a thread if needed.
func (c *Conversations) SendWithoutConversation(ctx context.Context, recipients []string, body string) error {
	addrs := make([]any, len(recipients))
	for i, r := range recipients {
		addrs[i] = Address{Address: r}
	}
	_, err := c.call(ctx, "sendWithoutConversation", addrs, body, []any{})
	return err
}
