package peer

import (
	"context"

	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	"github.com/jbctechsolutions/connectsync/internal/domain/bus"
)

// SMS is the device's SMS plugin: requests here travel to the phone and the
// answers come back later as conversation signals.
type SMS struct {
	conn     ports.BusConnection
	deviceID string
}

// NewSMS returns the SMS plugin proxy for deviceID.
func NewSMS(conn ports.BusConnection, deviceID string) *SMS {
	return &SMS{conn: conn, deviceID: deviceID}
}

func (s *SMS) call(ctx context.Context, method string, args ...any) error {
	_, err := s.conn.Call(ctx, bus.Call{
		Destination: bus.Destination,
		Path:        bus.SmsPath(s.deviceID),
		Interface:   bus.InterfaceSMS,
		Method:      method,
		Args:        args,
	})
	return err
}

// RequestAllConversations asks the phone for the newest message of every thread.
func (s *SMS) RequestAllConversations(ctx context.Context) error {
	return s.call(ctx, "requestAllConversations")
}

// RequestConversation asks the phone for messages [start, end) of a thread.
func (s *SMS) RequestConversation(ctx context.Context, threadID, start, end int64) error {
	return s.call(ctx, "requestConversation", threadID, start, end)
}
