package ws

import (
	"time"

	syncdomain "github.com/jbctechsolutions/connectsync/internal/domain/sync"
)

// Message is the envelope every event is sent in. Type is the event kind.
type Message struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// ErrorPayload carries an Error event; the wrapped error is flattened to text.
type ErrorPayload struct {
	Target      syncdomain.Target `json:"target"`
	Message     string            `json:"message"`
	Recoverable bool              `json:"recoverable"`
}

// SyncRequest is the body of POST /api/sync. ThreadID zero syncs the
// conversation list.
type SyncRequest struct {
	DeviceID string `json:"device_id"`
	ThreadID int64  `json:"thread_id,omitempty"`
}

// SyncResponse acknowledges a started sync.
type SyncResponse struct {
	JobID  string            `json:"job_id"`
	Target syncdomain.Target `json:"target"`
}

// NewMessage wraps evt for the wire.
func NewMessage(evt syncdomain.Event, now time.Time) Message {
	var payload any = evt
	if e, ok := evt.(syncdomain.Error); ok {
		payload = ErrorPayload{Target: e.Target, Message: e.Message(), Recoverable: e.Recoverable}
	}
	return Message{Type: evt.Kind(), Timestamp: now.UTC(), Payload: payload}
}
