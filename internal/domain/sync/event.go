package sync

import (
	"strconv"
	"time"

	"github.com/jbctechsolutions/connectsync/internal/domain/sms"
)

// Target identifies what a session syncs: a device, or one thread on it.
type Target struct {
	DeviceID string `json:"device_id"`
	ThreadID int64  `json:"thread_id,omitempty"`
}

// ThreadScoped reports whether the target is a single thread.
func (t Target) ThreadScoped() bool {
	return t.ThreadID != 0
}

func (t Target) String() string {
	if t.ThreadScoped() {
		return t.DeviceID + "/" + strconv.FormatInt(t.ThreadID, 10)
	}
	return t.DeviceID
}

// Item is one unit of synced data.
type Item interface {
	ItemID() string
}

var (
	_ Item = sms.Message{}
	_ Item = sms.ConversationSummary{}
)

// Reason names the deadline that ended a session.
type Reason string

const (
	ReasonHard     Reason = "hard_deadline"
	ReasonActivity Reason = "activity_deadline"
	ReasonPeer     Reason = "peer_deadline"
)

// Event is produced by sync sequences and listeners. The set is closed.
type Event interface {
	isEvent()
	Kind() string
}

// ItemReceived carries one cached or live item.
type ItemReceived struct {
	Target Target `json:"target"`
	Item   Item   `json:"item"`
	Cached bool   `json:"cached"`
}

// SyncStarted marks the switch to live listening.
type SyncStarted struct {
	Target Target `json:"target"`
	Warm   bool   `json:"warm"` // A cache was replayed first
}

// StoreLoaded reports that the daemon finished reading its local store.
type StoreLoaded struct {
	Target Target `json:"target"`
	Count  uint64 `json:"count"`
}

// SyncComplete ends a session.
type SyncComplete struct {
	Target   Target        `json:"target"`
	Reason   Reason        `json:"reason"`
	Received int           `json:"received"` // Live items emitted
	Total    uint64        `json:"total"`    // Count reported by the store marker, 0 if none arrived
	Elapsed  time.Duration `json:"elapsed"`
}

// Error is a recoverable failure; the sequence keeps going.
type Error struct {
	Target      Target `json:"target"`
	Err         error  `json:"-"`
	Recoverable bool   `json:"recoverable"`
}

// Message returns the error text.
func (e Error) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// DevicesChanged asks consumers to refresh device state.
type DevicesChanged struct {
	DeviceID string `json:"device_id,omitempty"`
	Source   string `json:"source"` // interface.member that triggered it
}

// FileReceived reports a file shared from a device.
type FileReceived struct {
	DeviceID string `json:"device_id"`
	URL      string `json:"url"`
	Name     string `json:"name"`
}

// SmsReceived reports an incoming message.
type SmsReceived struct {
	DeviceID string      `json:"device_id"`
	Message  sms.Message `json:"message"`
}

// CallReceived reports a telephony event.
type CallReceived struct {
	DeviceID    string `json:"device_id"`
	DeviceName  string `json:"device_name,omitempty"`
	Event       string `json:"event"` // ringing, talking, missedCall, ...
	Number      string `json:"number"`
	ContactName string `json:"contact_name"`
}

func (ItemReceived) isEvent()   {}
func (SyncStarted) isEvent()    {}
func (StoreLoaded) isEvent()    {}
func (SyncComplete) isEvent()   {}
func (Error) isEvent()          {}
func (DevicesChanged) isEvent() {}
func (FileReceived) isEvent()   {}
func (SmsReceived) isEvent()    {}
func (CallReceived) isEvent()   {}

func (ItemReceived) Kind() string   { return "item_received" }
func (SyncStarted) Kind() string    { return "sync_started" }
func (StoreLoaded) Kind() string    { return "store_loaded" }
func (SyncComplete) Kind() string   { return "sync_complete" }
func (Error) Kind() string          { return "error" }
func (DevicesChanged) Kind() string { return "devices_changed" }
func (FileReceived) Kind() string   { return "file_received" }
func (SmsReceived) Kind() string    { return "sms_received" }
func (CallReceived) Kind() string   { return "call_received" }
