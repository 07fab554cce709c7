package notify

import (
	"strings"
	"time"

	syncdomain "github.com/jbctechsolutions/connectsync/internal/domain/sync"
)

// Timeout bounds for rendered notifications.
const (
	DefaultTimeout = 5 * time.Second
	MinTimeout     = time.Second
	MaxTimeout     = 30 * time.Second
)

// DefaultRefreshDebounce collapses bursts of device signals.
const DefaultRefreshDebounce = 3 * time.Second

// Settings controls which events become notifications and what they show.
type Settings struct {
	SMS     bool
	Calls   bool
	Files   bool
	Devices bool // Forward debounced device refreshes to the sink

	ShowSender  bool
	ShowContent bool

	ShowCallerName   bool
	ShowCallerNumber bool

	Timeout         time.Duration
	RefreshDebounce time.Duration
}

// DefaultSettings enables everything.
func DefaultSettings() Settings {
	return Settings{
		SMS:              true,
		Calls:            true,
		Files:            true,
		Devices:          true,
		ShowSender:       true,
		ShowContent:      true,
		ShowCallerName:   true,
		ShowCallerNumber: true,
		Timeout:          DefaultTimeout,
		RefreshDebounce:  DefaultRefreshDebounce,
	}
}

// Normalize clamps the timeout into range and fills zero durations.
func (s Settings) Normalize() Settings {
	switch {
	case s.Timeout == 0:
		s.Timeout = DefaultTimeout
	case s.Timeout < MinTimeout:
		s.Timeout = MinTimeout
	case s.Timeout > MaxTimeout:
		s.Timeout = MaxTimeout
	}
	if s.RefreshDebounce < 0 {
		s.RefreshDebounce = 0
	}
	return s
}

// Notification is a rendered, user-facing notice.
type Notification struct {
	Kind     string        `json:"kind"`
	DeviceID string        `json:"device_id"`
	Summary  string        `json:"summary"`
	Body     string        `json:"body,omitempty"`
	Timeout  time.Duration `json:"timeout"`
}

var callLabels = map[string]string{
	"ringing":    "Incoming call",
	"missedCall": "Missed call",
	"talking":    "Call in progress",
}

// Render turns an event into a notification. It returns false for events
// that are not notifications or whose class is disabled.
func Render(evt syncdomain.Event, s Settings) (Notification, bool) {
	s = s.Normalize()
	switch e := evt.(type) {
	case syncdomain.SmsReceived:
		if !s.SMS {
			return Notification{}, false
		}
		n := Notification{Kind: e.Kind(), DeviceID: e.DeviceID, Summary: "New message", Timeout: s.Timeout}
		if s.ShowSender {
			if from := e.Message.PrimaryAddress(); from != "" {
				n.Summary = "Message from " + from
			}
		}
		if s.ShowContent {
			n.Body = e.Message.Body
			if n.Body == "" && len(e.Message.Attachments) > 0 {
				n.Body = "[attachment]"
			}
		}
		return n, true

	case syncdomain.CallReceived:
		if !s.Calls {
			return Notification{}, false
		}
		label, ok := callLabels[e.Event]
		if !ok {
			label = "Call: " + e.Event
		}
		device := e.DeviceName
		if device == "" {
			device = e.DeviceID
		}
		return Notification{
			Kind:     e.Kind(),
			DeviceID: e.DeviceID,
			Summary:  label,
			Body:     caller(e, s) + " via " + device,
			Timeout:  s.Timeout,
		}, true

	case syncdomain.FileReceived:
		if !s.Files {
			return Notification{}, false
		}
		return Notification{
			Kind:     e.Kind(),
			DeviceID: e.DeviceID,
			Summary:  "File received",
			Body:     e.Name,
			Timeout:  s.Timeout,
		}, true
	}
	return Notification{}, false
}

func caller(e syncdomain.CallReceived, s Settings) string {
	var parts []string
	if s.ShowCallerName && e.ContactName != "" {
		parts = append(parts, e.ContactName)
	}
	if s.ShowCallerNumber && e.Number != "" {
		if len(parts) > 0 {
			parts = append(parts, "("+e.Number+")")
		} else {
			parts = append(parts, e.Number)
		}
	}
	if len(parts) == 0 {
		return "Unknown caller"
	}
	return strings.Join(parts, " ")
}
