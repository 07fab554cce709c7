package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jbctechsolutions/connectsync/internal/adapters/ws"
	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	"github.com/jbctechsolutions/connectsync/internal/domain/sms"
	syncdomain "github.com/jbctechsolutions/connectsync/internal/domain/sync"
)

// EventPrinter writes events as they arrive, one line each. In JSON mode
// every line is the same envelope the websocket server sends.
type EventPrinter struct {
	mu      sync.Mutex
	writer  io.Writer
	format  Format
	colored bool
	loc     *time.Location
	now     func() time.Time
}

var _ ports.EventSink = (*EventPrinter)(nil)

// EventPrinterOption configures an EventPrinter.
type EventPrinterOption func(*EventPrinter)

// WithEventWriter sets the output writer.
func WithEventWriter(w io.Writer) EventPrinterOption {
	return func(p *EventPrinter) { p.writer = w }
}

// WithEventFormat selects text or JSON lines.
func WithEventFormat(f Format) EventPrinterOption {
	return func(p *EventPrinter) { p.format = f }
}

// WithEventColor enables or disables colored output.
func WithEventColor(enabled bool) EventPrinterOption {
	return func(p *EventPrinter) { p.colored = enabled }
}

// WithEventLocation sets the zone message times are shown in.
func WithEventLocation(loc *time.Location) EventPrinterOption {
	return func(p *EventPrinter) { p.loc = loc }
}

// NewEventPrinter creates a printer writing text to stdout.
func NewEventPrinter(opts ...EventPrinterOption) *EventPrinter {
	p := &EventPrinter{
		writer:  os.Stdout,
		format:  FormatText,
		colored: true,
		loc:     time.Local,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish implements ports.EventSink.
func (p *EventPrinter) Publish(evt syncdomain.Event) {
	if evt == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.format == FormatJSON {
		data, err := json.Marshal(ws.NewMessage(evt, p.now()))
		if err != nil {
			return
		}
		_, _ = fmt.Fprintln(p.writer, string(data))
		return
	}
	_, _ = fmt.Fprintln(p.writer, p.line(evt))
}

func (p *EventPrinter) paint(text string, c Color) string { return paint(text, c, p.colored) }

func (p *EventPrinter) stamp(ms int64) string {
	return time.UnixMilli(ms).In(p.loc).Format("2006-01-02 15:04")
}

func (p *EventPrinter) line(evt syncdomain.Event) string {
	switch e := evt.(type) {
	case syncdomain.SyncStarted:
		mode := "cold"
		if e.Warm {
			mode = "cache replayed"
		}
		return p.paint(fmt.Sprintf("syncing %s (%s)", e.Target, mode), ColorCyan)

	case syncdomain.ItemReceived:
		line := p.item(e.Item)
		if e.Cached {
			return p.paint("· ", ColorDim) + line
		}
		return "  " + line

	case syncdomain.StoreLoaded:
		return p.paint(fmt.Sprintf("store loaded: %d messages", e.Count), ColorDim)

	case syncdomain.SyncComplete:
		return p.paint(fmt.Sprintf("✓ done (%s): %d live items in %s",
			e.Reason, e.Received, e.Elapsed.Round(time.Millisecond)), ColorGreen)

	case syncdomain.Error:
		kind := "error"
		if e.Recoverable {
			kind = "retrying"
		}
		return p.paint(fmt.Sprintf("⚠ %s: %s", kind, e.Message()), ColorYellow)

	case syncdomain.DevicesChanged:
		if e.DeviceID == "" {
			return p.paint("devices changed ("+e.Source+")", ColorDim)
		}
		return p.paint(fmt.Sprintf("device %s changed (%s)", e.DeviceID, e.Source), ColorDim)

	case syncdomain.SmsReceived:
		return fmt.Sprintf("%s %s %s: %s", p.paint("sms", ColorBlue), p.stamp(e.Message.Date),
			e.Message.PrimaryAddress(), body(e.Message))

	case syncdomain.CallReceived:
		who := e.ContactName
		if who == "" {
			who = e.Number
		}
		return fmt.Sprintf("%s %s %s via %s", p.paint("call", ColorMagenta), e.Event, who, e.DeviceName)

	case syncdomain.FileReceived:
		return fmt.Sprintf("%s %s from %s", p.paint("file", ColorGreen), e.Name, e.DeviceID)

	default:
		return evt.Kind()
	}
}

func (p *EventPrinter) item(item syncdomain.Item) string {
	switch it := item.(type) {
	case sms.Message:
		dir := ">"
		if it.Incoming() {
			dir = "<"
		}
		return fmt.Sprintf("%s %s %s: %s", p.stamp(it.Date), dir, it.PrimaryAddress(), body(it))
	case sms.ConversationSummary:
		title := it.Title()
		if it.Unread {
			title = p.paint(title, ColorBold) + " *"
		}
		return fmt.Sprintf("#%d %s %s: %s", it.ThreadID, p.stamp(it.Timestamp), title, oneLine(it.LastMessage))
	default:
		return item.ItemID()
	}
}

func body(m sms.Message) string {
	if m.Body == "" && len(m.Attachments) > 0 {
		return "[attachment]"
	}
	return oneLine(m.Body)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
