package listen

import (
	"context"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/jbctechsolutions/connectsync/internal/application/peer"
	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	"github.com/jbctechsolutions/connectsync/internal/domain/bus"
	"github.com/jbctechsolutions/connectsync/internal/domain/sms"
	syncdomain "github.com/jbctechsolutions/connectsync/internal/domain/sync"
)

// Listener names.
const (
	NameDeviceRefresh = "device_refresh"
	NameFileShare     = "file_share"
	NameSmsReceived   = "sms_received"
	NameCallReceived  = "call_received"
)

const (
	memberShareReceived = "shareReceived"
	memberCallReceived  = "callReceived"
)

// DeviceRefresh reports daemon, pairing, battery, notification and property
// changes as DevicesChanged so consumers re-read device state.
func DeviceRefresh() Spec {
	return Spec{
		Name: NameDeviceRefresh,
		Rules: []bus.MatchRule{
			{Sender: bus.Destination},
			{Interface: bus.InterfaceProperties},
		},
		Allow: []Match{
			{bus.InterfaceDaemon, "deviceAdded"},
			{bus.InterfaceDaemon, "deviceRemoved"},
			{bus.InterfaceDaemon, "deviceVisibilityChanged"},
			{bus.InterfaceDaemon, "announcedNameChanged"},
			{bus.InterfaceDevice, "reachableChanged"},
			{bus.InterfaceDevice, "trustedChanged"},
			{bus.InterfaceDevice, "pairingRequest"},
			{bus.InterfaceDevice, "hasPairingRequestsChanged"},
			{bus.InterfaceBattery, AnyMember},
			{bus.InterfaceNotifications, AnyMember},
			{bus.InterfaceProperties, "PropertiesChanged"},
		},
		Decode: func(msg bus.Message, _ time.Time) (syncdomain.Event, *ports.DedupKey, bool) {
			id, _ := bus.DeviceIDFromPath(msg.Path)
			return syncdomain.DevicesChanged{DeviceID: id, Source: msg.Name()}, nil, true
		},
	}
}

// FileShare reports files received through the share plugin. The daemon
// repeats shareReceived several times per transfer, so events are keyed on
// the url.
func FileShare() Spec {
	return Spec{
		Name:  NameFileShare,
		Rules: []bus.MatchRule{{Interface: bus.InterfaceShare, Member: memberShareReceived}},
		Allow: []Match{{bus.InterfaceShare, memberShareReceived}},
		Decode: func(msg bus.Message, now time.Time) (syncdomain.Event, *ports.DedupKey, bool) {
			id, ok := bus.DeviceIDFromPath(msg.Path)
			if !ok || len(msg.Body) == 0 {
				return nil, nil, false
			}
			fileURL, ok := msg.Body[0].(string)
			if !ok || fileURL == "" {
				return nil, nil, false
			}
			evt := syncdomain.FileReceived{DeviceID: id, URL: fileURL, Name: FileName(fileURL)}
			return evt, &ports.DedupKey{Class: ports.DedupFile, Identity: fileURL, Timestamp: now}, true
		},
	}
}

// FileName returns the last path segment of a file url, or "file".
func FileName(fileURL string) string {
	p := strings.TrimPrefix(fileURL, "file://")
	if u, err := url.PathUnescape(p); err == nil {
		p = u
	}
	name := path.Base(p)
	if name == "" || name == "." || name == "/" {
		return "file"
	}
	return name
}

// SmsReceived reports incoming messages. Only inbox messages qualify, and
// each (thread, date) pair is surfaced once.
func SmsReceived() Spec {
	return Spec{
		Name:  NameSmsReceived,
		Rules: []bus.MatchRule{{Interface: bus.InterfaceConversations, Member: bus.MemberConversationUpdated}},
		Allow: []Match{{bus.InterfaceConversations, bus.MemberConversationUpdated}},
		Decode: func(msg bus.Message, _ time.Time) (syncdomain.Event, *ports.DedupKey, bool) {
			id, ok := bus.DeviceIDFromPath(msg.Path)
			if !ok || len(msg.Body) == 0 {
				return nil, nil, false
			}
			m, err := sms.ParseMessage(msg.Body[0])
			if err != nil || m.Type != sms.TypeInbox {
				return nil, nil, false
			}
			key := &ports.DedupKey{
				Class:     ports.DedupSMS,
				Identity:  strconv.FormatInt(m.ThreadID, 10) + ":" + strconv.FormatInt(m.Date, 10),
				Timestamp: m.Time(),
			}
			return syncdomain.SmsReceived{DeviceID: id, Message: m}, key, true
		},
	}
}

// CallReceived reports telephony events (ringing, missed calls, ...). The
// device name is looked up over the bus, falling back to the device id.
func CallReceived() Spec {
	return Spec{
		Name:  NameCallReceived,
		Rules: []bus.MatchRule{{Interface: bus.InterfaceTelephony, Member: memberCallReceived}},
		Allow: []Match{{bus.InterfaceTelephony, memberCallReceived}},
		Decode: func(msg bus.Message, now time.Time) (syncdomain.Event, *ports.DedupKey, bool) {
			id, ok := bus.DeviceIDFromPath(msg.Path)
			if !ok || len(msg.Body) < 3 {
				return nil, nil, false
			}
			event, ok1 := msg.Body[0].(string)
			number, ok2 := msg.Body[1].(string)
			contact, ok3 := msg.Body[2].(string)
			if !ok1 || !ok2 || !ok3 {
				return nil, nil, false
			}
			evt := syncdomain.CallReceived{DeviceID: id, Event: event, Number: number, ContactName: contact}
			return evt, &ports.DedupKey{Class: ports.DedupCall, Identity: event + ":" + number, Timestamp: now}, true
		},
		Enrich: func(ctx context.Context, conn ports.BusConnection, evt syncdomain.Event) syncdomain.Event {
			call, ok := evt.(syncdomain.CallReceived)
			if !ok {
				return evt
			}
			call.DeviceName = call.DeviceID
			if name, err := peer.NewDevice(conn, call.DeviceID).Name(ctx); err == nil && name != "" {
				call.DeviceName = name
			}
			return call
		},
	}
}

// ByName returns the spec with the given name.
func ByName(name string) (Spec, bool) {
	switch name {
	case NameDeviceRefresh:
		return DeviceRefresh(), true
	case NameFileShare:
		return FileShare(), true
	case NameSmsReceived:
		return SmsReceived(), true
	case NameCallReceived:
		return CallReceived(), true
	}
	return Spec{}, false
}
