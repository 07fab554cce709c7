package testutil

import (
	"github.com/jbctechsolutions/connectsync/internal/domain/bus"
	"github.com/jbctechsolutions/connectsync/internal/domain/sms"
)

// RawMessage builds a normalized ConversationMessage struct body.
func RawMessage(threadID int64, uid int32, date int64, body string, typ sms.MessageType) []any {
	return []any{
		int32(0), body, []any{[]any{"+15550100"}}, date,
		int32(typ), int32(0), threadID, uid,
		int64(-1), []any{},
	}
}

// ConversationSignal builds a conversations-interface signal on a device path.
func ConversationSignal(deviceID, member string, raw []any) bus.Message {
	return bus.Message{
		Type:      bus.TypeSignal,
		Sender:    ":1.42",
		Path:      bus.DevicePath(deviceID),
		Interface: bus.InterfaceConversations,
		Member:    member,
		Body:      []any{raw},
	}
}

// UpdatedSignal is a conversationUpdated signal for one message.
func UpdatedSignal(deviceID string, threadID int64, uid int32, date int64, body string) bus.Message {
	return ConversationSignal(deviceID, bus.MemberConversationUpdated, RawMessage(threadID, uid, date, body, sms.TypeInbox))
}

// LoadedSignal is a conversationLoaded signal.
func LoadedSignal(deviceID string, threadID int64, count uint64) bus.Message {
	return bus.Message{
		Type:      bus.TypeSignal,
		Sender:    ":1.42",
		Path:      bus.DevicePath(deviceID),
		Interface: bus.InterfaceConversations,
		Member:    bus.MemberConversationLoaded,
		Body:      []any{threadID, count},
	}
}

// Signal builds an arbitrary signal.
func Signal(path, iface, member string, body ...any) bus.Message {
	return bus.Message{
		Type:      bus.TypeSignal,
		Sender:    ":1.42",
		Path:      path,
		Interface: iface,
		Member:    member,
		Body:      body,
	}
}
