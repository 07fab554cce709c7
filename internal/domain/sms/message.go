// Package sms models the conversation data KDE Connect exchanges over the bus.
package sms

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// MessageType is the Android telephony message box a message belongs to.
type MessageType int32

const (
	TypeAll    MessageType = 0
	TypeInbox  MessageType = 1
	TypeSent   MessageType = 2
	TypeDraft  MessageType = 3
	TypeOutbox MessageType = 4
	TypeFailed MessageType = 5
	TypeQueued MessageType = 6
)

// String returns a lowercase name for the message box.
func (t MessageType) String() string {
	switch t {
	case TypeAll:
		return "all"
	case TypeInbox:
		return "inbox"
	case TypeSent:
		return "sent"
	case TypeDraft:
		return "draft"
	case TypeOutbox:
		return "outbox"
	case TypeFailed:
		return "failed"
	case TypeQueued:
		return "queued"
	default:
		return "type(" + strconv.Itoa(int(t)) + ")"
	}
}

// Attachment is a message part carried alongside the body.
type Attachment struct {
	PartID           int64  `json:"part_id"`
	MimeType         string `json:"mime_type"`
	Base64File       string `json:"base64_file,omitempty"`
	UniqueIdentifier string `json:"unique_identifier"`
}

// Message is one SMS or MMS message.
type Message struct {
	Event       int32        `json:"event"`
	Body        string       `json:"body"`
	Addresses   []string     `json:"addresses"`
	Date        int64        `json:"date"`
	Type        MessageType  `json:"type"`
	Read        bool         `json:"read"`
	ThreadID    int64        `json:"thread_id"`
	UID         int32        `json:"uid"`
	SubID       int64        `json:"sub_id"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// ItemID identifies the message within its thread.
func (m Message) ItemID() string {
	return strconv.FormatInt(m.ThreadID, 10) + ":" + strconv.FormatInt(int64(m.UID), 10)
}

// Time returns the message date.
func (m Message) Time() time.Time {
	return time.UnixMilli(m.Date)
}

// Incoming reports whether the message was received rather than sent.
func (m Message) Incoming() bool {
	return m.Type == TypeInbox
}

// PrimaryAddress returns the first address, or "" for a message without one.
func (m Message) PrimaryAddress() string {
	if len(m.Addresses) == 0 {
		return ""
	}
	return m.Addresses[0]
}

// ConversationSummary is the latest state of one thread as shown in a list.
type ConversationSummary struct {
	ThreadID       int64    `json:"thread_id"`
	Addresses      []string `json:"addresses"`
	LastMessage    string   `json:"last_message"`
	Timestamp      int64    `json:"timestamp"`
	Unread         bool     `json:"unread"`
	HasAttachments bool     `json:"has_attachments"`
}

// ItemID identifies the summary by thread.
func (c ConversationSummary) ItemID() string {
	return strconv.FormatInt(c.ThreadID, 10)
}

// Title joins the participant addresses.
func (c ConversationSummary) Title() string {
	return strings.Join(c.Addresses, ", ")
}

// Summarize builds the list summary for the thread m belongs to.
func Summarize(m Message) ConversationSummary {
	return ConversationSummary{
		ThreadID:       m.ThreadID,
		Addresses:      m.Addresses,
		LastMessage:    m.Body,
		Timestamp:      m.Date,
		Unread:         !m.Read,
		HasAttachments: len(m.Attachments) > 0,
	}
}

// SummarizeConversations turns cached messages into summaries ordered
// newest first, keeping only the newest entry per thread.
func SummarizeConversations(msgs []Message) []ConversationSummary {
	out := make([]ConversationSummary, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Summarize(m))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})

	seen := make(map[int64]struct{}, len(out))
	uniq := out[:0]
	for _, c := range out {
		if _, ok := seen[c.ThreadID]; ok {
			continue
		}
		seen[c.ThreadID] = struct{}{}
		uniq = append(uniq, c)
	}
	return uniq
}
