package sms

import (
	"fmt"
	"math"

	domerrors "github.com/jbctechsolutions/connectsync/internal/domain/errors"
)

// minMessageFields is the field count of the oldest message layout the
// daemon emits (no sub id, no attachments).
const minMessageFields = 8

// ParseMessage decodes a normalized ConversationMessage struct:
// (event i, body s, addresses a(s), date x, type i, read i, thread x, uid i,
// sub x, attachments a(xsss)). Trailing fields are optional.
func ParseMessage(v any) (Message, error) {
	fields, ok := v.([]any)
	if !ok {
		return Message{}, domerrors.Decode("conversation message", fmt.Errorf("expected struct, got %T", v))
	}
	if len(fields) < minMessageFields {
		return Message{}, domerrors.Decode("conversation message", fmt.Errorf("expected at least %d fields, got %d", minMessageFields, len(fields)))
	}

	var (
		m   Message
		err error
	)
	if m.Event, err = int32Field(fields, 0); err != nil {
		return Message{}, err
	}
	body, ok := fields[1].(string)
	if !ok {
		return Message{}, fieldErr(1, "string", fields[1])
	}
	m.Body = body
	if m.Addresses, err = parseAddresses(fields[2]); err != nil {
		return Message{}, err
	}
	if m.Date, err = int64Field(fields, 3); err != nil {
		return Message{}, err
	}
	typ, err := int32Field(fields, 4)
	if err != nil {
		return Message{}, err
	}
	m.Type = MessageType(typ)
	read, err := int32Field(fields, 5)
	if err != nil {
		return Message{}, err
	}
	m.Read = read != 0
	if m.ThreadID, err = int64Field(fields, 6); err != nil {
		return Message{}, err
	}
	if m.UID, err = int32Field(fields, 7); err != nil {
		return Message{}, err
	}
	if len(fields) > 8 {
		if m.SubID, err = int64Field(fields, 8); err != nil {
			return Message{}, err
		}
	}
	if len(fields) > 9 {
		if m.Attachments, err = parseAttachments(fields[9]); err != nil {
			return Message{}, err
		}
	}
	return m, nil
}

// ParseMessages decodes every element of an array, skipping malformed ones.
// The second result counts the skipped elements.
func ParseMessages(v any) ([]Message, int) {
	items, ok := v.([]any)
	if !ok {
		return nil, 0
	}
	out := make([]Message, 0, len(items))
	skipped := 0
	for _, item := range items {
		m, err := ParseMessage(item)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, m)
	}
	return out, skipped
}

// ParseLoaded decodes the conversationLoaded body (conversation id, count).
func ParseLoaded(body []any) (threadID int64, count uint64, err error) {
	if len(body) < 2 {
		return 0, 0, domerrors.Decode("conversation loaded", fmt.Errorf("expected 2 arguments, got %d", len(body)))
	}
	if threadID, err = int64Field(body, 0); err != nil {
		return 0, 0, err
	}
	if n, ok := body[1].(uint64); ok {
		return threadID, n, nil
	}
	n, err := int64Field(body, 1)
	if err != nil {
		return 0, 0, err
	}
	if n < 0 {
		return 0, 0, domerrors.Decode("conversation loaded", fmt.Errorf("negative count %d", n))
	}
	return threadID, uint64(n), nil
}

func parseAddresses(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fieldErr(2, "array", v)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch a := item.(type) {
		case string:
			out = append(out, a)
		case []any:
			if len(a) == 0 {
				continue
			}
			s, ok := a[0].(string)
			if !ok {
				return nil, fieldErr(2, "(s)", item)
			}
			out = append(out, s)
		default:
			return nil, fieldErr(2, "(s)", item)
		}
	}
	return out, nil
}

func parseAttachments(v any) ([]Attachment, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fieldErr(9, "array", v)
	}
	out := make([]Attachment, 0, len(items))
	for _, item := range items {
		f, ok := item.([]any)
		if !ok || len(f) < 4 {
			return nil, fieldErr(9, "(xsss)", item)
		}
		id, err := int64Field(f, 0)
		if err != nil {
			return nil, err
		}
		mime, ok1 := f[1].(string)
		data, ok2 := f[2].(string)
		uniq, ok3 := f[3].(string)
		if !ok1 || !ok2 || !ok3 {
			return nil, fieldErr(9, "(xsss)", item)
		}
		out = append(out, Attachment{PartID: id, MimeType: mime, Base64File: data, UniqueIdentifier: uniq})
	}
	return out, nil
}

func int64Field(fields []any, i int) (int64, error) {
	n, ok := ToInt64(fields[i])
	if !ok {
		return 0, fieldErr(i, "integer", fields[i])
	}
	return n, nil
}

func int32Field(fields []any, i int) (int32, error) {
	n, err := int64Field(fields, i)
	if err != nil {
		return 0, err
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, domerrors.Decode("conversation message", fmt.Errorf("field %d: %d overflows int32", i, n))
	}
	return int32(n), nil
}

func fieldErr(i int, want string, got any) error {
	return domerrors.Decode("conversation message", fmt.Errorf("field %d: expected %s, got %T", i, want, got))
}

// ToInt64 converts any integer kind to int64. Unsigned values above
// math.MaxInt64 do not fit and report false.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	default:
		return 0, false
	}
}
