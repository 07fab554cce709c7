// Package bus holds transport-neutral descriptions of D-Bus traffic: the
// messages the core classifies, the match rules it registers and the calls
// it issues. Adapters convert wire types into these before they reach the
// application layer, so bodies contain only plain Go values.
package bus

import (
	"fmt"
	"strings"
)

// MessageType mirrors the four D-Bus message kinds.
type MessageType int

const (
	TypeSignal MessageType = iota
	TypeMethodCall
	TypeMethodReturn
	TypeError
)

// String returns the wire name of the message type.
func (t MessageType) String() string {
	switch t {
	case TypeSignal:
		return "signal"
	case TypeMethodCall:
		return "method_call"
	case TypeMethodReturn:
		return "method_return"
	case TypeError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Message is one incoming bus message with a normalized body.
//
// Body values are limited to bool, integer and float kinds, string, []any
// (arrays and structs alike) and map[any]any. Variants are unwrapped.
type Message struct {
	Type      MessageType
	Sender    string
	Path      string
	Interface string
	Member    string
	Body      []any
}

// IsSignal reports whether the message is a signal.
func (m Message) IsSignal() bool {
	return m.Type == TypeSignal
}

// Name returns "interface.member".
func (m Message) Name() string {
	return m.Interface + "." + m.Member
}

// SplitName splits a fully qualified "interface.member" name at the last dot.
func SplitName(name string) (iface, member string) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return "", name
	}
	return name[:i], name[i+1:]
}

// MatchRule selects signals by interface and member. Empty fields match anything.
type MatchRule struct {
	Interface string
	Member    string
	Sender    string
}

// String renders the rule in D-Bus match-rule syntax.
func (r MatchRule) String() string {
	parts := []string{"type='signal'"}
	if r.Sender != "" {
		parts = append(parts, fmt.Sprintf("sender='%s'", r.Sender))
	}
	if r.Interface != "" {
		parts = append(parts, fmt.Sprintf("interface='%s'", r.Interface))
	}
	if r.Member != "" {
		parts = append(parts, fmt.Sprintf("member='%s'", r.Member))
	}
	return strings.Join(parts, ",")
}

// Matches reports whether the message satisfies the rule.
func (r MatchRule) Matches(m Message) bool {
	if !m.IsSignal() {
		return false
	}
	if r.Interface != "" && r.Interface != m.Interface {
		return false
	}
	if r.Member != "" && r.Member != m.Member {
		return false
	}
	if r.Sender != "" && r.Sender != m.Sender {
		return false
	}
	return true
}

// Call is an outbound method call.
type Call struct {
	Destination string
	Path        string
	Interface   string
	Method      string
	Args        []any
}

// String returns a short description used in logs.
func (c Call) String() string {
	return fmt.Sprintf("%s %s.%s", c.Path, c.Interface, c.Method)
}
