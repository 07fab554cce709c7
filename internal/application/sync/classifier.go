package sync

import (
	"github.com/jbctechsolutions/connectsync/internal/domain/bus"
	"github.com/jbctechsolutions/connectsync/internal/domain/sms"
	syncdomain "github.com/jbctechsolutions/connectsync/internal/domain/sync"
)

// Kind is the classifier's verdict on one message.
type Kind int

const (
	Discard       Kind = iota // Unrelated or malformed; changes nothing
	Qualifying                // Carries an item for the target
	StoreComplete             // The daemon finished reading its store
	Activity                  // Daemon traffic without an item; re-arms activity only
)

// Classification is the result of classifying one message.
type Classification struct {
	Kind  Kind
	Item  syncdomain.Item // Set for Qualifying
	Count uint64          // Set for StoreComplete
	Why   string          // Set for Discard, for debug logs
}

func discard(why string) Classification {
	return Classification{Kind: Discard, Why: why}
}

// ConversationClassifier recognizes conversation signals for one target.
type ConversationClassifier struct {
	target  syncdomain.Target
	members map[string]bool
	item    func(sms.Message) syncdomain.Item
}

// NewConversationClassifier tracks the given conversation members. item maps
// a decoded message to the profile's item type.
func NewConversationClassifier(target syncdomain.Target, members []string, item func(sms.Message) syncdomain.Item) *ConversationClassifier {
	tracked := make(map[string]bool, len(members))
	for _, m := range members {
		tracked[m] = true
	}
	return &ConversationClassifier{target: target, members: tracked, item: item}
}

// Rules returns one match rule per tracked member.
func (c *ConversationClassifier) Rules() []bus.MatchRule {
	rules := make([]bus.MatchRule, 0, len(c.members))
	for _, m := range []string{bus.MemberConversationCreated, bus.MemberConversationUpdated, bus.MemberConversationLoaded} {
		if c.members[m] {
			rules = append(rules, bus.MatchRule{Interface: bus.InterfaceConversations, Member: m})
		}
	}
	return rules
}

// Classify maps msg to a Classification. It never fails: anything that does
// not decode cleanly for this target is discarded.
func (c *ConversationClassifier) Classify(msg bus.Message) Classification {
	if !msg.IsSignal() {
		return discard("not a signal")
	}
	if msg.Interface != bus.InterfaceConversations || !c.members[msg.Member] {
		return discard("untracked member")
	}
	if !bus.PathBelongsTo(msg.Path, c.target.DeviceID) {
		return discard("other device")
	}

	if msg.Member == bus.MemberConversationLoaded {
		thread, count, err := sms.ParseLoaded(msg.Body)
		if err != nil {
			return discard("malformed payload")
		}
		if !c.target.ThreadScoped() {
			// The marker counts one thread, not the device's list.
			return Classification{Kind: Activity}
		}
		if thread != c.target.ThreadID {
			return discard("other thread")
		}
		return Classification{Kind: StoreComplete, Count: count}
	}

	if len(msg.Body) == 0 {
		return discard("empty body")
	}
	m, err := sms.ParseMessage(msg.Body[0])
	if err != nil {
		return discard("malformed payload")
	}
	if c.target.ThreadScoped() && m.ThreadID != c.target.ThreadID {
		return discard("other thread")
	}
	return Classification{Kind: Qualifying, Item: c.item(m)}
}
