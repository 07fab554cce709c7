package sync

import (
	"context"
	"fmt"

	"github.com/jbctechsolutions/connectsync/internal/application/peer"
	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	"github.com/jbctechsolutions/connectsync/internal/domain/bus"
	"github.com/jbctechsolutions/connectsync/internal/domain/sms"
	syncdomain "github.com/jbctechsolutions/connectsync/internal/domain/sync"
)

// Profile names.
const (
	ProfileConversationList   = "conversation_list"
	ProfileConversationThread = "conversation_thread"
)

// DefaultMessagesPerPage is the thread page size requested from both surfaces.
const DefaultMessagesPerPage = 50

// Profile parametrizes a Sequence: what it syncs, how long it waits and how
// it reads signals.
type Profile interface {
	Name() string
	Target() syncdomain.Target
	Timeouts() syncdomain.Timeouts
	Rules() []bus.MatchRule

	// LoadCache returns items to replay before listening. Called once, on the
	// first connection only.
	LoadCache(ctx context.Context, conn ports.BusConnection) ([]syncdomain.Item, error)

	// Priming returns the ordered calls that make the remote side start talking.
	Priming(conn ports.BusConnection) []PrimingCall

	Classify(msg bus.Message) Classification
}

// ConversationList syncs the thread list of one device.
type ConversationList struct {
	target     syncdomain.Target
	timeouts   syncdomain.Timeouts
	classifier *ConversationClassifier
}

// NewConversationList creates the list profile for deviceID.
func NewConversationList(deviceID string, timeouts syncdomain.Timeouts) *ConversationList {
	target := syncdomain.Target{DeviceID: deviceID}
	return &ConversationList{
		target:   target,
		timeouts: timeouts,
		classifier: NewConversationClassifier(target,
			[]string{bus.MemberConversationCreated, bus.MemberConversationUpdated, bus.MemberConversationLoaded},
			func(m sms.Message) syncdomain.Item { return sms.Summarize(m) },
		),
	}
}

func (p *ConversationList) Name() string                          { return ProfileConversationList }
func (p *ConversationList) Target() syncdomain.Target             { return p.target }
func (p *ConversationList) Timeouts() syncdomain.Timeouts         { return p.timeouts }
func (p *ConversationList) Rules() []bus.MatchRule                { return p.classifier.Rules() }
func (p *ConversationList) Classify(m bus.Message) Classification { return p.classifier.Classify(m) }

// LoadCache reads the daemon's active conversations, newest first, one per thread.
func (p *ConversationList) LoadCache(ctx context.Context, conn ports.BusConnection) ([]syncdomain.Item, error) {
	msgs, _, err := peer.NewConversations(conn, p.target.DeviceID).ActiveConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cached conversations: %w", err)
	}
	summaries := sms.SummarizeConversations(msgs)
	items := make([]syncdomain.Item, len(summaries))
	for i, s := range summaries {
		items[i] = s
	}
	return items, nil
}

// Priming asks the store to replay its threads, then asks the phone for fresh ones.
func (p *ConversationList) Priming(conn ports.BusConnection) []PrimingCall {
	store := peer.NewConversations(conn, p.target.DeviceID)
	live := peer.NewSMS(conn, p.target.DeviceID)
	return []PrimingCall{
		{Surface: SurfaceStore, Method: "requestAllConversationThreads", Invoke: store.RequestAllConversationThreads},
		{Surface: SurfaceLive, Method: "requestAllConversations", Invoke: live.RequestAllConversations},
	}
}

// ConversationThread syncs the messages of one thread.
type ConversationThread struct {
	target     syncdomain.Target
	timeouts   syncdomain.Timeouts
	pageSize   int
	classifier *ConversationClassifier
}

// NewConversationThread creates the thread profile. pageSize <= 0 selects
// DefaultMessagesPerPage.
func NewConversationThread(deviceID string, threadID int64, pageSize int, timeouts syncdomain.Timeouts) *ConversationThread {
	if pageSize <= 0 {
		pageSize = DefaultMessagesPerPage
	}
	target := syncdomain.Target{DeviceID: deviceID, ThreadID: threadID}
	return &ConversationThread{
		target:   target,
		timeouts: timeouts,
		pageSize: pageSize,
		classifier: NewConversationClassifier(target,
			[]string{bus.MemberConversationUpdated, bus.MemberConversationLoaded},
			func(m sms.Message) syncdomain.Item { return m },
		),
	}
}

func (p *ConversationThread) Name() string                          { return ProfileConversationThread }
func (p *ConversationThread) Target() syncdomain.Target             { return p.target }
func (p *ConversationThread) Timeouts() syncdomain.Timeouts         { return p.timeouts }
func (p *ConversationThread) Rules() []bus.MatchRule                { return p.classifier.Rules() }
func (p *ConversationThread) Classify(m bus.Message) Classification { return p.classifier.Classify(m) }

// LoadCache returns nothing: thread messages always come from the store read.
func (p *ConversationThread) LoadCache(context.Context, ports.BusConnection) ([]syncdomain.Item, error) {
	return nil, nil
}

// Priming requests the first page from the store, then from the phone.
func (p *ConversationThread) Priming(conn ports.BusConnection) []PrimingCall {
	store := peer.NewConversations(conn, p.target.DeviceID)
	live := peer.NewSMS(conn, p.target.DeviceID)
	thread, page := p.target.ThreadID, p.pageSize
	return []PrimingCall{
		{Surface: SurfaceStore, Method: "requestConversation", Invoke: func(ctx context.Context) error {
			return store.RequestConversation(ctx, thread, 0, int32(page))
		}},
		{Surface: SurfaceLive, Method: "requestConversation", Invoke: func(ctx context.Context) error {
			return live.RequestConversation(ctx, thread, 0, int64(page))
		}},
	}
}
