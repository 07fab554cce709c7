package peer

import (
	"context"
	"fmt"
	"strings"

	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	domerrors "github.com/jbctechsolutions/connectsync/internal/domain/errors"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/logging"
)

// Sender sends messages through a device's conversation store.
type Sender struct {
	store    *Conversations
	deviceID string
	logger   *logging.Logger
}

// NewSender creates a sender. conn is usually a shared connection.
func NewSender(conn ports.BusConnection, deviceID string, logger *logging.Logger) *Sender {
	if logger == nil {
		logger = logging.Default()
	}
	return &Sender{
		store:    NewConversations(conn, deviceID),
		deviceID: deviceID,
		logger:   logger,
	}
}

func validateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return domerrors.NewError(domerrors.CodeValidation, "message body is empty", nil)
	}
	return nil
}

// Reply sends body into thread threadID.
func (s *Sender) Reply(ctx context.Context, threadID int64, body string) error {
	if err := validateBody(body); err != nil {
		return err
	}
	if threadID == 0 {
		return domerrors.NewError(domerrors.CodeValidation, "thread id required", domerrors.ErrInvalidTarget)
	}
	if err := s.store.ReplyToConversation(ctx, threadID, body); err != nil {
		return domerrors.WithContext(domerrors.Transport("reply failed", err), "thread_id", threadID)
	}
	s.logger.InfoContext(ctx, "reply sent", "device_id", s.deviceID, "thread_id", threadID, "length", len(body))
	return nil
}

// SendNew sends body to a recipient without an existing thread.
func (s *Sender) SendNew(ctx context.Context, recipient, body string) error {
	if err := validateBody(body); err != nil {
		return err
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return domerrors.NewError(domerrors.CodeValidation, "recipient required", domerrors.ErrInvalidTarget)
	}
	if err := s.store.SendWithoutConversation(ctx, []string{recipient}, body); err != nil {
		return fmt.Errorf("send to %s: %w", recipient, domerrors.Transport("send failed", err))
	}
	s.logger.InfoContext(ctx, "message sent", "device_id", s.deviceID, "length", len(body))
	return nil
}
