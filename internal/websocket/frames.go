package websocket

import (
	"context"
	"fmt"

	"pulse-chat/internal/domain/call"
	"pulse-chat/internal/events"
	"pulse-chat/internal/services"
	pulse_errors "pulse-chat/pkg/errors"

	"github.com/google/uuid"
)

type MessageAcker interface {
	AckDelivered(ctx context.Context, messageID, actorID uuid.UUID) (services.MessageState, error)
	AckRead(ctx context.Context, messageID, actorID uuid.UUID) (services.MessageState, error)
}

type CallRinger interface {
	ReportRinging(ctx context.Context, callID, actorID uuid.UUID) (call.Call, error)
}

// FrameRouter maps inbound acknowledgement frames onto the services.
type FrameRouter struct {
	messages MessageAcker
	calls    CallRinger
}

func NewFrameRouter(messages MessageAcker, calls CallRinger) *FrameRouter {
	return &FrameRouter{messages: messages, calls: calls}
}

func (r *FrameRouter) HandleFrame(ctx context.Context, c *Client, frame InboundFrame) error {
	switch frame.Type {
	case events.FrameMessageDelivered:
		if frame.MessageID == uuid.Nil {
			return pulse_errors.ErrInvalidInput
		}
		_, err := r.messages.AckDelivered(ctx, frame.MessageID, c.UserID())
		return err
	case events.FrameMessageRead:
		if frame.MessageID == uuid.Nil {
			return pulse_errors.ErrInvalidInput
		}
		_, err := r.messages.AckRead(ctx, frame.MessageID, c.UserID())
		return err
	case events.FrameCallRinging:
		if frame.CallID == uuid.Nil {
			return pulse_errors.ErrInvalidInput
		}
		_, err := r.calls.ReportRinging(ctx, frame.CallID, c.UserID())
		return err
	default:
		return fmt.Errorf("unknown frame type %q: %w", frame.Type, pulse_errors.ErrInvalidInput)
	}
}
