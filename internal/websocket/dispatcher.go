package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pulse-chat/internal/events"
	"pulse-chat/internal/metrics"
	pulse_errors "pulse-chat/pkg/errors"
	"pulse-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	publishTimeout     = 2 * time.Second
	resubscribeBackoff = time.Second
)

// Dispatcher delivers events to a user's connections on this instance and
// relays them to the other instances through the broadcaster.
type Dispatcher struct {
	registry    *Registry
	broadcaster events.Broadcaster
	instanceID  string
	logger      *logger.Logger
}

func NewDispatcher(registry *Registry, broadcaster events.Broadcaster, instanceID string, l *logger.Logger) *Dispatcher {
	if broadcaster == nil {
		broadcaster = events.NewLocalBroadcaster()
	}
	if l == nil {
		l = logger.NewNop()
	}
	return &Dispatcher{
		registry:    registry,
		broadcaster: broadcaster,
		instanceID:  instanceID,
		logger:      l.Named("dispatcher"),
	}
}

// SendEventToUser delivers an event to every live connection of userID. A
// user with no connections is not an error and broadcast failures are only
// logged; the returned error reports an unencodable payload.
func (d *Dispatcher) SendEventToUser(ctx context.Context, userID uuid.UUID, name string, payload any) error {
	ev, err := events.New(userID, name, payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w: %w", name, pulse_errors.ErrInvalidInput, err)
	}
	frame, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", name, err)
	}

	d.deliverLocal(userID, name, frame, "local")
	d.publish(ctx, events.Envelope{Origin: d.instanceID, UserID: userID, Event: ev})
	return nil
}

func (d *Dispatcher) deliverLocal(userID uuid.UUID, name string, frame []byte, source string) int {
	delivered := 0
	for conn := range d.registry.ConnectionsFor(userID) {
		err := conn.Send(frame)
		switch {
		case err == nil:
			delivered++
			metrics.EventsDelivered.WithLabelValues(name, source).Inc()
		case errors.Is(err, pulse_errors.ErrConnectionClosed):
			// closed between snapshot and send
		default:
			metrics.EventsDropped.WithLabelValues("buffer_full").Inc()
			d.logger.Logger.Warn("event dropped",
				zap.String("event", name),
				zap.String("user_id", userID.String()),
				zap.String("client_id", conn.ID()),
				zap.Error(err),
			)
		}
	}
	return delivered
}

func (d *Dispatcher) publish(ctx context.Context, env events.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		d.logger.Logger.Error("encode envelope", zap.Error(err))
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := d.broadcaster.Publish(pubCtx, events.UserChannel(env.UserID), data); err != nil {
		metrics.BroadcastPublishFailures.Inc()
		d.logger.With(ctx).Warn("broadcast publish failed",
			zap.String("event", env.Event.Name),
			zap.String("user_id", env.UserID.String()),
			zap.Error(err),
		)
	}
}

// Run consumes events published by other instances until ctx is done,
// resubscribing after transport failures.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		err := d.broadcaster.Subscribe(ctx, events.UserChannelPattern, d.handleRemote)
		if ctx.Err() != nil {
			return nil
		}
		d.logger.Logger.Warn("broadcast subscription ended", zap.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(resubscribeBackoff):
		}
	}
}

func (d *Dispatcher) handleRemote(channel string, payload []byte) {
	var env events.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		d.logger.Logger.Warn("malformed envelope", zap.String("channel", channel), zap.Error(err))
		return
	}
	if env.Origin == d.instanceID {
		return
	}

	userID := env.UserID
	if userID == uuid.Nil {
		parsed, err := events.UserFromChannel(channel)
		if err != nil {
			d.logger.Logger.Warn("envelope without recipient", zap.String("channel", channel))
			return
		}
		userID = parsed
	}

	d.deliverRemote(userID, env.Event)
}

func (d *Dispatcher) deliverRemote(userID uuid.UUID, ev events.Event) int {
	frame, err := json.Marshal(ev)
	if err != nil {
		metrics.EventsDropped.WithLabelValues("encode").Inc()
		d.logger.Logger.Warn("remote event not encodable",
			zap.String("event", ev.Name),
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return 0
	}
	return d.deliverLocal(userID, ev.Name, frame, "remote")
}
