package websocket

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const presenceTimeout = 3 * time.Second

// PresenceTracker records connections in a store shared by every instance.
type PresenceTracker interface {
	TrackUserConnection(ctx context.Context, userID, connectionID string) error
	RemoveUserConnection(ctx context.Context, userID, connectionID string) error
	Heartbeat(ctx context.Context, userID string) error
}

// PresenceHooks feeds registry lifecycle changes into a presence tracker.
// Tracker failures are logged; they never block a connection.
func PresenceHooks(tracker PresenceTracker, l *Logger) RegistryHooks {
	run := func(event string, userID uuid.UUID, connID string, fn func(ctx context.Context) error) {
		ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			l.Error(event, userID, connID, err)
		}
	}

	return RegistryHooks{
		OnRegister: func(userID uuid.UUID, connID string) {
			run("presence track failed", userID, connID, func(ctx context.Context) error {
				return tracker.TrackUserConnection(ctx, userID.String(), connID)
			})
		},
		OnUnregister: func(userID uuid.UUID, connID string, remaining int) {
			run("presence remove failed", userID, connID, func(ctx context.Context) error {
				return tracker.RemoveUserConnection(ctx, userID.String(), connID)
			})
			if remaining == 0 {
				l.Info("user offline locally", userID, connID)
			}
		},
		OnHeartbeat: func(userID uuid.UUID) {
			run("presence heartbeat failed", userID, "", func(ctx context.Context) error {
				return tracker.Heartbeat(ctx, userID.String())
			})
		},
	}
}
