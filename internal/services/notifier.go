package services

import (
	"context"

	"github.com/google/uuid"
)

// EventSender pushes a named event to every live connection of a user.
type EventSender interface {
	SendEventToUser(ctx context.Context, userID uuid.UUID, name string, payload any) error
}
