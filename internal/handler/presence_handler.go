package handler

import (
	"context"
	"net/http"
	"time"

	"pulse-chat/internal/redis"
	"pulse-chat/internal/transport/httpdto"
	"pulse-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PresenceReader reads presence shared by every instance.
type PresenceReader interface {
	GetPresence(ctx context.Context, userID string) (*redis.PresenceStatus, error)
}

// LocalPresence reports connections held by this instance.
type LocalPresence interface {
	IsOnline(userID uuid.UUID) bool
}

type PresenceHandler struct {
	shared PresenceReader
	local  LocalPresence
	logger *logger.Logger
}

// NewPresenceHandler builds a handler that prefers the shared store and
// falls back to this instance's registry when the store is missing or
// failing.
func NewPresenceHandler(shared PresenceReader, local LocalPresence, l *logger.Logger) *PresenceHandler {
	if l == nil {
		l = logger.NewNop()
	}
	return &PresenceHandler{shared: shared, local: local, logger: l}
}

func (h *PresenceHandler) Get(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	userID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if h.shared != nil {
		status, err := h.shared.GetPresence(c.Request.Context(), userID.String())
		if err == nil {
			c.JSON(http.StatusOK, httpdto.NewSuccessResponse(
				httpdto.NewPresenceDTO(userID.String(), status.IsOnline, status.Status, status.LastSeen, status.Connections),
			))
			return
		}
		h.logger.With(c.Request.Context()).Warn("shared presence unavailable", zap.Error(err))
	}

	online := h.local != nil && h.local.IsOnline(userID)
	status := "offline"
	if online {
		status = "online"
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewPresenceDTO(userID.String(), online, status, time.Time{}, 0)))
}
