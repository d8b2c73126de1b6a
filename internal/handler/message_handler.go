package handler

import (
	"context"
	"net/http"

	"pulse-chat/internal/domain/message"
	"pulse-chat/internal/services"
	"pulse-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MessageService interface {
	Send(ctx context.Context, senderID uuid.UUID, in services.SendMessageInput) (message.Message, bool, error)
	Get(ctx context.Context, messageID, actorID uuid.UUID) (message.Message, message.Receipts, error)
	AckDelivered(ctx context.Context, messageID, actorID uuid.UUID) (services.MessageState, error)
	AckRead(ctx context.Context, messageID, actorID uuid.UUID) (services.MessageState, error)
}

type MessageHandler struct {
	service MessageService
}

func NewMessageHandler(service MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

// Send answers 201 for a new message and 200 when the client message id was
// already used by this sender.
func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	conversationID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		badRequest(c, "invalid conversation_id")
		return
	}

	msg, created, err := h.service.Send(c.Request.Context(), userID, services.SendMessageInput{
		ConversationID:  conversationID,
		Content:         req.Content,
		Attachments:     req.Attachments,
		ClientMessageID: req.ClientMessageID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, httpdto.NewSuccessResponse(httpdto.FromMessage(msg, message.Receipts{})))
}

func (h *MessageHandler) GetByID(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	msg, receipts, err := h.service.Get(c.Request.Context(), messageID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromMessage(msg, receipts)))
}

func (h *MessageHandler) MarkDelivered(c *gin.Context) {
	h.ack(c, h.service.AckDelivered)
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	h.ack(c, h.service.AckRead)
}

func (h *MessageHandler) ack(c *gin.Context, apply func(context.Context, uuid.UUID, uuid.UUID) (services.MessageState, error)) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	state, err := apply(c.Request.Context(), messageID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(
		httpdto.NewMessageStatusResponse(state.MessageID, state.Status, state.DeliveredTo, state.ReadBy),
	))
}
