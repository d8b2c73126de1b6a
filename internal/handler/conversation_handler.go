package handler

import (
	"context"
	"net/http"

	"pulse-chat/internal/domain/conversation"
	"pulse-chat/internal/services"
	"pulse-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationService interface {
	Create(ctx context.Context, creatorID uuid.UUID, in services.CreateConversationInput) (conversation.Conversation, error)
	Get(ctx context.Context, conversationID, actorID uuid.UUID) (conversation.Conversation, error)
	AddMember(ctx context.Context, conversationID, actorID, userID uuid.UUID) (conversation.Conversation, error)
}

type ConversationHandler struct {
	service ConversationService
}

func NewConversationHandler(service ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

func (h *ConversationHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req httpdto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	members := make([]uuid.UUID, 0, len(req.MemberIDs))
	for _, raw := range req.MemberIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid member id")
			return
		}
		members = append(members, id)
	}

	conv, err := h.service.Create(c.Request.Context(), userID, services.CreateConversationInput{
		Type:      conversation.Type(req.Type),
		Subject:   req.Subject,
		MemberIDs: members,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromConversation(conv)))
}

func (h *ConversationHandler) GetByID(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	conv, err := h.service.Get(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromConversation(conv)))
}

func (h *ConversationHandler) AddMember(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	memberID, err := uuid.Parse(req.UserID)
	if err != nil {
		badRequest(c, "invalid user_id")
		return
	}
	conv, err := h.service.AddMember(c.Request.Context(), conversationID, userID, memberID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromConversation(conv)))
}
