package handler

import (
	"context"
	"net/http"
	"strconv"

	"pulse-chat/internal/domain/call"
	"pulse-chat/internal/services"
	"pulse-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CallService interface {
	Initiate(ctx context.Context, callerID uuid.UUID, in services.InitiateCallInput) (services.CallSession, error)
	ReportRinging(ctx context.Context, callID, actorID uuid.UUID) (call.Call, error)
	Accept(ctx context.Context, callID, actorID uuid.UUID) (services.CallSession, error)
	End(ctx context.Context, callID, actorID uuid.UUID, requestedStatus string) (call.Call, error)
	Get(ctx context.Context, callID, actorID uuid.UUID) (call.Call, error)
	History(ctx context.Context, userID uuid.UUID, page, limit int) ([]call.Call, int64, error)
}

type CallHandler struct {
	service CallService
}

func NewCallHandler(service CallService) *CallHandler {
	return &CallHandler{service: service}
}

func (h *CallHandler) Initiate(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req httpdto.CreateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	in := services.InitiateCallInput{Type: req.Type}
	if req.ReceiverID != "" {
		receiverID, err := uuid.Parse(req.ReceiverID)
		if err != nil {
			badRequest(c, "invalid receiver_id")
			return
		}
		in.ReceiverID = receiverID
	}
	if req.ConversationID != "" {
		conversationID, err := uuid.Parse(req.ConversationID)
		if err != nil {
			badRequest(c, "invalid conversation_id")
			return
		}
		in.ConversationID = &conversationID
	}

	session, err := h.service.Initiate(c.Request.Context(), userID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.CallSessionResponse{
		Call:  httpdto.FromCall(session.Call),
		Token: session.Token,
	}))
}

func (h *CallHandler) Ringing(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	callID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	item, err := h.service.ReportRinging(c.Request.Context(), callID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromCall(item)))
}

func (h *CallHandler) Accept(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	callID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	session, err := h.service.Accept(c.Request.Context(), callID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.CallSessionResponse{
		Call:  httpdto.FromCall(session.Call),
		Token: session.Token,
	}))
}

func (h *CallHandler) End(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	callID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.EndCallRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request")
			return
		}
	}
	item, err := h.service.End(c.Request.Context(), callID, userID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromCall(item)))
}

func (h *CallHandler) GetByID(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	callID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	item, err := h.service.Get(c.Request.Context(), callID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromCall(item)))
}

func (h *CallHandler) History(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	items, total, err := h.service.History(c.Request.Context(), userID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListCallsResponse{
		Calls: httpdto.FromCallSlice(items),
		Total: total,
	}))
}
