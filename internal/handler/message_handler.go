package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dogworld/dogworld-backend/internal/common"
	"github.com/dogworld/dogworld-backend/internal/domain"
	"github.com/dogworld/dogworld-backend/internal/middleware"
	"github.com/dogworld/dogworld-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// MessageHandler handles direct message HTTP requests
type MessageHandler struct {
	service service.MessageService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(service service.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

// SendMessage handles POST /messages.
// Accepts JSON, or multipart/form-data when an attachment is included
// (fields: receiver_id, content, attachment).
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	var req domain.SendMessageRequest
	var attachment *service.AttachmentUpload

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		receiverID, err := strconv.ParseUint(c.PostForm("receiver_id"), 10, 64)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "receiver_id is required", err)
			return
		}
		req.ReceiverID = uint(receiverID)
		req.Content = c.PostForm("content")

		if fileHeader, err := c.FormFile("attachment"); err == nil {
			file, err := fileHeader.Open()
			if err != nil {
				common.ErrorResponse(c, http.StatusBadRequest, "cannot read attachment", err)
				return
			}
			defer file.Close()
			attachment = &service.AttachmentUpload{
				Filename: fileHeader.Filename,
				Size:     fileHeader.Size,
				Body:     file,
			}
		}
	} else {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}

	result, err := h.service.SendMessage(userID, &req, attachment)
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	c.JSON(http.StatusCreated, common.APIResponse{Data: result})
}

// ListMessages handles GET /messages
func (h *MessageHandler) ListMessages(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	messages, meta, err := h.service.ListVisible(userID, middleware.IsStaff(c), page, limit)
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	common.SuccessResponse(c, messages, meta)
}

// GetMessage handles GET /messages/:id
func (h *MessageHandler) GetMessage(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid message id", err)
		return
	}

	result, err := h.service.GetMessage(uint(id), userID)
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	common.SuccessResponse(c, result, nil)
}

// AttachmentDownloadURL handles GET /messages/:id/attachment
func (h *MessageHandler) AttachmentDownloadURL(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid message id", err)
		return
	}

	url, err := h.service.AttachmentDownloadURL(uint(id), userID)
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{"url": url}, nil)
}

// MarkAsRead handles POST /messages/:id/read
func (h *MessageHandler) MarkAsRead(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid message id", err)
		return
	}

	if err := h.service.MarkAsRead(uint(id), userID); err != nil {
		common.FailFromError(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{"status": "message marked as read"}, nil)
}

// DeleteMessage handles DELETE /messages/:id
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid message id", err)
		return
	}

	if err := h.service.DeleteMessage(uint(id), userID); err != nil {
		common.FailFromError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UnreadCount handles GET /messages/unread-count
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	count, err := h.service.UnreadCount(userID)
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{"unread_count": count}, nil)
}

// Conversations handles GET /conversations
func (h *MessageHandler) Conversations(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	conversations, err := h.service.Conversations(userID)
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	common.SuccessResponse(c, conversations, nil)
}

// ConversationWith handles GET /conversations/:user_id
func (h *MessageHandler) ConversationWith(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	otherID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid user id", err)
		return
	}

	beforeID, _ := strconv.ParseUint(c.DefaultQuery("before_id", "0"), 10, 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))

	messages, hasMore, err := h.service.ConversationWith(userID, uint(otherID), uint(beforeID), limit)
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	common.SuccessResponse(c, messages, &common.Meta{Limit: limit, HasMore: hasMore})
}

// MarkConversationRead handles POST /conversations/:user_id/read
func (h *MessageHandler) MarkConversationRead(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	otherID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid user id", err)
		return
	}

	updated, err := h.service.MarkConversationRead(userID, uint(otherID))
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{"updated": updated}, nil)
}

// DeleteConversation handles DELETE /conversations/:user_id
func (h *MessageHandler) DeleteConversation(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	otherID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid user id", err)
		return
	}

	removed, err := h.service.DeleteConversation(userID, uint(otherID))
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{"removed": removed}, nil)
}
