package handler

import (
	"net/http"

	"github.com/dogworld/dogworld-backend/internal/common"
	"github.com/dogworld/dogworld-backend/internal/domain"
	"github.com/dogworld/dogworld-backend/internal/middleware"
	"github.com/dogworld/dogworld-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// CommentHandler handles comment HTTP requests
type CommentHandler struct {
	service service.CommentService
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(service service.CommentService) *CommentHandler {
	return &CommentHandler{service: service}
}

// CreateComment handles POST /comments
func (h *CommentHandler) CreateComment(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	var req domain.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := h.service.CreateComment(userID, &req)
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	c.JSON(http.StatusCreated, common.APIResponse{Data: result})
}
