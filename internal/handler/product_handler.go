package handler

import (
	"github.com/dogworld/dogworld-backend/internal/common"
	"github.com/dogworld/dogworld-backend/internal/middleware"
	"github.com/dogworld/dogworld-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// ProductHandler handles marketplace click HTTP requests
type ProductHandler struct {
	service service.ProductService
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(service service.ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

// RegisterClick handles POST /products/:slug/click.
// Anonymous clicks are allowed; the response never leaks whether a staff
// notification was created.
func (h *ProductHandler) RegisterClick(c *gin.Context) {
	slug := c.Param("slug")

	var actorID *uint
	if id := middleware.GetUserID(c); id != 0 {
		actorID = &id
	}

	if err := h.service.RegisterClick(slug, actorID); err != nil {
		common.FailFromError(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{"status": "click registered"}, nil)
}
