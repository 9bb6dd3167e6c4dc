package routes

import (
	"github.com/dogworld/dogworld-backend/internal/handler"
	"github.com/dogworld/dogworld-backend/internal/middleware"
	"github.com/dogworld/dogworld-backend/pkg/jwt"
	"github.com/gin-gonic/gin"
)

// Setup configures all API routes
func Setup(
	router *gin.Engine,
	messageHandler *handler.MessageHandler,
	notificationHandler *handler.NotificationHandler,
	commentHandler *handler.CommentHandler,
	productHandler *handler.ProductHandler,
	jwtManager *jwt.Manager,
) {
	api := router.Group("/api/v1")
	auth := middleware.JWTAuth(jwtManager)

	// Direct messages
	messages := api.Group("/messages", auth)
	messages.POST("", messageHandler.SendMessage)
	messages.GET("", messageHandler.ListMessages)
	messages.GET("/unread-count", messageHandler.UnreadCount)
	messages.GET("/:id", messageHandler.GetMessage)
	messages.GET("/:id/attachment", messageHandler.AttachmentDownloadURL)
	messages.POST("/:id/read", messageHandler.MarkAsRead)
	messages.DELETE("/:id", messageHandler.DeleteMessage)

	// Derived conversation views
	conversations := api.Group("/conversations", auth)
	conversations.GET("", messageHandler.Conversations)
	conversations.GET("/:user_id", messageHandler.ConversationWith)
	conversations.POST("/:user_id/read", messageHandler.MarkConversationRead)
	conversations.DELETE("/:user_id", messageHandler.DeleteConversation)

	// Notifications
	notifications := api.Group("/notifications", auth)
	notifications.GET("", notificationHandler.GetList)
	notifications.GET("/unread-count", notificationHandler.UnreadCount)
	notifications.PATCH("/:id/read", notificationHandler.MarkAsRead)
	notifications.POST("/read-all", notificationHandler.MarkAllAsRead)
	notifications.DELETE("/:id", notificationHandler.Delete)

	// Producers
	api.POST("/comments", auth, commentHandler.CreateComment)
	api.POST("/products/:slug/click", middleware.OptionalJWTAuth(jwtManager), productHandler.RegisterClick)
}
