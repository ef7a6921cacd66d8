package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hw-lee/chulseok-api/internal/service"
	"github.com/hw-lee/chulseok-api/pkg/response"
)

// NotificationHandler exposes stored notifications.
type NotificationHandler struct {
	notifications *service.NotificationService
}

// NewNotificationHandler constructs the handler.
func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// Register binds notification routes onto the group.
func (h *NotificationHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/notifications", h.list)
	rg.PUT("/notifications/:id/read", h.markRead)
}

func (h *NotificationHandler) list(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"
	notifications, err := h.notifications.List(c.Request.Context(), unreadOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notifications, nil)
}

func (h *NotificationHandler) markRead(c *gin.Context) {
	if err := h.notifications.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
