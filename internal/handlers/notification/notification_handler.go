// internal/handlers/notification/notification_handler.go
package notification

import (
	"net/http"
	"strconv"

	"maproom-service/internal/middleware"
	"maproom-service/internal/pkg/response"
	service "maproom-service/internal/service/notification"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService *service.NotificationService
}

func NewNotificationHandler(notificationService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// ListNotifications returns the caller's notifications, newest first
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	result, err := h.notificationService.List(c.Request.Context(), identityID, limit, offset)
	if err != nil {
		response.FromError(c, "failed to list notifications", err)
		return
	}

	response.Success(c, http.StatusOK, "notifications retrieved", result)
}

// MarkAsRead marks one notification read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	notificationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid notification ID", err)
		return
	}

	if err := h.notificationService.MarkAsRead(c.Request.Context(), identityID, notificationID); err != nil {
		response.FromError(c, "failed to mark notification read", err)
		return
	}

	response.Success(c, http.StatusOK, "notification marked read", nil)
}

// MarkAllAsRead marks every unread notification read
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	if err := h.notificationService.MarkAllAsRead(c.Request.Context(), identityID); err != nil {
		response.FromError(c, "failed to mark notifications read", err)
		return
	}

	response.Success(c, http.StatusOK, "all notifications marked read", nil)
}
