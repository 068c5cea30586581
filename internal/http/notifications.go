package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listNotifications(c *gin.Context) {
	list, err := h.notifications.List(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := make([]NotificationResponse, len(list))
	for i := range list {
		resp[i] = notificationToResponse(list[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) unreadCount(c *gin.Context) {
	n, err := h.notifications.UnreadCount(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": n})
}

func (h *Handler) markNotificationRead(c *gin.Context) {
	id, ok := pathID(c, "id", "notification")
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), currentUser(c).ID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (h *Handler) markAllNotificationsRead(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": n})
}

func (h *Handler) deleteNotification(c *gin.Context) {
	id, ok := pathID(c, "id", "notification")
	if !ok {
		return
	}
	if err := h.notifications.Delete(c.Request.Context(), currentUser(c).ID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted"})
}
