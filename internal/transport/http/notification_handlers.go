package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sparkleclean/realtime/internal/store"
)

// NotificationHandlers serves notification list and read-marking endpoints.
type NotificationHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewNotificationHandlers creates a new notification handlers instance.
func NewNotificationHandlers(st store.Store, logger *zerolog.Logger) *NotificationHandlers {
	return &NotificationHandlers{
		store: st,
		log:   logger,
	}
}

// NotificationResponse represents a notification in API responses.
type NotificationResponse struct {
	ID          int64  `json:"id"`
	Template    string `json:"template"`
	Body        string `json:"body"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	DeliveredAt string `json:"delivered_at,omitempty"`
}

// List returns the caller's notifications, newest first.
// GET /api/notifications
func (h *NotificationHandlers) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	notifications, err := h.store.ListNotifications(c.Request.Context(), userID, limit)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to list notifications")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		resp := NotificationResponse{
			ID:        n.ID,
			Template:  n.Template,
			Body:      n.Body,
			Priority:  string(n.Priority),
			Status:    string(n.Status),
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		}
		if n.DeliveredAt != nil {
			resp.DeliveredAt = n.DeliveredAt.Format(time.RFC3339)
		}
		response = append(response, resp)
	}
	c.JSON(http.StatusOK, response)
}

// MarkRead flips a notification to read for its recipient.
// POST /api/notifications/:id/read
func (h *NotificationHandlers) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid notification id"})
		return
	}

	if err := h.store.MarkNotificationRead(c.Request.Context(), id, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "notification not found"})
			return
		}
		h.log.Error().Err(err).Int64("notification_id", id).Msg("failed to mark notification read")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}
