package handler

import (
	"net/http"
	"strconv"

	"github.com/chamapesa/chamapesa-backend/internal/domain"
	"github.com/chamapesa/chamapesa-backend/internal/middleware"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const defaultNotificationLimit = 50

// NotificationHandler serves a member's stored notification inbox
type NotificationHandler struct {
	notificationRepo domain.NotificationRepository
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notificationRepo domain.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notificationRepo: notificationRepo}
}

// NotificationResponse represents a notification in API responses
type NotificationResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	ChamaID   string `json:"chamaId"`
	SubjectID string `json:"subjectId"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt"`
}

// List handles GET /api/v1/notifications
func (h *NotificationHandler) List(c echo.Context) error {
	userID := middleware.GetUserID(c)

	limit := int64(defaultNotificationLimit)
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			return NewValidationError(c, "Invalid limit", []ValidationError{
				{Field: "limit", Message: "Must be a positive integer"},
			})
		}
		limit = parsed
	}

	notifications, err := h.notificationRepo.ListByRecipient(c.Request().Context(), userID, limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list notifications")
		return NewInternalError(c, "An unexpected error occurred")
	}

	resp := make([]NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		resp = append(resp, NotificationResponse{
			ID:        n.ID.Hex(),
			Kind:      string(n.Kind),
			ChamaID:   n.ChamaID.Hex(),
			SubjectID: n.SubjectID.Hex(),
			Message:   n.Message,
			CreatedAt: formatTime(n.CreatedAt),
		})
	}
	return c.JSON(http.StatusOK, resp)
}
