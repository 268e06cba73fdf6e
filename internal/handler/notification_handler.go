package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/madrasati/madrasati-api/internal/middleware"
	"github.com/madrasati/madrasati-api/internal/models"
	"github.com/madrasati/madrasati-api/internal/service"
	appErrors "github.com/madrasati/madrasati-api/pkg/errors"
	"github.com/madrasati/madrasati-api/pkg/response"
)

// NotificationHandler wires HTTP endpoints to the notification service.
type NotificationHandler struct {
	service *service.NotificationService
}

// NewNotificationHandler creates a new handler.
func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// Broadcast godoc
// @Summary Broadcast an announcement
// @Description Send a message to every student of a stage, or school-wide
// @Tags Notifications
// @Accept json
// @Produce json
// @Param payload body models.BroadcastRequest true "Broadcast payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /notifications [post]
func (h *NotificationHandler) Broadcast(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	var req models.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid broadcast payload"))
		return
	}
	notification, err := h.service.Broadcast(c.Request.Context(), claims.PrincipalID, claims.Name, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, notification)
}

// List godoc
// @Summary List announcements
// @Description Stage-scoped announcements newest first
// @Tags Notifications
// @Produce json
// @Param stage query string false "Stage filter"
// @Param limit query int false "Row limit"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	notifications, err := h.service.List(c.Request.Context(), claims.PrincipalID, c.Query("stage"), queryInt(c, "limit", 50))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notifications, nil)
}
