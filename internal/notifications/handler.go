package notifications

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/apperrors"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/httputil"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/notifications/websocket"
)

// Handler handles HTTP requests for notifications
type Handler struct {
	service *Service
	ws      *websocket.Manager
	logger  *zap.Logger
}

// NewHandler creates a new notifications handler
func NewHandler(service *Service, ws *websocket.Manager, logger *zap.Logger) *Handler {
	return &Handler{service: service, ws: ws, logger: logger}
}

// RegisterRoutes registers notification routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/realtime/ws", h.connect)
	router.GET("/users/:userId/notifications", h.list)
	router.POST("/notifications/:id/read", h.markRead)
	router.GET("/users/:userId/notification-preferences", h.getPreferences)
	router.PUT("/users/:userId/notification-preferences", h.updatePreferences)
}

// PreferencesRequest is the body of PUT /users/:userId/notification-preferences
type PreferencesRequest struct {
	Push       bool   `json:"push"`
	Realtime   bool   `json:"realtime"`
	MutedKinds []Kind `json:"muted_kinds"`
}

// connect handles GET /api/v1/realtime/ws
func (h *Handler) connect(c *gin.Context) {
	userID, err := httputil.ActorID(c)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	if _, err := h.ws.HandleConnection(c.Writer, c.Request, userID.String()); err != nil {
		h.logger.Warn("Failed to open realtime connection", zap.Error(err))
	}
}

// list handles GET /api/v1/users/:userId/notifications
func (h *Handler) list(c *gin.Context) {
	userID, err := h.ownUser(c)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	rows, err := h.service.ListForUser(c.Request.Context(), userID,
		httputil.IntQuery(c, "limit", 20), httputil.IntQuery(c, "offset", 0))
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": rows})
}

// markRead handles POST /api/v1/notifications/:id/read
func (h *Handler) markRead(c *gin.Context) {
	id, err := httputil.UUIDParam(c, "id")
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	actor, err := httputil.ActorID(c)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), id, actor); err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// getPreferences handles GET /api/v1/users/:userId/notification-preferences
func (h *Handler) getPreferences(c *gin.Context) {
	userID, err := h.ownUser(c)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	prefs, err := h.service.GetPreferences(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// updatePreferences handles PUT /api/v1/users/:userId/notification-preferences
func (h *Handler) updatePreferences(c *gin.Context) {
	userID, err := h.ownUser(c)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	var req PreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, err)
		return
	}
	prefs, err := h.service.UpdatePreferences(c.Request.Context(), Preferences{
		UserID:     userID,
		Push:       req.Push,
		Realtime:   req.Realtime,
		MutedKinds: req.MutedKinds,
	})
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *Handler) ownUser(c *gin.Context) (uuid.UUID, error) {
	userID, err := httputil.UUIDParam(c, "userId")
	if err != nil {
		return userID, err
	}
	actor, err := httputil.ActorID(c)
	if err != nil {
		return userID, err
	}
	if actor != userID {
		return userID, apperrors.New(apperrors.CodeForbidden, "You can only manage your own notifications.")
	}
	return userID, nil
}
