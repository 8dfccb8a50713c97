package scheduling

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/apperrors"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/httputil"
)

// Handler handles HTTP requests for provider calendars and bookings
type Handler struct {
	calendar *Calendar
	resolver *Resolver
	logger   *zap.Logger
}

// NewHandler creates a new scheduling handler
func NewHandler(calendar *Calendar, resolver *Resolver, logger *zap.Logger) *Handler {
	return &Handler{calendar: calendar, resolver: resolver, logger: logger}
}

// RegisterRoutes registers scheduling routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	providers := router.Group("/providers/:providerId")
	{
		providers.GET("/schedule", h.getSchedule)
		providers.PUT("/schedule", h.setSchedule)
		providers.POST("/slots/regenerate", h.regenerate)
		providers.GET("/slots", h.listSlots)
	}
	router.GET("/bookings/:id", h.getBooking)
}

// SetScheduleRequest is the body of PUT /providers/:providerId/schedule
type SetScheduleRequest struct {
	Days     WeekTemplate `json:"days" binding:"required"`
	Timezone string       `json:"timezone"`
}

// setSchedule handles PUT /api/v1/providers/:providerId/schedule
func (h *Handler) setSchedule(c *gin.Context) {
	providerID, err := h.ownProvider(c)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	var req SetScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, err)
		return
	}

	schedule, generated, err := h.calendar.SetSchedule(c.Request.Context(), providerID, req.Days, req.Timezone)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedule": schedule, "generated_slots": generated})
}

// getSchedule handles GET /api/v1/providers/:providerId/schedule
func (h *Handler) getSchedule(c *gin.Context) {
	providerID, err := httputil.UUIDParam(c, "providerId")
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	schedule, err := h.calendar.GetSchedule(c.Request.Context(), providerID)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

// regenerate handles POST /api/v1/providers/:providerId/slots/regenerate
func (h *Handler) regenerate(c *gin.Context) {
	providerID, err := h.ownProvider(c)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	generated, err := h.calendar.RegenerateHorizon(c.Request.Context(), providerID, time.Now())
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"generated_slots": generated})
}

// listSlots handles GET /api/v1/providers/:providerId/slots?from=&to=&free=
func (h *Handler) listSlots(c *gin.Context) {
	providerID, err := httputil.UUIDParam(c, "providerId")
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}

	today := DateOf(time.Now())
	from, to := today, DateOf(time.Now().AddDate(0, 0, DefaultHorizonDays-1))
	if v := c.Query("from"); v != "" {
		if from, err = ParseDate(v); err != nil {
			httputil.RespondError(c, h.logger, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid from", err))
			return
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = ParseDate(v); err != nil {
			httputil.RespondError(c, h.logger, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid to", err))
			return
		}
	}

	slots, err := h.calendar.ListSlots(c.Request.Context(), providerID, from, to, c.Query("free") == "true")
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

// getBooking handles GET /api/v1/bookings/:id
func (h *Handler) getBooking(c *gin.Context) {
	id, err := httputil.UUIDParam(c, "id")
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	booking, err := h.resolver.GetBooking(c.Request.Context(), id)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// ownProvider ensures the caller edits their own calendar
func (h *Handler) ownProvider(c *gin.Context) (uuid.UUID, error) {
	providerID, err := httputil.UUIDParam(c, "providerId")
	if err != nil {
		return providerID, err
	}
	actor, err := httputil.ActorID(c)
	if err != nil {
		return providerID, err
	}
	if actor != providerID {
		return providerID, apperrors.New(apperrors.CodeForbidden, "You can only change your own calendar.")
	}
	return providerID, nil
}
