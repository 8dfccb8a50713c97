package tasks

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/apperrors"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/httputil"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/scheduling"
)

// Handler handles HTTP requests for the task lifecycle
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers task routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	tasks := router.Group("/tasks")
	{
		tasks.POST("", h.createTask)
		tasks.GET("", h.listTasks)
		tasks.GET("/:id", h.getTask)
		tasks.POST("/:id/publish", h.publish)
		tasks.POST("/:id/accept", h.accept)
		tasks.POST("/:id/decline", h.decline)
		tasks.POST("/:id/withdraw", h.withdraw)
		tasks.POST("/:id/start", h.start)
		tasks.POST("/:id/complete", h.complete)
		tasks.POST("/:id/cancel", h.cancel)
		tasks.POST("/:id/reschedule", h.reschedule)
	}
}

// WindowRequest is the body of accept and reschedule
type WindowRequest struct {
	Date      string `json:"date" binding:"required"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
}

func (r WindowRequest) window() (scheduling.Window, error) {
	date, err := scheduling.ParseDate(r.Date)
	if err != nil {
		return scheduling.Window{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid date", err)
	}
	start, err := scheduling.ParseClock(r.StartTime)
	if err != nil {
		return scheduling.Window{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid start_time", err)
	}
	end, err := scheduling.ParseClock(r.EndTime)
	if err != nil {
		return scheduling.Window{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid end_time", err)
	}
	return scheduling.Window{Date: date, Start: start, End: end}, nil
}

// ReasonRequest is the optional body of decline, withdraw and cancel
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// taskResponse adds the next allowed states so clients can render actions
type taskResponse struct {
	*Task
	AllowedTransitions []Status `json:"allowed_transitions"`
}

func (h *Handler) respondTask(c *gin.Context, status int, task *Task) {
	c.JSON(status, taskResponse{Task: task, AllowedTransitions: h.service.AllowedTransitions(task.Status)})
}

// createTask handles POST /api/v1/tasks
func (h *Handler) createTask(c *gin.Context) {
	actor, err := httputil.ActorID(c)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, err)
		return
	}
	req.ClientID = actor

	task, err := h.service.CreateTask(c.Request.Context(), req)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	h.respondTask(c, http.StatusCreated, task)
}

// getTask handles GET /api/v1/tasks/:id
func (h *Handler) getTask(c *gin.Context) {
	id, err := httputil.UUIDParam(c, "id")
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	task, err := h.service.GetTask(c.Request.Context(), id)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	h.respondTask(c, http.StatusOK, task)
}

// listTasks handles GET /api/v1/tasks?client_id=&provider_id=&status=&limit=&offset=
func (h *Handler) listTasks(c *gin.Context) {
	filter := ListFilter{
		Limit:  httputil.IntQuery(c, "limit", defaultListLimit),
		Offset: httputil.IntQuery(c, "offset", 0),
	}
	if v := c.Query("client_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httputil.RespondError(c, h.logger, apperrors.New(apperrors.CodeInvalidArgument, "invalid client_id"))
			return
		}
		filter.ClientID = &id
	}
	if v := c.Query("provider_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httputil.RespondError(c, h.logger, apperrors.New(apperrors.CodeInvalidArgument, "invalid provider_id"))
			return
		}
		filter.ProviderID = &id
	}
	if v := c.Query("status"); v != "" {
		status := Status(v)
		filter.Status = &status
	}

	tasks, err := h.service.ListTasks(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "limit": filter.Limit, "offset": filter.Offset})
}

// publish handles POST /api/v1/tasks/:id/publish
func (h *Handler) publish(c *gin.Context) {
	id, actor, ok := h.target(c)
	if !ok {
		return
	}
	task, err := h.service.Publish(c.Request.Context(), id, actor)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	h.respondTask(c, http.StatusOK, task)
}

// accept handles POST /api/v1/tasks/:id/accept
func (h *Handler) accept(c *gin.Context) {
	id, actor, ok := h.target(c)
	if !ok {
		return
	}
	window, ok := h.bindWindow(c)
	if !ok {
		return
	}
	result, err := h.service.Accept(c.Request.Context(), id, actor, window)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// decline handles POST /api/v1/tasks/:id/decline
func (h *Handler) decline(c *gin.Context) {
	id, actor, ok := h.target(c)
	if !ok {
		return
	}
	task, err := h.service.Decline(c.Request.Context(), id, actor, h.reason(c))
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	h.respondTask(c, http.StatusOK, task)
}

// withdraw handles POST /api/v1/tasks/:id/withdraw
func (h *Handler) withdraw(c *gin.Context) {
	id, actor, ok := h.target(c)
	if !ok {
		return
	}
	task, err := h.service.Withdraw(c.Request.Context(), id, actor, h.reason(c))
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	h.respondTask(c, http.StatusOK, task)
}

// start handles POST /api/v1/tasks/:id/start
func (h *Handler) start(c *gin.Context) {
	id, actor, ok := h.target(c)
	if !ok {
		return
	}
	task, err := h.service.Start(c.Request.Context(), id, actor)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	h.respondTask(c, http.StatusOK, task)
}

// complete handles POST /api/v1/tasks/:id/complete
func (h *Handler) complete(c *gin.Context) {
	id, actor, ok := h.target(c)
	if !ok {
		return
	}
	result, err := h.service.Complete(c.Request.Context(), id, actor)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// cancel handles POST /api/v1/tasks/:id/cancel
func (h *Handler) cancel(c *gin.Context) {
	id, actor, ok := h.target(c)
	if !ok {
		return
	}
	result, err := h.service.Cancel(c.Request.Context(), id, actor, h.reason(c))
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// reschedule handles POST /api/v1/tasks/:id/reschedule
func (h *Handler) reschedule(c *gin.Context) {
	id, actor, ok := h.target(c)
	if !ok {
		return
	}
	window, ok := h.bindWindow(c)
	if !ok {
		return
	}
	result, err := h.service.Reschedule(c.Request.Context(), id, actor, window)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// target parses the task id and the acting user, writing the error response on failure
func (h *Handler) target(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	id, err := httputil.UUIDParam(c, "id")
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return uuid.Nil, uuid.Nil, false
	}
	actor, err := httputil.ActorID(c)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return uuid.Nil, uuid.Nil, false
	}
	return id, actor, true
}

func (h *Handler) bindWindow(c *gin.Context) (scheduling.Window, bool) {
	var req WindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, err)
		return scheduling.Window{}, false
	}
	window, err := req.window()
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return scheduling.Window{}, false
	}
	return window, true
}

// reason reads the optional cancellation reason; an empty body is fine
func (h *Handler) reason(c *gin.Context) string {
	var req ReasonRequest
	if c.Request.ContentLength == 0 {
		return ""
	}
	_ = c.ShouldBindJSON(&req)
	return req.Reason
}
