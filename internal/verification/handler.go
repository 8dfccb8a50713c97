package verification

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/apperrors"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/httputil"
)

const maxDocumentSize = 10 << 20

// Handler handles HTTP requests for verification steps and trust profiles
type Handler struct {
	service  *Service
	verifier gin.HandlerFunc
	logger   *zap.Logger
}

// NewHandler creates a handler. verifier guards the results route, which only
// the external document verifier may call.
func NewHandler(service *Service, verifier gin.HandlerFunc, logger *zap.Logger) *Handler {
	return &Handler{service: service, verifier: verifier, logger: logger}
}

// RegisterRoutes registers verification routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	v := router.Group("/verification/:userId")
	{
		v.GET("", h.getProfile)
		v.POST("/steps/:stepId/submit", h.submitStep)
		v.POST("/steps/:stepId/resubmit", h.resubmitStep)
		v.POST("/results", h.verifier, h.applyResult)
	}
}

// getProfile handles GET /api/v1/verification/:userId
func (h *Handler) getProfile(c *gin.Context) {
	userID, err := httputil.UUIDParam(c, "userId")
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	profile, err := h.service.LoadProfile(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// submitStep handles POST /api/v1/verification/:userId/steps/:stepId/submit.
// The document is an optional multipart file field named "document".
func (h *Handler) submitStep(c *gin.Context) {
	userID, err := h.ownUser(c)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}

	req := SubmitRequest{}
	if file, header, err := c.Request.FormFile("document"); err == nil {
		defer file.Close()
		if header.Size > maxDocumentSize {
			httputil.RespondError(c, h.logger, apperrors.New(apperrors.CodeInvalidArgument, "The document is larger than 10 MB."))
			return
		}
		req.Document = file
		req.ContentType = header.Header.Get("Content-Type")
	} else if err != http.ErrMissingFile && err != http.ErrNotMultipart {
		httputil.BadRequest(c, err)
		return
	}

	profile, err := h.service.SubmitStep(c.Request.Context(), userID, StepID(c.Param("stepId")), req)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// resubmitStep handles POST /api/v1/verification/:userId/steps/:stepId/resubmit
func (h *Handler) resubmitStep(c *gin.Context) {
	userID, err := h.ownUser(c)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	profile, err := h.service.ResubmitStep(c.Request.Context(), userID, StepID(c.Param("stepId")))
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// applyResult handles POST /api/v1/verification/:userId/results, called by the verifier
func (h *Handler) applyResult(c *gin.Context) {
	userID, err := httputil.UUIDParam(c, "userId")
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	var result VerifierResult
	if err := c.ShouldBindJSON(&result); err != nil {
		httputil.BadRequest(c, err)
		return
	}
	profile, err := h.service.ApplyResult(c.Request.Context(), userID, result)
	if err != nil {
		httputil.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
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
		return userID, apperrors.New(apperrors.CodeForbidden, "You can only change your own verification.")
	}
	return userID, nil
}
