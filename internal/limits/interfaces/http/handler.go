package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SamGorr/tscmf-system/internal/limits/application"
	"github.com/SamGorr/tscmf-system/internal/limits/domain"
	"github.com/SamGorr/tscmf-system/pkg/response"
)

// EntityHandler exposes entity onboarding and the limit portfolio over HTTP.
type EntityHandler struct {
	svc    *application.EntityService
	logger *slog.Logger
}

func NewEntityHandler(svc *application.EntityService, logger *slog.Logger) *EntityHandler {
	return &EntityHandler{svc: svc, logger: logger}
}

func (h *EntityHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/entities")
	{
		api.POST("", h.Onboard)
		api.GET("", h.List)
		api.GET("/:name", h.Get)
		api.POST("/:name/limits", h.AddLimit)
	}
}

func (h *EntityHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrEntityNotFound):
		response.Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateEntity):
		response.Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEntityValidation):
		response.Error(c, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.ErrorContext(c.Request.Context(), "request failed",
			"path", c.FullPath(), "error", err)
		response.Error(c, http.StatusInternalServerError, err.Error())
	}
}

func (h *EntityHandler) Onboard(c *gin.Context) {
	var req application.OnboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	detail, err := h.svc.Onboard(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, detail)
}

func (h *EntityHandler) List(c *gin.Context) {
	entities, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, entities)
}

func (h *EntityHandler) Get(c *gin.Context) {
	detail, err := h.svc.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, detail)
}

func (h *EntityHandler) AddLimit(c *gin.Context) {
	var req application.LimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := h.svc.AddLimit(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, limit)
}
