package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SamGorr/tscmf-system/internal/screening/domain"
	"github.com/SamGorr/tscmf-system/pkg/response"
)

// Reloader refreshes the watchlist reference data.
type Reloader interface {
	Reload() error
}

// ScreeningHandler exposes ad-hoc counterparty screening over HTTP.
type ScreeningHandler struct {
	engine   *domain.Engine
	reloader Reloader
	logger   *slog.Logger
}

func NewScreeningHandler(engine *domain.Engine, reloader Reloader, logger *slog.Logger) *ScreeningHandler {
	return &ScreeningHandler{engine: engine, reloader: reloader, logger: logger}
}

func (h *ScreeningHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/screening")
	{
		api.POST("", h.Screen)
		api.POST("/watchlist/reload", h.ReloadWatchlist)
	}
}

type screenRequest struct {
	EntityName string `json:"entity_name"`
	Country    string `json:"country,omitempty"`
}

func (h *ScreeningHandler) Screen(c *gin.Context) {
	var req screenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.EntityName == "" {
		response.Error(c, http.StatusBadRequest, "entity_name is required")
		return
	}

	result, err := h.engine.Screen(c.Request.Context(), req.EntityName, req.Country)
	if err != nil {
		if errors.Is(err, domain.ErrReferenceDataUnavailable) {
			response.Error(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "screening failed",
			"entity", req.EntityName, "error", err)
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, result)
}

func (h *ScreeningHandler) ReloadWatchlist(c *gin.Context) {
	if err := h.reloader.Reload(); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "watchlist reload failed", "error", err)
		response.Error(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	response.Success(c, gin.H{"reloaded": true})
}
