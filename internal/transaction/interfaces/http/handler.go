package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	limitdomain "github.com/SamGorr/tscmf-system/internal/limits/domain"
	screendomain "github.com/SamGorr/tscmf-system/internal/screening/domain"
	"github.com/SamGorr/tscmf-system/internal/transaction/application"
	"github.com/SamGorr/tscmf-system/internal/transaction/domain"
	"github.com/SamGorr/tscmf-system/pkg/response"
)

// TransactionHandler exposes the verification lifecycle over HTTP.
type TransactionHandler struct {
	svc    *application.VerificationService
	logger *slog.Logger
}

func NewTransactionHandler(svc *application.VerificationService, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{svc: svc, logger: logger}
}

func (h *TransactionHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/transactions")
	{
		api.POST("", h.Submit)
		api.GET("", h.List)
		api.GET("/:reference", h.Get)
		api.POST("/:reference/process", h.Process)
		api.POST("/:reference/amend", h.Amend)
		api.POST("/:reference/close", h.Close)
		api.POST("/:reference/cancel", h.Cancel)
		api.POST("/:reference/expire", h.Expire)
		api.PATCH("/:reference/checks", h.UpdateChecks)
		api.GET("/:reference/limit-check", h.LimitCheck)
		api.GET("/:reference/sanctions-check", h.SanctionsCheck)
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, limitdomain.ErrEntityNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, limitdomain.ErrLimitExceededAtCommit):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, screendomain.ErrReferenceDataUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *TransactionHandler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request.Context(), "request failed",
			"path", c.FullPath(), "error", err)
	}
	response.Error(c, status, err.Error())
}

func (h *TransactionHandler) Submit(c *gin.Context) {
	var req application.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.svc.Submit(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, t)
}

func (h *TransactionHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	result, err := h.svc.List(c.Request.Context(), c.Query("status"), c.Query("kind"), page, pageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

func (h *TransactionHandler) Get(c *gin.Context) {
	detail, err := h.svc.Get(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, detail)
}

func (h *TransactionHandler) Process(c *gin.Context) {
	t, err := h.svc.Process(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, t)
}

func (h *TransactionHandler) Amend(c *gin.Context) {
	var req application.AmendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.svc.Amend(c.Request.Context(), c.Param("reference"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, t)
}

func (h *TransactionHandler) Close(c *gin.Context) {
	t, err := h.svc.Close(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, t)
}

func (h *TransactionHandler) Cancel(c *gin.Context) {
	t, err := h.svc.Cancel(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, t)
}

func (h *TransactionHandler) Expire(c *gin.Context) {
	t, err := h.svc.Expire(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, t)
}

func (h *TransactionHandler) UpdateChecks(c *gin.Context) {
	var stamp domain.CheckStamp
	if err := c.ShouldBindJSON(&stamp); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	evt, err := h.svc.UpdateCheckStatuses(c.Request.Context(), c.Param("reference"), stamp)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, evt)
}

func (h *TransactionHandler) LimitCheck(c *gin.Context) {
	report, err := h.svc.LimitCheckReport(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, report)
}

func (h *TransactionHandler) SanctionsCheck(c *gin.Context) {
	results, err := h.svc.SanctionsCheck(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, results)
}
