package api

import (
	"IndiCache/internal/engine"
	xhttp "IndiCache/pkg/http"
	xlogger "IndiCache/pkg/logger"

	"github.com/labstack/echo/v4"
)

// StatusHandler serves the read-only run status view: global totals,
// per-cohort meta and per-symbol records.
type StatusHandler struct {
	logger *xlogger.Logger
	maint  *engine.Maintainer
}

func NewStatusHandler(logger *xlogger.Logger, maint *engine.Maintainer) *StatusHandler {
	return &StatusHandler{logger: logger, maint: maint}
}

func (h *StatusHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.GET("/cohorts/:cohort", h.Cohort)
	g.GET("/cohorts/:cohort/symbols/:code", h.Symbol)
}

// CohortRequest binds the cohort path parameter.
type CohortRequest struct {
	Cohort string `param:"cohort" validate:"required"`
}

// SymbolRequest binds the cohort and symbol path parameters.
type SymbolRequest struct {
	Cohort string `param:"cohort" validate:"required"`
	Code   string `param:"code" validate:"required"`
}

// Status returns the global record plus every cohort record.
func (h *StatusHandler) Status(c echo.Context) error {
	report, err := h.maint.Status(c.Request().Context(), nil)
	if err != nil {
		h.logger.Error("status view error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("status view: %v", err))
	}
	return xhttp.SuccessResponse(c, report)
}

// Cohort returns one cohort record.
func (h *StatusHandler) Cohort(c echo.Context) error {
	req := &CohortRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	report, err := h.maint.Status(c.Request().Context(), []string{req.Cohort})
	if err != nil {
		h.logger.Error("cohort view error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("cohort view: %v", err))
	}
	if len(report.Cohorts) == 0 {
		return xhttp.NotFoundResponse(c, xhttp.NotFoundErrorf("cohort %s not found", req.Cohort))
	}
	return xhttp.SuccessResponse(c, report.Cohorts[0])
}

// Symbol returns one symbol's per-family records within a cohort.
func (h *StatusHandler) Symbol(c echo.Context) error {
	req := &SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	report, err := h.maint.Status(c.Request().Context(), []string{req.Cohort})
	if err != nil {
		h.logger.Error("symbol view error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("symbol view: %v", err))
	}
	if len(report.Cohorts) == 0 {
		return xhttp.NotFoundResponse(c, xhttp.NotFoundErrorf("cohort %s not found", req.Cohort))
	}
	sm, ok := report.Cohorts[0].Symbols[req.Code]
	if !ok {
		return xhttp.NotFoundResponse(c, xhttp.NotFoundErrorf("symbol %s not found in cohort %s", req.Code, req.Cohort))
	}
	return xhttp.SuccessResponse(c, sm)
}
