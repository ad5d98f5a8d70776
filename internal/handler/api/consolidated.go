package api

import (
	"net/http"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/service/breaker"
	"MarketPulse/internal/usecase"
	xhttp "MarketPulse/pkg/http"
	xlogger "MarketPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ConsolidatedHandler exposes the consolidated metrics snapshot over
// HTTP.
type ConsolidatedHandler struct {
	logger *xlogger.Logger
	svc    *usecase.ConsolidationService
	series domrepo.SeriesStore
	brk    *breaker.Breaker
}

func NewConsolidatedHandler(logger *xlogger.Logger, svc *usecase.ConsolidationService, series domrepo.SeriesStore, brk *breaker.Breaker) *ConsolidatedHandler {
	return &ConsolidatedHandler{logger: logger, svc: svc, series: series, brk: brk}
}

func (h *ConsolidatedHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/consolidated", h.Consolidated)
	g.GET("/consolidated/:symbol", h.ConsolidatedSymbol)
	g.POST("/cache/invalidate", h.InvalidateCache)
	e.GET("/healthz", h.Health)
}

func (h *ConsolidatedHandler) Consolidated(c echo.Context) error {
	snap, err := h.svc.GetConsolidatedMetrics(c.Request().Context())
	if err != nil {
		h.logger.Error("consolidated read failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=30")
	return xhttp.SuccessResponse(c, snap)
}

func (h *ConsolidatedHandler) ConsolidatedSymbol(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := strings.ToUpper(req.Symbol)
	rec, err := h.svc.GetInstrumentMetrics(c.Request().Context(), symbol)
	if err != nil {
		h.logger.Warn("symbol lookup failed",
			xlogger.String("symbol", symbol), xlogger.Error(err))
		return xhttp.NotFoundResponse(c, err.Error())
	}
	return xhttp.SuccessResponse(c, rec)
}

func (h *ConsolidatedHandler) InvalidateCache(c echo.Context) error {
	if err := h.svc.InvalidateCache(c.Request().Context()); err != nil {
		h.logger.Error("cache invalidation failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.NoContentResponse(c)
}

type healthStatus struct {
	Status   string            `json:"status"`
	Breakers map[string]string `json:"breakers"`
	Time     time.Time         `json:"time"`
}

// Health reports readiness. The service stays up through an upstream
// outage, so an open breaker degrades the status without failing it.
func (h *ConsolidatedHandler) Health(c echo.Context) error {
	st := healthStatus{
		Status: "ok",
		Breakers: map[string]string{
			usecase.ResourceSeries: string(h.brk.State(usecase.ResourceSeries)),
			usecase.ResourceQuotes: string(h.brk.State(usecase.ResourceQuotes)),
		},
		Time: time.Now().UTC(),
	}
	if err := h.series.Health(c.Request().Context()); err != nil {
		st.Status = "degraded"
	}
	for _, s := range st.Breakers {
		if s != string(breaker.StateClosed) {
			st.Status = "degraded"
		}
	}
	return c.JSON(http.StatusOK, st)
}
