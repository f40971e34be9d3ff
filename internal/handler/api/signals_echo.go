package api

import (
	"errors"
	"time"

	models "SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	"SignalForge/internal/service/metrics"
	"SignalForge/internal/service/ratelimit"
	"SignalForge/internal/usecase"
	xhttp "SignalForge/pkg/http"
	xlogger "SignalForge/pkg/logger"
	"SignalForge/pkg/util"

	"github.com/labstack/echo/v4"
)

// SignalsEchoHandler serves the signal read API.
type SignalsEchoHandler struct {
	logger  *xlogger.Logger
	signals *usecase.SignalsUseCase
	rl      *ratelimit.Limiter
}

func NewSignalsEchoHandler(logger *xlogger.Logger, signals *usecase.SignalsUseCase) *SignalsEchoHandler {
	metrics.Register()
	return &SignalsEchoHandler{logger: logger, signals: signals, rl: ratelimit.New()}
}

func (h *SignalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signal", h.Signal)
	g.GET("/signal/history", h.SignalHistory)
	g.GET("/regime", h.Regime)
	g.POST("/ensemble", h.Ensemble)
	g.GET("/model", h.ModelInfo)
}

func (h *SignalsEchoHandler) Signal(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.EngineLatency.WithLabelValues("signal").Observe(time.Since(start).Seconds())
	}()

	req := &models.SignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":signal", 10, 5) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("signal rate limit exceeded"))
	}
	key := domrepo.NewKey(req.Instrument, req.TF)

	res, err := h.signals.GetLatest(c.Request().Context(), key)
	if err != nil {
		return h.fail(c, "signal", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SignalsEchoHandler) SignalHistory(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.EngineLatency.WithLabelValues("signal_history").Observe(time.Since(start).Seconds())
	}()

	req := &models.SignalHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	key := domrepo.NewKey(req.Instrument, req.TF)
	now := time.Now()
	from := util.ParseTimeDefault(req.From, now.Add(-24*time.Hour))
	to := util.ParseTimeDefault(req.To, now)

	rows, err := h.signals.QuerySignals(c.Request().Context(), key, from, to, req.Limit)
	if err != nil {
		return h.fail(c, "signal_history", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *SignalsEchoHandler) Regime(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.EngineLatency.WithLabelValues("regime").Observe(time.Since(start).Seconds())
	}()

	req := &models.RegimeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	key := domrepo.NewKey(req.Instrument, req.TF)

	res, err := h.signals.GetRegime(c.Request().Context(), key)
	if err != nil {
		return h.fail(c, "regime", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *SignalsEchoHandler) Ensemble(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.EngineLatency.WithLabelValues("ensemble").Observe(time.Since(start).Seconds())
	}()

	req := &models.EnsembleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	key := domrepo.NewKey(req.Instrument, req.TF)

	res, err := h.signals.Evaluate(c.Request().Context(), key, req.Votes)
	if err != nil {
		return h.fail(c, "ensemble", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SignalsEchoHandler) ModelInfo(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.EngineLatency.WithLabelValues("model").Observe(time.Since(start).Seconds())
	}()

	req := &models.ModelInfoRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	key := domrepo.NewKey(req.Instrument, req.TF)

	res, err := h.signals.GetModelInfo(c.Request().Context(), key)
	if err != nil {
		return h.fail(c, "model", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// fail maps domain error kinds to HTTP responses and records the error.
func (h *SignalsEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	metrics.EngineErrors.WithLabelValues(endpoint).Inc()
	if h.logger != nil {
		h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
	}
	switch {
	case errors.Is(err, models.ErrInsufficientData):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()).WithError(err))
	case errors.Is(err, models.ErrInvalidValue), errors.Is(err, models.ErrInvalidParameter):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	default:
		return xhttp.AppErrorResponse(c, err)
	}
}

var _ xhttp.Handler = (*SignalsEchoHandler)(nil)
