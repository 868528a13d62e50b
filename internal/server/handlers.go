package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"

	"tradecopilot/internal/agents"
	apperrors "tradecopilot/internal/errors"
	"tradecopilot/internal/logging"
	"tradecopilot/internal/models"
	"tradecopilot/internal/resilience"
	"tradecopilot/internal/session"
	"tradecopilot/internal/store"
)

const maxChartBytes = 10 << 20

// Controller is the driver surface the dashboard uses.
type Controller interface {
	View() session.View
	Subscribe() (<-chan session.View, func())
	Start(ctx context.Context) error
	Pause(ctx context.Context) error
	StepOnce(ctx context.Context) (session.TickReport, error)
	UpdateSettings(ctx context.Context, settings session.Settings) (session.Settings, error)
	SetManualReference(ctx context.Context, in models.ManualReferenceInput) (models.ZonePair, error)
	ClearManualReference(ctx context.Context) error
	ResetDay(ctx context.Context) error
}

// Commentator runs analyst requests in the background.
type Commentator interface {
	RequestInsight(ctx context.Context, s models.MarketSnapshot, bias models.Bias, zones []models.ReferenceZone)
	RequestCharts(ctx context.Context, daily, intraday []byte)
	Commentary(kind string) agents.Commentary
	All() []agents.Commentary
}

func (s *Server) registerRoutes(e *echo.Echo) {
	e.GET("/healthz", s.healthz)

	api := e.Group("/api")
	api.GET("/state", s.state)
	api.POST("/run", s.run)
	api.POST("/pause", s.pause)
	api.POST("/step", s.step)
	api.POST("/reset", s.reset)
	api.POST("/manual", s.setManual)
	api.DELETE("/manual", s.clearManual)
	api.PUT("/settings", s.updateSettings)
	var analystMW []echo.MiddlewareFunc
	if s.limiter != nil {
		analystMW = append(analystMW, rateLimited(s.limiter))
	}
	api.POST("/insight", s.insight, analystMW...)
	api.POST("/charts", s.charts, analystMW...)
	api.GET("/commentary", s.commentary)
	api.GET("/journal", s.journalList)
	api.GET("/journal/summary", s.journalSummary)

	e.GET("/ws", s.stream)
	if s.recorder != nil {
		e.GET("/metrics", echo.WrapHandler(s.recorder.Handler()))
	}
}

func (s *Server) healthz(c echo.Context) error {
	if s.health == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
	h := s.health.Check(c.Request().Context())
	if h.Status == resilience.HealthStatusUnhealthy {
		return c.JSON(http.StatusServiceUnavailable, h)
	}
	return c.JSON(http.StatusOK, h)
}

func (s *Server) state(c echo.Context) error {
	return successResponse(c, s.driver.View())
}

func (s *Server) run(c echo.Context) error {
	if err := s.driver.Start(c.Request().Context()); err != nil {
		return errorResponse(c, err)
	}
	return successResponse(c, s.driver.View())
}

func (s *Server) pause(c echo.Context) error {
	if err := s.driver.Pause(c.Request().Context()); err != nil {
		return errorResponse(c, err)
	}
	return successResponse(c, s.driver.View())
}

// step advances a single tick, typically while paused.
func (s *Server) step(c echo.Context) error {
	if _, err := s.driver.StepOnce(c.Request().Context()); err != nil {
		return errorResponse(c, err)
	}
	return successResponse(c, s.driver.View())
}

func (s *Server) reset(c echo.Context) error {
	if err := s.driver.ResetDay(c.Request().Context()); err != nil {
		return errorResponse(c, err)
	}
	return successResponse(c, s.driver.View())
}

func (s *Server) setManual(c echo.Context) error {
	fields, err := readFields(c)
	if err != nil {
		return dataResponse(c, http.StatusBadRequest, ErrorBody{Code: "invalid_body", Message: err.Error()})
	}
	in := models.ParseManualInput(cast.ToStringMapString(fields))
	zones, err := s.driver.SetManualReference(c.Request().Context(), in)
	if err != nil {
		return errorResponse(c, err)
	}
	return successResponse(c, map[string]interface{}{"manual": in, "zones": zones})
}

func (s *Server) clearManual(c echo.Context) error {
	if err := s.driver.ClearManualReference(c.Request().Context()); err != nil {
		return errorResponse(c, err)
	}
	return successResponse(c, s.driver.View())
}

func (s *Server) updateSettings(c echo.Context) error {
	fields, err := readFields(c)
	if err != nil {
		return dataResponse(c, http.StatusBadRequest, ErrorBody{Code: "invalid_body", Message: err.Error()})
	}

	settings := s.driver.View().Settings
	if v, ok := fields["asset"]; ok {
		settings.Asset = models.ParseAsset(cast.ToString(v))
	}
	if v, ok := fields["contracts"]; ok {
		settings.Contracts = models.CoerceInt(v)
	}
	if v, ok := fields["maxRiskPerTrade"]; ok {
		settings.Budget.MaxRiskPerTrade = models.CoerceFloat(v)
	}
	if v, ok := fields["maxDailyLoss"]; ok {
		settings.Budget.MaxDailyLoss = models.CoerceFloat(v)
	}

	if _, err := s.driver.UpdateSettings(c.Request().Context(), settings); err != nil {
		return errorResponse(c, err)
	}
	return successResponse(c, s.driver.View())
}

func (s *Server) insight(c echo.Context) error {
	v := s.driver.View()
	s.desk.RequestInsight(c.Request().Context(), v.Snapshot, v.Bias, v.ReferenceZones)
	return acceptedResponse(c, s.desk.Commentary(agents.KindInsight))
}

func (s *Server) charts(c echo.Context) error {
	daily, err := readUpload(c, "daily")
	if err != nil {
		return dataResponse(c, http.StatusBadRequest, ErrorBody{Code: "invalid_upload", Message: err.Error(), Field: "daily"})
	}
	intraday, err := readUpload(c, "intraday")
	if err != nil {
		return dataResponse(c, http.StatusBadRequest, ErrorBody{Code: "invalid_upload", Message: err.Error(), Field: "intraday"})
	}
	s.desk.RequestCharts(c.Request().Context(), daily, intraday)
	return acceptedResponse(c, s.desk.Commentary(agents.KindCharts))
}

func (s *Server) commentary(c echo.Context) error {
	return successResponse(c, s.desk.All())
}

func (s *Server) journalList(c echo.Context) error {
	if s.journal == nil {
		return errorResponse(c, apperrors.ErrJournalDisabled)
	}
	filter := store.SignalFilter{
		Asset:    models.Asset(strings.ToUpper(c.QueryParam("asset"))),
		OpenOnly: cast.ToBool(c.QueryParam("open")),
		Limit:    models.CoerceInt(c.QueryParam("limit")),
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	records, err := s.journal.ListSignals(c.Request().Context(), filter)
	if err != nil {
		logger := logging.FromContext(c.Request().Context())
		logger.Error().Err(err).Msg("Listing journal failed")
		return errorResponse(c, err)
	}
	return successResponse(c, records)
}

func (s *Server) journalSummary(c echo.Context) error {
	if s.journal == nil {
		return errorResponse(c, apperrors.ErrJournalDisabled)
	}
	day := s.now()
	if raw := c.QueryParam("day"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, day.Location())
		if err != nil {
			return dataResponse(c, http.StatusBadRequest, ErrorBody{Code: "invalid_field", Message: "day must be YYYY-MM-DD", Field: "day"})
		}
		day = parsed
	}
	summary, err := s.journal.DailySummary(c.Request().Context(), day)
	if err != nil {
		logger := logging.FromContext(c.Request().Context())
		logger.Error().Err(err).Msg("Journal summary failed")
		return errorResponse(c, err)
	}
	return successResponse(c, summary)
}

// readFields reads a flat JSON object or form body.
func readFields(c echo.Context) (map[string]interface{}, error) {
	fields := make(map[string]interface{})
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.NewDecoder(c.Request().Body).Decode(&fields); err != nil && err != io.EOF {
			return nil, err
		}
		return fields, nil
	}
	form, err := c.FormParams()
	if err != nil {
		return nil, err
	}
	for k, v := range form {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields, nil
}

// readUpload returns the bytes of an optional multipart file.
func readUpload(c echo.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxChartBytes))
}
