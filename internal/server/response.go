package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "tradecopilot/internal/errors"
)

// APIResponse is the envelope of every JSON API response.
type APIResponse struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func dataResponse(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, APIResponse{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

func successResponse(c echo.Context, data interface{}) error {
	return dataResponse(c, http.StatusOK, data)
}

func acceptedResponse(c echo.Context, data interface{}) error {
	return dataResponse(c, http.StatusAccepted, data)
}

// errorResponse maps domain errors onto HTTP statuses.
func errorResponse(c echo.Context, err error) error {
	var rerr *apperrors.RiskError
	switch {
	case apperrors.As(err, &rerr):
		return dataResponse(c, http.StatusConflict, ErrorBody{
			Code:    "session_blocked",
			Message: fmt.Sprintf("Daily loss limit reached (P&L %.2f, limit %.2f). Trading is blocked for today.", rerr.Current, rerr.Limit),
		})
	case apperrors.Is(err, apperrors.ErrSessionBlocked):
		return dataResponse(c, http.StatusConflict, ErrorBody{Code: "session_blocked", Message: "Daily loss limit reached. Trading is blocked for today."})
	case apperrors.Is(err, apperrors.ErrJournalDisabled):
		return dataResponse(c, http.StatusNotFound, ErrorBody{Code: "journal_disabled", Message: "The signal journal is not enabled."})
	case apperrors.Is(err, apperrors.ErrDriverStopped):
		return dataResponse(c, http.StatusServiceUnavailable, ErrorBody{Code: "driver_stopped", Message: "The session driver is not running."})
	default:
		return dataResponse(c, http.StatusInternalServerError, ErrorBody{Code: "internal", Message: "Something went wrong"})
	}
}
