package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/telemeds/telemeds/pkg/apperror"
)

// ErrorHandler renders every handler error as the JSON envelope
// {"error","kind","code"}. Classified errors keep their message; echo
// errors (404, 405, 429, 413) are classified by status; anything else is
// logged and reported as a generic internal error.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := errorBody(err)
		if status >= 500 {
			logger.Error().
				Err(err).
				Str("request_id", GetRequestID(c)).
				Str("path", c.Request().URL.Path).
				Str("kind", string(body.Kind)).
				Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Warn().Err(werr).Msg("failed to write error response")
		}
	}
}

func errorBody(err error) (int, apperror.Body) {
	var ae *apperror.Error
	if errors.As(err, &ae) {
		return apperror.ToBody(ae)
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if he.Message != nil {
			msg = fmt.Sprintf("%v", he.Message)
		}
		return he.Code, apperror.Body{
			Error: msg,
			Kind:  kindForStatus(he.Code),
			Code:  strings.ReplaceAll(strings.ToLower(http.StatusText(he.Code)), " ", "_"),
		}
	}

	return apperror.ToBody(err)
}

func kindForStatus(status int) apperror.Kind {
	switch {
	case status == http.StatusRequestEntityTooLarge, status == http.StatusTooManyRequests:
		return apperror.KindResourceLimit
	case status == http.StatusBadGateway, status == http.StatusGatewayTimeout:
		return apperror.KindExternal
	case status < 500:
		return apperror.KindValidation
	default:
		return apperror.KindPersistence
	}
}
