package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	msgerrors "github.com/wippyai/msgwire/errors"
)

type errorBody struct {
	Error string `json:"error"`
	Phase string `json:"phase,omitempty"`
	Kind  string `json:"kind,omitempty"`
	Path  string `json:"path,omitempty"`
}

// Status maps an error to an HTTP status code. The outermost *errors.Error
// decides, so an engine failure caused by bad hex is still a 502.
func Status(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	var e *msgerrors.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch {
	case e.Kind == msgerrors.KindTimeout:
		return http.StatusGatewayTimeout
	case e.Kind == msgerrors.KindUnsupportedVariant, e.Kind == msgerrors.KindFieldTooLarge:
		return http.StatusUnprocessableEntity
	case e.Phase == msgerrors.PhaseValidate, e.Phase == msgerrors.PhaseDecode:
		return http.StatusBadRequest
	case e.Phase == msgerrors.PhaseRuntime, e.Phase == msgerrors.PhaseMemory:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := Status(err)
	body := errorBody{Error: err.Error()}

	var he *echo.HTTPError
	var e *msgerrors.Error
	switch {
	case errors.As(err, &he):
		if msg, ok := he.Message.(string); ok {
			body.Error = msg
		} else {
			body.Error = http.StatusText(he.Code)
		}
	case errors.As(err, &e):
		body.Phase = string(e.Phase)
		body.Kind = string(e.Kind)
		body.Path = e.PathString()
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, body)
	}
	if werr != nil {
		s.logger.Warn("write error response", zap.Error(werr))
	}
}
