package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/faultdesk/internal/logging"
	"github.com/iliyamo/faultdesk/internal/service"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind"`
	Detail string            `json:"detail,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func statusOf(k service.Kind) int {
	switch k {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindAuth:
		return http.StatusUnauthorized
	case service.KindAuthorization:
		return http.StatusForbidden
	case service.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func kindOfStatus(code int) string {
	switch code {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return service.KindValidation.String()
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return service.KindNotFound.String()
	case http.StatusUnauthorized:
		return service.KindAuth.String()
	case http.StatusForbidden:
		return service.KindAuthorization.String()
	case http.StatusConflict:
		return service.KindConflict.String()
	case http.StatusTooManyRequests:
		return "rate_limited"
	}
	return service.KindInternal.String()
}

// ErrorHandler renders errors returned by handlers and middlewares. Service
// errors map by kind, echo errors keep their status, and anything else is a
// 500. The cause of a 5xx is only exposed when production is false.
func ErrorHandler(production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code, body := render(err, production)
		ctx := c.Request().Context()
		if code >= http.StatusInternalServerError {
			logging.Error(ctx, "request failed", slog.Int("status", code), logging.Err(err))
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, body)
		}
		if werr != nil {
			logging.Error(ctx, "write error response", logging.Err(werr))
		}
	}
}

func render(err error, production bool) (int, errorBody) {
	var (
		se *service.Error
		he *echo.HTTPError
		ve validator.ValidationErrors
	)
	switch {
	case errors.As(err, &ve):
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
		return http.StatusBadRequest, errorBody{
			Error:  "invalid input",
			Kind:   service.KindValidation.String(),
			Fields: fields,
		}
	case errors.As(err, &se):
		code := statusOf(se.Kind)
		body := errorBody{Error: se.Message, Kind: se.Kind.String()}
		if se.Err != nil && !production {
			body.Detail = se.Err.Error()
		}
		return code, body
	case errors.As(err, &he):
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		body := errorBody{Error: msg, Kind: kindOfStatus(he.Code)}
		if he.Internal != nil && !production {
			body.Detail = he.Internal.Error()
		}
		return he.Code, body
	}
	body := errorBody{Error: "internal error", Kind: service.KindInternal.String()}
	if !production {
		body.Detail = err.Error()
	}
	return http.StatusInternalServerError, body
}
