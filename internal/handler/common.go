package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/faultdesk/internal/service"
)

// requestTimeout bounds the storage work of one request.
const requestTimeout = 5 * time.Second

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// principal returns the caller attached by the auth middleware. Routes
// without the middleware get the zero Principal.
func principal(c echo.Context) service.Principal {
	p, _ := service.PrincipalFrom(c.Request().Context())
	return p
}

func pathID(c echo.Context, name string) (int64, error) {
	return service.ParseID(name, c.Param(name))
}

// decodeFields reads a JSON object body keeping numbers as json.Number so
// integer fields are not rounded through float64.
func decodeFields(c echo.Context) (service.Fields, error) {
	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()
	var fields service.Fields
	if err := dec.Decode(&fields); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "body must be a JSON object").SetInternal(err)
	}
	if fields == nil {
		fields = service.Fields{}
	}
	return fields, nil
}
