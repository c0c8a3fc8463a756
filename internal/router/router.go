// Package router wires handlers and middlewares onto the echo instance.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/faultdesk/internal/handler"
	"github.com/iliyamo/faultdesk/internal/middleware"
	"github.com/iliyamo/faultdesk/internal/model"
)

// Role sets used by the route groups.
var (
	anyRole = []string{model.RoleAdmin, model.RoleTechnician, model.RoleViewer}
	writers = []string{model.RoleAdmin, model.RoleTechnician}
	admins  = []string{model.RoleAdmin}
)

// Configure installs the error handler and the request validator.
func Configure(e *echo.Echo, production bool) {
	e.HTTPErrorHandler = handler.ErrorHandler(production)
	e.Validator = handler.NewValidator()
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterUploads serves stored photo files read-only under /uploads.
func RegisterUploads(e *echo.Echo, dir string) {
	e.Static(handler.UploadsPrefix, dir)
}

// RegisterAuth registers the token endpoints under /v1/auth and the
// authenticated user endpoints under /v1. auth is the access gate
// middleware; limit may be nil.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, auth, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", optional(limit)...)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	v1 := e.Group("/v1", chain(auth, limit)...)
	v1.GET("/me", a.Me, middleware.RequireRole(anyRole...))
	v1.POST("/users", a.Register, middleware.RequireRole(admins...))
}

// optional drops nil middlewares so disabled features need no stubs.
func optional(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mws))
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// chain returns auth followed by the non-nil extras. The limiter runs after
// auth so buckets can be keyed by user.
func chain(auth echo.MiddlewareFunc, extra ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	return append([]echo.MiddlewareFunc{auth}, optional(extra...)...)
}
