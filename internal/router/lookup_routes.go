package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/faultdesk/internal/handler"
	"github.com/iliyamo/faultdesk/internal/middleware"
)

// RegisterLookups registers the dictionaries under /v1/lookups. cache, when
// not nil, serves repeated reads from Redis and is invalidated by appends.
func RegisterLookups(e *echo.Echo, l *handler.LookupHandler, auth, limit, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/lookups", chain(auth, limit, cache)...)
	read := middleware.RequireRole(anyRole...)
	admin := middleware.RequireRole(admins...)

	g.GET("/systems", l.Systems, read)
	g.POST("/systems", l.AddSystem, admin)
	g.GET("/locations", l.Locations, read)
	g.POST("/locations", l.AddLocation, admin)
	g.GET("/sections", l.Sections, read)
	g.POST("/sections", l.AddSection, admin)
}
