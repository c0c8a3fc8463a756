package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/faultdesk/internal/handler"
	"github.com/iliyamo/faultdesk/internal/middleware"
)

// FaultHandlers groups the handlers of the fault resource and its
// sub-resources.
type FaultHandlers struct {
	Faults      *handler.FaultHandler
	Notes       *handler.NoteHandler
	Photos      *handler.PhotoHandler
	Technicians *handler.TechnicianHandler
}

// RegisterFaults registers faults, notes, photos and the technician list
// under /v1. Every route needs a valid access token; reads are open to all
// roles, writes need admin or technician and deleting a fault needs admin.
func RegisterFaults(e *echo.Echo, h FaultHandlers, auth, limit echo.MiddlewareFunc) {
	g := e.Group("/v1", chain(auth, limit)...)
	read := middleware.RequireRole(anyRole...)
	write := middleware.RequireRole(writers...)
	admin := middleware.RequireRole(admins...)

	g.GET("/technicians", h.Technicians.List, read)

	g.GET("/faults", h.Faults.List, read)
	g.POST("/faults", h.Faults.Create, write)
	g.POST("/faults/submit", h.Faults.Submit, write)
	g.GET("/faults/:id", h.Faults.Get, read)
	g.PUT("/faults/:id", h.Faults.Update, write)
	g.DELETE("/faults/:id", h.Faults.Delete, admin)

	g.GET("/faults/:id/notes", h.Notes.List, read)
	g.POST("/notes", h.Notes.Create, write)
	g.PUT("/notes/:id", h.Notes.Update, write)
	g.DELETE("/notes/:id", h.Notes.Delete, write)

	g.POST("/photos/upload", h.Photos.Upload, write)
	g.GET("/photos/fault/:faultId", h.Photos.ListByFault, read)
	g.GET("/photos/:photoId", h.Photos.Get, read)
	g.DELETE("/photos/:photoId", h.Photos.Delete, write)
}
