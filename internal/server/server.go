// Package server assembles the echo instance from configuration, storage
// and the optional Redis and RabbitMQ clients.
package server

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/faultdesk/internal/config"
	"github.com/iliyamo/faultdesk/internal/handler"
	"github.com/iliyamo/faultdesk/internal/logging"
	"github.com/iliyamo/faultdesk/internal/middleware"
	"github.com/iliyamo/faultdesk/internal/model"
	"github.com/iliyamo/faultdesk/internal/repository"
	"github.com/iliyamo/faultdesk/internal/router"
	"github.com/iliyamo/faultdesk/internal/service"
	"github.com/iliyamo/faultdesk/internal/storage"
)

// Deps are the resources the server is built from. Redis and Events may be
// nil; rate limiting and caching are then disabled and events dropped.
type Deps struct {
	Config    config.Config
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	DB        *sql.DB
	Redis     *redis.Client
	Uploads   *storage.Local
	Events    service.EventPublisher
}

// New wires repositories, services, handlers and routes onto a new echo
// instance.
func New(d Deps) *echo.Echo {
	cfg := d.Config

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	router.Configure(e, cfg.Production())

	e.Use(echomw.RequestID())
	e.Use(middleware.RequestContext())
	e.Use(middleware.RequestLogger())
	e.Use(echomw.Recover())
	if cfg.BodyLimit != "" {
		e.Use(echomw.BodyLimit(cfg.BodyLimit))
	}

	users := repository.NewUserRepo(d.DB)
	tokens := repository.NewTokenRepo(d.DB)
	faultRepo := repository.NewFaultRepo(d.DB)
	noteRepo := repository.NewNoteRepo(d.DB)
	photoRepo := repository.NewPhotoRepo(d.DB)
	lookupRepo := repository.NewLookupRepo(d.DB)

	lookups := service.NewLookupRegistry(lookupRepo)
	techs := service.NewTechnicianRegistry(users)
	faults := service.NewFaultStore(faultRepo, noteRepo, lookups, techs, d.Uploads, d.Events)
	notes := service.NewNoteLedger(faultRepo, noteRepo, techs)
	photos := service.NewPhotoManager(faultRepo, photoRepo, d.Uploads, faults)
	gate := service.NewAccessGate(cfg.JWTSecret, users)

	auth := middleware.Authenticate(gate)
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis)
	cache := middleware.NewRedisCache(d.Cache, d.Redis)

	router.RegisterRoutes(e, d.DB)
	router.RegisterUploads(e, d.Uploads.Root)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), auth, limit)
	router.RegisterLookups(e, handler.NewLookupHandler(lookups), auth, limit, cache)
	router.RegisterFaults(e, router.FaultHandlers{
		Faults:      handler.NewFaultHandler(faults, photos, cfg.MaxUploadBytes),
		Notes:       handler.NewNoteHandler(notes),
		Photos:      handler.NewPhotoHandler(photos, cfg.MaxUploadBytes),
		Technicians: handler.NewTechnicianHandler(techs),
	}, auth, limit)
	return e
}

// EnsureAdmin creates the bootstrap admin when the users table is empty and
// credentials are configured. It reports whether a user was created.
func EnsureAdmin(ctx context.Context, users *repository.UserRepo, cfg config.Config) (bool, error) {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return false, nil
	}
	n, err := users.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	u, err := users.Create(ctx, cfg.AdminUsername, "Administrator", cfg.AdminPassword, model.RoleAdmin, cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	logging.Info(ctx, "bootstrap admin created", slog.Int64("user_id", u.ID), slog.String("username", u.Username))
	return true, nil
}
