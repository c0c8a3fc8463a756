package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliyamo/faultdesk/internal/config"
	"github.com/iliyamo/faultdesk/internal/database"
	"github.com/iliyamo/faultdesk/internal/logging"
	"github.com/iliyamo/faultdesk/internal/queue"
	"github.com/iliyamo/faultdesk/internal/repository"
	"github.com/iliyamo/faultdesk/internal/server"
	"github.com/iliyamo/faultdesk/internal/service"
	"github.com/iliyamo/faultdesk/internal/storage"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.Env, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	if cfg.DBAutoMigrate {
		if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}
	if _, err := server.EnsureAdmin(ctx, repository.NewUserRepo(db), cfg); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}

	uploads, err := storage.NewLocal(cfg.UploadDir)
	if err != nil {
		log.Fatalf("uploads: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		logging.Warn(ctx, "redis unavailable, rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}

	var events service.EventPublisher = service.NopPublisher{}
	if cfg.EventsEnabled {
		pub := queue.NewPublisher(cfg.RabbitURL)
		defer pub.Close()
		events = pub
		go func() {
			if err := queue.StartActivityConsumer(ctx, cfg.RabbitURL, cfg.ActivityLogDir); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error(ctx, "activity consumer stopped", logging.Err(err))
			}
		}()
	}

	e := server.New(server.Deps{
		Config:    cfg,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		DB:        db,
		Redis:     rdb,
		Uploads:   uploads,
		Events:    events,
	})

	addr := ":" + cfg.Port
	go func() {
		logging.Info(ctx, "listening", slog.String("addr", addr), slog.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logging.Error(shutdownCtx, "shutdown", logging.Err(err))
	}
}
