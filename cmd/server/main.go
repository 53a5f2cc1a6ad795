package main // Entry point of the booking API

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking/internal/audit"
	"github.com/iliyamo/cinema-booking/internal/cache"
	"github.com/iliyamo/cinema-booking/internal/config"
	"github.com/iliyamo/cinema-booking/internal/database"
	"github.com/iliyamo/cinema-booking/internal/handler"
	"github.com/iliyamo/cinema-booking/internal/logger"
	"github.com/iliyamo/cinema-booking/internal/middleware"
	"github.com/iliyamo/cinema-booking/internal/notify"
	"github.com/iliyamo/cinema-booking/internal/repository"
	"github.com/iliyamo/cinema-booking/internal/router"
	"github.com/iliyamo/cinema-booking/internal/service"
)

const auditBuffer = 1024

func main() {
	log := logger.WithComponent("server")
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn(".env not loaded")
	}

	cfg := config.Load()
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("database unavailable")
	}
	defer db.Close()

	sessions := repository.NewSessionRepo(db)
	rooms := repository.NewRoomRepo(db)
	movies := repository.NewMovieRepo(db)
	users := repository.NewUserRepo(db)
	tickets := repository.NewTicketRepo(db)

	cacheCfg := config.LoadCacheConfig()
	var (
		coord       *cache.Coordinator
		lists       service.Invalidator
		purchaseCap echo.MiddlewareFunc
	)
	if rdb := config.NewRedisClient(); rdb != nil {
		defer rdb.Close()
		if cacheCfg.Enabled {
			coord = cache.NewCoordinator(cache.NewRedisStore(rdb, cacheCfg.Prefix), cache.LockOptionsFromConfig(cacheCfg))
			lists = coord
		}
		purchaseCap = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	}

	sink := audit.NewAsyncSink(repository.NewAuditRepo(db), auditBuffer)
	publisher := notify.NewPublisher(cfg.RabbitURL)

	scheduler := service.NewScheduler(sessions, rooms, movies, sink, lists)
	admission := service.NewAdmission(sessions, movies, users, rooms, tickets, sink, publisher, cfg.MaxTicketsPerPurchase)
	catalog := service.NewCatalog(movies, sessions, coord, cacheCfg.TTL)

	e := router.New(router.Handlers{
		Health:        &handler.HealthHandler{DB: db},
		Catalog:       handler.NewCatalogHandler(catalog),
		Sessions:      handler.NewSessionHandler(scheduler),
		Tickets:       handler.NewTicketHandler(admission),
		PurchaseLimit: purchaseCap,
	}, cfg.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Port
	go func() {
		log.WithField("addr", addr).WithField("env", cfg.Env).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	admission.Wait()
	if err := sink.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("audit events dropped on shutdown")
	}
	if err := publisher.Close(); err != nil {
		log.WithError(err).Warn("close broker connection")
	}
	log.Info("stopped")
}
