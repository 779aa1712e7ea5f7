package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/tennis-court-reservation/internal/clock"
	"github.com/iliyamo/tennis-court-reservation/internal/config"
	"github.com/iliyamo/tennis-court-reservation/internal/database"
	"github.com/iliyamo/tennis-court-reservation/internal/handler"
	"github.com/iliyamo/tennis-court-reservation/internal/middleware"
	"github.com/iliyamo/tennis-court-reservation/internal/queue"
	"github.com/iliyamo/tennis-court-reservation/internal/repository"
	"github.com/iliyamo/tennis-court-reservation/internal/router"
	"github.com/iliyamo/tennis-court-reservation/internal/service"
)

func main() {
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(migrateCtx, db); err != nil {
		log.Fatalf("database: %v", err)
	}
	cancelMigrate()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage and services.
	tx := database.NewTransactor(db)
	stores := tx.Stores()
	guests := repository.NewGuestRepo(db)
	courts := repository.NewTennisCourtRepo(db)
	tokens := repository.NewTokenRepo(db)

	var events service.EventPublisher
	if cfg.Events.Enabled {
		pub := queue.NewPublisher(cfg.Events.BrokerURL)
		defer pub.Close()
		events = pub
		if cfg.Events.Consume {
			go func() {
				if err := queue.StartReservationConsumer(ctx, cfg.Events.BrokerURL, cfg.Events.LogDir); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("reservation-consumer: stopped: %v", err)
				}
			}()
		}
	}

	clk := clock.System{}
	schedules := service.NewScheduleService(stores.Schedules, stores.Courts, clk)
	reservations := service.NewReservationService(stores, tx, clk, events)

	// Redis-backed cache and rate limits; both pass through when Redis is down.
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	rlCfg := config.LoadRateLimitConfig()
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(middleware.NewTokenBucket(rlCfg, rdb))

	courtHandler := handler.NewCourtHandler(courts, schedules, cache)
	scheduleHandler := handler.NewScheduleHandler(schedules, cache)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, guests, tokens), cfg.JWTSecret)
	router.RegisterPublic(e, courtHandler, scheduleHandler, cache)
	router.RegisterAdmin(e, courtHandler, scheduleHandler, handler.NewGuestHandler(guests), cfg.JWTSecret)
	router.RegisterReservations(e, handler.NewReservationHandler(reservations), cfg.JWTSecret,
		middleware.NewBookingLimiter(rlCfg, rdb))

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s, events=%t)", addr, cfg.Env, cfg.Events.Enabled)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
