package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/theatre-diary/internal/config"
	"github.com/iliyamo/theatre-diary/internal/database"
	"github.com/iliyamo/theatre-diary/internal/handler"
	"github.com/iliyamo/theatre-diary/internal/logging"
	"github.com/iliyamo/theatre-diary/internal/queue"
	"github.com/iliyamo/theatre-diary/internal/repository"
	"github.com/iliyamo/theatre-diary/internal/router"
	"github.com/iliyamo/theatre-diary/internal/service"
)

// tokenSweepEvery is how often expired and revoked refresh tokens are purged.
const tokenSweepEvery = time.Hour

func main() {
	cfg := config.Load()
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logging.Install(logger)

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil disables cache and rate limiting
	if rdb != nil {
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	plays := repository.NewPlayRepo(db)
	reviews := repository.NewReviewRepo(db)

	g, gctx := errgroup.WithContext(ctx)

	var events handler.ActivityPublisher
	if cfg.EventsEnabled {
		events = service.NewActivityPublisher(cfg.RabbitMQURL)
		g.Go(func() error {
			// Run only returns once gctx is done.
			_ = queue.NewConsumer(cfg.RabbitMQURL).Run(gctx)
			return nil
		})
	}

	ph := handler.NewPlayHandler(plays, events)
	ph.PageSize = cfg.PageSize
	ph.Locale = cfg.Locale
	ph.Location = cfg.Location

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	router.Register(e, router.Deps{
		Logger:    logger,
		JWTSecret: cfg.JWTSecret,
		DB:        db,
		Redis:     rdb,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
		Auth:      handler.NewAuthHandler(cfg, users, tokens),
		Plays:     ph,
		Reviews:   handler.NewReviewHandler(plays, reviews, events),
	})

	g.Go(func() error {
		sweepTokens(gctx, tokens)
		return nil
	})

	addr := ":" + cfg.Port
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Bool("events", cfg.EventsEnabled).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

// sweepTokens deletes dead refresh tokens once at start and then hourly.
// Revoked tokens are kept for a day.
func sweepTokens(ctx context.Context, tokens *repository.TokenRepo) {
	t := time.NewTicker(tokenSweepEvery)
	defer t.Stop()
	for {
		n, err := tokens.PurgeExpired(ctx, time.Now().Add(-24*time.Hour))
		if err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("token sweep failed")
		} else if n > 0 {
			log.Info().Int64("deleted", n).Msg("token sweep")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
