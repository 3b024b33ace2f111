package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"gatepass/internal/event"
	eventhandler "gatepass/internal/event/handler"
	"gatepass/internal/flow"
	flowhandler "gatepass/internal/flow/handler"
	httpapi "gatepass/internal/http"
	"gatepass/internal/platform/config"
	"gatepass/internal/platform/httpserver"
	"gatepass/internal/platform/kafka"
	"gatepass/internal/platform/logger"
	"gatepass/internal/platform/metrics"
	platformredis "gatepass/internal/platform/redis"
	"gatepass/internal/qualification"
	qualificationhandler "gatepass/internal/qualification/handler"
	"gatepass/internal/redirecttoken"
	redirecthandler "gatepass/internal/redirecttoken/handler"
	"gatepass/internal/registration"
	registrationhandler "gatepass/internal/registration/handler"
	"gatepass/internal/verification"
	verificationhandler "gatepass/internal/verification/handler"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

// run wires storage, messaging, services, and the HTTP server, then blocks
// until shutdown. Store backends are selected by configuration: Postgres and
// Redis when configured, in-memory otherwise.
func run(cfg config.Config, log *slog.Logger) error {
	var db *sql.DB
	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := ensureSchema(db); err != nil {
			return err
		}
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher, err := kafka.NewPublisher(cfg.KafkaBrokers, log)
	if err != nil {
		return fmt.Errorf("connect kafka: %w", err)
	}
	defer publisher.Close()

	m := metrics.New()

	var (
		eventStore        event.Store         = event.NewInMemoryStore()
		qualStore         qualification.Store = qualification.NewInMemoryStore()
		registrationStore registration.Store  = registration.NewInMemoryStore()
	)
	if db != nil {
		eventStore = event.NewPostgres(db)
		qualStore = qualification.NewPostgres(db)
		registrationStore = registration.NewPostgres(db)
	}

	var (
		sessionStore verification.Store    = verification.NewInMemoryStore()
		throttle     verification.Throttle = verification.NewInMemoryThrottle(3, time.Minute)
		tokenStore   redirecttoken.Store   = redirecttoken.NewInMemoryStore()
		flowStore    flow.Store            = flow.NewInMemoryStore()
	)
	if redisClient != nil {
		sessionStore = verification.NewRedis(redisClient.Client)
		throttle = verification.NewRedisThrottle(redisClient.Client, 3, time.Minute)
		tokenStore = redirecttoken.NewRedis(redisClient.Client)
		flowStore = flow.NewRedis(redisClient.Client)
	}

	events := event.NewService(eventStore)
	qual := qualification.NewService(qualStore, nil, events, log)
	verify := verification.NewService(sessionStore, throttle, publisher, m, log, verification.Options{
		CodeTTL:     cfg.CodeTTL,
		CodeLength:  cfg.CodeLength,
		MaxAttempts: cfg.CodeMaxAttempts,
	})
	tokens := redirecttoken.NewService(tokenStore, cfg.RedirectTokenTTL)
	registrations := registration.NewService(registrationStore, events, publisher, m, log)
	signer := flow.NewLinkSigner(cfg.LinkSigningKey, 0)
	flows := flow.NewService(flowStore, events, qual, verify, tokens, registrations, signer, m, log, cfg.FlowTTL)

	router := httpapi.NewRouter(httpapi.Handlers{
		Events:         eventhandler.New(events, log),
		Qualification:  qualificationhandler.New(qual, log),
		Verification:   verificationhandler.New(qual, verify, log),
		RedirectTokens: redirecthandler.New(verify, tokens, log),
		Registrations:  registrationhandler.New(registrations, verify, tokens, log),
		Flows:          flowhandler.New(flows, signer, log),
	}, httpapi.Options{AdminToken: cfg.AdminToken}, log)

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("gatepass listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// ensureSchema applies the per-domain DDL. All statements are idempotent, so
// a restart against an initialized database is a no-op.
func ensureSchema(db *sql.DB) error {
	for _, schema := range []string{event.Schema, qualification.Schema, registration.Schema} {
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
