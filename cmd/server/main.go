package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"ballotcore/internal/audit"
	"ballotcore/internal/election"
	jwttoken "ballotcore/internal/jwt_token"
	"ballotcore/internal/ledger"
	"ballotcore/internal/platform/config"
	"ballotcore/internal/platform/httpserver"
	"ballotcore/internal/platform/logger"
	platformmetrics "ballotcore/internal/platform/metrics"
	"ballotcore/internal/platform/postgres"
	"ballotcore/internal/platform/redis"
	"ballotcore/internal/ratelimit"
	"ballotcore/internal/vote/handler"
	votemetrics "ballotcore/internal/vote/metrics"
	"ballotcore/internal/vote/reconcile"
	"ballotcore/internal/vote/service"
	"ballotcore/internal/vote/store"
	"ballotcore/internal/voter"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var lgr ledger.Ledger
	switch cfg.LedgerMode {
	case config.LedgerModeMemory:
		log.Warn("using in-process memory ledger; votes are NOT durable on an external ledger")
		lgr = ledger.NewMemory()
	default:
		rpcLedger, err := ledger.DialRPC(ctx, cfg.LedgerRPCURL, log,
			ledger.WithCallTimeout(cfg.LedgerCallTimeout))
		if err != nil {
			log.Error("failed to dial ledger", "url", cfg.LedgerRPCURL, "error", err)
			os.Exit(1)
		}
		defer rpcLedger.Close()
		lgr = rpcLedger
	}

	var auditSink audit.Store = audit.NewInMemory()
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := audit.NewKafka(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		auditSink = kafka
	} else {
		log.Warn("no kafka brokers configured; audit events stay in process")
	}

	auditInbox := make(chan audit.Event, cfg.AuditBufferSize)
	auditPublisher := audit.NewPublisher(auditInbox, log)
	auditWorker := audit.NewWorker(auditSink, auditInbox, log)

	voteMetrics := votemetrics.New()
	httpMetrics := platformmetrics.New()

	voteStore := store.NewPostgres(db)
	elections := election.NewPostgres(db)
	voters := voter.NewPostgres(db)

	votes := service.New(voteStore, lgr, elections, voters, log,
		service.WithMetrics(voteMetrics),
		service.WithAudit(auditPublisher),
	)

	sweeper := reconcile.New(voteStore, lgr, log,
		reconcile.WithInterval(cfg.SweepInterval),
		reconcile.WithBatchSize(cfg.SweepBatchSize),
		reconcile.WithMetrics(voteMetrics),
		reconcile.WithAudit(auditPublisher),
	)

	var limiterStore ratelimit.Store = ratelimit.NewInMemory()
	if redisClient != nil {
		limiterStore = ratelimit.NewRedis(redisClient.Client)
	}
	castLimiter := ratelimit.NewMiddleware(limiterStore, log, cfg.CastRateLimit, cfg.CastRateWindow)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey)

	voteHandler := handler.New(votes, log, httpMetrics, jwtService,
		handler.WithCastLimiter(castLimiter.Limit))

	router := chi.NewRouter()
	voteHandler.Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "postgres unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting ballotcore", "addr", cfg.Addr, "ledger_mode", string(cfg.LedgerMode))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := auditWorker.Run(gctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})
	g.Go(func() error {
		err := sweeper.Run(gctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
