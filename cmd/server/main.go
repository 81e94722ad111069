package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"

	_ "github.com/lib/pq"

	"inkwell/internal/audit"
	"inkwell/internal/cache"
	"inkwell/internal/content/handler"
	"inkwell/internal/content/service"
	"inkwell/internal/content/store"
	"inkwell/internal/event"
	"inkwell/internal/notify"
	"inkwell/internal/platform/config"
	"inkwell/internal/platform/httpserver"
	"inkwell/internal/platform/logger"
	"inkwell/internal/platform/metrics"
	"inkwell/internal/platform/middleware"
	"inkwell/internal/platform/redis"
	"inkwell/internal/search"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	registry := event.NewRegistry()
	dispatcher, err := event.New(registry,
		event.WithLogger(log),
		event.WithMetrics(event.NewMetrics()),
		event.WithPoolSize(cfg.Dispatch.PoolSize),
		event.WithAsyncTimeout(cfg.Dispatch.AsyncTimeout),
	)
	if err != nil {
		log.Error("dispatcher init failed", "error", err)
		os.Exit(1)
	}

	var contentStore service.Store = store.NewInMemory()
	var auditStore audit.Store = audit.NewInMemoryStore()
	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err == nil {
			err = db.Ping()
		}
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		contentStore = store.NewPostgres(db)
		auditStore = audit.NewPostgresStore(db)
		log.Info("using postgres stores")
	} else {
		log.Info("using in-memory stores")
	}

	recorder, err := audit.NewRecorder(auditStore, log)
	if err != nil {
		log.Error("audit recorder init failed", "error", err)
		os.Exit(1)
	}
	if err := dispatcher.Register(recorder); err != nil {
		log.Error("subscriber registration failed", "subscriber", recorder.Name(), "error", err)
		os.Exit(1)
	}

	rdb, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
		invalidator, err := cache.NewInvalidator(rdb, log)
		if err != nil {
			log.Error("cache invalidator init failed", "error", err)
			os.Exit(1)
		}
		if err := dispatcher.Register(invalidator); err != nil {
			log.Error("subscriber registration failed", "subscriber", invalidator.Name(), "error", err)
			os.Exit(1)
		}
		log.Info("cache invalidation enabled")
	}

	index := search.NewIndex(log)
	if err := dispatcher.Register(index); err != nil {
		log.Error("subscriber registration failed", "subscriber", index.Name(), "error", err)
		os.Exit(1)
	}

	var kafkaClient *kgo.Client
	if cfg.KafkaBrokers != "" {
		kafkaClient, err = kgo.NewClient(
			kgo.SeedBrokers(strings.Split(cfg.KafkaBrokers, ",")...),
			kgo.DefaultProduceTopic(cfg.KafkaTopic),
		)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		defer kafkaClient.Close()

		notifier, err := notify.NewNotifier(kafkaClient, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("notifier init failed", "error", err)
			os.Exit(1)
		}
		if err := dispatcher.Register(notifier); err != nil {
			log.Error("subscriber registration failed", "subscriber", notifier.Name(), "error", err)
			os.Exit(1)
		}
		log.Info("kafka notifications enabled", "topic", cfg.KafkaTopic)
	}

	svcMetrics := metrics.New()
	svc, err := service.New(contentStore, dispatcher,
		service.WithLogger(log),
		service.WithMetrics(svcMetrics),
	)
	if err != nil {
		log.Error("content service init failed", "error", err)
		os.Exit(1)
	}

	router := chi.NewRouter()
	router.Use(middleware.Metrics(svcMetrics.HTTPRequests))
	handler.New(svc, dispatcher, log).Register(router)
	router.Get("/search", index.ServeSearch)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if rdb != nil {
			if err := rdb.Health(r.Context()); err != nil {
				http.Error(w, "redis unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "postgres unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting inkwell",
		"addr", cfg.Addr,
		"subscribers", dispatcher.SubscriberCount(),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete", "events_dispatched", dispatcher.EventCount())
}
