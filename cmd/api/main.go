package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pressdesk.org/internal/audit"
	"pressdesk.org/internal/auth"
	"pressdesk.org/internal/config"
	"pressdesk.org/internal/httpapi"
	"pressdesk.org/internal/obs"
	"pressdesk.org/internal/store/memory"
	"pressdesk.org/internal/store/pg"
	"pressdesk.org/internal/workflow"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", os.Getenv("PRESSDESK_CONFIG"), "path to YAML config")
	flag.Parse()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Store selection: Postgres when a DSN is set, otherwise the
	// in-memory store (single-node, non-durable; dev only).
	var (
		authStore auth.Store
		flowStore workflow.Store
		trail     audit.Log
		probe     httpapi.ReadyProbe
		closeDB   func() error
	)
	if cfg.DatabaseDSN != "" {
		store, err := pg.Open(cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		if err := store.Ping(ctx); err != nil {
			log.Fatalf("ping db: %v", err)
		}
		authStore, flowStore, trail = store, store, store
		probe = httpapi.ReadyProbe{DB: store.DB()}
		closeDB = store.Close
	} else {
		obs.LogEvent("no database DSN; using in-memory store", nil)
		store := memory.New()
		store.SeedRBAC()
		authStore, flowStore, trail = store, store, store
		closeDB = func() error { return nil }
	}

	tokens, err := auth.NewTokens(cfg.TokenSecret, auth.WithAccessTTL(cfg.AccessTTL))
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}
	svc, err := auth.NewService(authStore, trail, tokens)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	if err := svc.EnsureBuiltins(ctx); err != nil {
		log.Fatalf("ensure permissions: %v", err)
	}

	eval, err := auth.NewEvaluator(authStore)
	if err != nil {
		log.Fatalf("evaluator: %v", err)
	}
	if err := eval.Refresh(ctx); err != nil {
		log.Fatalf("load grants: %v", err)
	}

	api := httpapi.New(svc, eval, flowStore, trail, probe, version)

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	var handler http.Handler = api.Handler()
	handler = httpapi.RateLimit(runCtx, handler, cfg.RateRPS, cfg.RateBurst)
	handler = httpapi.MaxBodyBytes(handler, cfg.MaxBodyBytes)
	handler = httpapi.CORS(handler, cfg.CORSAllowOrigin)
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.LoggingJSON(handler)
	handler = httpapi.RequestID(handler)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	obs.LogEvent("starting", map[string]any{"version": version, "addr": srv.Addr})

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	obs.LogEvent("shutting down", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	_ = closeDB()
	obs.LogEvent("stopped", nil)
}
