package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-catalog-sync/internal/config"
	"github.com/ariefcatur/go-catalog-sync/internal/events"
	"github.com/ariefcatur/go-catalog-sync/internal/httpx"
	kafkax "github.com/ariefcatur/go-catalog-sync/internal/kafka"
	"github.com/ariefcatur/go-catalog-sync/internal/obs"
	"github.com/ariefcatur/go-catalog-sync/internal/redisx"
	"github.com/ariefcatur/go-catalog-sync/internal/search"
	"github.com/joho/godotenv"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	service := cfg.ServiceName + "-search"
	log := obs.NewLogger(cfg.Logging, service)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb, cfg.Broker.ConnectAttempts, cfg.Broker.ConnectDelay); err != nil {
		fatal(log, "redis connect", err)
	}

	// Broker
	broker := kafkax.NewClient(kafkax.OptionsFrom(cfg), log)
	if err := broker.Connect(ctx); err != nil {
		fatal(log, "broker connect", err)
	}

	ix := search.NewIndexer(rdb, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		queue := events.QueueSearchIndex
		if err := broker.Subscribe(ctx, queue, service+"-"+queue, ix.Handle); err != nil {
			log.Error("consumer exit", "queue", queue, "error", err)
			cancel()
		}
	}()

	// HTTP
	router := httpx.NewRouter(log)
	(&httpx.SearchHandler{Reader: search.NewReader(rdb, cfg.Search.SuggestScan)}).Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "error", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()
	<-done
	if err := broker.Close(); err != nil {
		log.Warn("broker close", "error", err)
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
