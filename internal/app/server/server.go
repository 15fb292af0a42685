package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"intercept-sandbox/internal/api"
	"intercept-sandbox/internal/config"
	"intercept-sandbox/internal/engine"
	"intercept-sandbox/internal/frequency"
	"intercept-sandbox/internal/listener"
	"intercept-sandbox/internal/storage"
)

func Run(cfg config.Config) {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	src, store, err := OpenSource(rootCtx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init storage")
	}
	if store != nil {
		defer store.Close()
	}

	// Engine
	eng := engine.NewEngine()
	if err := eng.BuildSnapshot(rootCtx, src); err != nil {
		log.Fatal().Err(err).Msg("initial snapshot build")
	}

	// Frequency cap (optional)
	var freq api.Capper
	if cfg.Redis.Addr != "" {
		rs, err := frequency.NewRedis(rootCtx, cfg.Redis.Addr)
		if err != nil {
			log.Fatal().Err(err).Msg("init redis")
		}
		defer rs.Close()
		freq = rs
	}

	// HTTP
	h := api.NewInterceptHandler(eng, freq)
	srv := newHTTPServer(cfg.Server.Addr, api.Router(h))

	// Listener (LISTEN/NOTIFY)
	if store != nil {
		go listener.ListenAndRefresh(rootCtx, store, eng, cfg.Listener.Channel, cfg.Backoff())
	}

	// Server goroutine
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server crashed")
		}
	}()

	// Wait for signal
	waitForSignal()
	log.Info().Msg("shutdown...")

	// Graceful shutdown
	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	cancel() // stop background goroutines
	_ = srv.Shutdown(shCtx)
}

// OpenSource returns the seed catalogue when cfg.Seed.Path is set and the
// Postgres store otherwise. store is nil for seed catalogues.
func OpenSource(ctx context.Context, cfg config.Config) (src engine.Source, store *storage.Store, err error) {
	if cfg.Seed.Path != "" {
		m, err := storage.LoadSeed(cfg.Seed.Path)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", cfg.Seed.Path).Msg("serving seed catalogue")
		return m, nil, nil
	}
	st, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return st, st, nil
}

// Embedded serves src on a loopback port until ctx is cancelled and returns
// the base URL. The sandbox app uses it for standalone runs. freq may be nil;
// when it has a Close method it is closed after shutdown.
func Embedded(ctx context.Context, src engine.Source, freq api.Capper) (string, error) {
	eng := engine.NewEngine()
	if err := eng.BuildSnapshot(ctx, src); err != nil {
		return "", fmt.Errorf("build snapshot: %w", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("listen: %w", err)
	}
	srv := newHTTPServer(ln.Addr().String(), api.Router(api.NewInterceptHandler(eng, freq)))
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("embedded server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		if c, ok := freq.(interface{ Close() }); ok {
			c.Close()
		}
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("embedded intercept service started")
	return "http://" + ln.Addr().String(), nil
}

func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func waitForSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
