package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/jarvis394/snapshot-interpolation/internal/config"
	"github.com/jarvis394/snapshot-interpolation/internal/net/ws"
	"github.com/jarvis394/snapshot-interpolation/internal/observability"
	"github.com/jarvis394/snapshot-interpolation/internal/producer"
	"github.com/jarvis394/snapshot-interpolation/internal/telemetry"
	"github.com/jarvis394/snapshot-interpolation/interp"
	"github.com/jarvis394/snapshot-interpolation/logging"
	loggingSinks "github.com/jarvis394/snapshot-interpolation/logging/sinks"
	"github.com/jarvis394/snapshot-interpolation/snapshot"
)

const (
	metricsNamespace = "snapinterp"
	shutdownTimeout  = 5 * time.Second
	renderLogEvery   = time.Second
)

// Options carries process-level dependencies shared by both roles.
type Options struct {
	Logger telemetry.Logger
	Stdout io.Writer
}

func (o Options) logger() telemetry.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return telemetry.WrapLogger(log.Default())
}

func (o Options) stdout() io.Writer {
	if o.Stdout != nil {
		return o.Stdout
	}
	return os.Stdout
}

func newRouter(cfg config.Config, opts Options) (*logging.Router, func(), error) {
	routerCfg := cfg.RouterConfig()
	namedSinks := []logging.NamedSink{
		{Name: "console", Sink: loggingSinks.NewConsoleSink(opts.stdout(), routerCfg.Console)},
	}

	var file *os.File
	if routerCfg.JSONEnabled() {
		f, err := os.OpenFile(routerCfg.JSON.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open json log %s: %w", routerCfg.JSON.Path, err)
		}
		file = f
		namedSinks = append(namedSinks, logging.NamedSink{
			Name: "json",
			Sink: loggingSinks.NewJSON(f, routerCfg.JSON.FlushInterval),
		})
	}

	router := logging.NewRouter(routerCfg, nil, namedSinks)
	logger := opts.logger()
	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := router.Close(ctx); err != nil {
			logger.Printf("failed to close logging router: %v", err)
		}
		if file != nil {
			file.Close()
		}
	}
	return router, closeFn, nil
}

// RunServer produces snapshots at the configured tick rate and serves them
// over the websocket feed until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.Config, opts Options) error {
	logger := opts.logger()

	router, closeRouter, err := newRouter(cfg, opts)
	if err != nil {
		return err
	}
	defer closeRouter()

	metrics := telemetry.NewPrometheus(metricsNamespace)
	broadcaster := ws.NewBroadcaster(ws.BroadcasterConfig{
		Logger:       logger,
		Publisher:    logging.WithFields(router, map[string]any{"role": "server"}),
		Metrics:      metrics,
		Replay:       cfg.Server.Replay,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	world := producer.New(producer.Config{
		Collection: cfg.Collection,
		Entities:   cfg.Server.Entities,
		TickRate:   cfg.Server.TickRate,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go world.Run(ctx, func(s snapshot.Snapshot) {
		if err := broadcaster.Broadcast(s); err != nil {
			logger.Printf("failed to broadcast frame %d: %v", s.Sequence, err)
		}
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: NewServerHandler(broadcaster, ServerHandlerConfig{
			Metrics:       metrics,
			TickRate:      cfg.Server.TickRate,
			Observability: observability.Config{EnablePprof: cfg.Server.Pprof},
		}),
	}
	go func() {
		<-ctx.Done()
		broadcaster.Close()
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Printf("snapshot feed listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// RunFollower subscribes to the feed at cfg.Follow.URL and interpolates the
// configured collection at the render rate until ctx is cancelled.
func RunFollower(ctx context.Context, cfg config.Config, opts Options) error {
	logger := opts.logger()

	methods, err := cfg.EngineMethods()
	if err != nil {
		return fmt.Errorf("invalid methods: %w", err)
	}

	router, closeRouter, err := newRouter(cfg, opts)
	if err != nil {
		return err
	}
	defer closeRouter()

	metrics := telemetry.NewPrometheus(metricsNamespace)
	publisher := logging.WithFields(router, map[string]any{"role": "follower"})
	engine := interp.New(append(cfg.EngineOptions(),
		interp.WithPublisher(publisher),
		interp.WithMetrics(metrics),
	)...)
	follower := ws.NewFollower(engine, ws.FollowerConfig{
		Logger:    logger,
		Publisher: publisher,
		Metrics:   metrics,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("metrics server failed: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
	}

	go render(ctx, follower, methods, cfg.Collection, cfg.Follow.RenderRate, logger)

	logger.Printf("following snapshot feed at %s (lag %v)", cfg.Follow.URL, engine.LagBuffer())
	return follower.Run(ctx, cfg.Follow.URL)
}

func render(ctx context.Context, follower *ws.Follower, methods interp.Methods, collection string, rate float64, logger telemetry.Logger) {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / rate))
	defer ticker.Stop()

	var frames uint64
	var lastLog time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			result, ok, err := follower.Compute(methods, collection)
			if err != nil {
				logger.Printf("interpolation failed: %v", err)
				continue
			}
			if !ok {
				continue
			}
			frames++
			if now.Sub(lastLog) < renderLogEvery {
				continue
			}
			lastLog = now
			logger.Printf("rendered %d frames; latest between %d and %d at %.3f with %d entities (rtt %v)",
				frames, result.Older, result.Newer, result.Fraction, len(result.Entities), follower.RTT())
		}
	}
}
