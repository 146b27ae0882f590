package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/obiente/translate/livewhisper/internal/capture"
	"github.com/obiente/translate/livewhisper/internal/config"
	"github.com/obiente/translate/livewhisper/internal/events"
	serverhttp "github.com/obiente/translate/livewhisper/internal/http"
	"github.com/obiente/translate/livewhisper/internal/metrics"
	"github.com/obiente/translate/livewhisper/internal/pipeline"
	"github.com/obiente/translate/livewhisper/internal/translation"
	"github.com/obiente/translate/livewhisper/internal/whisper"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control surface and websocket event channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	engine, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	m := metrics.New()
	hub := events.NewHub()
	defer hub.Close()
	m.RegisterGaugeFunc("livewhisper_ws_subscribers", "Connected websocket subscribers", func() float64 {
		return float64(hub.Subscribers())
	})

	emitter, closeEmitter := buildEmitter(ctx, cfg, hub)
	defer closeEmitter()

	ctl := pipeline.NewController(pipeline.Options{
		Engine:  engine,
		Emitter: emitter,
		Source: func() capture.Source {
			return capture.NewCommandSource(capture.CommandConfig{
				Backend:    cfg.Capture.Backend,
				Device:     cfg.Capture.Device,
				SampleRate: cfg.Capture.SampleRate,
				FrameSize:  cfg.Capture.FrameSize,
			})
		},
		Settings: settingsFrom(cfg),
		Metrics:  m,
	})

	handler := serverhttp.NewRouter(serverhttp.Deps{
		Controller:     ctl,
		Events:         hub.Handle,
		Metrics:        m.Handler(),
		SessionContext: ctx,
	})
	// No WriteTimeout: start requests are held open for the whole session.
	srv := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("livewhisper server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	_ = ctl.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	ctl.Wait()
	return nil
}

func settingsFrom(cfg config.Config) pipeline.Settings {
	return pipeline.Settings{
		TargetRate:   cfg.Chunking.SampleRate(),
		ChunkSeconds: cfg.Chunking.ChunkDuration(),
		NumChunks:    cfg.Chunking.NumChunks(),
	}
}

// openEngine resolves the model file, downloading it when allowed, and loads
// the engine.
func openEngine(ctx context.Context, cfg config.Config) (whisper.Engine, error) {
	path := cfg.Model.Path
	if path == "" {
		store := whisper.Store{Dir: cfg.Model.Dir}
		p, err := store.Ensure(ctx, cfg.Model.Variant, cfg.Model.Download)
		if err != nil {
			return nil, fmt.Errorf("resolve model: %w", err)
		}
		path = p
	}
	engine, err := whisper.NewEngine(whisper.Options{
		ModelPath: path,
		Language:  cfg.Model.Language,
		Threads:   uint(cfg.Model.Threads),
	})
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	log.Info().Str("model", path).Str("language", cfg.Model.Language).Msg("whisper engine ready")
	return engine, nil
}

// buildEmitter fans events out to base and, when configured, a Redis channel.
// Translation wraps the whole fan-out so every transport sees the same event.
func buildEmitter(ctx context.Context, cfg config.Config, base events.Emitter) (events.Emitter, func()) {
	fanout := events.Multi{base}
	closeFn := func() {}

	if rc := cfg.Events.Redis; rc.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", rc.Addr).Msg("redis unreachable, publishing anyway")
		}
		cancel()
		fanout = append(fanout, events.NewRedisEmitter(client, rc.Channel))
		closeFn = func() { _ = client.Close() }
		log.Info().Str("addr", rc.Addr).Str("channel", rc.Channel).Msg("redis emitter enabled")
	}

	var em events.Emitter = fanout
	if tc := cfg.Translation; tc.Enabled() {
		em = &translation.Emitter{
			Client:  translation.New(tc.BaseURL, tc.TimeoutSec),
			Targets: tc.Targets,
			Next:    fanout,
		}
		log.Info().Str("base_url", tc.BaseURL).Strs("targets", tc.Targets).Msg("translation enabled")
	}
	return em, closeFn
}
