package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/obiente/translate/livewhisper/internal/capture"
	"github.com/obiente/translate/livewhisper/internal/config"
	"github.com/obiente/translate/livewhisper/internal/events"
	"github.com/obiente/translate/livewhisper/internal/pipeline"
)

func transcribeCmd() *cobra.Command {
	var (
		realtime bool
		noPad    bool
	)
	cmd := &cobra.Command{
		Use:   "transcribe <file.wav>",
		Short: "Run one session over a WAV file and print each transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			src, err := capture.NewWAVSource(args[0], cfg.Capture.FrameSize, realtime)
			if err != nil {
				return err
			}
			settings := settingsFrom(cfg)
			if !noPad {
				src.Frames = capture.PadFrames(src.Frames, settings.TargetRate, settings.Threshold())
			}
			return transcribeFile(ctx, cfg, src, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&realtime, "realtime", false, "pace frames at the file's sample rate")
	cmd.Flags().BoolVar(&noPad, "no-pad", false, "drop a trailing partial buffer instead of padding it with silence")
	return cmd
}

func transcribeFile(ctx context.Context, cfg config.Config, src *capture.SliceSource, out io.Writer) error {
	engine, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	printer := events.Func(func(_ context.Context, ev events.Event) error {
		_, err := fmt.Fprintln(out, ev.Text)
		for lang, tr := range ev.Translations {
			if m, ok := tr.(map[string]any); ok {
				fmt.Fprintf(out, "  [%s] %v\n", lang, m["primary"])
			}
		}
		return err
	})
	emitter, closeEmitter := buildEmitter(ctx, cfg, printer)
	defer closeEmitter()

	ctl := pipeline.NewController(pipeline.Options{
		Engine:   engine,
		Emitter:  emitter,
		Source:   func() capture.Source { return src },
		Settings: settingsFrom(cfg),
	})

	go func() {
		select {
		case <-src.Done():
		case <-ctx.Done():
			return
		}
		// Let the worker take every delivered frame before stopping.
		for ctl.Status().QueueDepth > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(20 * time.Millisecond):
			}
		}
		_ = ctl.Stop()
	}()

	if err := ctl.Start(ctx); err != nil {
		return err
	}
	ctl.Wait()
	log.Info().Int64("events", ctl.Status().Published).Msg("transcription finished")
	return nil
}
