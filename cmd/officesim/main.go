// Package main provides the entry point for the office simulation terminal client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/venturebuilderai/officesim/internal/audio"
	"github.com/venturebuilderai/officesim/internal/config"
	"github.com/venturebuilderai/officesim/internal/dialogue"
	"github.com/venturebuilderai/officesim/internal/factory"
	"github.com/venturebuilderai/officesim/internal/game"
	"github.com/venturebuilderai/officesim/internal/realtime"
	"github.com/venturebuilderai/officesim/internal/world"
)

func main() {
	worldPath := flag.String("world", "", "world config YAML (defaults to the built-in office)")
	mute := flag.Bool("mute", false, "disable sound hardware")
	flag.Parse()

	cfg := config.Load()

	logger := initLogger(cfg.LogPath)
	defer logger.Sync()

	wc := config.DefaultWorld()
	if *worldPath != "" {
		loaded, err := config.LoadWorld(*worldPath)
		if err != nil {
			fatal(logger, "load world config", err)
		}
		wc = loaded
	}
	w, err := world.New(wc)
	if err != nil {
		fatal(logger, "build world", err)
	}

	llm, err := factory.NewLLM(cfg)
	if err != nil {
		fatal(logger, "create llm vendor", err)
	}

	var dev audio.Device = &audio.MemDevice{AutoDrain: true}
	if !*mute {
		pa, err := audio.OpenPortAudio(logger)
		if err != nil {
			logger.Warn("portaudio unavailable, running silent", zap.Error(err))
		} else {
			dev = pa
		}
	}
	defer dev.Close()

	player, err := audio.NewPlayer(dev, logger)
	if err != nil {
		fatal(logger, "open playback", err)
	}
	defer player.Close()

	dial := func(h realtime.Handler) dialogue.RealtimeConn {
		return realtime.NewClient(realtime.Config{
			URL:         cfg.RealtimeURL,
			Model:       cfg.RealtimeModel,
			APIKey:      cfg.OpenAIAPIKey,
			AccessToken: cfg.RealtimeToken,
			Log:         logger,
		}, h)
	}

	speech := cfg.SpeechConfigured() && !*mute
	mgr := dialogue.NewManager(llm, cfg.ChatModel, dial, player, speech, logger)

	capture, err := audio.NewCapture(dev, mgr.MicGate, mgr.AppendMicAudio, logger)
	if err != nil {
		fatal(logger, "open capture", err)
	}
	defer capture.Close()
	if err := capture.Start(); err != nil {
		logger.Warn("microphone unavailable", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting office sim",
		zap.String("world", wc.Title),
		zap.Int("personas", len(w.NPCs)),
		zap.Bool("speech", speech),
	)

	g := game.New(w, mgr, os.Stdin, os.Stdout, nil, logger)
	if err := g.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fatal(logger, "game loop", err)
	}
	fmt.Println("Clocked out. See you tomorrow.")
}

// fatal reports a startup failure on stderr, since the log file is not
// visible while the terminal UI owns the screen, then exits.
func fatal(logger *zap.Logger, msg string, err error) {
	fmt.Fprintf(os.Stderr, "officesim: %s: %v\n", msg, err)
	logger.Fatal(msg, zap.Error(err))
}

// initLogger builds a logger writing to the configured file so stdout stays
// clean for the game screen.
func initLogger(path string) *zap.Logger {
	var level zapcore.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
