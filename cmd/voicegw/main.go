// Package main provides the entry point for the realtime voice gateway.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/venturebuilderai/officesim/internal/config"
	"github.com/venturebuilderai/officesim/internal/factory"
	"github.com/venturebuilderai/officesim/internal/gateway"
	"github.com/venturebuilderai/officesim/internal/store"
)

func main() {
	addr := flag.String("addr", "", "listen address (overrides GATEWAY_ADDR)")
	flag.Parse()

	logger := initLogger()
	defer logger.Sync()

	logger.Info("starting voice gateway")

	cfg := config.Load()
	if *addr != "" {
		cfg.GatewayAddr = *addr
	}

	secret := cfg.GatewaySecret
	if secret == "" {
		b := make([]byte, 24)
		if _, err := rand.Read(b); err != nil {
			logger.Fatal("generate ephemeral secret", zap.Error(err))
		}
		secret = hex.EncodeToString(b)
		logger.Warn("GATEWAY_SECRET not set; using an ephemeral secret, minted tokens will not survive a restart")
	}

	stt, err := factory.NewSTT(cfg)
	if err != nil {
		logger.Fatal("failed to create stt vendor", zap.Error(err))
	}
	llm, err := factory.NewLLM(cfg)
	if err != nil {
		logger.Fatal("failed to create llm vendor", zap.Error(err))
	}
	tts, err := factory.NewTTS(cfg)
	if err != nil {
		logger.Fatal("failed to create tts vendor", zap.Error(err))
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal("failed to create data dir", zap.Error(err))
		}
	}
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer db.Close()

	srv, err := gateway.NewServer(cfg.GatewayAddr, secret, stt, llm, tts, db, logger)
	if err != nil {
		logger.Fatal("failed to create gateway", zap.Error(err))
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	logger.Info("voice gateway started",
		zap.String("addr", cfg.GatewayAddr),
		zap.String("stt_vendor", cfg.STTVendor),
		zap.String("llm_vendor", cfg.LLMVendor),
		zap.String("tts_vendor", cfg.TTSVendor),
		zap.String("database", cfg.DatabasePath),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.Error("server error", zap.Error(err))
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown gateway", zap.Error(err))
	}
	logger.Info("voice gateway shutdown complete")
}

// initLogger initializes the zap logger.
func initLogger() *zap.Logger {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	var level zapcore.Level
	switch logLevel {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var cfg zap.Config
	if os.Getenv("LOG_FORMAT") == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
