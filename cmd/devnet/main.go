package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vote-escrow-go/internal/common"
	"vote-escrow-go/internal/config"
	"vote-escrow-go/internal/rpcchain"

	"go.uber.org/zap"
)

// devnet serves the SQLite chain over JSON-RPC so engines can run with CHAIN_BACKEND=rpc
func main() {
	addr := flag.String("addr", ":8545", "Listen address for /rpc and /events")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx := context.Background()
	devnet, err := common.InitializeDevnet(ctx, cfg, nil)
	if err != nil {
		zap.L().Fatal("Failed to open devnet", zap.Error(err))
	}
	defer devnet.Close()

	server := &http.Server{
		Addr:              *addr,
		Handler:           rpcchain.NewServer(devnet),
		ReadHeaderTimeout: time.Minute,
	}

	go func() {
		zap.L().Info("Devnet chain listening",
			zap.String("addr", *addr),
			zap.String("database", cfg.Database.Path))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("Devnet server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping devnet...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Forced shutdown after timeout", zap.Error(err))
	}
}
