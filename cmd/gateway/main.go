package main

import (
	"chat-sync/auth"
	"chat-sync/gateway"
	"chat-sync/internal"
	"context"
	goerrors "errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run keeps every deferred cleanup (store, servers) on the exit path.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Store
	store, err := internal.OpenStore(ctx, log, config)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// 4. Gateway
	issuer := auth.NewIssuer(config.AuthSecret, config.AuthTokenDuration)
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	conversations := gateway.NewServer(log, store, issuer, config.GatewayConfig())
	server := &http.Server{
		Addr:              address,
		Handler:           conversations.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	// Also covers the error path, ahead of the deferred store.Close.
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := conversations.Shutdown(ctx); err != nil {
			log.Warn("Conversations still open at exit", "error", err)
		}
	}()

	errChan := make(chan error, 2)
	go func() {
		log.Info("Starting gateway", "address", address, "backend", config.StoreBackend)
		if err := server.ListenAndServe(); err != nil && !goerrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("gateway error: %w", err)
		}
	}()

	// 5. Optional room inspector, embedded backend only
	var debugServer *http.Server
	if config.DebugPort != 0 && store.Badger != nil {
		debugServer = internal.NewDebugServer(log, store.Badger, config.Host, config.DebugPort)
		go func() {
			log.Info("Starting room inspector", "address", debugServer.Addr)
			if err := debugServer.ListenAndServe(); err != nil && !goerrors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("inspector error: %w", err)
			}
		}()
	}

	// 6. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 7. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if debugServer != nil {
		_ = debugServer.Shutdown(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("gateway shutdown: %w", err)
	}
	// Sessions clear their typing state and release subscriptions before the store closes.
	if err := conversations.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("conversations shutdown: %w", err)
	}
	log.Info("Program stopped cleanly")
	return nil
}
