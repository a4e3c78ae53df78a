// Command gateway serves the deposition REST, websocket and connect API.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"nmrdeposit/internal/gateway/app"
)

const shutdownGrace = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New()
	if err != nil {
		log.Fatalf("gateway: init: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("gateway: serve: %v", err)
		}
		return
	case <-ctx.Done():
	}

	log.Println("gateway: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("gateway: forced shutdown: %v", err)
	}
	log.Println("gateway: stopped")
}
