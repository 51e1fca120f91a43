package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/parlachat/relay/internal/relay"
)

func main() {
	_ = godotenv.Load()

	cfg, err := relay.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	store := relay.NewMessageStore()
	hub := relay.NewHub(cfg, store)
	go hub.Run()

	handler := relay.NewHandler(hub, store, cfg)
	mux := relay.SetupRoutes(handler)
	httpServer := relay.CreateServer(cfg.Port, mux)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- relay.StartServer(httpServer)
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
		return
	}

	if err := relay.ShutdownServer(httpServer, cfg.ShutdownTimeout); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Printf("Hub shutdown: %v", err)
	}
}
