package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	config, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Printf("Warning: Could not load config file: %v", err)
		config = &Config{}
	}

	database, err := setupDatabase()
	if err != nil {
		log.Fatalf("Failed to setup database: %v", err)
	}
	defer database.Close()

	services, err := setupServices(database, config)
	if err != nil {
		log.Fatalf("Failed to setup services: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Grant the configured admin usernames before accepting joins
	for _, username := range config.Chat.AdminUsernames {
		if _, err := services.Identity.GetOrCreate(ctx, username); err != nil {
			log.Fatalf("Failed to create admin identity %s: %v", username, err)
		}
		if _, err := services.Identity.SetAdmin(ctx, username, true); err != nil {
			log.Fatalf("Failed to grant admin to %s: %v", username, err)
		}
	}

	// Recover persisted timers and start the gateway
	services.Timers.Start(ctx)
	go func() {
		if err := services.Gateway.Start(ctx); err != nil {
			log.Printf("Gateway service stopped: %v", err)
		}
	}()

	server := setupServer(services)

	go func() {
		log.Printf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	if err := server.Shutdown(context.Background()); err != nil {
		log.Printf("Failed to shut down server: %v", err)
	}
}
