package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"converso-backend/internal/api"
	"converso-backend/internal/config"
	"converso-backend/internal/handlers"
	"converso-backend/internal/integrations"
	"converso-backend/internal/queue"
	"converso-backend/internal/queue/asynqq"
	"converso-backend/internal/queue/memq"
	"converso-backend/internal/realtime"
	"converso-backend/internal/search"
	"converso-backend/internal/services"
	"converso-backend/internal/store/postgres"
)

func main() {
	log.Println("Starting Converso Backend...")

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 2. Initialize Database Connection Pool
	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	dbpool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: Unable to create database connection pool: %v\n", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(dbCtx); err != nil {
		log.Fatalf("FATAL: Unable to ping database: %v\n", err)
	}
	log.Println("Database connection pool established and pinged successfully.")

	// 3. Initialize Dependencies (Store, Hub, Queue, Services, Handlers)
	pgStore := postgres.NewPostgresStore(dbpool)
	log.Println("Postgres store initialized.")

	hub := realtime.NewHub()
	log.Println("Realtime hub initialized.")

	// --- Queue backend: Redis-backed asynq when configured, in-process otherwise ---
	var (
		queueClient queue.Client
		queueServer queue.Server
	)
	if cfg.RedisURL != "" {
		client, err := asynqq.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("FATAL: Failed to create asynq client: %v", err)
		}
		server, err := asynqq.NewServer(cfg.RedisURL, cfg.BotWorkers)
		if err != nil {
			log.Fatalf("FATAL: Failed to create asynq server: %v", err)
		}
		queueClient, queueServer = client, server
		log.Println("Asynq queue initialized (Redis).")
	} else {
		q := memq.New(cfg.BotWorkers)
		queueClient, queueServer = q, q
		log.Println("In-process queue initialized.")
	}
	defer queueClient.Close()

	// --- Search gateway: external index when configured, DB scan fallback otherwise ---
	var index search.Index
	if cfg.SearchIndexURL != "" {
		index = search.NewMeiliIndex(cfg.SearchIndexURL, cfg.SearchIndexKey)
		log.Println("Search index client initialized.")
	} else {
		log.Println("No search index configured, using database scan fallback.")
	}
	gateway := search.NewGateway(index, pgStore)

	// --- OpenAI provider ---
	openAIClient := integrations.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAITimeout)
	if openAIClient.Configured() {
		log.Println("OpenAI client initialized.")
	} else {
		log.Println("WARN: OpenAI key missing or placeholder, bot replies use fallback responses.")
	}

	// --- Initialize Services ---
	authService := services.NewAuthService(pgStore, cfg)
	log.Println("AuthService initialized.")
	convoService := services.NewConversationService(pgStore)
	log.Println("ConversationService initialized.")
	messageService := services.NewMessageService(pgStore, convoService, hub, gateway, queueClient)
	log.Println("MessageService initialized.")
	botService := services.NewBotService(pgStore, messageService, openAIClient)
	botService.Register(queueServer)
	log.Println("BotService initialized and registered on queue.")

	// --- Initialize Handlers ---
	authHandler := handlers.NewAuthHandler(authService)
	convoHandler := handlers.NewConversationHandlers(convoService, messageService)
	wsHandler := handlers.NewWSHandler(hub, convoService)
	log.Println("Handlers initialized.")

	// 4. Setup Router & Inject Dependencies
	router := api.NewRouter(api.RouterDependencies{
		AuthHandler:         authHandler,
		ConversationHandler: convoHandler,
		WSHandler:           wsHandler,
		Config:              cfg,
	})
	log.Println("HTTP router configured.")

	// --- Start queue workers ---
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := queueServer.Run(workerCtx); err != nil {
			log.Printf("ERROR: Queue server stopped: %v", err)
		}
	}()
	log.Printf("Queue workers started (%d).", cfg.BotWorkers)

	// 5. Configure and Start HTTP Server
	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
		// Production hardening: Set timeouts to avoid Slowloris attacks
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting and listening on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Could not listen on %s: %v\n", cfg.HTTPPort, err)
		}
		log.Println("Server listener routine stopped.")
	}()

	<-stopChan
	log.Println("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: Server graceful shutdown failed: %v", err)
	}

	hub.Close()
	log.Println("Realtime hub closed.")

	workerCancel()
	select {
	case <-workerDone:
		log.Println("Queue workers drained.")
	case <-shutdownCtx.Done():
		log.Println("WARN: Queue workers did not drain before deadline.")
	}

	log.Println("Server shutdown complete.")
}
