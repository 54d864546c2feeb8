package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"homelet/api/internal/api"
	"homelet/api/internal/cache"
	"homelet/api/internal/config"
	"homelet/api/internal/db"
	"homelet/api/internal/email"
	"homelet/api/internal/realtime"
	"homelet/api/internal/repository/mongostore"
	"homelet/api/internal/services"
	"homelet/api/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'all' (default)")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	ctxIndexes, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(ctxIndexes, mongoDb); err != nil {
		log.Fatalf("Failed to ensure MongoDB indexes: %v", err)
	}
	cancelIndexes()

	// Initialize Cache (Redis)
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()

	// Initialize Email Sender
	var primaryEmailSender email.Sender
	if cfg.MockServices {
		log.Println("MOCK_SERVICES enabled: Using Redis email sender.")
		primaryEmailSender = email.NewRedisSender(redisClient, cfg)
	} else {
		log.Println("MOCK_SERVICES disabled or not set: Using SMTP/Logging email sender.")
		primaryEmailSender = email.NewSMTPSender(cfg)
	}

	// The composite sender always includes the primary sender.
	compositeSender := email.NewCompositeEmailSender(primaryEmailSender)

	// Optionally add FileEmailSender if LOG_EMAILS is set
	if cfg.LogEmailsPath != "" {
		log.Printf("LOG_EMAILS set to '%s', enabling file email logger.", cfg.LogEmailsPath)
		fileSender, err := email.NewFileEmailSender(cfg.LogEmailsPath)
		if err != nil {
			log.Printf("WARNING: Failed to initialize file email sender (LOG_EMAILS='%s'): %v. Proceeding without file logging.", cfg.LogEmailsPath, err)
		} else {
			compositeSender.AddSender(fileSender)
			log.Println("File email logger added to composite sender.")
		}
	}

	stores := mongostore.New(mongoDb)
	emailTemplateService := services.NewEmailTemplateService(mongoDb)

	// Initialize Task Client
	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()

	taskProcessor := tasks.NewTaskProcessor(cfg, compositeSender, emailTemplateService, stores, taskClient)
	inviteNotifier := tasks.NewInviteNotifier(taskClient, cfg, stores)

	// WaitGroup for managing goroutines
	var wg sync.WaitGroup

	// Channel to signal shutdown from Service API
	shutdownChan := make(chan struct{}, 1)

	routerCtx, cancelRouter := context.WithCancel(context.Background())
	defer cancelRouter()

	// --- Mode-specific servers ---
	var mainApiSrv *http.Server
	var broker *realtime.Broker
	var backgroundTaskSrv *asynq.Server
	var scheduler *asynq.Scheduler

	fmt.Printf("Starting application in '%s' mode...\n", cfg.RunMode)

	apiMode := func() {
		fmt.Println("Starting main API server...")
		broker = realtime.NewBroker(stores.Chats, stores.Messages, realtime.Options{
			SendBuffer:        cfg.WsSendBuffer,
			MessagesPerSecond: cfg.WsMessagesPerSecond,
			MessageBurst:      cfg.WsMessageBurst,
		})
		mainApiRouter := api.SetupRouter(routerCtx, cfg, stores, broker, inviteNotifier)
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: mainApiRouter,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Printf("Main API listening on :%s\n", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Main API ListenAndServe error: %v", err)
			}
			fmt.Println("Main API server stopped.")
		}()
	}

	bgMode := func() {
		fmt.Println("Starting background worker...")
		backgroundTaskSrv = tasks.SetupServer(redisClient)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Println("Background task server starting...")
			if err := backgroundTaskSrv.Run(taskProcessor.Mux()); err != nil {
				log.Fatalf("Background task server error: %v", err)
			}
			fmt.Println("Background task server stopped.")
		}()

		scheduler, err = tasks.SetupScheduler(redisClient, cfg)
		if err != nil {
			log.Fatalf("Failed to set up task scheduler: %v", err)
		}
		if err := scheduler.Start(); err != nil {
			log.Fatalf("Task scheduler error: %v", err)
		}
		fmt.Println("Task scheduler started.")
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "all":
		apiMode()
		bgMode()
	default:
		log.Fatalf("Invalid run mode specified in config: %s.", cfg.RunMode)
	}

	// Start Service API (always runs)
	serviceRouter := api.SetupServiceRouter(cfg, redisClient, broker, shutdownChan)
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: serviceRouter,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		fmt.Printf("Service API listening on :%s\n", cfg.ServiceApiPort)
		if err := serviceSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Service API ListenAndServe error: %v", err)
		}
		fmt.Println("Service API server stopped.")
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		fmt.Printf("\nReceived signal: %s. Shutting down gracefully...\n", sig)
	case <-shutdownChan:
		fmt.Println("\nShutdown requested via Service API. Shutting down gracefully...")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	fmt.Println("Shutting down Service API server...")
	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		log.Printf("Service API server shutdown error: %v", err)
	}

	if mainApiSrv != nil {
		fmt.Println("Shutting down Main API server...")
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("Main API server shutdown error: %v", err)
		}
	}
	cancelRouter()
	// Hijacked websocket connections are not closed by http.Server.Shutdown.
	if broker != nil {
		fmt.Println("Closing realtime connections...")
		broker.Close()
	}

	if scheduler != nil {
		fmt.Println("Shutting down task scheduler...")
		scheduler.Shutdown()
	}
	if backgroundTaskSrv != nil {
		fmt.Println("Shutting down Background Task server...")
		backgroundTaskSrv.Shutdown()
	}

	fmt.Println("Waiting for servers to stop...")
	wg.Wait()

	fmt.Println("Server gracefully stopped")
}
