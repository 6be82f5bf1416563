package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuberace/cuberace/pkg/api"
	"github.com/cuberace/cuberace/pkg/gateway"
	"github.com/cuberace/cuberace/pkg/history"
	"github.com/cuberace/cuberace/pkg/journal"
	"github.com/cuberace/cuberace/pkg/log"
	"github.com/cuberace/cuberace/pkg/matchmaking"
	"github.com/cuberace/cuberace/pkg/players"
	"github.com/cuberace/cuberace/pkg/rooms"
	"github.com/cuberace/cuberace/pkg/store"
	"github.com/cuberace/cuberace/pkg/version"
	"github.com/cuberace/cuberace/pkg/workers"
)

func main() {
	apiPort := flag.Int("api-port", 8080, "HTTP API port to listen on")
	wsPort := flag.Int("ws-port", 8081, "WebSocket port to listen on")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting server version %s", version.Get())
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	sharedStore := store.NewRedisStore(store.RedisStoreOptions{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err := sharedStore.Connect(ctx); err != nil {
		panic(fmt.Sprintf("Failed to connect to store: %v", err))
	}
	defer sharedStore.Close()

	playerService := players.NewService(sharedStore)
	roomManager := rooms.NewManager(sharedStore)
	matchmaker := matchmaking.NewMatchmaker(matchmaking.MatchmakerOptions{
		Store:   sharedStore,
		Players: playerService,
		Rooms:   roomManager,
	})

	var matchHistory history.Repository
	if connStr := os.Getenv("DATABASE_URL"); connStr != "" {
		matchHistory, err = history.NewPostgresRepository(ctx, connStr)
		if err != nil {
			panic(fmt.Sprintf("Failed to connect to history database: %v", err))
		}
	} else if path := os.Getenv("HISTORY_SQLITE_PATH"); path != "" {
		matchHistory, err = history.NewSQLiteRepository(ctx, path)
		if err != nil {
			panic(fmt.Sprintf("Failed to open history database: %v", err))
		}
	} else {
		log.Warn("No history database configured, matches will not be recorded")
	}
	if matchHistory != nil {
		defer matchHistory.Close(ctx)
	}

	var eventJournal journal.Journal
	if path := os.Getenv("JOURNAL_PATH"); path != "" {
		w, err := journal.Open(path)
		if err != nil {
			panic(fmt.Sprintf("Failed to open event journal: %v", err))
		}
		eventJournal = w
		defer w.Close()
	}

	hub := gateway.NewHub(gateway.HubOptions{
		Rooms:   roomManager,
		Players: playerService,
		History: matchHistory,
		Journal: eventJournal,
	})
	go hub.Run(ctx)

	wsServer := &http.Server{
		Addr: fmt.Sprintf(":%d", *wsPort),
		Handler: gateway.NewServer(gateway.ServerOptions{
			Hub:            hub,
			OriginPatterns: []string{"*"},
		}),
	}
	go func() {
		log.Info("websocket server listening on %s", wsServer.Addr)
		if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("websocket server failed: %v", err)
			stop()
		}
	}()

	apiServer := api.NewServer(api.ServerOptions{
		Matchmaker: matchmaker,
		Rooms:      roomManager,
		Port:       *apiPort,
	})
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Error("%v", err)
			stop()
		}
	}()

	expiryWorker := workers.NewQueueExpiryWorker(workers.NewQueueExpiryWorkerOptions{
		Store:    sharedStore,
		Players:  playerService,
		Rooms:    roomManager,
		Variants: []string{"3x3 cube", "4x4 cube"},
		Interval: time.Minute,
	})
	go expiryWorker.Start(ctx)

	<-ctx.Done()
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down api server: %v", err)
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down websocket server: %v", err)
	}
}
