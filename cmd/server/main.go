package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kmerrick/dropfour/pkg/api"
	"github.com/kmerrick/dropfour/pkg/clients"
	"github.com/kmerrick/dropfour/pkg/log"
	"github.com/kmerrick/dropfour/pkg/network"
	"github.com/kmerrick/dropfour/pkg/repositories"
	"github.com/kmerrick/dropfour/pkg/repositories/models"
	"github.com/kmerrick/dropfour/pkg/session"
	"github.com/kmerrick/dropfour/pkg/version"
	"github.com/kmerrick/dropfour/pkg/workers"
)

func main() {
	wsPort := flag.Int("ws-port", 8888, "WebSocket port to listen on")
	apiPort := flag.Int("api-port", 8889, "API port to listen on")
	logLevel := flag.String("log-level", "info", "Log level")
	migrations := flag.String("migrations", "./migrations/sqlite", "SQLite migrations directory")
	moveTimeout := flag.Duration("move-timeout", 0, "Forfeit a game when a turn is idle this long (0 disables)")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting dropfour server version %s", version.Get())
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connStr := os.Getenv("DROPFOUR_DATABASE_URL")
	if connStr == "" {
		connStr = "sqlite://dropfour.db"
	}

	u, err := url.Parse(connStr)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse connection string: %v", err))
	}

	var repository repositories.Repository
	switch u.Scheme {
	case "sqlite":
		repository, err = repositories.NewSQLiteRepository(ctx, u.Host, *migrations)
		if err != nil {
			panic(fmt.Sprintf("Failed to create SQLite repository: %v", err))
		}
	case "postgresql":
		repository, err = repositories.NewPostgresRepository(ctx, u.String())
		if err != nil {
			panic(fmt.Sprintf("Failed to create Postgres repository: %v", err))
		}
	default:
		panic(fmt.Sprintf("Unknown database type %s", u.Scheme))
	}
	defer repository.Close(ctx)

	saveChannelSize := 100
	saveChan := make(chan *models.GameRecord, saveChannelSize)

	saveWorker := workers.NewSaveGameRecordWorker(workers.NewSaveGameRecordWorkerOptions{
		Repository: repository,
		SaveChan:   saveChan,
	})
	go saveWorker.Start(ctx)

	clientManager := clients.NewClientManager()
	sessionManager := session.NewManager(session.NewManagerOptions{
		ClientManager: clientManager,
		TickInterval:  session.DefaultTickInterval,
		MoveTimeout:   *moveTimeout,
		SaveChan:      saveChan,
	})

	wsServer := network.NewWSServer(network.NewWSServerOptions{
		Port:           *wsPort,
		ClientManager:  clientManager,
		SessionManager: sessionManager,
	})
	go wsServer.Start(ctx)

	apiServer := api.NewAPIServer(api.NewAPIServerOptions{
		Port:           *apiPort,
		Repository:     repository,
		SessionManager: sessionManager,
	})
	go apiServer.Start()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server: %v", err)
	}
}
