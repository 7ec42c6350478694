package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpClient "github.com/sgheorghe/moviekeeper/internal/client/api"
	"github.com/sgheorghe/moviekeeper/internal/client/auth"
	"github.com/sgheorghe/moviekeeper/internal/client/cli"
	"github.com/sgheorghe/moviekeeper/internal/client/iocli"
	"github.com/sgheorghe/moviekeeper/internal/client/items"
	"github.com/sgheorghe/moviekeeper/internal/client/netmon"
	"github.com/sgheorghe/moviekeeper/internal/client/push"
	"github.com/sgheorghe/moviekeeper/internal/client/replica"
	"github.com/sgheorghe/moviekeeper/internal/client/storage/boltdb"
	syncer "github.com/sgheorghe/moviekeeper/internal/client/sync"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Глобальные флаги; env-переменные задают умолчания
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", envOr("MOVIEKEEPER_SERVER", "http://localhost:3000"), "Server URL")
	wsURL := flag.String("ws", envOr("MOVIEKEEPER_WS", "ws://localhost:3000/ws"), "WebSocket URL for live updates")
	dbPath := flag.String("db", envOr("MOVIEKEEPER_DB", "moviekeeper-client.db"), "Path to local database")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage()
		os.Exit(1)
	}
	command := args[0]

	level := slog.LevelWarn
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// команды завершаются по Ctrl+C (watch работает до прерывания)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Открываем BoltDB storage
	boltStorage, err := boltdb.New(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := boltStorage.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	apiClient := httpClient.NewClient(*serverURL)
	authService := auth.NewService(apiClient, boltStorage, logger)
	replicaStore := replica.New(logger)

	syncService := syncer.NewService(
		apiClient, boltStorage, boltStorage, replicaStore, authService.Token, logger)

	var itemsService items.Service

	probeClient := &http.Client{Timeout: 2 * time.Second}
	monitor := netmon.New(netmon.Config{
		StoreProbe:   netmon.HTTPProbe(probeClient, *serverURL+"/api/v1/ping"),
		NetworkProbe: netmon.HTTPProbe(probeClient, netmon.DefaultNetworkProbeURL),
		OnTransition: func(st netmon.Status) { itemsService.HandleConnectivity(st) },
		Logger:       logger,
	})

	itemsService = items.NewService(items.Config{
		APIClient: apiClient,
		Queue:     boltStorage,
		Replica:   replicaStore,
		Syncer:    syncService,
		Token:     authService.Token,
		Online:    monitor.Online,
		Logger:    logger,
	})

	// live updates нужны только интерактивным командам; разовые команды
	// делают один синхронный probe, чтобы Online() отражал реальную
	// доступность и прямой путь сохранения был достижим
	if command != "watch" {
		monitor.ProbeOnce(ctx)
	} else {
		monitor.Start(ctx)
		defer monitor.Stop()

		channel := push.New(push.Config{
			URL:     *wsURL,
			Token:   authService.Token,
			OnEvent: itemsService.HandlePushEvent,
			Logger:  logger,
		})
		channel.Start(ctx)
		defer channel.Stop()

		itemsService.Start(ctx)
		defer itemsService.Stop()
	}

	c := cli.New(iocli.NewStdio(), authService, itemsService)
	c.Run(ctx, command, args[1:])
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printVersion() {
	fmt.Printf("MovieKeeper Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
