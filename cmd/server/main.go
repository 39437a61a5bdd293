package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuttlefree/cuttle-server-go/internal/config"
	"github.com/cuttlefree/cuttle-server-go/internal/game"
	"github.com/cuttlefree/cuttle-server-go/internal/game/rules"
	"github.com/cuttlefree/cuttle-server-go/internal/repository"
	"github.com/cuttlefree/cuttle-server-go/internal/server"
	"github.com/cuttlefree/cuttle-server-go/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting Cuttle server",
		zap.String("version", version),
		zap.String("config", *configPath),
		zap.String("store", cfg.Store.Backend),
	)

	// Create context that listens for termination signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	roomStore, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open room store", zap.Error(err))
	}
	defer closeStore()

	rulebook := rules.NewRulebook()
	rulebook.MaxHandSize = cfg.Game.MaxHandSize
	rulebook.InitialHandSize = cfg.Game.InitialHandSize
	rulebook.RestartSecondHandSize = cfg.Game.RestartSecondHandSize

	opts := []game.Option{game.WithRulebook(rulebook)}
	if cfg.Replay.Enabled {
		opts = append(opts, game.WithReplays(game.NewReplayRecorder(logger, cfg.Replay.Directory)))
		logger.Info("replay recording enabled", zap.String("directory", cfg.Replay.Directory))
	}
	engine := game.NewEngine(roomStore, logger, opts...)

	grpcServer := server.NewGRPCServer(cfg.Server.GRPC, engine, logger)

	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	// Start gRPC server
	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	// Start WebSocket server
	hub := server.NewHub(engine, cfg.Server.WebSocket, logger)
	go hub.Run(ctx)
	go func() {
		if wsErr := server.StartWebSocketServer(ctx, cfg.Server.WebSocket, hub, logger); wsErr != nil {
			logger.Error("WebSocket server error", zap.Error(wsErr))
		}
	}()

	logger.Info("Cuttle server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()
	grpcServer.Shutdown()
	engine.Close()

	logger.Info("Cuttle server stopped")
}

// openStore builds the configured room store and a func releasing it.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.RoomStore, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}

		stats := db.Stat()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)

		repo := repository.NewRoomRepository(db, cfg.Database.Channel, cfg.Store.MaxRetries, logger)
		go func() {
			if err := repo.Listen(ctx); err != nil && ctx.Err() == nil {
				logger.Error("room change feed stopped", zap.Error(err))
			}
		}()
		return repo, func() {
			repo.Close()
			db.Close()
		}, nil

	default:
		mem := store.NewMemoryStore(cfg.Store.MaxRetries, logger)
		return mem, mem.Close, nil
	}
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
