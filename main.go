package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redacted-game/gameserver/config"
	"github.com/redacted-game/gameserver/logger"
	"github.com/redacted-game/gameserver/models"
	"github.com/redacted-game/gameserver/monitor"
	"github.com/redacted-game/gameserver/persistence"
	gamerpc "github.com/redacted-game/gameserver/rpc"
	"github.com/redacted-game/gameserver/server"
	"github.com/redacted-game/gameserver/services"
	"github.com/redacted-game/gameserver/timer"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		panic(err)
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Development)
	defer logger.Sync()

	// Initialize Database
	db, reports, closeStore := openStore(cfg.Database)
	defer closeStore()

	mon := monitor.NewMonitor("redacted")
	mon.StartServer(cfg.Server.MetricsAddress)

	opts := services.OptionsFromConfig(cfg.Game)
	opts.Recorder = mon

	var games *services.GameService
	if cfg.Game.AutoAdvance {
		timers := timer.NewTimerManager(time.Second)
		defer timers.Stop()
		opts.Scheduler = timer.NewPhaseClock(timers, time.Minute, func(ctx context.Context, id uuid.UUID, from models.GameStatus) (*models.Game, error) {
			return games.AdvanceFrom(ctx, id, from)
		})
	}

	games = services.NewGameService(db, opts)
	players := services.NewPlayerService(db, opts)
	analysis := services.NewAnalysisService(db, opts)

	rpcServer, err := gamerpc.NewServer(cfg.Server.RPCAddress, gamerpc.NewAdminService(games, analysis, reports))
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	go rpcServer.Start()

	gameServer := server.NewGameServer(cfg.Server.HTTPAddress, games, players, analysis, mon)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		rpcServer.Stop()
		if err := gameServer.Shutdown(ctx); err != nil {
			logger.Log.Errorf("Shutdown failed: %v", err)
		}
	}()

	// Start Server
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
	logger.Log.Info("Game server stopped.")
}

// openStore picks the gateway named by database.driver. The memory
// gateway doubles as its own reporter.
func openStore(cfg config.DatabaseConfig) (persistence.Gateway, persistence.Reporter, func()) {
	switch cfg.Driver {
	case "memory":
		logger.Log.Warn("Using in-memory store; data is lost on restart.")
		mem := persistence.NewMemory()
		return mem, mem, func() { mem.Close() }
	case "postgres":
		opts := persistence.OptionsFromConfig(cfg)
		db, err := persistence.NewGormPostgreSQL(opts)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		reports, err := persistence.NewReportStore(opts)
		if err != nil {
			logger.Log.Fatalf("Failed to open report store: %v", err)
		}
		logger.Log.Info("Database connection successful.")
		return db, reports, func() {
			reports.Close()
			db.Close()
		}
	default:
		logger.Log.Fatalf("Unknown database driver %q", cfg.Driver)
		return nil, nil, nil
	}
}
