package main

import (
	"errors"
	"flag"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redacted-game/gameserver/config"
	"github.com/redacted-game/gameserver/logger"
	"github.com/redacted-game/gameserver/persistence"
)

func main() {
	configDir := flag.String("config", ".", "directory holding config.yaml and .env")
	source := flag.String("source", "file://db/migrations", "migration source URL")
	down := flag.Int("down", 0, "roll back this many migrations instead of applying")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		panic(err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Development)
	defer logger.Sync()

	dbURL := persistence.OptionsFromConfig(cfg.Database).URL()

	m, err := migrate.New(*source, dbURL)
	if err != nil {
		logger.Log.Fatalf("migration setup failed: %v", err)
	}
	defer m.Close()

	if *down > 0 {
		err = m.Steps(-*down)
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Log.Fatalf("database migration failed: %v", err)
	}

	version, dirty, _ := m.Version()
	logger.Log.Infow("database migrations applied", "version", version, "dirty", dirty)
}
