package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type DatabaseConfig struct {
	// Driver selects the persistence gateway: "postgres" or "memory".
	Driver       string         `mapstructure:"driver"`
	AutoMigrate  bool           `mapstructure:"auto_migrate"`
	MaxOpenConns int            `mapstructure:"max_open_conns"`
	MaxIdleConns int            `mapstructure:"max_idle_conns"`
	Postgres     PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type GameConfig struct {
	DefaultMaxPlayers   int     `mapstructure:"default_max_players"`
	DefaultPhaseMinutes int     `mapstructure:"default_phase_minutes"`
	MinPlayersToStart   int     `mapstructure:"min_players_to_start"`
	RoomCodeRetries     int     `mapstructure:"room_code_retries"`
	EnforceResourceCost bool    `mapstructure:"enforce_resource_cost"`
	AnalysisConfidence  float64 `mapstructure:"analysis_confidence"`
	// AutoAdvance ends each act after PhaseDurationMinutes.
	AutoAdvance bool `mapstructure:"auto_advance"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

const envPrefix = "REDACTED"

// LoadDotEnv loads variables from a .env file if present.
// Variables already set in the environment win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// LoadConfig reads config.yaml from path. A missing file is not an error;
// defaults and REDACTED_* environment variables still apply.
func LoadConfig(path string) (*Config, error) {
	if err := LoadDotEnv(filepath.Join(path, ".env")); err != nil {
		return nil, err
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.metrics_address", ":9090")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "redacted")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("game.default_max_players", 8)
	v.SetDefault("game.default_phase_minutes", 10)
	v.SetDefault("game.min_players_to_start", 0)
	v.SetDefault("game.room_code_retries", 10)
	v.SetDefault("game.enforce_resource_cost", false)
	v.SetDefault("game.analysis_confidence", 0.85)
	v.SetDefault("game.auto_advance", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}
