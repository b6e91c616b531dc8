// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redacted-game/gameserver/config"
	"github.com/redacted-game/gameserver/logger"
	"github.com/redacted-game/gameserver/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// PostgresOptions 连接参数
type PostgresOptions struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

// OptionsFromConfig maps the database section of the config file.
func OptionsFromConfig(cfg config.DatabaseConfig) PostgresOptions {
	return PostgresOptions{
		Host:         cfg.Postgres.Host,
		Port:         cfg.Postgres.Port,
		User:         cfg.Postgres.User,
		Password:     cfg.Postgres.Password,
		DBName:       cfg.Postgres.DBName,
		SSLMode:      cfg.Postgres.SSLMode,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
		AutoMigrate:  cfg.AutoMigrate,
	}
}

// DSN renders the libpq keyword/value connection string.
func (o PostgresOptions) DSN() string {
	sslmode := o.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		o.Host, o.Port, o.User, o.Password, o.DBName, sslmode)
}

// URL renders the same connection as a postgres:// URL, the form
// golang-migrate expects.
func (o PostgresOptions) URL() string {
	sslmode := o.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(o.User, o.Password),
		Host:     net.JoinHostPort(o.Host, strconv.Itoa(o.Port)),
		Path:     "/" + o.DBName,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	return u.String()
}

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// zapWriter routes GORM's log lines into the process logger.
type zapWriter struct{}

func (zapWriter) Printf(format string, args ...interface{}) {
	logger.Log.Warnf(format, args...)
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(opts PostgresOptions) (*GormPostgreSQL, error) {
	gormLogger := gormlogger.New(
		zapWriter{},
		gormlogger.Config{
			SlowThreshold:             time.Second, // 慢SQL阈值
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(opts.DSN()), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	maxIdle, maxOpen := opts.MaxIdleConns, opts.MaxOpenConns
	if maxIdle <= 0 {
		maxIdle = 10
	}
	if maxOpen <= 0 {
		maxOpen = 100
	}
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if opts.AutoMigrate {
		if err := db.AutoMigrate(models.AllModels()...); err != nil {
			return nil, err
		}
	}

	return &GormPostgreSQL{db: db}, nil
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
		case "40001", "40P01", "55P03": // serialization failure, deadlock, lock not available
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return err
}

func (p *GormPostgreSQL) Transaction(ctx context.Context, fn func(tx Gateway) error) error {
	return translate(p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormPostgreSQL{db: tx})
	}))
}

func (p *GormPostgreSQL) CreateGame(ctx context.Context, g *models.Game) error {
	return translate(p.db.WithContext(ctx).Omit(clause.Associations).Create(g).Error)
}

func (p *GormPostgreSQL) LoadGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	var g models.Game
	if err := p.db.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

// LockGame 使用 SELECT ... FOR UPDATE 锁定对局行
func (p *GormPostgreSQL) LockGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	var g models.Game
	err := p.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&g, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (p *GormPostgreSQL) LoadGameByCode(ctx context.Context, code string) (*models.Game, error) {
	var g models.Game
	if err := p.db.WithContext(ctx).Where("UPPER(room_code) = UPPER(?)", code).First(&g).Error; err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (p *GormPostgreSQL) RoomCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := p.db.WithContext(ctx).Model(&models.Game{}).Where("room_code = ?", code).Count(&count).Error
	return count > 0, translate(err)
}

func (p *GormPostgreSQL) ListGamesByStatus(ctx context.Context, status models.GameStatus) ([]models.Game, error) {
	var games []models.Game
	err := p.db.WithContext(ctx).Where("status = ?", status).Order("created_at").Find(&games).Error
	return games, translate(err)
}

func (p *GormPostgreSQL) SaveGame(ctx context.Context, g *models.Game) error {
	return translate(p.db.WithContext(ctx).Omit(clause.Associations).Save(g).Error)
}

func (p *GormPostgreSQL) DeleteGame(ctx context.Context, id uuid.UUID) error {
	return p.Transaction(ctx, func(tx Gateway) error {
		db := tx.(*GormPostgreSQL).db
		playerIDs := db.Model(&models.Player{}).Select("id").Where("game_id = ?", id)
		if err := db.Where("player_id IN (?)", playerIDs).Delete(&models.Resource{}).Error; err != nil {
			return err
		}
		if err := db.Where("game_id = ?", id).Delete(&models.Action{}).Error; err != nil {
			return err
		}
		if err := db.Where("game_id = ?", id).Delete(&models.AiAnalysis{}).Error; err != nil {
			return err
		}
		if err := db.Where("game_id = ?", id).Delete(&models.Player{}).Error; err != nil {
			return err
		}
		res := db.Delete(&models.Game{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		return nil
	})
}

func (p *GormPostgreSQL) CreatePlayer(ctx context.Context, pl *models.Player, r *models.Resource) error {
	return p.Transaction(ctx, func(tx Gateway) error {
		db := tx.(*GormPostgreSQL).db
		if err := db.Omit(clause.Associations).Create(pl).Error; err != nil {
			return err
		}
		return db.Create(r).Error
	})
}

func (p *GormPostgreSQL) LoadPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	var pl models.Player
	if err := p.db.WithContext(ctx).Preload("Resource").First(&pl, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &pl, nil
}

func (p *GormPostgreSQL) LoadPlayers(ctx context.Context, gameID uuid.UUID) ([]models.Player, error) {
	var players []models.Player
	err := p.db.WithContext(ctx).Where("game_id = ?", gameID).Order("joined_at, id").Find(&players).Error
	return players, translate(err)
}

func (p *GormPostgreSQL) CountPlayers(ctx context.Context, gameID uuid.UUID) (int, error) {
	var count int64
	err := p.db.WithContext(ctx).Model(&models.Player{}).Where("game_id = ?", gameID).Count(&count).Error
	return int(count), translate(err)
}

func (p *GormPostgreSQL) SavePlayer(ctx context.Context, pl *models.Player) error {
	return translate(p.db.WithContext(ctx).Omit(clause.Associations).Save(pl).Error)
}

func (p *GormPostgreSQL) LoadResource(ctx context.Context, playerID uuid.UUID) (*models.Resource, error) {
	var r models.Resource
	if err := p.db.WithContext(ctx).First(&r, "player_id = ?", playerID).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (p *GormPostgreSQL) SaveResource(ctx context.Context, r *models.Resource) error {
	return translate(p.db.WithContext(ctx).Save(r).Error)
}

func (p *GormPostgreSQL) AppendAction(ctx context.Context, a *models.Action) error {
	return translate(p.db.WithContext(ctx).Create(a).Error)
}

func (p *GormPostgreSQL) LoadActions(ctx context.Context, gameID uuid.UUID) ([]models.Action, error) {
	var actions []models.Action
	err := p.db.WithContext(ctx).Where("game_id = ?", gameID).Order("performed_at, id").Find(&actions).Error
	return actions, translate(err)
}

func (p *GormPostgreSQL) AppendAnalysis(ctx context.Context, a *models.AiAnalysis) error {
	return translate(p.db.WithContext(ctx).Create(a).Error)
}

func (p *GormPostgreSQL) LoadLatestAnalysis(ctx context.Context, gameID uuid.UUID) (*models.AiAnalysis, error) {
	var a models.AiAnalysis
	err := p.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("analyzed_at DESC, seq DESC").
		First(&a).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
