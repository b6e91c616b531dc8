// persistence/interface.go
package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/redacted-game/gameserver/models"
)

// Gateway 持久化网关。对局拥有玩家、行动和分析；玩家拥有资源
type Gateway interface {
	// Transaction runs fn against a gateway bound to one transaction.
	// Returning an error rolls everything back.
	Transaction(ctx context.Context, fn func(tx Gateway) error) error

	CreateGame(ctx context.Context, g *models.Game) error
	LoadGame(ctx context.Context, id uuid.UUID) (*models.Game, error)
	// LockGame loads a game and holds it until the surrounding transaction
	// ends. Outside a transaction it behaves like LoadGame.
	LockGame(ctx context.Context, id uuid.UUID) (*models.Game, error)
	LoadGameByCode(ctx context.Context, code string) (*models.Game, error)
	RoomCodeExists(ctx context.Context, code string) (bool, error)
	ListGamesByStatus(ctx context.Context, status models.GameStatus) ([]models.Game, error)
	SaveGame(ctx context.Context, g *models.Game) error
	// DeleteGame removes a game with its players, resources, actions and analyses.
	DeleteGame(ctx context.Context, id uuid.UUID) error

	// CreatePlayer writes a player and its wallet together.
	CreatePlayer(ctx context.Context, p *models.Player, r *models.Resource) error
	LoadPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	LoadPlayers(ctx context.Context, gameID uuid.UUID) ([]models.Player, error)
	CountPlayers(ctx context.Context, gameID uuid.UUID) (int, error)
	SavePlayer(ctx context.Context, p *models.Player) error
	LoadResource(ctx context.Context, playerID uuid.UUID) (*models.Resource, error)
	SaveResource(ctx context.Context, r *models.Resource) error

	AppendAction(ctx context.Context, a *models.Action) error
	LoadActions(ctx context.Context, gameID uuid.UUID) ([]models.Action, error)

	AppendAnalysis(ctx context.Context, a *models.AiAnalysis) error
	LoadLatestAnalysis(ctx context.Context, gameID uuid.UUID) (*models.AiAnalysis, error)

	Close() error
}

// Reporter answers aggregate read-side queries.
type Reporter interface {
	ActionBreakdown(ctx context.Context, gameID uuid.UUID) (map[models.ActionType]int, error)
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("duplicate key")
	// ErrConflict marks a write that lost a race and may be retried.
	ErrConflict = errors.New("concurrent update conflict")
)
