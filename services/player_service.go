// services/player_service.go
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redacted-game/gameserver/actions"
	"github.com/redacted-game/gameserver/logger"
	"github.com/redacted-game/gameserver/models"
	"github.com/redacted-game/gameserver/persistence"
	"gorm.io/datatypes"
)

type PlayerService struct {
	db   persistence.Gateway
	opts Options
}

func NewPlayerService(db persistence.Gateway, opts Options) *PlayerService {
	return &PlayerService{db: db, opts: opts.withDefaults()}
}

// GetPlayer 获取玩家及其资源
func (s *PlayerService) GetPlayer(ctx context.Context, playerID uuid.UUID) (*models.Player, error) {
	p, err := s.db.LoadPlayer(ctx, playerID)
	if err != nil {
		return nil, storeErr(err, "player")
	}
	return p, nil
}

// PerformAction 记录一次玩家行动（原子操作）
//
// The actor must belong to req.GameID and the game must be in an act.
// With cost enforcement on, the wallet is debited in the same
// transaction that appends the action.
func (s *PlayerService) PerformAction(ctx context.Context, req actions.Request) (*models.Action, error) {
	actor, err := s.db.LoadPlayer(ctx, req.PlayerID)
	if err != nil {
		return nil, storeErr(err, "player")
	}
	if actor.GameID != req.GameID {
		return nil, fmt.Errorf("%w: player %s is not in game %s", ErrMismatch, req.PlayerID, req.GameID)
	}

	v, err := actions.Parse(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var action *models.Action
	err = s.db.Transaction(ctx, func(tx persistence.Gateway) error {
		game, err := tx.LockGame(ctx, v.GameID)
		if err != nil {
			return storeErr(err, "game")
		}
		if game.Status.Act() == 0 {
			return fmt.Errorf("%w: actions are not accepted while game is %s", ErrInvalidState, game.Status)
		}

		// re-read under the game lock
		player, err := tx.LoadPlayer(ctx, v.PlayerID)
		if err != nil {
			return storeErr(err, "player")
		}
		if !player.IsActive {
			return fmt.Errorf("%w: player is inactive", ErrInvalidState)
		}

		if v.TargetID != nil {
			target, err := tx.LoadPlayer(ctx, *v.TargetID)
			if err != nil {
				return storeErr(err, "target")
			}
			if target.GameID != v.GameID {
				return fmt.Errorf("%w: target %s is not in game %s", ErrMismatch, target.ID, v.GameID)
			}
		}

		now := s.opts.Now()
		charged := false
		if s.opts.EnforceResourceCost && (v.Cost.Battery > 0 || v.Cost.Capital > 0) {
			wallet, err := tx.LoadResource(ctx, player.ID)
			if err != nil {
				return storeErr(err, "resource")
			}
			if !wallet.Covers(v.Cost) {
				return fmt.Errorf("%w: need battery %d capital %d, have %d/%d",
					ErrInsufficientResources, v.Cost.Battery, v.Cost.Capital, wallet.Battery, wallet.Capital)
			}
			wallet.Battery -= v.Cost.Battery
			wallet.Capital -= v.Cost.Capital
			wallet.LastUpdated = now
			if err := tx.SaveResource(ctx, wallet); err != nil {
				return err
			}
			charged = true
		}

		a := &models.Action{
			ID:           uuid.New(),
			GameID:       v.GameID,
			PlayerID:     v.PlayerID,
			ActionType:   v.Schema.Type,
			TargetID:     v.TargetID,
			ResourceCost: datatypes.NewJSONType(v.Cost),
			Outcome:      datatypes.NewJSONType(models.Outcome{Message: "Action performed", Charged: charged}),
			Success:      true,
			PerformedAt:  now,
		}
		if err := tx.AppendAction(ctx, a); err != nil {
			return err
		}

		player.LastActionAt = now
		if err := tx.SavePlayer(ctx, player); err != nil {
			return err
		}
		action = a
		return nil
	})
	if err != nil {
		logger.Log.Debugw("action rejected", "game_id", req.GameID, "player_id", req.PlayerID, "type", req.ActionType, "error", err)
		return nil, storeErr(err, "game")
	}

	s.opts.Recorder.ActionRecorded(action.ActionType)
	logger.Log.Infow("action recorded", "game_id", action.GameID, "player_id", action.PlayerID, "type", action.ActionType)
	return action, nil
}

// Actions returns a game's action log, oldest first.
func (s *PlayerService) Actions(ctx context.Context, gameID uuid.UUID) ([]models.Action, error) {
	if _, err := s.db.LoadGame(ctx, gameID); err != nil {
		return nil, storeErr(err, "game")
	}
	log, err := s.db.LoadActions(ctx, gameID)
	if err != nil {
		return nil, storeErr(err, "actions")
	}
	return log, nil
}
