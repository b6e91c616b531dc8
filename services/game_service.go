// services/game_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redacted-game/gameserver/logger"
	"github.com/redacted-game/gameserver/models"
	"github.com/redacted-game/gameserver/persistence"
	"github.com/redacted-game/gameserver/roles"
	"github.com/redacted-game/gameserver/roomcode"
	"github.com/redacted-game/gameserver/state"
)

// GameService 房间生命周期：创建、加入、开始、推进
type GameService struct {
	db      persistence.Gateway
	machine *state.Machine
	opts    Options
}

func NewGameService(db persistence.Gateway, opts Options) *GameService {
	opts = opts.withDefaults()
	return &GameService{
		db:      db,
		machine: state.Lifecycle(opts.MinPlayersToStart),
		opts:    opts,
	}
}

// CreateGame allocates a unique room code and stores a Waiting game.
// maxPlayers and phaseMinutes of 0 take the configured defaults.
func (s *GameService) CreateGame(ctx context.Context, hostID uuid.UUID, maxPlayers, phaseMinutes int) (*models.Game, error) {
	if hostID == uuid.Nil {
		return nil, fmt.Errorf("%w: host id is required", ErrInvalidInput)
	}
	if maxPlayers == 0 {
		maxPlayers = s.opts.DefaultMaxPlayers
	}
	if phaseMinutes == 0 {
		phaseMinutes = s.opts.DefaultPhaseMinutes
	}
	if maxPlayers < 1 {
		return nil, fmt.Errorf("%w: max players must be at least 1", ErrInvalidInput)
	}
	if phaseMinutes < 1 {
		return nil, fmt.Errorf("%w: phase duration must be positive", ErrInvalidInput)
	}

	gen := roomcode.NewGenerator(s.opts.NewRand(), s.opts.RoomCodeRetries)

	// Unique only checks; a concurrent create can still take the code
	// before our insert, so the insert itself is retried too.
	for attempt := 0; attempt < s.opts.RoomCodeRetries; attempt++ {
		code, err := gen.Unique(ctx, s.db.RoomCodeExists)
		if err != nil {
			if errors.Is(err, roomcode.ErrCodeExhausted) {
				logger.Log.Errorw("room code generation exhausted", "host_id", hostID)
			}
			return nil, err
		}

		now := s.opts.Now()
		game := &models.Game{
			ID:                   uuid.New(),
			RoomCode:             code,
			Status:               models.StatusWaiting,
			CurrentPhase:         models.PhaseSetup,
			ActNumber:            1,
			TurnNumber:           0,
			HostID:               hostID,
			MaxPlayers:           maxPlayers,
			PhaseDurationMinutes: phaseMinutes,
			CreatedAt:            now,
			UpdatedAt:            now,
		}

		err = s.db.CreateGame(ctx, game)
		if errors.Is(err, persistence.ErrDuplicateKey) {
			logger.Log.Debugw("room code taken at insert, retrying", "room_code", code)
			continue
		}
		if err != nil {
			return nil, storeErr(err, "game")
		}

		s.opts.Recorder.GameCreated()
		logger.Log.Infow("game created", "game_id", game.ID, "room_code", game.RoomCode, "max_players", maxPlayers)
		return game, nil
	}
	return nil, ErrCodeExhausted
}

// JoinGame adds userID to the Waiting game with roomCode. While the game
// is Waiting, a user already in it gets their existing player back, so
// retries are safe. Once started, every join fails with ErrInvalidState.
func (s *GameService) JoinGame(ctx context.Context, roomCode, userID string) (*models.Player, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	code := roomcode.Normalize(roomCode)

	found, err := s.db.LoadGameByCode(ctx, code)
	if err != nil {
		s.opts.Recorder.JoinAttempt("not_found")
		return nil, storeErr(err, "room "+code)
	}

	var player *models.Player
	outcome := "ok"
	err = s.db.Transaction(ctx, func(tx persistence.Gateway) error {
		game, err := tx.LockGame(ctx, found.ID)
		if err != nil {
			return storeErr(err, "game")
		}

		if game.Status != models.StatusWaiting {
			outcome = "started"
			return fmt.Errorf("%w: game has already started", ErrInvalidState)
		}

		players, err := tx.LoadPlayers(ctx, game.ID)
		if err != nil {
			return err
		}
		for i := range players {
			if players[i].UserID == userID {
				player = &players[i]
				outcome = "rejoin"
				return nil
			}
		}
		if len(players) >= game.MaxPlayers {
			outcome = "full"
			return fmt.Errorf("%w: %d/%d players", ErrCapacityExceeded, len(players), game.MaxPlayers)
		}

		now := s.opts.Now()
		p := &models.Player{
			ID:           uuid.New(),
			GameID:       game.ID,
			UserID:       userID,
			Faction:      models.FactionCitizen,
			Role:         models.RoleUnemployed,
			IsActive:     true,
			Karma:        models.DefaultKarma,
			Cyberhealth:  models.DefaultCyberhealth,
			JoinedAt:     now,
			LastActionAt: now,
		}
		r := &models.Resource{
			ID:          uuid.New(),
			PlayerID:    p.ID,
			Battery:     models.DefaultBattery,
			Capital:     models.DefaultCapital,
			Cyberware:   []string{},
			LastUpdated: now,
		}
		if err := tx.CreatePlayer(ctx, p, r); err != nil {
			return err
		}

		// bump updated_at so the join shows on the game row
		game.UpdatedAt = now
		if err := tx.SaveGame(ctx, game); err != nil {
			return err
		}

		p.Resource = r
		player = p
		return nil
	})
	if err != nil {
		if outcome == "ok" {
			outcome = "error"
		}
		s.opts.Recorder.JoinAttempt(outcome)
		logger.Log.Warnw("join rejected", "room_code", code, "user_id", userID, "error", err)
		return nil, storeErr(err, "game")
	}

	s.opts.Recorder.JoinAttempt(outcome)
	logger.Log.Infow("player joined", "game_id", player.GameID, "room_code", code, "player_id", player.ID, "rejoin", outcome == "rejoin")
	return player, nil
}

// StartGame moves a Waiting game to Act1 and assigns factions and roles.
// The game row is locked for the whole transaction, so of two concurrent
// calls only one sees Waiting; the other gets ErrInvalidState.
func (s *GameService) StartGame(ctx context.Context, gameID uuid.UUID) (*models.Game, error) {
	var started *models.Game
	err := s.db.Transaction(ctx, func(tx persistence.Gateway) error {
		game, err := tx.LockGame(ctx, gameID)
		if err != nil {
			return storeErr(err, "game")
		}
		if game.Status != models.StatusWaiting {
			return fmt.Errorf("%w: game is %s, not %s", ErrInvalidState, game.Status, models.StatusWaiting)
		}

		players, err := tx.LoadPlayers(ctx, game.ID)
		if err != nil {
			return err
		}
		game.Players = players

		if err := s.machine.Apply(game, models.StatusAct1); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}

		roster := make([]*models.Player, len(game.Players))
		for i := range game.Players {
			roster[i] = &game.Players[i]
		}
		roles.Assign(roster, s.opts.NewRand())

		for _, p := range roster {
			if err := tx.SavePlayer(ctx, p); err != nil {
				return err
			}
		}

		game.UpdatedAt = s.opts.Now()
		if err := tx.SaveGame(ctx, game); err != nil {
			return err
		}
		started = game
		return nil
	})
	if err != nil {
		logger.Log.Warnw("start rejected", "game_id", gameID, "error", err)
		return nil, storeErr(err, "game")
	}

	s.opts.Recorder.GameStarted()
	s.opts.Scheduler.Schedule(started)
	tally := roles.Tally(started.Players)
	logger.Log.Infow("game started",
		"game_id", started.ID,
		"players", len(started.Players),
		"citizens", tally[models.FactionCitizen],
		"mafia", len(started.Players)-tally[models.FactionCitizen],
	)
	return started, nil
}

// AdvanceAct moves a started game one step forward: Act1 -> Act2 -> Act3 -> Finished.
func (s *GameService) AdvanceAct(ctx context.Context, gameID uuid.UUID) (*models.Game, error) {
	return s.advance(ctx, gameID, "")
}

// AdvanceFrom advances only if the game is still in status from. The
// phase clock uses it so a timer armed for one act never ends the next.
func (s *GameService) AdvanceFrom(ctx context.Context, gameID uuid.UUID, from models.GameStatus) (*models.Game, error) {
	return s.advance(ctx, gameID, from)
}

func (s *GameService) advance(ctx context.Context, gameID uuid.UUID, from models.GameStatus) (*models.Game, error) {
	var advanced *models.Game
	err := s.db.Transaction(ctx, func(tx persistence.Gateway) error {
		game, err := tx.LockGame(ctx, gameID)
		if err != nil {
			return storeErr(err, "game")
		}
		if from != "" && game.Status != from {
			return fmt.Errorf("%w: game is %s, not %s", ErrInvalidState, game.Status, from)
		}
		if game.Status == models.StatusWaiting {
			return fmt.Errorf("%w: game has not started", ErrInvalidState)
		}
		next, ok := s.machine.Next(game.Status)
		if !ok {
			return fmt.Errorf("%w: game is %s", ErrInvalidState, game.Status)
		}
		if err := s.machine.Apply(game, next); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}

		game.UpdatedAt = s.opts.Now()
		if err := tx.SaveGame(ctx, game); err != nil {
			return err
		}
		advanced = game
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "game")
	}

	s.opts.Scheduler.Schedule(advanced)
	if advanced.Status == models.StatusFinished {
		s.opts.Recorder.GameFinished()
	}
	logger.Log.Infow("game advanced", "game_id", advanced.ID, "status", advanced.Status)
	return advanced, nil
}

// ActiveGames lists games still accepting players.
func (s *GameService) ActiveGames(ctx context.Context) ([]models.Game, error) {
	games, err := s.db.ListGamesByStatus(ctx, models.StatusWaiting)
	if err != nil {
		return nil, storeErr(err, "games")
	}
	return games, nil
}

// GetGame loads a game with its players.
func (s *GameService) GetGame(ctx context.Context, gameID uuid.UUID) (*models.Game, error) {
	game, err := s.db.LoadGame(ctx, gameID)
	if err != nil {
		return nil, storeErr(err, "game")
	}
	players, err := s.db.LoadPlayers(ctx, gameID)
	if err != nil {
		return nil, storeErr(err, "players")
	}
	game.Players = players
	return game, nil
}

// GetGameByCode resolves a room code, ignoring case.
func (s *GameService) GetGameByCode(ctx context.Context, code string) (*models.Game, error) {
	game, err := s.db.LoadGameByCode(ctx, roomcode.Normalize(code))
	if err != nil {
		return nil, storeErr(err, "room")
	}
	return game, nil
}

// DeleteGame removes a game and everything it owns.
// The row is locked first so the status reported to the recorder is the
// one that was actually deleted.
func (s *GameService) DeleteGame(ctx context.Context, gameID uuid.UUID) error {
	var game *models.Game
	err := s.db.Transaction(ctx, func(tx persistence.Gateway) error {
		locked, err := tx.LockGame(ctx, gameID)
		if err != nil {
			return err
		}
		if err := tx.DeleteGame(ctx, gameID); err != nil {
			return err
		}
		game = locked
		return nil
	})
	if err != nil {
		return storeErr(err, "game")
	}
	s.opts.Scheduler.Cancel(gameID)
	s.opts.Recorder.GameDeleted(game.Status == models.StatusWaiting)
	logger.Log.Infow("game deleted", "game_id", gameID, "room_code", game.RoomCode)
	return nil
}
