// services/analysis_service.go
package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/redacted-game/gameserver/logger"
	"github.com/redacted-game/gameserver/models"
	"github.com/redacted-game/gameserver/persistence"
	"github.com/redacted-game/gameserver/scoring"
	"gorm.io/datatypes"
)

// AnalysisService 信任评分。每次分析追加一条快照，历史不覆盖
type AnalysisService struct {
	db   persistence.Gateway
	opts Options
}

func NewAnalysisService(db persistence.Gateway, opts Options) *AnalysisService {
	return &AnalysisService{db: db, opts: opts.withDefaults()}
}

// AnalyzeGame scores the game's current roster against its full action log
// and stores the result as a new snapshot.
func (s *AnalysisService) AnalyzeGame(ctx context.Context, gameID uuid.UUID) (*models.AiAnalysis, error) {
	var analysis *models.AiAnalysis
	err := s.db.Transaction(ctx, func(tx persistence.Gateway) error {
		game, err := tx.LoadGame(ctx, gameID)
		if err != nil {
			return storeErr(err, "game")
		}
		players, err := tx.LoadPlayers(ctx, game.ID)
		if err != nil {
			return err
		}
		log, err := tx.LoadActions(ctx, game.ID)
		if err != nil {
			return err
		}

		res := scoring.Score(players, log)
		a := &models.AiAnalysis{
			ID:                 uuid.New(),
			GameID:             game.ID,
			TrustMatrix:        datatypes.NewJSONType(res.Trust),
			BehavioralPatterns: datatypes.JSONSlice[string](res.Patterns),
			Predictions:        datatypes.NewJSONType(res.Prediction),
			Confidence:         s.opts.AnalysisConfidence,
			TrainingDataSize:   res.TrainingDataSize,
			AnalyzedAt:         s.opts.Now(),
		}
		if err := tx.AppendAnalysis(ctx, a); err != nil {
			return err
		}
		analysis = a
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "game")
	}

	s.opts.Recorder.AnalysisRecorded()
	logger.Log.Infow("game analyzed",
		"game_id", gameID,
		"players", len(analysis.TrustMatrix.Data()),
		"actions", analysis.TrainingDataSize,
		"threat", analysis.Predictions.Data().ThreatLevel,
	)
	return analysis, nil
}

// LatestAnalysis returns the newest snapshot for a game. A game that was
// never analyzed reports ErrNotFound.
func (s *AnalysisService) LatestAnalysis(ctx context.Context, gameID uuid.UUID) (*models.AiAnalysis, error) {
	if _, err := s.db.LoadGame(ctx, gameID); err != nil {
		return nil, storeErr(err, "game")
	}
	a, err := s.db.LoadLatestAnalysis(ctx, gameID)
	if err != nil {
		return nil, storeErr(err, "analysis")
	}
	return a, nil
}
