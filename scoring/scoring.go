// Package scoring folds a game's action log into per-player trust scores.
package scoring

import (
	"fmt"

	"github.com/redacted-game/gameserver/actions"
	"github.com/redacted-game/gameserver/models"
)

const (
	BaseTrust = 50
	MinTrust  = 0
	MaxTrust  = 100

	// HighActivityThreshold is the action count above which a player is
	// called out in the behavioral patterns.
	HighActivityThreshold = 5
)

// Result of one scoring pass.
type Result struct {
	Trust            map[string]int
	Patterns         []string
	Prediction       models.Prediction
	TrainingDataSize int
}

// Score starts every player at BaseTrust, applies each logged action's
// trust delta to its actor and clamps to [MinTrust, MaxTrust]. Actions by
// players outside the roster still count toward TrainingDataSize.
func Score(players []models.Player, log []models.Action) Result {
	trust := make(map[string]int, len(players))
	counts := make(map[string]int, len(players))
	for _, p := range players {
		trust[p.ID.String()] = BaseTrust
	}

	for _, a := range log {
		id := a.PlayerID.String()
		if _, ok := trust[id]; !ok {
			continue
		}
		counts[id]++
		if schema, ok := actions.SchemaFor(a.ActionType); ok {
			trust[id] += schema.TrustDelta
		}
	}

	patterns := make([]string, 0)
	for _, p := range players {
		id := p.ID.String()
		trust[id] = clamp(trust[id])
		if counts[id] > HighActivityThreshold {
			patterns = append(patterns, fmt.Sprintf("Player %s shows high activity (%d actions)", p.UserID, counts[id]))
		}
	}

	return Result{
		Trust:            trust,
		Patterns:         patterns,
		Prediction:       predict(trust),
		TrainingDataSize: len(log),
	}
}

func predict(trust map[string]int) models.Prediction {
	threat := "Low"
	for _, score := range trust {
		if score < 30 {
			threat = "High"
			break
		}
		if score < BaseTrust {
			threat = "Elevated"
		}
	}
	return models.Prediction{Status: "Monitoring", ThreatLevel: threat}
}

func clamp(v int) int {
	if v < MinTrust {
		return MinTrust
	}
	if v > MaxTrust {
		return MaxTrust
	}
	return v
}
