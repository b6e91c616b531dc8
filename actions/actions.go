// Package actions validates player action requests at the boundary.
//
// Each action type has a fixed schema: whether it takes a target and the
// shape of its resource cost. Requests are checked here before the core
// sees them.
package actions

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redacted-game/gameserver/models"
)

var (
	ErrUnknownAction    = errors.New("unknown action type")
	ErrTargetRequired   = errors.New("action requires a target")
	ErrTargetNotAllowed = errors.New("action does not take a target")
	ErrSelfTarget       = errors.New("action cannot target the actor")
	ErrNegativeCost     = errors.New("resource cost must not be negative")
)

// TargetRule says whether an action type takes a target.
type TargetRule int

const (
	TargetOptional TargetRule = iota
	TargetRequired
	TargetForbidden
)

// Schema describes one action type.
type Schema struct {
	Type   models.ActionType
	Target TargetRule
	// TrustDelta is what one action of this type does to the actor's
	// trust score.
	TrustDelta int
}

var schemas = map[models.ActionType]Schema{
	models.ActionWork:        {Type: models.ActionWork, Target: TargetForbidden, TrustDelta: 5},
	models.ActionHack:        {Type: models.ActionHack, Target: TargetRequired, TrustDelta: -10},
	models.ActionSabotage:    {Type: models.ActionSabotage, Target: TargetRequired, TrustDelta: -10},
	models.ActionProtect:     {Type: models.ActionProtect, Target: TargetOptional, TrustDelta: 5},
	models.ActionHeal:        {Type: models.ActionHeal, Target: TargetOptional, TrustDelta: 5},
	models.ActionAnalyze:     {Type: models.ActionAnalyze, Target: TargetOptional, TrustDelta: 0},
	models.ActionGatherIntel: {Type: models.ActionGatherIntel, Target: TargetOptional, TrustDelta: 0},
}

// SchemaFor returns the schema of a known action type.
func SchemaFor(t models.ActionType) (Schema, bool) {
	s, ok := schemas[t]
	return s, ok
}

// Request is a raw action submission.
type Request struct {
	GameID       uuid.UUID
	PlayerID     uuid.UUID
	ActionType   string
	TargetID     *uuid.UUID
	ResourceCost models.ResourceCost
}

// Validated is a Request that passed Parse.
type Validated struct {
	GameID   uuid.UUID
	PlayerID uuid.UUID
	Schema   Schema
	TargetID *uuid.UUID
	Cost     models.ResourceCost
}

// Parse checks the action type, target rule and cost shape. It does not
// look at game or player state.
func Parse(req Request) (Validated, error) {
	t, ok := models.ParseActionType(req.ActionType)
	if !ok {
		return Validated{}, fmt.Errorf("%w: %q", ErrUnknownAction, req.ActionType)
	}
	schema := schemas[t]

	target := req.TargetID
	if target != nil && *target == uuid.Nil {
		target = nil
	}
	switch schema.Target {
	case TargetRequired:
		if target == nil {
			return Validated{}, fmt.Errorf("%w: %s", ErrTargetRequired, t)
		}
	case TargetForbidden:
		if target != nil {
			return Validated{}, fmt.Errorf("%w: %s", ErrTargetNotAllowed, t)
		}
	}
	if target != nil && *target == req.PlayerID && (t == models.ActionHack || t == models.ActionSabotage) {
		return Validated{}, fmt.Errorf("%w: %s", ErrSelfTarget, t)
	}

	if req.ResourceCost.Battery < 0 || req.ResourceCost.Capital < 0 {
		return Validated{}, ErrNegativeCost
	}

	return Validated{
		GameID:   req.GameID,
		PlayerID: req.PlayerID,
		Schema:   schema,
		TargetID: target,
		Cost:     req.ResourceCost,
	}, nil
}
