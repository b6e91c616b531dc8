package services

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redacted-game/gameserver/config"
	"github.com/redacted-game/gameserver/models"
	"github.com/redacted-game/gameserver/roomcode"
)

// Recorder receives domain events for metrics.
type Recorder interface {
	GameCreated()
	GameStarted()
	GameFinished()
	GameDeleted(wasWaiting bool)
	JoinAttempt(outcome string)
	ActionRecorded(t models.ActionType)
	AnalysisRecorded()
}

type nopRecorder struct{}

func (nopRecorder) GameCreated()                     {}
func (nopRecorder) GameStarted()                     {}
func (nopRecorder) GameFinished()                    {}
func (nopRecorder) GameDeleted(bool)                 {}
func (nopRecorder) JoinAttempt(string)               {}
func (nopRecorder) ActionRecorded(models.ActionType) {}
func (nopRecorder) AnalysisRecorded()                {}

// PhaseScheduler arms the per-act clock. Schedule is called with the game
// after every start and advance; Cancel when a game is deleted.
type PhaseScheduler interface {
	Schedule(g *models.Game)
	Cancel(gameID uuid.UUID)
}

type nopScheduler struct{}

func (nopScheduler) Schedule(*models.Game) {}
func (nopScheduler) Cancel(uuid.UUID)      {}

// Options tune the services. Zero values fall back to defaults.
type Options struct {
	DefaultMaxPlayers   int
	DefaultPhaseMinutes int
	// MinPlayersToStart of 0 lets a game start with any roster.
	MinPlayersToStart   int
	RoomCodeRetries     int
	EnforceResourceCost bool
	AnalysisConfidence  float64

	// NewRand returns a fresh random source for one operation. Sources
	// are never shared between calls.
	NewRand   func() *rand.Rand
	Now       func() time.Time
	Recorder  Recorder
	Scheduler PhaseScheduler
}

// OptionsFromConfig maps the game section of the config file.
func OptionsFromConfig(cfg config.GameConfig) Options {
	return Options{
		DefaultMaxPlayers:   cfg.DefaultMaxPlayers,
		DefaultPhaseMinutes: cfg.DefaultPhaseMinutes,
		MinPlayersToStart:   cfg.MinPlayersToStart,
		RoomCodeRetries:     cfg.RoomCodeRetries,
		EnforceResourceCost: cfg.EnforceResourceCost,
		AnalysisConfidence:  cfg.AnalysisConfidence,
	}
}

func (o Options) withDefaults() Options {
	if o.DefaultMaxPlayers <= 0 {
		o.DefaultMaxPlayers = 8
	}
	if o.DefaultPhaseMinutes <= 0 {
		o.DefaultPhaseMinutes = 10
	}
	if o.RoomCodeRetries <= 0 {
		o.RoomCodeRetries = roomcode.DefaultRetries
	}
	if o.AnalysisConfidence <= 0 || o.AnalysisConfidence > 1 {
		o.AnalysisConfidence = 0.85
	}
	if o.NewRand == nil {
		o.NewRand = roomcode.NewSeededRand
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	if o.Scheduler == nil {
		o.Scheduler = nopScheduler{}
	}
	return o
}

// SeqRand returns a NewRand that hands out sources seeded seed, seed+1, ...
// Handy for reproducible tests.
func SeqRand(seed int64) func() *rand.Rand {
	var mu sync.Mutex
	next := seed
	return func() *rand.Rand {
		mu.Lock()
		defer mu.Unlock()
		r := rand.New(rand.NewSource(next))
		next++
		return r
	}
}
