package timer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redacted-game/gameserver/logger"
	"github.com/redacted-game/gameserver/models"
)

// Advancer moves a game out of status from. It must fail when the game
// has already left from, so a late timer cannot skip an act.
type Advancer func(ctx context.Context, gameID uuid.UUID, from models.GameStatus) (*models.Game, error)

// PhaseClock 按 phaseDurationMinutes 自动推进幕
//
// One timer is armed per game. Each Schedule call replaces the previous
// timer, so a manual advance resets the clock for the new act.
type PhaseClock struct {
	timers  *TimerManager
	advance Advancer
	unit    time.Duration
	mutex   sync.Mutex
	pending map[uuid.UUID]int64
}

// NewPhaseClock arms timers on tm. unit is the length of one phase
// minute; production passes time.Minute.
func NewPhaseClock(tm *TimerManager, unit time.Duration, advance Advancer) *PhaseClock {
	return &PhaseClock{
		timers:  tm,
		advance: advance,
		unit:    unit,
		pending: make(map[uuid.UUID]int64),
	}
}

// Schedule arms the clock for g's current act. Games outside Act1..Act3
// are disarmed.
func (c *PhaseClock) Schedule(g *models.Game) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.disarm(g.ID)
	if g.Status.Act() == 0 || g.PhaseDurationMinutes <= 0 {
		return
	}

	gameID, from := g.ID, g.Status
	delay := time.Duration(g.PhaseDurationMinutes) * c.unit
	var taskID int64
	taskID = c.timers.AddTimer(delay, func() {
		c.mutex.Lock()
		current, ok := c.pending[gameID]
		if !ok || current != taskID {
			c.mutex.Unlock()
			return
		}
		delete(c.pending, gameID)
		c.mutex.Unlock()

		c.fire(gameID, from)
	})
	c.pending[gameID] = taskID
}

// Cancel disarms the clock for a game.
func (c *PhaseClock) Cancel(gameID uuid.UUID) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.disarm(gameID)
}

// Armed reports whether a timer is pending for the game.
func (c *PhaseClock) Armed(gameID uuid.UUID) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	_, ok := c.pending[gameID]
	return ok
}

func (c *PhaseClock) disarm(gameID uuid.UUID) {
	if id, ok := c.pending[gameID]; ok {
		c.timers.RemoveTimer(id)
		delete(c.pending, gameID)
	}
}

func (c *PhaseClock) fire(gameID uuid.UUID, from models.GameStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, err := c.advance(ctx, gameID, from)
	if err != nil {
		logger.Log.Warnw("phase timer could not advance game", "game_id", gameID, "from", from, "error", err)
		return
	}
	logger.Log.Infow("phase timer advanced game", "game_id", gameID, "from", from, "to", g.Status)
}
