package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/redacted-game/gameserver/models"
)

var (
	// ErrTransitionNotAllowed is returned when no transition is registered
	// from the game's current status to the requested one.
	ErrTransitionNotAllowed = errors.New("state transition not allowed")
	// ErrBackwardTransition is returned when registering a transition that
	// does not move forward along the lifecycle.
	ErrBackwardTransition = errors.New("transition must move forward")
	// ErrTooFewPlayers is returned by the start condition.
	ErrTooFewPlayers = errors.New("not enough players to start")
)

// Condition 转换条件，返回错误则拒绝转换
type Condition func(g *models.Game) error

// Machine 游戏状态机：只允许已注册的、向前的状态转换
type Machine struct {
	transitions map[models.GameStatus]map[models.GameStatus]Condition // from -> to -> condition
	mutex       sync.RWMutex
}

func NewMachine() *Machine {
	return &Machine{
		transitions: make(map[models.GameStatus]map[models.GameStatus]Condition),
	}
}

// Lifecycle builds Waiting -> Act1 -> Act2 -> Act3 -> Finished. When
// minPlayers > 0 the game must hold at least that many players to leave
// Waiting; g.Players must be loaded for the check.
func Lifecycle(minPlayers int) *Machine {
	m := NewMachine()
	m.mustAdd(models.StatusWaiting, models.StatusAct1, func(g *models.Game) error {
		if minPlayers > 0 && len(g.Players) < minPlayers {
			return fmt.Errorf("%w: have %d, need %d", ErrTooFewPlayers, len(g.Players), minPlayers)
		}
		return nil
	})
	m.mustAdd(models.StatusAct1, models.StatusAct2, nil)
	m.mustAdd(models.StatusAct2, models.StatusAct3, nil)
	m.mustAdd(models.StatusAct3, models.StatusFinished, nil)
	return m
}

func (m *Machine) mustAdd(from, to models.GameStatus, cond Condition) {
	if err := m.AddTransition(from, to, cond); err != nil {
		panic(err)
	}
}

// AddTransition registers from -> to guarded by cond (nil means always).
func (m *Machine) AddTransition(from, to models.GameStatus, cond Condition) error {
	if from.Rank() < 0 || to.Rank() < 0 {
		return fmt.Errorf("unknown status in transition %s -> %s", from, to)
	}
	if to.Rank() <= from.Rank() {
		return fmt.Errorf("%w: %s -> %s", ErrBackwardTransition, from, to)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.transitions[from]; !exists {
		m.transitions[from] = make(map[models.GameStatus]Condition)
	}
	m.transitions[from][to] = cond
	return nil
}

// Next returns the nearest registered successor of status.
func (m *Machine) Next(status models.GameStatus) (models.GameStatus, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var next models.GameStatus
	found := false
	for to := range m.transitions[status] {
		if !found || to.Rank() < next.Rank() {
			next = to
			found = true
		}
	}
	return next, found
}

// CanTransition reports whether from -> to is registered.
func (m *Machine) CanTransition(from, to models.GameStatus) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, ok := m.transitions[from][to]
	return ok
}

// Apply moves g to status to, updating the phase and act counters.
// g is left untouched on error.
func (m *Machine) Apply(g *models.Game, to models.GameStatus) error {
	m.mutex.RLock()
	cond, ok := m.transitions[g.Status][to]
	m.mutex.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, g.Status, to)
	}
	if cond != nil {
		if err := cond(g); err != nil {
			return err
		}
	}

	g.Status = to
	g.CurrentPhase = string(to)
	if act := to.Act(); act > 0 {
		g.ActNumber = act
		g.TurnNumber = 1
	}
	return nil
}
