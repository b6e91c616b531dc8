// persistence/memory.go
package persistence

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redacted-game/gameserver/models"
)

// memoryState holds rows by value. Players are stored without their
// Resource; games without their Players.
type memoryState struct {
	games     map[uuid.UUID]models.Game
	players   map[uuid.UUID]models.Player
	resources map[uuid.UUID]models.Resource // playerID -> resource
	actions   []models.Action
	analyses  []models.AiAnalysis
	seq       int64 // last AiAnalysis.Seq handed out
}

func newMemoryState() *memoryState {
	return &memoryState{
		games:     make(map[uuid.UUID]models.Game),
		players:   make(map[uuid.UUID]models.Player),
		resources: make(map[uuid.UUID]models.Resource),
	}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		games:     make(map[uuid.UUID]models.Game, len(s.games)),
		players:   make(map[uuid.UUID]models.Player, len(s.players)),
		resources: make(map[uuid.UUID]models.Resource, len(s.resources)),
		// full slice expressions so appends in the clone never write into
		// the parent's backing array
		actions:  s.actions[:len(s.actions):len(s.actions)],
		analyses: s.analyses[:len(s.analyses):len(s.analyses)],
		seq:      s.seq,
	}
	for k, v := range s.games {
		c.games[k] = v
	}
	for k, v := range s.players {
		c.players[k] = v
	}
	for k, v := range s.resources {
		c.resources[k] = v
	}
	return c
}

// Memory 内存实现。事务持有写锁并在副本上执行，成功后整体替换，
// 因此同一时刻只有一个事务，读操作看到的总是已提交的状态
type Memory struct {
	state *memoryState
	mutex sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{state: newMemoryState()}
}

func (m *Memory) Transaction(ctx context.Context, fn func(tx Gateway) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	tx := &Memory{state: m.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *Memory) CreateGame(ctx context.Context, g *models.Game) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.state.games[g.ID]; exists {
		return ErrDuplicateKey
	}
	for _, existing := range m.state.games {
		if existing.RoomCode == g.RoomCode {
			return ErrDuplicateKey
		}
	}
	stored := *g
	stored.Players = nil
	m.state.games[g.ID] = stored
	return nil
}

func (m *Memory) LoadGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	g, ok := m.state.games[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &g, nil
}

// LockGame needs no row lock: transactions already run one at a time.
func (m *Memory) LockGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	return m.LoadGame(ctx, id)
}

func (m *Memory) LoadGameByCode(ctx context.Context, code string) (*models.Game, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, g := range m.state.games {
		if strings.EqualFold(g.RoomCode, code) {
			found := g
			return &found, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *Memory) RoomCodeExists(ctx context.Context, code string) (bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, g := range m.state.games {
		if g.RoomCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ListGamesByStatus(ctx context.Context, status models.GameStatus) ([]models.Game, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	games := make([]models.Game, 0)
	for _, g := range m.state.games {
		if g.Status == status {
			games = append(games, g)
		}
	}
	sort.Slice(games, func(i, j int) bool {
		return games[i].CreatedAt.Before(games[j].CreatedAt)
	})
	return games, nil
}

func (m *Memory) SaveGame(ctx context.Context, g *models.Game) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	stored := *g
	stored.Players = nil
	m.state.games[g.ID] = stored
	return nil
}

func (m *Memory) DeleteGame(ctx context.Context, id uuid.UUID) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.state.games[id]; !ok {
		return ErrRecordNotFound
	}
	for pid, p := range m.state.players {
		if p.GameID == id {
			delete(m.state.resources, pid)
			delete(m.state.players, pid)
		}
	}

	actions := make([]models.Action, 0, len(m.state.actions))
	for _, a := range m.state.actions {
		if a.GameID != id {
			actions = append(actions, a)
		}
	}
	m.state.actions = actions

	analyses := make([]models.AiAnalysis, 0, len(m.state.analyses))
	for _, a := range m.state.analyses {
		if a.GameID != id {
			analyses = append(analyses, a)
		}
	}
	m.state.analyses = analyses

	delete(m.state.games, id)
	return nil
}

func (m *Memory) CreatePlayer(ctx context.Context, p *models.Player, r *models.Resource) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.state.games[p.GameID]; !ok {
		return ErrRecordNotFound
	}
	if _, exists := m.state.players[p.ID]; exists {
		return ErrDuplicateKey
	}
	if _, exists := m.state.resources[r.PlayerID]; exists {
		return ErrDuplicateKey
	}

	stored := *p
	stored.Resource = nil
	m.state.players[p.ID] = stored
	m.state.resources[r.PlayerID] = *r
	return nil
}

func (m *Memory) LoadPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	p, ok := m.state.players[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	if r, ok := m.state.resources[id]; ok {
		p.Resource = &r
	}
	return &p, nil
}

func (m *Memory) LoadPlayers(ctx context.Context, gameID uuid.UUID) ([]models.Player, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	players := make([]models.Player, 0)
	for _, p := range m.state.players {
		if p.GameID == gameID {
			players = append(players, p)
		}
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].JoinedAt.Equal(players[j].JoinedAt) {
			return players[i].ID.String() < players[j].ID.String()
		}
		return players[i].JoinedAt.Before(players[j].JoinedAt)
	})
	return players, nil
}

func (m *Memory) CountPlayers(ctx context.Context, gameID uuid.UUID) (int, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	count := 0
	for _, p := range m.state.players {
		if p.GameID == gameID {
			count++
		}
	}
	return count, nil
}

func (m *Memory) SavePlayer(ctx context.Context, p *models.Player) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.state.players[p.ID]; !ok {
		return ErrRecordNotFound
	}
	stored := *p
	stored.Resource = nil
	m.state.players[p.ID] = stored
	return nil
}

func (m *Memory) LoadResource(ctx context.Context, playerID uuid.UUID) (*models.Resource, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	r, ok := m.state.resources[playerID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &r, nil
}

func (m *Memory) SaveResource(ctx context.Context, r *models.Resource) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.state.players[r.PlayerID]; !ok {
		return ErrRecordNotFound
	}
	m.state.resources[r.PlayerID] = *r
	return nil
}

func (m *Memory) AppendAction(ctx context.Context, a *models.Action) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.state.actions = append(m.state.actions, *a)
	return nil
}

func (m *Memory) LoadActions(ctx context.Context, gameID uuid.UUID) ([]models.Action, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	actions := make([]models.Action, 0)
	for _, a := range m.state.actions {
		if a.GameID == gameID {
			actions = append(actions, a)
		}
	}
	return actions, nil
}

func (m *Memory) AppendAnalysis(ctx context.Context, a *models.AiAnalysis) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.state.seq++
	a.Seq = m.state.seq
	m.state.analyses = append(m.state.analyses, *a)
	return nil
}

func (m *Memory) LoadLatestAnalysis(ctx context.Context, gameID uuid.UUID) (*models.AiAnalysis, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var latest *models.AiAnalysis
	for i := range m.state.analyses {
		a := m.state.analyses[i]
		if a.GameID != gameID {
			continue
		}
		// newest analyzed_at, then highest seq: same order as the SQL gateway
		if latest == nil || a.AnalyzedAt.After(latest.AnalyzedAt) ||
			(a.AnalyzedAt.Equal(latest.AnalyzedAt) && a.Seq > latest.Seq) {
			latest = &a
		}
	}
	if latest == nil {
		return nil, ErrRecordNotFound
	}
	return latest, nil
}

// ActionBreakdown counts a game's logged actions per type.
func (m *Memory) ActionBreakdown(ctx context.Context, gameID uuid.UUID) (map[models.ActionType]int, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	counts := make(map[models.ActionType]int)
	for _, a := range m.state.actions {
		if a.GameID == gameID {
			counts[a.ActionType]++
		}
	}
	return counts, nil
}

func (m *Memory) Close() error {
	return nil
}
