package timer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redacted-game/gameserver/models"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Condition not met before deadline")
}

func TestTimerManager_FiresInOrder(t *testing.T) {
	tm := NewTimerManager(time.Millisecond)
	defer tm.Stop()

	var mutex sync.Mutex
	var order []int
	record := func(n int) func() {
		return func() {
			mutex.Lock()
			order = append(order, n)
			mutex.Unlock()
		}
	}
	tm.AddTimer(60*time.Millisecond, record(2))
	tm.AddTimer(10*time.Millisecond, record(1))

	waitFor(t, func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return len(order) == 2
	})
	if order[0] != 1 || order[1] != 2 {
		t.Errorf("Expected [1 2], got %v", order)
	}
	if tm.Pending() != 0 {
		t.Errorf("Expected empty queue, got %d", tm.Pending())
	}
}

func TestTimerManager_RemoveTimer(t *testing.T) {
	tm := NewTimerManager(time.Millisecond)
	defer tm.Stop()

	var fired int32
	id := tm.AddTimer(30*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	if !tm.RemoveTimer(id) {
		t.Fatalf("Expected pending timer to be removed")
	}
	if tm.RemoveTimer(id) {
		t.Errorf("Expected second remove to report false")
	}

	time.Sleep(80 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Errorf("Removed timer fired")
	}
}

type fakeAdvancer struct {
	mutex  sync.Mutex
	status map[uuid.UUID]models.GameStatus
	calls  int
}

func (f *fakeAdvancer) advance(ctx context.Context, id uuid.UUID, from models.GameStatus) (*models.Game, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.calls++
	if f.status[id] != from {
		return nil, errors.New("stale")
	}
	next := map[models.GameStatus]models.GameStatus{
		models.StatusAct1: models.StatusAct2,
		models.StatusAct2: models.StatusAct3,
		models.StatusAct3: models.StatusFinished,
	}[from]
	f.status[id] = next
	return &models.Game{ID: id, Status: next, PhaseDurationMinutes: 1}, nil
}

func (f *fakeAdvancer) get(id uuid.UUID) models.GameStatus {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.status[id]
}

func TestPhaseClock_AdvancesAfterDuration(t *testing.T) {
	tm := NewTimerManager(time.Millisecond)
	defer tm.Stop()

	id := uuid.New()
	adv := &fakeAdvancer{status: map[uuid.UUID]models.GameStatus{id: models.StatusAct1}}
	clock := NewPhaseClock(tm, 10*time.Millisecond, adv.advance)

	clock.Schedule(&models.Game{ID: id, Status: models.StatusAct1, PhaseDurationMinutes: 2})
	if !clock.Armed(id) {
		t.Fatalf("Expected clock to be armed")
	}

	waitFor(t, func() bool { return adv.get(id) == models.StatusAct2 })
	if clock.Armed(id) {
		t.Errorf("Expected clock to disarm after firing")
	}
}

func TestPhaseClock_RescheduleReplacesTimer(t *testing.T) {
	tm := NewTimerManager(time.Millisecond)
	defer tm.Stop()

	id := uuid.New()
	adv := &fakeAdvancer{status: map[uuid.UUID]models.GameStatus{id: models.StatusAct1}}
	clock := NewPhaseClock(tm, 10*time.Millisecond, adv.advance)

	clock.Schedule(&models.Game{ID: id, Status: models.StatusAct1, PhaseDurationMinutes: 1})
	clock.Schedule(&models.Game{ID: id, Status: models.StatusAct1, PhaseDurationMinutes: 5})
	if tm.Pending() != 1 {
		t.Errorf("Expected one pending timer, got %d", tm.Pending())
	}

	waitFor(t, func() bool { return adv.get(id) == models.StatusAct2 })
	adv.mutex.Lock()
	calls := adv.calls
	adv.mutex.Unlock()
	if calls != 1 {
		t.Errorf("Expected one advance call, got %d", calls)
	}
}

func TestPhaseClock_SkipsGamesOutsideActs(t *testing.T) {
	tm := NewTimerManager(time.Millisecond)
	defer tm.Stop()

	clock := NewPhaseClock(tm, time.Millisecond, nil)
	for _, status := range []models.GameStatus{models.StatusWaiting, models.StatusFinished} {
		g := &models.Game{ID: uuid.New(), Status: status, PhaseDurationMinutes: 1}
		clock.Schedule(g)
		if clock.Armed(g.ID) {
			t.Errorf("Expected no timer for %s game", status)
		}
	}
}

func TestPhaseClock_Cancel(t *testing.T) {
	tm := NewTimerManager(time.Millisecond)
	defer tm.Stop()

	id := uuid.New()
	adv := &fakeAdvancer{status: map[uuid.UUID]models.GameStatus{id: models.StatusAct1}}
	clock := NewPhaseClock(tm, 10*time.Millisecond, adv.advance)

	clock.Schedule(&models.Game{ID: id, Status: models.StatusAct1, PhaseDurationMinutes: 3})
	clock.Cancel(id)
	if clock.Armed(id) || tm.Pending() != 0 {
		t.Fatalf("Expected cancel to disarm the clock")
	}

	time.Sleep(60 * time.Millisecond)
	if adv.get(id) != models.StatusAct1 {
		t.Errorf("Cancelled clock advanced the game")
	}
}
