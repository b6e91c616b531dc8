package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redacted-game/gameserver/models"
)

func seedGame(t *testing.T, m *Memory, code string) *models.Game {
	t.Helper()
	g := &models.Game{
		ID:         uuid.New(),
		RoomCode:   code,
		Status:     models.StatusWaiting,
		MaxPlayers: 4,
		CreatedAt:  time.Now(),
	}
	if err := m.CreateGame(context.Background(), g); err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	return g
}

func seedPlayer(t *testing.T, m *Memory, gameID uuid.UUID) *models.Player {
	t.Helper()
	p := &models.Player{ID: uuid.New(), GameID: gameID, UserID: "u", JoinedAt: time.Now()}
	r := &models.Resource{ID: uuid.New(), PlayerID: p.ID, Battery: 100, Capital: 50}
	if err := m.CreatePlayer(context.Background(), p, r); err != nil {
		t.Fatalf("CreatePlayer failed: %v", err)
	}
	return p
}

func TestMemory_RoomCodeUnique(t *testing.T) {
	m := NewMemory()
	seedGame(t, m, "ABC123")

	dup := &models.Game{ID: uuid.New(), RoomCode: "ABC123"}
	if err := m.CreateGame(context.Background(), dup); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got: %v", err)
	}

	exists, err := m.RoomCodeExists(context.Background(), "ABC123")
	if err != nil || !exists {
		t.Fatalf("Expected code to exist, got %v, %v", exists, err)
	}
}

func TestMemory_LoadGameByCodeIgnoresCase(t *testing.T) {
	m := NewMemory()
	g := seedGame(t, m, "ABC123")

	found, err := m.LoadGameByCode(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Expected lookup to succeed, got: %v", err)
	}
	if found.ID != g.ID {
		t.Errorf("Expected game %s, got %s", g.ID, found.ID)
	}

	if _, err := m.LoadGameByCode(context.Background(), "ZZZ999"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound, got: %v", err)
	}
}

func TestMemory_TransactionRollback(t *testing.T) {
	m := NewMemory()
	g := seedGame(t, m, "ROLL01")
	boom := errors.New("boom")

	err := m.Transaction(context.Background(), func(tx Gateway) error {
		p := &models.Player{ID: uuid.New(), GameID: g.ID}
		if err := tx.CreatePlayer(context.Background(), p, &models.Resource{ID: uuid.New(), PlayerID: p.ID}); err != nil {
			return err
		}
		if err := tx.AppendAction(context.Background(), &models.Action{ID: uuid.New(), GameID: g.ID}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected transaction error to propagate, got: %v", err)
	}

	count, _ := m.CountPlayers(context.Background(), g.ID)
	if count != 0 {
		t.Errorf("Expected rolled back player count 0, got %d", count)
	}
	actions, _ := m.LoadActions(context.Background(), g.ID)
	if len(actions) != 0 {
		t.Errorf("Expected rolled back action log, got %d entries", len(actions))
	}
}

func TestMemory_TransactionCommit(t *testing.T) {
	m := NewMemory()
	g := seedGame(t, m, "COMM01")

	err := m.Transaction(context.Background(), func(tx Gateway) error {
		locked, err := tx.LockGame(context.Background(), g.ID)
		if err != nil {
			return err
		}
		locked.Status = models.StatusAct1
		return tx.SaveGame(context.Background(), locked)
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	reloaded, _ := m.LoadGame(context.Background(), g.ID)
	if reloaded.Status != models.StatusAct1 {
		t.Errorf("Expected committed status Act1, got %s", reloaded.Status)
	}
}

func TestMemory_PlayerWithResource(t *testing.T) {
	m := NewMemory()
	g := seedGame(t, m, "PLYR01")
	p := seedPlayer(t, m, g.ID)

	loaded, err := m.LoadPlayer(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("LoadPlayer failed: %v", err)
	}
	if loaded.Resource == nil || loaded.Resource.Battery != 100 {
		t.Fatalf("Expected resource to be attached, got %+v", loaded.Resource)
	}

	loaded.Resource.Battery = 1
	again, _ := m.LoadPlayer(context.Background(), p.ID)
	if again.Resource.Battery != 100 {
		t.Error("Mutating a loaded player should not change stored state")
	}
}

func TestMemory_LatestAnalysis(t *testing.T) {
	m := NewMemory()
	g := seedGame(t, m, "ANLY01")

	if _, err := m.LoadLatestAnalysis(context.Background(), g.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("Expected ErrRecordNotFound before any analysis, got: %v", err)
	}

	base := time.Now()
	first := &models.AiAnalysis{ID: uuid.New(), GameID: g.ID, AnalyzedAt: base}
	second := &models.AiAnalysis{ID: uuid.New(), GameID: g.ID, AnalyzedAt: base.Add(time.Second)}
	m.AppendAnalysis(context.Background(), second)
	m.AppendAnalysis(context.Background(), first)

	latest, err := m.LoadLatestAnalysis(context.Background(), g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != second.ID {
		t.Errorf("Expected latest analysis by time, got %s", latest.ID)
	}
}

func TestMemory_LatestAnalysisTieGoesToLaterAppend(t *testing.T) {
	m := NewMemory()
	g := seedGame(t, m, "TIE001")

	at := time.Now()
	first := &models.AiAnalysis{ID: uuid.New(), GameID: g.ID, AnalyzedAt: at}
	second := &models.AiAnalysis{ID: uuid.New(), GameID: g.ID, AnalyzedAt: at}
	m.AppendAnalysis(context.Background(), first)
	m.AppendAnalysis(context.Background(), second)
	if second.Seq <= first.Seq {
		t.Fatalf("Expected increasing seq, got %d then %d", first.Seq, second.Seq)
	}

	latest, err := m.LoadLatestAnalysis(context.Background(), g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != second.ID {
		t.Errorf("Expected the later append on a timestamp tie, got %s", latest.ID)
	}
}

func TestMemory_DeleteGameCascades(t *testing.T) {
	m := NewMemory()
	g := seedGame(t, m, "DEL001")
	other := seedGame(t, m, "KEEP01")
	p := seedPlayer(t, m, g.ID)
	keep := seedPlayer(t, m, other.ID)
	m.AppendAction(context.Background(), &models.Action{ID: uuid.New(), GameID: g.ID, PlayerID: p.ID})
	m.AppendAction(context.Background(), &models.Action{ID: uuid.New(), GameID: other.ID, PlayerID: keep.ID})
	m.AppendAnalysis(context.Background(), &models.AiAnalysis{ID: uuid.New(), GameID: g.ID})

	if err := m.DeleteGame(context.Background(), g.ID); err != nil {
		t.Fatalf("DeleteGame failed: %v", err)
	}

	if _, err := m.LoadGame(context.Background(), g.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Error("Expected game to be gone")
	}
	if _, err := m.LoadPlayer(context.Background(), p.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Error("Expected player to be gone")
	}
	if _, err := m.LoadResource(context.Background(), p.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Error("Expected resource to be gone")
	}
	if _, err := m.LoadLatestAnalysis(context.Background(), g.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Error("Expected analyses to be gone")
	}
	kept, _ := m.LoadActions(context.Background(), other.ID)
	if len(kept) != 1 {
		t.Errorf("Expected the other game's action to survive, got %d", len(kept))
	}
	if err := m.DeleteGame(context.Background(), g.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Expected second delete to report not found, got: %v", err)
	}
}

func TestMemory_ActionBreakdown(t *testing.T) {
	m := NewMemory()
	g := seedGame(t, m, "BRKD01")
	for _, at := range []models.ActionType{models.ActionHack, models.ActionHack, models.ActionWork} {
		m.AppendAction(context.Background(), &models.Action{ID: uuid.New(), GameID: g.ID, ActionType: at})
	}

	counts, err := m.ActionBreakdown(context.Background(), g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if counts[models.ActionHack] != 2 || counts[models.ActionWork] != 1 {
		t.Errorf("Unexpected breakdown: %v", counts)
	}
}

func TestPostgresOptions_DSN(t *testing.T) {
	opts := PostgresOptions{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "redacted"}
	want := "host=db port=5432 user=u password=p dbname=redacted sslmode=disable"
	if got := opts.DSN(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestPostgresOptions_URL(t *testing.T) {
	opts := PostgresOptions{Host: "db", Port: 5432, User: "u", Password: "p@ss", DBName: "redacted", SSLMode: "require"}
	want := "postgres://u:p%40ss@db:5432/redacted?sslmode=require"
	if got := opts.URL(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
