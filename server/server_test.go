package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redacted-game/gameserver/models"
	"github.com/redacted-game/gameserver/persistence"
	"github.com/redacted-game/gameserver/services"
)

type routeObserver struct {
	mutex  sync.Mutex
	routes map[string]int
}

func (o *routeObserver) ObserveRequest(route, code string, duration time.Duration) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.routes[route+" "+code]++
}

func newTestServer(t *testing.T) (*httptest.Server, *routeObserver) {
	t.Helper()
	return newTestServerWith(t, services.Options{})
}

func newTestServerWith(t *testing.T, opts services.Options) (*httptest.Server, *routeObserver) {
	t.Helper()
	db := persistence.NewMemory()
	opts.NewRand = services.SeqRand(7)
	obs := &routeObserver{routes: map[string]int{}}
	gs := NewGameServer(":0",
		services.NewGameService(db, opts),
		services.NewPlayerService(db, opts),
		services.NewAnalysisService(db, opts),
		obs,
	)
	ts := httptest.NewServer(gs.Handler())
	t.Cleanup(ts.Close)
	return ts, obs
}

func do(t *testing.T, ts *httptest.Server, method, path string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func createGame(t *testing.T, ts *httptest.Server, players int) createGameResponse {
	t.Helper()
	var created createGameResponse
	status := do(t, ts, "POST", "/game/create", createGameRequest{HostID: uuid.NewString(), PlayerCount: players}, &created)
	if status != http.StatusOK {
		t.Fatalf("Expected 200 from create, got %d", status)
	}
	return created
}

func TestServer_GameFlow(t *testing.T) {
	ts, obs := newTestServer(t)

	created := createGame(t, ts, 3)
	if created.Status != models.StatusWaiting || len(created.RoomCode) != 6 {
		t.Fatalf("Unexpected create response %+v", created)
	}

	var joined []joinGameResponse
	for i := 0; i < 3; i++ {
		var j joinGameResponse
		status := do(t, ts, "POST", "/game/join", joinGameRequest{RoomCode: created.RoomCode, UserID: fmt.Sprintf("u%d", i)}, &j)
		if status != http.StatusOK {
			t.Fatalf("Expected 200 from join, got %d", status)
		}
		if j.GameID != created.GameID || j.Faction != models.FactionCitizen {
			t.Errorf("Unexpected join response %+v", j)
		}
		joined = append(joined, j)
	}

	var errResp errorResponse
	status := do(t, ts, "POST", "/game/join", joinGameRequest{RoomCode: created.RoomCode, UserID: "extra"}, &errResp)
	if status != http.StatusConflict || errResp.Code != "capacity_exceeded" {
		t.Errorf("Expected 409 capacity_exceeded, got %d %+v", status, errResp)
	}

	var msg messageResponse
	if status := do(t, ts, "POST", "/game/"+created.GameID.String()+"/start", nil, &msg); status != http.StatusOK {
		t.Fatalf("Expected 200 from start, got %d", status)
	}
	if msg.Status != models.StatusAct1 {
		t.Errorf("Expected Act1 after start, got %s", msg.Status)
	}

	var act actionResponse
	status = do(t, ts, "POST", "/player/action", actionRequest{
		GameID:     created.GameID.String(),
		PlayerID:   joined[0].PlayerID.String(),
		ActionType: "Work",
	}, &act)
	if status != http.StatusOK || !act.Success {
		t.Fatalf("Expected successful action, got %d %+v", status, act)
	}

	var analysis models.AiAnalysis
	if status := do(t, ts, "POST", "/game/"+created.GameID.String()+"/analyze", nil, &analysis); status != http.StatusOK {
		t.Fatalf("Expected 200 from analyze, got %d", status)
	}
	if analysis.TrainingDataSize != 1 {
		t.Errorf("Expected training data size 1, got %d", analysis.TrainingDataSize)
	}

	var latest models.AiAnalysis
	if status := do(t, ts, "GET", "/game/"+created.GameID.String()+"/analysis", nil, &latest); status != http.StatusOK {
		t.Fatalf("Expected 200 from latest analysis, got %d", status)
	}
	if latest.ID != analysis.ID {
		t.Errorf("Expected latest analysis %s, got %s", analysis.ID, latest.ID)
	}

	var game models.Game
	if status := do(t, ts, "GET", "/game/"+created.GameID.String(), nil, &game); status != http.StatusOK {
		t.Fatalf("Expected 200 from get game, got %d", status)
	}
	if len(game.Players) != 3 {
		t.Errorf("Expected 3 players, got %d", len(game.Players))
	}

	var player models.Player
	if status := do(t, ts, "GET", "/player/"+joined[0].PlayerID.String(), nil, &player); status != http.StatusOK {
		t.Fatalf("Expected 200 from get player, got %d", status)
	}
	if player.Resource == nil || player.Resource.Battery != 100 {
		t.Errorf("Expected player with wallet, got %+v", player)
	}

	obs.mutex.Lock()
	defer obs.mutex.Unlock()
	if obs.routes["POST /game/join 200"] != 3 || obs.routes["POST /game/join 409"] != 1 {
		t.Errorf("Unexpected route observations %v", obs.routes)
	}
}

func TestServer_ActiveGames(t *testing.T) {
	ts, _ := newTestServer(t)
	createGame(t, ts, 0)
	createGame(t, ts, 0)

	var games []models.Game
	if status := do(t, ts, "GET", "/game/active", nil, &games); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if len(games) != 2 {
		t.Errorf("Expected 2 active games, got %d", len(games))
	}
}

func TestServer_ErrorMapping(t *testing.T) {
	ts, _ := newTestServer(t)
	created := createGame(t, ts, 0)

	cases := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"unknown room", "POST", "/game/join", joinGameRequest{RoomCode: "ZZZZZZ", UserID: "x"}, http.StatusNotFound, "not_found"},
		{"bad host id", "POST", "/game/create", createGameRequest{HostID: "nope"}, http.StatusBadRequest, "invalid_input"},
		{"bad path id", "GET", "/game/not-a-uuid", nil, http.StatusBadRequest, "invalid_input"},
		{"unknown game", "POST", "/game/" + uuid.NewString() + "/start", nil, http.StatusNotFound, "not_found"},
		{"advance waiting", "POST", "/game/" + created.GameID.String() + "/advance", nil, http.StatusConflict, "invalid_state"},
		{"no analysis yet", "GET", "/game/" + created.GameID.String() + "/analysis", nil, http.StatusNotFound, "not_found"},
		{"bad action", "POST", "/player/action", actionRequest{GameID: created.GameID.String(), PlayerID: "x"}, http.StatusBadRequest, "invalid_input"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var resp errorResponse
			status := do(t, ts, tc.method, tc.path, tc.body, &resp)
			if status != tc.status || resp.Code != tc.code {
				t.Errorf("Expected %d %s, got %d %+v", tc.status, tc.code, status, resp)
			}
		})
	}
}

func TestServer_MalformedBody(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := ts.Client().Post(ts.URL+"/game/join", "application/json", bytes.NewBufferString("{"))
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", resp.StatusCode)
	}
}

func TestServer_ActionCostUnknownKeys(t *testing.T) {
	ts, _ := newTestServerWith(t, services.Options{EnforceResourceCost: true})
	created := createGame(t, ts, 0)

	var j joinGameResponse
	if status := do(t, ts, "POST", "/game/join", joinGameRequest{RoomCode: created.RoomCode, UserID: "u0"}, &j); status != http.StatusOK {
		t.Fatalf("Expected 200 from join, got %d", status)
	}
	if status := do(t, ts, "POST", "/game/"+created.GameID.String()+"/start", nil, nil); status != http.StatusOK {
		t.Fatalf("Expected 200 from start, got %d", status)
	}

	body := fmt.Sprintf(`{"gameId":%q,"playerId":%q,"actionType":"Work","resourceCost":{"batery":500,"energy":999}}`,
		created.GameID.String(), j.PlayerID.String())
	resp, err := ts.Client().Post(ts.URL+"/player/action", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	defer resp.Body.Close()
	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest || errResp.Code != "invalid_input" {
		t.Errorf("Expected 400 invalid_input, got %d %+v", resp.StatusCode, errResp)
	}

	var actions []models.Action
	if status := do(t, ts, "GET", "/game/"+created.GameID.String()+"/actions", nil, &actions); status != http.StatusOK {
		t.Fatalf("Expected 200 from actions, got %d", status)
	}
	if len(actions) != 0 {
		t.Errorf("Expected no logged actions, got %d", len(actions))
	}

	var player models.Player
	do(t, ts, "GET", "/player/"+j.PlayerID.String(), nil, &player)
	if player.Resource == nil || player.Resource.Battery != 100 || player.Resource.Capital != 50 {
		t.Errorf("Expected untouched wallet, got %+v", player.Resource)
	}
}

func TestServer_DeleteGame(t *testing.T) {
	ts, _ := newTestServer(t)
	created := createGame(t, ts, 0)
	path := "/game/" + created.GameID.String()

	if status := do(t, ts, "DELETE", path, nil, nil); status != http.StatusOK {
		t.Fatalf("Expected 200 from delete, got %d", status)
	}
	var resp errorResponse
	if status := do(t, ts, "GET", path, nil, &resp); status != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", status)
	}
}

func TestServer_Healthz(t *testing.T) {
	ts, _ := newTestServer(t)
	var body map[string]string
	if status := do(t, ts, "GET", "/healthz", nil, &body); status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("Expected healthy, got %d %v", status, body)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.ErrMismatch, http.StatusBadRequest},
		{services.ErrInsufficientResources, http.StatusBadRequest},
		{services.ErrConflict, http.StatusConflict},
		{services.ErrCodeExhausted, http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
