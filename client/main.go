package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redacted-game/gameserver/logger"
)

// client drives one game through the HTTP API from a terminal.
type client struct {
	base    string
	http    *http.Client
	gameID  string
	players []string
}

func (c *client) call(method, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: %d %s (%s)", method, path, resp.StatusCode, e.Error, e.Code)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) setup(players int) error {
	var created struct {
		GameID   string `json:"gameId"`
		RoomCode string `json:"roomCode"`
	}
	err := c.call("POST", "/game/create", map[string]interface{}{
		"hostId":      uuid.NewString(),
		"playerCount": players,
	}, &created)
	if err != nil {
		return err
	}
	c.gameID = created.GameID
	logger.Log.Infof("Created game %s, room code %s", created.GameID, created.RoomCode)

	for i := 0; i < players; i++ {
		var joined struct {
			PlayerID string `json:"playerId"`
		}
		userID := fmt.Sprintf("bot-%d", i)
		if err := c.call("POST", "/game/join", map[string]string{"roomCode": created.RoomCode, "userId": userID}, &joined); err != nil {
			return err
		}
		c.players = append(c.players, joined.PlayerID)
	}

	var started struct {
		Message string `json:"message"`
	}
	if err := c.call("POST", "/game/"+c.gameID+"/start", nil, &started); err != nil {
		return err
	}
	logger.Log.Infof("%s with %d players", started.Message, players)
	return nil
}

// act handles "<player> <action> [target]" where player and target are
// indexes into the joined roster.
func (c *client) act(fields []string) error {
	if len(fields) < 2 {
		return fmt.Errorf("usage: <player> <action> [target]")
	}
	actor, err := c.player(fields[0])
	if err != nil {
		return err
	}
	body := map[string]string{
		"gameId":     c.gameID,
		"playerId":   actor,
		"actionType": fields[1],
	}
	if len(fields) > 2 {
		target, err := c.player(fields[2])
		if err != nil {
			return err
		}
		body["targetId"] = target
	}
	var out struct {
		Success bool `json:"success"`
	}
	if err := c.call("POST", "/player/action", body, &out); err != nil {
		return err
	}
	logger.Log.Infof("-> %s by player %s: success=%v", fields[1], fields[0], out.Success)
	return nil
}

func (c *client) player(idx string) (string, error) {
	i, err := strconv.Atoi(idx)
	if err != nil || i < 0 || i >= len(c.players) {
		return "", fmt.Errorf("no player %q", idx)
	}
	return c.players[i], nil
}

func (c *client) show(path string) error {
	var out json.RawMessage
	if err := c.call("GET", path, nil, &out); err != nil {
		return err
	}
	var pretty bytes.Buffer
	json.Indent(&pretty, out, "", "  ")
	fmt.Println(pretty.String())
	return nil
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "game server base URL")
	players := flag.Int("players", 4, "bots to join before starting")
	flag.Parse()

	logger.Init("info", true)
	defer logger.Sync()

	c := &client{base: strings.TrimRight(*addr, "/"), http: &http.Client{Timeout: 10 * time.Second}}
	if err := c.setup(*players); err != nil {
		logger.Log.Fatalf("Setup failed: %v", err)
	}

	logger.Log.Info("Commands: <player> <action> [target] | analyze | advance | game | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "quit":
			return
		case "analyze":
			if err = c.call("POST", "/game/"+c.gameID+"/analyze", nil, nil); err == nil {
				err = c.show("/game/" + c.gameID + "/analysis")
			}
		case "advance":
			err = c.call("POST", "/game/"+c.gameID+"/advance", nil, nil)
		case "game":
			err = c.show("/game/" + c.gameID)
		default:
			err = c.act(fields)
		}
		if err != nil {
			logger.Log.Warn(err)
		}
	}
}
