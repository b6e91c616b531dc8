package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/redacted-game/gameserver/actions"
	"github.com/redacted-game/gameserver/logger"
	"github.com/redacted-game/gameserver/models"
	"github.com/redacted-game/gameserver/services"
)

type createGameRequest struct {
	HostID        string `json:"hostId"`
	PlayerCount   int    `json:"playerCount"`
	PhaseDuration int    `json:"phaseDuration"`
}

type createGameResponse struct {
	GameID   uuid.UUID         `json:"gameId"`
	RoomCode string            `json:"roomCode"`
	Status   models.GameStatus `json:"status"`
}

type joinGameRequest struct {
	RoomCode string `json:"roomCode"`
	UserID   string `json:"userId"`
}

type joinGameResponse struct {
	PlayerID uuid.UUID      `json:"playerId"`
	GameID   uuid.UUID      `json:"gameId"`
	Faction  models.Faction `json:"faction"`
	Role     models.Role    `json:"role"`
}

type actionRequest struct {
	GameID       string              `json:"gameId"`
	PlayerID     string              `json:"playerId"`
	ActionType   string              `json:"actionType"`
	TargetID     string              `json:"targetId,omitempty"`
	ResourceCost models.ResourceCost `json:"resourceCost"`
}

type actionResponse struct {
	Success  bool      `json:"success"`
	ActionID uuid.UUID `json:"actionId"`
}

type messageResponse struct {
	Message string            `json:"message"`
	Status  models.GameStatus `json:"status,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *GameServer) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if !decode(w, r, &req) {
		return
	}
	hostID, err := parseID(req.HostID, "hostId")
	if err != nil {
		writeError(w, err)
		return
	}

	game, err := s.gameService.CreateGame(r.Context(), hostID, req.PlayerCount, req.PhaseDuration)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, createGameResponse{GameID: game.ID, RoomCode: game.RoomCode, Status: game.Status})
}

func (s *GameServer) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	var req joinGameRequest
	if !decode(w, r, &req) {
		return
	}

	p, err := s.gameService.JoinGame(r.Context(), req.RoomCode, req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, joinGameResponse{PlayerID: p.ID, GameID: p.GameID, Faction: p.Faction, Role: p.Role})
}

func (s *GameServer) handleActiveGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.gameService.ActiveGames(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *GameServer) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	game, err := s.gameService.GetGame(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

func (s *GameServer) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.gameService.DeleteGame(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Game deleted"})
}

func (s *GameServer) handleStartGame(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	game, err := s.gameService.StartGame(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Game started", Status: game.Status})
}

func (s *GameServer) handleAdvanceAct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	game, err := s.gameService.AdvanceAct(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

func (s *GameServer) handleGameActions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	log, err := s.playerService.Actions(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, log)
}

func (s *GameServer) handleLatestAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := s.analysis.LatestAnalysis(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *GameServer) handleAnalyzeGame(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := s.analysis.AnalyzeGame(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *GameServer) handlePerformAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !decode(w, r, &req) {
		return
	}
	gameID, err := parseID(req.GameID, "gameId")
	if err != nil {
		writeError(w, err)
		return
	}
	playerID, err := parseID(req.PlayerID, "playerId")
	if err != nil {
		writeError(w, err)
		return
	}
	var target *uuid.UUID
	if req.TargetID != "" {
		id, err := parseID(req.TargetID, "targetId")
		if err != nil {
			writeError(w, err)
			return
		}
		target = &id
	}

	a, err := s.playerService.PerformAction(r.Context(), actions.Request{
		GameID:       gameID,
		PlayerID:     playerID,
		ActionType:   req.ActionType,
		TargetID:     target,
		ResourceCost: req.ResourceCost,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Success: a.Success, ActionID: a.ID})
}

func (s *GameServer) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := s.playerService.GetPlayer(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// decode 严格解码：未知字段（包括 resourceCost 里拼错的键）直接拒绝
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeError(w, fmt.Errorf("%w: malformed body: %v", services.ErrInvalidInput, err))
		return false
	}
	return true
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s is not a valid id", services.ErrInvalidInput, field)
	}
	return id, nil
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := parseID(r.PathValue("id"), "id")
	if err != nil {
		writeError(w, err)
		return uuid.Nil, false
	}
	return id, true
}

// statusFor 错误到HTTP状态码的映射
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrCapacityExceeded),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrMismatch),
		errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInsufficientResources):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrCodeExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Log.Errorf("Internal error: %v", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: services.Code(err)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warnf("Failed to write response: %v", err)
	}
}
