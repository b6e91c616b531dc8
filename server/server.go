package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/redacted-game/gameserver/logger"
	"github.com/redacted-game/gameserver/services"
)

// Observer records per-request latency. *monitor.Monitor satisfies it.
type Observer interface {
	ObserveRequest(route, code string, duration time.Duration)
}

type GameServer struct {
	addr          string
	gameService   *services.GameService
	playerService *services.PlayerService
	analysis      *services.AnalysisService
	observer      Observer
	httpServer    *http.Server
}

func NewGameServer(addr string, games *services.GameService, players *services.PlayerService, analysis *services.AnalysisService, observer Observer) *GameServer {
	s := &GameServer{
		addr:          addr,
		gameService:   games,
		playerService: players,
		analysis:      analysis,
		observer:      observer,
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler builds the routing table.
func (s *GameServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /game/create", s.handleCreateGame)
	mux.HandleFunc("POST /game/join", s.handleJoinGame)
	mux.HandleFunc("GET /game/active", s.handleActiveGames)
	mux.HandleFunc("GET /game/{id}", s.handleGetGame)
	mux.HandleFunc("DELETE /game/{id}", s.handleDeleteGame)
	mux.HandleFunc("POST /game/{id}/start", s.handleStartGame)
	mux.HandleFunc("POST /game/{id}/advance", s.handleAdvanceAct)
	mux.HandleFunc("GET /game/{id}/actions", s.handleGameActions)
	mux.HandleFunc("GET /game/{id}/analysis", s.handleLatestAnalysis)
	mux.HandleFunc("POST /game/{id}/analyze", s.handleAnalyzeGame)

	mux.HandleFunc("POST /player/action", s.handlePerformAction)
	mux.HandleFunc("GET /player/{id}", s.handleGetPlayer)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return s.instrument(mux)
}

func (s *GameServer) Start() error {
	logger.Log.Infof("Game server listening on %s", s.addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *GameServer) Shutdown(ctx context.Context) error {
	logger.Log.Info("Stopping game server.")
	return s.httpServer.Shutdown(ctx)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// instrument 记录每个请求的路由、状态码和耗时
func (s *GameServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		if s.observer != nil {
			s.observer.ObserveRequest(route, strconv.Itoa(sw.status), elapsed)
		}
		logger.Log.Debugw("http request", "route", route, "status", sw.status, "duration", elapsed)
	})
}
