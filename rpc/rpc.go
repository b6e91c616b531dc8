package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"github.com/google/uuid"
	"github.com/redacted-game/gameserver/logger"
	"github.com/redacted-game/gameserver/models"
	"github.com/redacted-game/gameserver/persistence"
	"github.com/redacted-game/gameserver/services"
)

// callTimeout bounds every admin call; net/rpc carries no context.
const callTimeout = 10 * time.Second

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr and serves the given admin service.
func NewServer(addr string, admin *AdminService) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("Admin", admin); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      srv,
	}, nil
}

// Addr is the bound address, useful when listening on :0.
func (s *Server) Addr() string {
	return s.address
}

// Start accepts connections until Stop is called.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		// JSON codec: the models carry JSON columns gob cannot encode
		go s.rpc.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes operator calls over net/rpc.
// Methods follow the net/rpc shape: exported args, pointer reply, error return.
type AdminService struct {
	games    *services.GameService
	analysis *services.AnalysisService
	reports  persistence.Reporter
}

func NewAdminService(games *services.GameService, analysis *services.AnalysisService, reports persistence.Reporter) *AdminService {
	return &AdminService{games: games, analysis: analysis, reports: reports}
}

type GameArgs struct {
	GameID string
}

type GameReply struct {
	Game models.Game
}

type ActiveGamesArgs struct{}

type ActiveGamesReply struct {
	Games []models.Game
}

type AnalysisReply struct {
	Analysis models.AiAnalysis
}

type BreakdownReply struct {
	Counts map[models.ActionType]int
}

func (a *AdminService) GetGame(args *GameArgs, reply *GameReply) error {
	id, err := parseGameID(args.GameID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	g, err := a.games.GetGame(ctx, id)
	if err != nil {
		return err
	}
	reply.Game = *g
	return nil
}

func (a *AdminService) ActiveGames(args *ActiveGamesArgs, reply *ActiveGamesReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	games, err := a.games.ActiveGames(ctx)
	if err != nil {
		return err
	}
	reply.Games = games
	return nil
}

func (a *AdminService) AnalyzeGame(args *GameArgs, reply *AnalysisReply) error {
	id, err := parseGameID(args.GameID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	res, err := a.analysis.AnalyzeGame(ctx, id)
	if err != nil {
		return err
	}
	reply.Analysis = *res
	return nil
}

// ActionBreakdown counts a game's logged actions by type.
func (a *AdminService) ActionBreakdown(args *GameArgs, reply *BreakdownReply) error {
	id, err := parseGameID(args.GameID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	if _, err := a.games.GetGame(ctx, id); err != nil {
		return err
	}
	counts, err := a.reports.ActionBreakdown(ctx, id)
	if err != nil {
		return err
	}
	reply.Counts = counts
	return nil
}

func parseGameID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad game id %q", services.ErrInvalidInput, raw)
	}
	return id, nil
}
