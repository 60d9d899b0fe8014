package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wqfan/roomrelay/internal/jsonrpc"
	"github.com/wqfan/roomrelay/internal/log"
	"github.com/wqfan/roomrelay/rooms"
)

// Server exposes the signaling method table over JSON-RPC. Membership and
// relay semantics live in the rooms coordinator; the server only binds
// parameters, enforces the edge checks and hands off.
type Server struct {
	jsonrpc.Handler[sessionContext]
	coordinator *rooms.Coordinator
	guard       PresenceGuard
	logger      *log.Logger
}

func NewServer(
	handler jsonrpc.Handler[sessionContext],
	coordinator *rooms.Coordinator,
	guard PresenceGuard,
	logger *log.Logger,
) *Server {
	return &Server{
		Handler:     handler,
		coordinator: coordinator,
		guard:       guard,
		logger:      logger,
	}
}

func (s *Server) Open(ctx context.Context) error {
	s.logger.Info("Opening Signal Server")
	s.register()

	if err := s.guard.Start(ctx); err != nil {
		return fmt.Errorf("failed to start presence guard: %w", err)
	}

	return nil
}

func (s *Server) Close() error {
	s.logger.Info("Closing Signal Server")
	s.guard.Stop()
	return nil
}

const notifyTimeout = 5 * time.Second

func (s *Server) register() {
	// handler is single threaded, no need to lock here
	s.Def("join-room", s.handleJoinRoom)
	s.Def("leave-room", s.handleLeaveRoom)
	s.Def("signal", s.handleSignal)
}

type roomParams struct {
	Room   string `json:"room" validate:"required,max=128"`
	UserID string `json:"userId" validate:"required,max=64"`
}

type signalParams struct {
	Room    string          `json:"room" validate:"required,max=128"`
	UserID  string          `json:"userId" validate:"required,max=64"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

func (s *Server) handleJoinRoom(mctx jsonrpc.MethodContext[sessionContext], params *json.RawMessage) (any, error) {
	var data roomParams
	if err := jsonrpc.ShouldBindParams(params, &data); err != nil {
		return nil, jsonrpc.ErrInvalidParams("invalid join-room parameters")
	}

	sc := mctx.Get()
	if sc.subject != "" && sc.subject != data.UserID {
		authFailures.Add(sc.reqCtx, 1)
		return nil, jsonrpc.ErrInvalidRequest("userId does not match authenticated user")
	}

	ok, err := s.guard.Acquire(sc.reqCtx, data.Room, data.UserID, sc.connID)
	if err != nil {
		// a redis outage must not block local joins
		s.logger.Error("Failed to acquire presence lock", log.Error(err))
	} else if !ok {
		return nil, jsonrpc.ErrInvalidRequest("user already connected elsewhere")
	}

	// bound notification latency so one stalled socket cannot hold a room lock
	sender := jsonrpc.TimeoutClient(mctx.Peer(), notifyTimeout)
	s.coordinator.Join(sc.reqCtx, data.Room, data.UserID, sc.connID, sender)

	//nolint:nilnil
	return nil, nil
}

func (s *Server) handleLeaveRoom(mctx jsonrpc.MethodContext[sessionContext], params *json.RawMessage) (any, error) {
	var data roomParams
	if err := jsonrpc.ShouldBindParams(params, &data); err != nil {
		return nil, jsonrpc.ErrInvalidParams("invalid leave-room parameters")
	}

	sc := mctx.Get()
	s.coordinator.Leave(sc.reqCtx, data.Room, data.UserID, sc.connID)

	if err := s.guard.Release(sc.reqCtx, data.Room, data.UserID, sc.connID); err != nil {
		s.logger.Error("Failed to release presence lock", log.Error(err))
	}

	//nolint:nilnil
	return nil, nil
}

func (s *Server) handleSignal(mctx jsonrpc.MethodContext[sessionContext], params *json.RawMessage) (any, error) {
	var data signalParams
	if err := jsonrpc.ShouldBindParams(params, &data); err != nil {
		return nil, jsonrpc.ErrInvalidParams("invalid signal parameters")
	}

	sc := mctx.Get()
	if sc.limiter != nil && !sc.limiter.Allow() {
		// signaling is fire-and-forget, excess traffic is shed silently
		rateLimitedTotal.Add(sc.reqCtx, 1)
		s.logger.Debug("Signal rate limited",
			log.String("connId", sc.connID),
			log.String("room", data.Room),
		)
		//nolint:nilnil
		return nil, nil
	}

	s.coordinator.Relay(sc.reqCtx, data.Room, data.UserID, data.Payload)

	//nolint:nilnil
	return nil, nil
}
