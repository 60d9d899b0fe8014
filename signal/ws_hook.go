package signal

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/wqfan/roomrelay/internal/errors"
	"github.com/wqfan/roomrelay/internal/jsonrpc"
	wsrpc "github.com/wqfan/roomrelay/internal/jsonrpc/websocket"
	"github.com/wqfan/roomrelay/internal/jwt"
	"github.com/wqfan/roomrelay/internal/log"
	"github.com/wqfan/roomrelay/rooms"
)

// NewWSHook wires connection lifecycle events to the coordinator and the
// presence guard. jwtAuth may be nil, in which case connections are
// accepted unauthenticated and the caller-supplied userId is trusted.
func NewWSHook(
	coordinator *rooms.Coordinator,
	guard PresenceGuard,
	jwtAuth jwt.Auth,
	signalRate rate.Limit,
	signalBurst int,
	logger *log.Logger,
) wsrpc.ConnectionHooks[sessionContext] {
	return &wsHookImpl{
		coordinator: coordinator,
		guard:       guard,
		jwtAuth:     jwtAuth,
		signalRate:  signalRate,
		signalBurst: signalBurst,
		logger:      logger,
	}
}

type wsHookImpl struct {
	coordinator *rooms.Coordinator
	guard       PresenceGuard
	jwtAuth     jwt.Auth
	signalRate  rate.Limit
	signalBurst int
	logger      *log.Logger
}

func (h *wsHookImpl) newSession(r *http.Request, subject string) *sessionContext {
	sc := &sessionContext{
		subject: subject,
		reqCtx:  r.Context(),
	}
	if h.signalRate > 0 {
		sc.limiter = rate.NewLimiter(h.signalRate, h.signalBurst)
	}
	return sc
}

func (h *wsHookImpl) OnVerify(r *http.Request) (*sessionContext, bool, error) {
	if h.jwtAuth == nil {
		return h.newSession(r, ""), true, nil
	}

	authAttempts.Add(r.Context(), 1)

	// Extract JWT from query parameter or header
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("Authorization")
		if len(token) > 7 && token[:7] == "Bearer " {
			token = token[7:]
		}
	}
	if token == "" {
		authFailures.Add(r.Context(), 1)
		return nil, false, nil
	}

	payload, err := h.jwtAuth.Verify(token)
	if err != nil {
		authFailures.Add(r.Context(), 1)
		if errors.Is(err, jwt.ErrInvalidToken) || errors.Is(err, jwt.ErrNoToken) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return h.newSession(r, payload.UserID), true, nil
}

func (h *wsHookImpl) OnConnect(mctx jsonrpc.MethodContext[sessionContext]) {
	sc := mctx.Get()
	sc.connID = uuid.New().String()

	wsConnectionsActive.Add(sc.reqCtx, 1)
	wsConnectionsTotal.Add(sc.reqCtx, 1)

	h.logger.Info("Client connected",
		log.String("connId", sc.connID),
		log.String("subject", sc.subject),
	)
}

func (h *wsHookImpl) OnDisconnect(mctx jsonrpc.MethodContext[sessionContext], errCode int) {
	sc := mctx.Get()
	connID := sc.connID

	// the request context died with the socket
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	for _, binding := range h.coordinator.Bindings(connID) {
		if err := h.guard.Release(ctx, binding.RoomKey, binding.UserID, connID); err != nil {
			h.logger.Error("Failed to release presence lock",
				log.String("connId", connID),
				log.String("room", binding.RoomKey),
				log.Error(err),
			)
		}
	}

	h.coordinator.Disconnect(ctx, connID)

	wsConnectionsActive.Add(ctx, -1)
	wsDisconnectsTotal.Add(ctx, 1)

	h.logger.Info("Client disconnected",
		log.String("connId", connID),
		log.Int("errorCode", errCode),
	)
}
