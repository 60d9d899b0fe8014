package signal

import (
	"context"

	"golang.org/x/time/rate"
)

// sessionContext is the per-connection state shared by all RPC handlers
// on one WebSocket.
type sessionContext struct {
	connID string

	// subject is the authenticated user identity, empty when the server
	// runs without JWT auth
	subject string

	reqCtx  context.Context
	limiter *rate.Limiter
}
