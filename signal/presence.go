package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/wqfan/roomrelay/internal/log"
)

const (
	presenceLockTTL  = 30 * time.Second
	serverHBTTL      = 3 * time.Second
	serverHBInterval = time.Second
	redisTimeout     = 2 * time.Second
)

// PresenceGuard enforces at most one live signaling connection per
// (room, user) across server instances.
type PresenceGuard interface {
	Start(ctx context.Context) error
	Stop()

	// Acquire claims the (room, user) slot for connID. It returns false
	// when another live server currently owns the slot.
	Acquire(ctx context.Context, roomKey, userID, connID string) (bool, error)

	// Release frees the slot, but only if connID still owns it.
	Release(ctx context.Context, roomKey, userID, connID string) error

	ServerID() string
}

var (
	// Lua script for acquiring a presence lock
	// KEYS[1]: lock key (room+user slot)
	// ARGV[1]: lock value (serverID:connID)
	// ARGV[2]: lock TTL in milliseconds
	// ARGV[3]: server heartbeat key prefix
	// ARGV[4]: this server's ID
	//
	// Same-server takeover always succeeds: the local coordinator already
	// evicted the stale connection. A remote owner is only displaced when
	// its server heartbeat has expired.
	luaAcquirePresence = redis.NewScript(`
		local cur = redis.call('GET', KEYS[1])
		if cur == false then
			redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
			return 1
		end

		if cur == ARGV[1] then
			redis.call('PEXPIRE', KEYS[1], ARGV[2])
			return 1
		end

		local owner = string.match(cur, '^([^:]+)')
		if owner == ARGV[4] then
			redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
			return 1
		end

		if redis.call('EXISTS', ARGV[3] .. owner) == 0 then
			redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
			return 1
		end

		return 0
	`)

	// Lua script for releasing a presence lock
	// KEYS[1]: lock key
	// ARGV[1]: lock value (serverID:connID)
	luaReleasePresence = redis.NewScript(`
		local cur = redis.call('GET', KEYS[1])
		if cur ~= ARGV[1] then
			return 0
		end
		redis.call('DEL', KEYS[1])
		return 1
	`)
)

type presenceGuardImpl struct {
	redisClient *redis.Client
	prefix      string
	serverID    string
	logger      *log.Logger
	clock       clockwork.Clock

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewPresenceGuard(
	redisClient *redis.Client,
	redisPrefix string,
	serverID string,
	logger *log.Logger,
) PresenceGuard {
	return &presenceGuardImpl{
		redisClient: redisClient,
		prefix:      redisPrefix,
		serverID:    serverID,
		logger:      logger,
		clock:       clockwork.NewRealClock(),
		stopCh:      make(chan struct{}),
	}
}

func (g *presenceGuardImpl) lockKey(roomKey, userID string) string {
	return fmt.Sprintf("%s:c:%s:%s", g.prefix, roomKey, userID)
}

func (g *presenceGuardImpl) serverKeyPrefix() string {
	return fmt.Sprintf("%s:s:", g.prefix)
}

func (g *presenceGuardImpl) serverKey() string {
	return g.serverKeyPrefix() + g.serverID
}

func (g *presenceGuardImpl) lockValue(connID string) string {
	return fmt.Sprintf("%s:%s", g.serverID, connID)
}

func (g *presenceGuardImpl) ServerID() string {
	return g.serverID
}

func (g *presenceGuardImpl) Acquire(ctx context.Context, roomKey, userID, connID string) (bool, error) {
	g.logger.Debug("Acquiring presence lock",
		log.String("room", roomKey),
		log.String("userId", userID),
		log.String("connId", connID),
		log.String("serverId", g.serverID),
	)

	result, err := luaAcquirePresence.Run(
		ctx,
		g.redisClient,
		[]string{g.lockKey(roomKey, userID)},
		g.lockValue(connID),
		presenceLockTTL.Milliseconds(),
		g.serverKeyPrefix(),
		g.serverID,
	).Int()

	if err != nil {
		return false, fmt.Errorf("fail to acquire presence lock: %w", err)
	}
	if result == 1 {
		return true, nil
	}

	g.logger.Debug("Presence lock held by another live server",
		log.String("room", roomKey),
		log.String("userId", userID),
		log.String("connId", connID),
	)
	return false, nil
}

func (g *presenceGuardImpl) Release(ctx context.Context, roomKey, userID, connID string) error {
	g.logger.Debug("Releasing presence lock",
		log.String("room", roomKey),
		log.String("userId", userID),
		log.String("connId", connID),
	)

	_, err := luaReleasePresence.Run(
		ctx,
		g.redisClient,
		[]string{g.lockKey(roomKey, userID)},
		g.lockValue(connID),
	).Int()

	if err != nil {
		return fmt.Errorf("fail to release presence lock: %w", err)
	}
	return nil
}

func (g *presenceGuardImpl) Start(ctx context.Context) error {
	g.logger.Info("Starting server heartbeat", log.String("serverId", g.serverID))

	if err := g.setHeartbeat(ctx); err != nil {
		return fmt.Errorf("failed to set initial heartbeat: %w", err)
	}

	g.wg.Add(1)
	go g.heartbeatLoop()

	return nil
}

func (g *presenceGuardImpl) Stop() {
	g.logger.Info("Stopping server heartbeat", log.String("serverId", g.serverID))
	close(g.stopCh)
	g.wg.Wait()
}

func (g *presenceGuardImpl) setHeartbeat(ctx context.Context) error {
	return g.redisClient.Set(
		ctx, g.serverKey(),
		"1",
		serverHBTTL).Err()
}

func (g *presenceGuardImpl) heartbeatLoop() {
	defer g.wg.Done()

	ticker := g.clock.NewTicker(serverHBInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopCh:
			ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
			defer cancel()
			g.redisClient.Del(ctx, g.serverKey())
			return
		case <-ticker.Chan():
			ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
			if err := g.setHeartbeat(ctx); err != nil {
				g.logger.Error("Failed to extend server heartbeat", log.Error(err))
			}
			cancel()
		}
	}
}

// noopGuard is used when redis is not configured; a single instance needs
// no cross-server coordination.
type noopGuard struct {
	serverID string
}

func NewNoopGuard(serverID string) PresenceGuard {
	return &noopGuard{serverID: serverID}
}

func (g *noopGuard) Start(context.Context) error { return nil }

func (g *noopGuard) Stop() {}

func (g *noopGuard) Acquire(context.Context, string, string, string) (bool, error) {
	return true, nil
}

func (g *noopGuard) Release(context.Context, string, string, string) error { return nil }

func (g *noopGuard) ServerID() string { return g.serverID }
