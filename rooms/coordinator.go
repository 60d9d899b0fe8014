package rooms

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/wqfan/roomrelay/internal/log"
)

// Coordinator owns all room membership state and runs every membership
// transition atomically under the owning room's lock.
//
// Lock order: registry lock before room lock, never the reverse.
type Coordinator struct {
	mu     sync.Mutex
	rooms  map[string]*room
	index  *connIndex
	logger *log.Logger
}

func NewCoordinator(logger *log.Logger) *Coordinator {
	return &Coordinator{
		rooms:  make(map[string]*room),
		index:  newConnIndex(),
		logger: logger,
	}
}

func (c *Coordinator) getOrCreate(roomKey string) *room {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.rooms[roomKey]
	if !ok {
		r = newRoom(roomKey)
		c.rooms[roomKey] = r
	}
	return r
}

func (c *Coordinator) get(roomKey string) *room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms[roomKey]
}

// deleteIfEmpty removes r from the registry if it is still registered and
// still empty. r.mu must NOT be held.
func (c *Coordinator) deleteIfEmpty(r *room) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rooms[r.key] != r {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.members) > 0 {
		return
	}
	r.gone = true
	delete(c.rooms, r.key)

	roomsActive.Add(context.Background(), -1)
	c.logger.Debug("Room deleted", log.String("room", r.key))
}

// Join adds (or re-binds) userID on connID to roomKey and broadcasts the
// membership change. A join that changes nothing broadcasts nothing.
func (c *Coordinator) Join(ctx context.Context, roomKey, userID, connID string, sender Sender) {
	mustConnID(connID)
	if roomKey == "" || userID == "" {
		return
	}

	for {
		r := c.getOrCreate(roomKey)
		r.mu.Lock()
		if r.gone {
			// lost the race against deletion, re-fetch
			r.mu.Unlock()
			continue
		}

		fresh := len(r.members) == 0
		cur, bound := r.userIndex[userID]

		switch {
		case bound && cur == connID:
			// duplicate join, nothing changed
			r.mu.Unlock()
			return

		case bound:
			// user reconnected on a new connection: the newcomer wins.
			// The stale connection is detached without a user-left, the
			// roster never lost the user, so only room-users goes out.
			delete(r.members, cur)
			c.index.untrack(cur, roomKey)
			r.members[connID] = sender
			r.userIndex[userID] = connID
			c.index.track(connID, roomKey)

			evictionsTotal.Add(ctx, 1)
			c.logger.Info("Stale connection evicted",
				log.String("room", roomKey),
				log.String("userId", userID),
				log.String("oldConnId", cur),
				log.String("connId", connID),
			)

			c.broadcast(ctx, r, "", MethodRoomUsers, RoomUsers{Users: r.roster()})
			r.mu.Unlock()
			return

		default:
			r.members[connID] = sender
			r.userIndex[userID] = connID
			c.index.track(connID, roomKey)

			joinsTotal.Add(ctx, 1)
			if fresh {
				roomsActive.Add(ctx, 1)
			}
			c.logger.Info("User joined",
				log.String("room", roomKey),
				log.String("userId", userID),
				log.String("connId", connID),
			)

			c.broadcast(ctx, r, connID, MethodUserJoined, UserEvent{UserID: userID})
			c.broadcast(ctx, r, "", MethodRoomUsers, RoomUsers{Users: r.roster()})
			r.mu.Unlock()
			return
		}
	}
}

// Leave removes userID from roomKey, but only when connID is the connection
// the user is currently bound to. Anything else is a silent no-op.
func (c *Coordinator) Leave(ctx context.Context, roomKey, userID, connID string) {
	mustConnID(connID)
	if roomKey == "" || userID == "" {
		return
	}

	r := c.get(roomKey)
	if r == nil {
		return
	}

	r.mu.Lock()
	if r.gone {
		r.mu.Unlock()
		return
	}
	cur, bound := r.userIndex[userID]
	if !bound || cur != connID {
		r.mu.Unlock()
		return
	}

	c.removeLocked(ctx, r, userID, connID)
	empty := len(r.members) == 0
	r.mu.Unlock()

	if empty {
		c.deleteIfEmpty(r)
	}
}

// removeLocked removes one membership and broadcasts the departure to the
// remaining members. Caller must hold r.mu.
func (c *Coordinator) removeLocked(ctx context.Context, r *room, userID, connID string) {
	delete(r.members, connID)
	delete(r.userIndex, userID)
	c.index.untrack(connID, r.key)

	leavesTotal.Add(ctx, 1)
	c.logger.Info("User left",
		log.String("room", r.key),
		log.String("userId", userID),
		log.String("connId", connID),
	)

	c.broadcast(ctx, r, "", MethodUserLeft, UserEvent{UserID: userID})
	c.broadcast(ctx, r, "", MethodRoomUsers, RoomUsers{Users: r.roster()})
}

// Disconnect tears down every membership held by connID. It is the single
// cleanup path for socket closes, network drops and idle timeouts.
func (c *Coordinator) Disconnect(ctx context.Context, connID string) {
	mustConnID(connID)

	disconnectsTotal.Add(ctx, 1)

	for _, roomKey := range c.index.roomsOf(connID) {
		r := c.get(roomKey)
		if r == nil {
			continue
		}

		r.mu.Lock()
		if r.gone {
			r.mu.Unlock()
			continue
		}
		userID, ok := r.userOf(connID)
		if !ok {
			// already evicted by a reconnect
			r.mu.Unlock()
			continue
		}

		c.removeLocked(ctx, r, userID, connID)
		empty := len(r.members) == 0
		r.mu.Unlock()

		if empty {
			c.deleteIfEmpty(r)
		}
	}

	c.index.forget(connID)
}

// Relay forwards an opaque signaling payload to every member of roomKey
// except the sender's own connection. Missing rooms drop the message.
func (c *Coordinator) Relay(ctx context.Context, roomKey, senderUserID string, payload json.RawMessage) {
	r := c.get(roomKey)
	if r == nil {
		relaysDropped.Add(ctx, 1)
		c.logger.Debug("Relay dropped, no such room",
			log.String("room", roomKey),
			log.String("userId", senderUserID),
		)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone {
		relaysDropped.Add(ctx, 1)
		return
	}

	senderConn := r.userIndex[senderUserID]
	event := SignalEvent{UserID: senderUserID, Payload: payload}
	for connID, sender := range r.members {
		if connID == senderConn {
			continue
		}
		if err := sender.Notify(ctx, MethodSignal, event); err != nil {
			notificationsFailed.Add(ctx, 1)
			c.logger.Debug("Failed to relay signal",
				log.String("room", roomKey),
				log.String("connId", connID),
				log.Error(err),
			)
			continue
		}
		relaysDelivered.Add(ctx, 1)
	}
}

// broadcast notifies every member except exceptConnID. Caller must hold r.mu.
// Senders enqueue into per-connection buffers, so this never blocks on I/O.
func (c *Coordinator) broadcast(ctx context.Context, r *room, exceptConnID, method string, params any) {
	for connID, sender := range r.members {
		if connID == exceptConnID {
			continue
		}
		if err := sender.Notify(ctx, method, params); err != nil {
			notificationsFailed.Add(ctx, 1)
			c.logger.Debug("Failed to notify member",
				log.String("room", r.key),
				log.String("connId", connID),
				log.String("method", method),
				log.Error(err),
			)
			continue
		}
		notificationsSent.Add(ctx, 1)
	}
}

// Roster returns the sorted user list of roomKey, or nil when the room does
// not exist.
func (c *Coordinator) Roster(roomKey string) []string {
	r := c.get(roomKey)
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone || len(r.members) == 0 {
		return nil
	}
	return r.roster()
}

// Stats returns a snapshot of all non-empty rooms, sorted by key.
func (c *Coordinator) Stats() []RoomStat {
	c.mu.Lock()
	all := make([]*room, 0, len(c.rooms))
	for _, r := range c.rooms {
		all = append(all, r)
	}
	c.mu.Unlock()

	stats := make([]RoomStat, 0, len(all))
	for _, r := range all {
		r.mu.Lock()
		if !r.gone && len(r.members) > 0 {
			stats = append(stats, RoomStat{Key: r.key, Members: len(r.members)})
		}
		r.mu.Unlock()
	}
	sortStats(stats)
	return stats
}

// Bindings returns every (room, user) membership currently held by connID.
func (c *Coordinator) Bindings(connID string) []Binding {
	mustConnID(connID)

	var bindings []Binding
	for _, roomKey := range c.index.roomsOf(connID) {
		r := c.get(roomKey)
		if r == nil {
			continue
		}
		r.mu.Lock()
		if userID, ok := r.userOf(connID); ok && !r.gone {
			bindings = append(bindings, Binding{RoomKey: roomKey, UserID: userID})
		}
		r.mu.Unlock()
	}
	return bindings
}

func mustConnID(connID string) {
	if connID == "" {
		panic("rooms: empty connection ID")
	}
}
