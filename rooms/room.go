package rooms

import (
	"sort"
	"sync"
)

// room holds the membership state of one room.
// members and userIndex are two views of the same relation:
// every entry in userIndex points at a live entry in members.
type room struct {
	mu sync.Mutex

	key       string
	members   map[string]Sender // connID -> sender
	userIndex map[string]string // userID -> connID

	// gone marks a room that has been removed from the registry.
	// Joiners holding a stale pointer must re-fetch and retry.
	gone bool
}

func newRoom(key string) *room {
	return &room{
		key:       key,
		members:   make(map[string]Sender),
		userIndex: make(map[string]string),
	}
}

// roster returns the sorted user list. Caller must hold r.mu.
func (r *room) roster() []string {
	users := make([]string, 0, len(r.userIndex))
	for userID := range r.userIndex {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

func sortStats(stats []RoomStat) {
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Key < stats[j].Key
	})
}

// userOf resolves the user bound to connID by scanning userIndex values.
// Caller must hold r.mu.
func (r *room) userOf(connID string) (string, bool) {
	for userID, cur := range r.userIndex {
		if cur == connID {
			return userID, true
		}
	}
	return "", false
}
