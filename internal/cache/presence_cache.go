package cache

import (
	"fmt"
	"strconv"
	"time"
)

// PresenceTTL bounds how long a crashed process can leave a user marked
// online. Matches the hub's pong timeout.
const PresenceTTL = 90 * time.Second

const onlineSetKey = "online:users"

// PresenceCache mirrors the hub's registry into Redis so the HTTP surface
// can answer presence questions without touching the hub. All methods are
// nil-safe: without Redis the relay runs on the in-process registry alone.
type PresenceCache struct {
	redis *RedisCache
}

func NewPresenceCache(redis *RedisCache) *PresenceCache {
	return &PresenceCache{redis: redis}
}

func presenceKey(userID uint) string {
	return fmt.Sprintf("online:%d", userID)
}

// SetUserOnline adds a user to the online set.
func (pc *PresenceCache) SetUserOnline(userID uint) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	if err := pc.redis.SetAdd(onlineSetKey, userID); err != nil {
		return err
	}
	// Per-user key with TTL so a crash expires the entry.
	return pc.redis.Set(presenceKey(userID), []byte("1"), PresenceTTL)
}

// SetUserOffline removes a user from the online set.
func (pc *PresenceCache) SetUserOffline(userID uint) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	if err := pc.redis.SetRemove(onlineSetKey, userID); err != nil {
		return err
	}
	return pc.redis.Delete(presenceKey(userID))
}

// IsUserOnline checks the per-user TTL key.
func (pc *PresenceCache) IsUserOnline(userID uint) bool {
	if pc == nil || pc.redis == nil {
		return false
	}
	return pc.redis.Exists(presenceKey(userID))
}

// GetOnlineUsers returns the mirrored online set.
func (pc *PresenceCache) GetOnlineUsers() ([]uint, error) {
	if pc == nil || pc.redis == nil {
		return nil, nil
	}
	members, err := pc.redis.SetMembers(onlineSetKey)
	if err != nil {
		return nil, err
	}

	userIDs := make([]uint, 0, len(members))
	for _, member := range members {
		if id, err := strconv.ParseUint(member, 10, 32); err == nil {
			userIDs = append(userIDs, uint(id))
		}
	}
	return userIDs, nil
}

// Refresh extends the TTL for a still-connected user.
func (pc *PresenceCache) Refresh(userID uint) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	return pc.redis.Set(presenceKey(userID), []byte("1"), PresenceTTL)
}
