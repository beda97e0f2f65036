package cache

import (
	"fmt"
	"time"

	"github.com/driftline/driftline-backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// ThreadTTL keeps cached transcripts short-lived; every append
// invalidates eagerly anyway.
const ThreadTTL = 5 * time.Minute

// ThreadCache caches full conversation transcripts, msgpack-encoded.
// Nil-safe like the presence cache.
type ThreadCache struct {
	redis *RedisCache
}

func NewThreadCache(redis *RedisCache) *ThreadCache {
	return &ThreadCache{redis: redis}
}

// threadKey is order-independent: the smaller id always comes first.
func threadKey(userID1, userID2 uint) string {
	if userID1 > userID2 {
		userID1, userID2 = userID2, userID1
	}
	return fmt.Sprintf("thread:%d:%d", userID1, userID2)
}

func groupThreadKey(groupID uint) string {
	return fmt.Sprintf("thread:group:%d", groupID)
}

// GetThread retrieves a cached private transcript.
func (tc *ThreadCache) GetThread(userID1, userID2 uint) ([]models.Message, bool) {
	return tc.get(threadKey(userID1, userID2))
}

// SetThread caches a private transcript.
func (tc *ThreadCache) SetThread(userID1, userID2 uint, messages []models.Message) error {
	return tc.set(threadKey(userID1, userID2), messages)
}

// InvalidateThread drops a private transcript after an append or a seen
// flip.
func (tc *ThreadCache) InvalidateThread(userID1, userID2 uint) error {
	if tc == nil || tc.redis == nil {
		return nil
	}
	return tc.redis.Delete(threadKey(userID1, userID2))
}

// GetGroupThread retrieves a cached group transcript.
func (tc *ThreadCache) GetGroupThread(groupID uint) ([]models.Message, bool) {
	return tc.get(groupThreadKey(groupID))
}

// SetGroupThread caches a group transcript.
func (tc *ThreadCache) SetGroupThread(groupID uint, messages []models.Message) error {
	return tc.set(groupThreadKey(groupID), messages)
}

// InvalidateGroupThread drops a group transcript after an append.
func (tc *ThreadCache) InvalidateGroupThread(groupID uint) error {
	if tc == nil || tc.redis == nil {
		return nil
	}
	return tc.redis.Delete(groupThreadKey(groupID))
}

func (tc *ThreadCache) get(key string) ([]models.Message, bool) {
	if tc == nil || tc.redis == nil {
		return nil, false
	}
	data, err := tc.redis.Get(key)
	if err != nil || data == nil {
		return nil, false
	}

	var messages []models.Message
	if err := msgpack.Unmarshal(data, &messages); err != nil {
		return nil, false
	}
	return messages, true
}

func (tc *ThreadCache) set(key string, messages []models.Message) error {
	if tc == nil || tc.redis == nil {
		return nil
	}
	data, err := msgpack.Marshal(messages)
	if err != nil {
		return err
	}
	return tc.redis.Set(key, data, ThreadTTL)
}
