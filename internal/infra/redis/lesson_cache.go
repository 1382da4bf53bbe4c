package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"polymer-learn-service/internal/app"
	"polymer-learn-service/internal/domain"
)

// LessonCache caches whole lessons in Redis and falls back to a loader on
// cache miss. Lessons are stored as: SET lesson:{id} {json} EX ttl
type LessonCache struct {
	client *redis.Client
	loader app.LessonRepository
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewLessonCache(client *redis.Client, loader app.LessonRepository, ttl time.Duration) *LessonCache {
	return &LessonCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LessonCache) GetLesson(ctx context.Context, id string) (domain.Lesson, error) {
	if lesson, ok := c.cached(ctx, id); ok {
		return lesson, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		// Re-check in case another instance filled it.
		if lesson, ok := c.cached(ctx, id); ok {
			return lesson, nil
		}
		lesson, err := c.loader.GetLesson(ctx, id)
		if err != nil {
			return domain.Lesson{}, err
		}
		if raw, err := json.Marshal(lesson); err == nil {
			_ = c.client.Set(ctx, c.key(id), raw, c.ttlWithJitter()).Err()
		}
		return lesson, nil
	})
	if err != nil {
		return domain.Lesson{}, err
	}
	return result.(domain.Lesson), nil
}

// Invalidate deletes the cached copy of id.
func (c *LessonCache) Invalidate(ctx context.Context, id string) error {
	c.sf.Forget(id)
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("invalidate lesson %s: %w", id, err)
	}
	return nil
}

// cached treats Redis failures and undecodable entries as misses.
func (c *LessonCache) cached(ctx context.Context, id string) (domain.Lesson, bool) {
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		return domain.Lesson{}, false
	}
	var lesson domain.Lesson
	if err := json.Unmarshal(raw, &lesson); err != nil {
		return domain.Lesson{}, false
	}
	return lesson, true
}

func (c *LessonCache) key(id string) string {
	return "lesson:" + id
}

func (c *LessonCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func isNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
