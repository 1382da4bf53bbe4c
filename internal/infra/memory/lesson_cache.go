package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"polymer-learn-service/internal/app"
	"polymer-learn-service/internal/domain"
)

// LessonCache caches lessons with TTL to avoid repeated store hits while
// students play. Concurrent misses for one lesson share a single load.
type LessonCache struct {
	loader app.LessonRepository
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedLesson
}

type cachedLesson struct {
	lesson    domain.Lesson
	expiresAt time.Time
}

func NewLessonCache(loader app.LessonRepository, ttl time.Duration) *LessonCache {
	return &LessonCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedLesson),
	}
}

func (c *LessonCache) GetLesson(ctx context.Context, id string) (domain.Lesson, error) {
	if lesson, ok := c.lookup(id); ok {
		return lesson, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		if lesson, ok := c.lookup(id); ok {
			return lesson, nil
		}
		lesson, err := c.loader.GetLesson(ctx, id)
		if err != nil {
			return domain.Lesson{}, err
		}

		c.mu.Lock()
		c.cache[id] = cachedLesson{lesson: lesson, expiresAt: c.clock().Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return lesson, nil
	})
	if err != nil {
		return domain.Lesson{}, err
	}
	return result.(domain.Lesson), nil
}

// Invalidate drops id so the next read reloads it.
func (c *LessonCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	delete(c.cache, id)
	c.mu.Unlock()
	c.sf.Forget(id)
	return nil
}

func (c *LessonCache) lookup(id string) (domain.Lesson, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[id]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Lesson{}, false
	}
	return entry.lesson, true
}

// ttlWithJitter adds up to 10% so entries loaded together expire apart.
// Called with mu held.
func (c *LessonCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
