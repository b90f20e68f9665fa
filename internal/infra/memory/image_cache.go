package memory

import (
	"context"
	"sync"
	"time"

	"guess-the-prompt/internal/scoring"
	"golang.org/x/sync/singleflight"
)

// ImageCache keeps image bytes in process so a batch of evaluations reads
// each file or URL once.
type ImageCache struct {
	source scoring.ImageSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu      sync.RWMutex
	entries map[string]cachedImage
}

type cachedImage struct {
	data      []byte
	expiresAt time.Time
}

func NewImageCache(source scoring.ImageSource, ttl time.Duration) *ImageCache {
	return &ImageCache{
		source:  source,
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[string]cachedImage),
	}
}

func (c *ImageCache) Image(ctx context.Context, ref string) ([]byte, error) {
	c.mu.RLock()
	if e, ok := c.entries[ref]; ok && e.expiresAt.After(c.clock()) {
		c.mu.RUnlock()
		return e.data, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(ref, func() (interface{}, error) {
		data, err := c.source.Image(ctx, ref)
		if err != nil {
			return nil, err
		}
		if c.ttl > 0 {
			c.mu.Lock()
			c.entries[ref] = cachedImage{data: data, expiresAt: c.clock().Add(c.ttl)}
			c.mu.Unlock()
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
