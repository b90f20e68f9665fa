package redis

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"time"

	"guess-the-prompt/internal/scoring"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ImageCache stores image bytes under game:image:{sha1(ref)} so instances
// sharing a Redis only fetch remote images once per TTL.
type ImageCache struct {
	client *redis.Client
	source scoring.ImageSource
	ttl    time.Duration
	sf     singleflight.Group
}

func NewImageCache(client *redis.Client, source scoring.ImageSource, ttl time.Duration) *ImageCache {
	return &ImageCache{client: client, source: source, ttl: ttl}
}

func (c *ImageCache) Image(ctx context.Context, ref string) ([]byte, error) {
	key := c.key(ref)
	if data, err := c.client.Get(ctx, key).Bytes(); err == nil {
		return data, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		data, err := c.source.Image(ctx, ref)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			log.Warn().Err(err).Str("ref", ref).Msg("cache image")
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *ImageCache) key(ref string) string {
	sum := sha1.Sum([]byte(ref))
	return "game:image:" + hex.EncodeToString(sum[:])
}
