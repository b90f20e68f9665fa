package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"guess-the-prompt/internal/domain"
	"guess-the-prompt/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const fixturesKey = "game:fixtures"

// FixtureRepository caches the fixture set in Redis as one JSON document and
// falls back to a loader on cache miss:
//
//	SET game:fixtures [{"id":1,...}, ...] EX ttl
type FixtureRepository struct {
	client *redis.Client
	loader memory.FixtureLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewFixtureRepository(client *redis.Client, loader memory.FixtureLoader, ttl time.Duration) *FixtureRepository {
	return &FixtureRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *FixtureRepository) Fixtures(ctx context.Context) ([]domain.ImageFixture, error) {
	if fixtures, ok := r.cached(ctx); ok {
		return fixtures, nil
	}

	result, err, _ := r.sf.Do(fixturesKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if fixtures, ok := r.cached(ctx); ok {
			return fixtures, nil
		}

		fixtures, err := r.loader.LoadFixtures(ctx)
		if err != nil {
			return nil, err
		}

		payload, err := json.Marshal(fixtures)
		if err == nil {
			err = r.client.Set(ctx, fixturesKey, payload, r.ttlWithJitter()).Err()
		}
		if err != nil {
			log.Warn().Err(err).Msg("cache fixtures")
		}
		return fixtures, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.ImageFixture(nil), result.([]domain.ImageFixture)...), nil
}

// Invalidate drops the cached set so the next read reloads it.
func (r *FixtureRepository) Invalidate(ctx context.Context) error {
	return r.client.Del(ctx, fixturesKey).Err()
}

func (r *FixtureRepository) cached(ctx context.Context) ([]domain.ImageFixture, bool) {
	payload, err := r.client.Get(ctx, fixturesKey).Bytes()
	if err != nil {
		return nil, false
	}
	var fixtures []domain.ImageFixture
	if err := json.Unmarshal(payload, &fixtures); err != nil || len(fixtures) == 0 {
		return nil, false
	}
	return fixtures, true
}

func (r *FixtureRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
