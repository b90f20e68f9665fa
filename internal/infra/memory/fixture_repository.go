package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"guess-the-prompt/internal/domain"
	"golang.org/x/sync/singleflight"
)

// FixtureLoader fetches the image fixture set from a backing store (e.g., Postgres).
type FixtureLoader interface {
	LoadFixtures(ctx context.Context) ([]domain.ImageFixture, error)
}

// FixtureRepository caches the fixture set with TTL to avoid repeated DB hits.
type FixtureRepository struct {
	loader FixtureLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	fixtures  []domain.ImageFixture
	expiresAt time.Time
}

func NewFixtureRepository(loader FixtureLoader, ttl time.Duration) *FixtureRepository {
	return &FixtureRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Fixtures returns a copy of the cached set, loading it on a miss.
func (r *FixtureRepository) Fixtures(ctx context.Context) ([]domain.ImageFixture, error) {
	if fixtures, ok := r.cached(r.clock()); ok {
		return fixtures, nil
	}

	result, err, _ := r.sf.Do("fixtures", func() (interface{}, error) {
		now := r.clock()
		if fixtures, ok := r.cached(now); ok {
			return fixtures, nil
		}

		fixtures, err := r.loader.LoadFixtures(ctx)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.fixtures = fixtures
		r.expiresAt = now.Add(r.ttlWithJitter())
		r.mu.Unlock()
		return fixtures, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.ImageFixture(nil), result.([]domain.ImageFixture)...), nil
}

func (r *FixtureRepository) cached(now time.Time) ([]domain.ImageFixture, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fixtures == nil || !r.expiresAt.After(now) {
		return nil, false
	}
	return append([]domain.ImageFixture(nil), r.fixtures...), true
}

func (r *FixtureRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticFixtureLoader serves a fixed set (bundled images, tests, demos).
type StaticFixtureLoader struct {
	fixtures []domain.ImageFixture
}

func NewStaticFixtureLoader(fixtures []domain.ImageFixture) *StaticFixtureLoader {
	return &StaticFixtureLoader{fixtures: fixtures}
}

func (l *StaticFixtureLoader) LoadFixtures(_ context.Context) ([]domain.ImageFixture, error) {
	if len(l.fixtures) == 0 {
		return nil, domain.ErrNoFixtures
	}
	return append([]domain.ImageFixture(nil), l.fixtures...), nil
}

// BundledFixtures is the image set shipped with the game; the files live in
// the images directory.
func BundledFixtures() []domain.ImageFixture {
	return []domain.ImageFixture{
		{ID: 1, URL: "/dance.jpg", CorrectPrompt: "People dancing energetically in a vibrant party or club setting", Difficulty: domain.DifficultyEasy, Category: "lifestyle"},
		{ID: 2, URL: "/detective.jpg", CorrectPrompt: "A detective or investigator in a noir-style scene with dramatic lighting", Difficulty: domain.DifficultyMedium, Category: "portrait"},
		{ID: 3, URL: "/gorilla.jpg", CorrectPrompt: "A powerful gorilla in its natural habitat or zoo environment", Difficulty: domain.DifficultyMedium, Category: "animals"},
		{ID: 4, URL: "/jeep.jpg", CorrectPrompt: "A rugged off-road vehicle or jeep in an outdoor adventure setting", Difficulty: domain.DifficultyHard, Category: "vehicles"},
		{ID: 5, URL: "/jungleRave.jpg", CorrectPrompt: "An energetic rave or electronic music festival in a jungle or tropical setting", Difficulty: domain.DifficultyHard, Category: "events"},
	}
}
