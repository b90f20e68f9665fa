package postgres

import (
	"context"
	"fmt"

	"guess-the-prompt/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// FixtureLoader loads the image fixture set from the image_fixtures table.
type FixtureLoader struct {
	pool *pgxpool.Pool
}

func NewFixtureLoader(pool *pgxpool.Pool) *FixtureLoader {
	return &FixtureLoader{pool: pool}
}

func (l *FixtureLoader) LoadFixtures(ctx context.Context) ([]domain.ImageFixture, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, url, correct_prompt, difficulty, category FROM image_fixtures ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load fixtures: %w", err)
	}
	defer rows.Close()

	var fixtures []domain.ImageFixture
	for rows.Next() {
		var (
			f          domain.ImageFixture
			difficulty string
		)
		if err := rows.Scan(&f.ID, &f.URL, &f.CorrectPrompt, &difficulty, &f.Category); err != nil {
			return nil, fmt.Errorf("scan fixture: %w", err)
		}
		f.Difficulty = domain.Difficulty(difficulty)
		fixtures = append(fixtures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load fixtures: %w", err)
	}
	if len(fixtures) == 0 {
		return nil, domain.ErrNoFixtures
	}
	return fixtures, nil
}
