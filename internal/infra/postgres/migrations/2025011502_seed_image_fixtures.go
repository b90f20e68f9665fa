package migrations

import (
	"context"

	"guess-the-prompt/internal/domain"
	"guess-the-prompt/internal/infra/memory"
	"github.com/uptrace/bun"
)

type imageFixtureRow struct {
	bun.BaseModel `bun:"table:image_fixtures"`

	ID            int    `bun:"id,pk"`
	URL           string `bun:"url,notnull"`
	CorrectPrompt string `bun:"correct_prompt,notnull"`
	Difficulty    string `bun:"difficulty,notnull"`
	Category      string `bun:"category,notnull"`
}

func fixtureRows(fixtures []domain.ImageFixture) []imageFixtureRow {
	rows := make([]imageFixtureRow, 0, len(fixtures))
	for _, f := range fixtures {
		rows = append(rows, imageFixtureRow{
			ID:            f.ID,
			URL:           f.URL,
			CorrectPrompt: f.CorrectPrompt,
			Difficulty:    string(f.Difficulty),
			Category:      f.Category,
		})
	}
	return rows
}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			rows := fixtureRows(memory.BundledFixtures())
			_, err := db.NewInsert().Model(&rows).On("CONFLICT (id) DO NOTHING").Exec(ctx)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			ids := make([]int, 0)
			for _, f := range memory.BundledFixtures() {
				ids = append(ids, f.ID)
			}
			_, err := db.NewDelete().Model((*imageFixtureRow)(nil)).Where("id IN (?)", bun.In(ids)).Exec(ctx)
			return err
		},
	)
}
