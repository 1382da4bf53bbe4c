package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"polymer-learn-service/internal/domain"
)

// LessonLoader reads single lessons over a pgx pool. It is the read path
// behind the lesson caches while students play.
type LessonLoader struct {
	pool *pgxpool.Pool
}

func NewLessonLoader(pool *pgxpool.Pool) *LessonLoader {
	return &LessonLoader{pool: pool}
}

func (l *LessonLoader) GetLesson(ctx context.Context, id string) (domain.Lesson, error) {
	var (
		lesson domain.Lesson
		raw    []byte
	)
	err := l.pool.QueryRow(ctx, `
		SELECT id, title, description, difficulty, xp_reward, sort_order,
		       COALESCE(module_key, ''), questions, is_default, owner_id
		FROM lessons WHERE id = $1`, id).Scan(
		&lesson.ID, &lesson.Title, &lesson.Description, &lesson.Difficulty,
		&lesson.XPReward, &lesson.Order, &lesson.ModuleKey, &raw,
		&lesson.IsDefault, &lesson.OwnerID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lesson{}, domain.ErrLessonNotFound
	}
	if err != nil {
		return domain.Lesson{}, fmt.Errorf("load lesson: %w", err)
	}
	if err := json.Unmarshal(raw, &lesson.Questions); err != nil {
		return domain.Lesson{}, fmt.Errorf("unmarshal questions: %w", err)
	}
	return lesson, nil
}
