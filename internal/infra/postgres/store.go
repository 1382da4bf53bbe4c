package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"polymer-learn-service/internal/app"
	"polymer-learn-service/internal/domain"
)

var _ app.ContentStore = (*Store)(nil)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Store is the Postgres-backed content store.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// Open connects bun to dsn through pgdriver.
func Open(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func (s *Store) GetModule(ctx context.Context, key string) (domain.Module, error) {
	var row moduleRow
	err := s.db.NewSelect().Model(&row).Where("module_key = ?", key).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Module{}, domain.ErrModuleNotFound
	}
	if err != nil {
		return domain.Module{}, fmt.Errorf("get module %s: %w", key, err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListModules(ctx context.Context) ([]domain.Module, error) {
	var rows []moduleRow
	if err := s.db.NewSelect().Model(&rows).Order("module_key").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	out := make([]domain.Module, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) InsertModule(ctx context.Context, module domain.Module) error {
	if err := module.Validate(); err != nil {
		return err
	}
	row := toModuleRow(module)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if pgCode(err) == uniqueViolation {
			return domain.ErrModuleExists
		}
		return fmt.Errorf("insert module %s: %w", module.Key, err)
	}
	return nil
}

func (s *Store) ReplaceModule(ctx context.Context, module domain.Module) error {
	if err := module.Validate(); err != nil {
		return err
	}
	row := toModuleRow(module)
	res, err := s.db.NewUpdate().Model(&row).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("replace module %s: %w", module.Key, err)
	}
	return requireRow(res, domain.ErrModuleNotFound)
}

// DeleteModule locks the module row, counts referencing lessons and deletes
// in one transaction. Lesson writes hold a share lock on the same row.
func (s *Store) DeleteModule(ctx context.Context, key string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var row moduleRow
		err := tx.NewSelect().Model(&row).Where("module_key = ?", key).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrModuleNotFound
		}
		if err != nil {
			return fmt.Errorf("lock module %s: %w", key, err)
		}

		refs, err := tx.NewSelect().Model((*lessonRow)(nil)).Where("module_key = ?", key).Count(ctx)
		if err != nil {
			return fmt.Errorf("count lessons of %s: %w", key, err)
		}
		if refs > 0 {
			return domain.ErrModuleInUse
		}

		if _, err := tx.NewDelete().Model(&row).WherePK().Exec(ctx); err != nil {
			if pgCode(err) == foreignKeyViolation {
				return domain.ErrModuleInUse
			}
			return fmt.Errorf("delete module %s: %w", key, err)
		}
		return nil
	})
}

func (s *Store) GetLesson(ctx context.Context, id string) (domain.Lesson, error) {
	var row lessonRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Lesson{}, domain.ErrLessonNotFound
	}
	if err != nil {
		return domain.Lesson{}, fmt.Errorf("get lesson %s: %w", id, err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListLessons(ctx context.Context) ([]domain.Lesson, error) {
	var rows []lessonRow
	if err := s.db.NewSelect().Model(&rows).Order("id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	out := make([]domain.Lesson, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) InsertLesson(ctx context.Context, lesson domain.Lesson) error {
	if err := lesson.Validate(); err != nil {
		return err
	}
	row := toLessonRow(lesson)
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := shareModule(ctx, tx, lesson.ModuleKey); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			switch pgCode(err) {
			case uniqueViolation:
				return domain.ErrLessonExists
			case foreignKeyViolation:
				return domain.ErrModuleNotFound
			}
			return fmt.Errorf("insert lesson %s: %w", lesson.ID, err)
		}
		return nil
	})
}

func (s *Store) ReplaceLesson(ctx context.Context, lesson domain.Lesson) error {
	if err := lesson.Validate(); err != nil {
		return err
	}
	row := toLessonRow(lesson)
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := shareModule(ctx, tx, lesson.ModuleKey); err != nil {
			return err
		}
		res, err := tx.NewUpdate().Model(&row).WherePK().Exec(ctx)
		if err != nil {
			if pgCode(err) == foreignKeyViolation {
				return domain.ErrModuleNotFound
			}
			return fmt.Errorf("replace lesson %s: %w", lesson.ID, err)
		}
		return requireRow(res, domain.ErrLessonNotFound)
	})
}

func (s *Store) DeleteLesson(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model((*lessonRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete lesson %s: %w", id, err)
	}
	return requireRow(res, domain.ErrLessonNotFound)
}

func (s *Store) CreateAttempt(ctx context.Context, attempt domain.Attempt) error {
	if err := attempt.Validate(); err != nil {
		return err
	}
	row := toAttemptRow(attempt)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("create attempt %s: %w", attempt.ID, err)
	}
	return nil
}

func (s *Store) GetAttempt(ctx context.Context, id string) (domain.Attempt, error) {
	row, err := selectAttempt(ctx, s.db, id, false)
	if err != nil {
		return domain.Attempt{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) SaveAnswer(ctx context.Context, attemptID string, answer domain.AttemptAnswer, at string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row, err := selectAttempt(ctx, tx, attemptID, true)
		if err != nil {
			return err
		}
		next := toAttemptRow(row.toDomain().WithAnswer(answer, at))
		_, err = tx.NewUpdate().Model(&next).Column("answers", "updated_at").WherePK().Exec(ctx)
		if err != nil {
			return fmt.Errorf("save answer on %s: %w", attemptID, err)
		}
		return nil
	})
}

func (s *Store) FinalizeAttempt(ctx context.Context, attemptID string, score int, at string) error {
	res, err := s.db.NewUpdate().
		Model((*attemptRow)(nil)).
		Set("score = ?", score).
		Set("completed_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", attemptID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("finalize attempt %s: %w", attemptID, err)
	}
	return requireRow(res, domain.ErrAttemptNotFound)
}

func (s *Store) ListAttemptsByStudent(ctx context.Context, studentID string) ([]domain.Attempt, error) {
	return s.listAttempts(ctx, "student_id = ?", studentID)
}

func (s *Store) ListAttemptsByLesson(ctx context.Context, lessonID string) ([]domain.Attempt, error) {
	return s.listAttempts(ctx, "lesson_id = ?", lessonID)
}

func (s *Store) GetProgress(ctx context.Context, studentID string) (domain.Progress, error) {
	var row progressRow
	err := s.db.NewSelect().Model(&row).Where("student_id = ?", studentID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Progress{}, domain.ErrProgressNotFound
	}
	if err != nil {
		return domain.Progress{}, fmt.Errorf("get progress %s: %w", studentID, err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListProgress(ctx context.Context) ([]domain.Progress, error) {
	var rows []progressRow
	if err := s.db.NewSelect().Model(&rows).Order("student_id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	out := make([]domain.Progress, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// UpsertProgress serialises writers per student with a transaction-scoped
// advisory lock, so first-time inserts from two instances cannot race.
func (s *Store) UpsertProgress(ctx context.Context, studentID string, fn app.ProgressMutator) (domain.Progress, error) {
	var out domain.Progress
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", studentID); err != nil {
			return fmt.Errorf("lock progress %s: %w", studentID, err)
		}

		var row progressRow
		exists := true
		err := tx.NewSelect().Model(&row).Where("student_id = ?", studentID).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			exists = false
			row = progressRow{StudentID: studentID}
		} else if err != nil {
			return fmt.Errorf("load progress %s: %w", studentID, err)
		}

		next, err := fn(row.toDomain(), exists)
		if err != nil {
			return err
		}
		next.StudentID = studentID
		if err := next.Validate(); err != nil {
			return err
		}

		nextRow := toProgressRow(next)
		_, err = tx.NewInsert().
			Model(&nextRow).
			On("CONFLICT (student_id) DO UPDATE").
			Set("user_name = EXCLUDED.user_name").
			Set("xp = EXCLUDED.xp").
			Set("streak = EXCLUDED.streak").
			Set("completed_lesson_ids = EXCLUDED.completed_lesson_ids").
			Set("last_updated = EXCLUDED.last_updated").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("upsert progress %s: %w", studentID, err)
		}
		out = nextRow.toDomain()
		return nil
	})
	if err != nil {
		return domain.Progress{}, err
	}
	return out, nil
}

func (s *Store) DeleteProgress(ctx context.Context, studentID string) error {
	res, err := s.db.NewDelete().Model((*progressRow)(nil)).Where("student_id = ?", studentID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete progress %s: %w", studentID, err)
	}
	return requireRow(res, domain.ErrProgressNotFound)
}

func (s *Store) listAttempts(ctx context.Context, where string, arg string) ([]domain.Attempt, error) {
	var rows []attemptRow
	if err := s.db.NewSelect().Model(&rows).Where(where, arg).Order("id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	out := make([]domain.Attempt, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func selectAttempt(ctx context.Context, db bun.IDB, id string, forUpdate bool) (attemptRow, error) {
	var row attemptRow
	q := db.NewSelect().Model(&row).Where("id = ?", id)
	if forUpdate {
		q = q.For("UPDATE")
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return attemptRow{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return attemptRow{}, fmt.Errorf("get attempt %s: %w", id, err)
	}
	return row, nil
}

// shareModule holds a share lock on the referenced module until the
// transaction ends, blocking a concurrent DeleteModule.
func shareModule(ctx context.Context, tx bun.Tx, key string) error {
	if key == "" {
		return nil
	}
	var got string
	err := tx.NewSelect().
		Model((*moduleRow)(nil)).
		Column("module_key").
		Where("module_key = ?", key).
		For("SHARE").
		Scan(ctx, &got)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrModuleNotFound
	}
	if err != nil {
		return fmt.Errorf("lock module %s: %w", key, err)
	}
	return nil
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func pgCode(err error) string {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C')
	}
	return ""
}
