package app

import (
	"context"

	"polymer-learn-service/internal/domain"
)

// Identity resolves the caller of an operation.
type Identity interface {
	CurrentUserID(ctx context.Context) (string, error)
}

// NameResolver is implemented by identities that also know a display name.
type NameResolver interface {
	CurrentUserName(ctx context.Context) string
}

// ModuleStore persists modules.
type ModuleStore interface {
	GetModule(ctx context.Context, key string) (domain.Module, error)
	ListModules(ctx context.Context) ([]domain.Module, error)
	InsertModule(ctx context.Context, module domain.Module) error
	ReplaceModule(ctx context.Context, module domain.Module) error
	// DeleteModule fails with domain.ErrModuleInUse while any lesson references
	// the key. The reference check and the delete happen atomically.
	DeleteModule(ctx context.Context, key string) error
}

// LessonStore persists lessons with their embedded question lists.
type LessonStore interface {
	GetLesson(ctx context.Context, id string) (domain.Lesson, error)
	ListLessons(ctx context.Context) ([]domain.Lesson, error)
	InsertLesson(ctx context.Context, lesson domain.Lesson) error
	// ReplaceLesson overwrites the whole record, question set included.
	ReplaceLesson(ctx context.Context, lesson domain.Lesson) error
	DeleteLesson(ctx context.Context, id string) error
}

// AttemptStore persists lesson attempts.
type AttemptStore interface {
	CreateAttempt(ctx context.Context, attempt domain.Attempt) error
	GetAttempt(ctx context.Context, id string) (domain.Attempt, error)
	SaveAnswer(ctx context.Context, attemptID string, answer domain.AttemptAnswer, at string) error
	FinalizeAttempt(ctx context.Context, attemptID string, score int, at string) error
	ListAttemptsByStudent(ctx context.Context, studentID string) ([]domain.Attempt, error)
	ListAttemptsByLesson(ctx context.Context, lessonID string) ([]domain.Attempt, error)
}

// ProgressMutator computes the next progress record. exists is false when the
// student has no record yet, in which case current is the zero record.
type ProgressMutator func(current domain.Progress, exists bool) (domain.Progress, error)

// ProgressStore persists one progress record per student.
type ProgressStore interface {
	GetProgress(ctx context.Context, studentID string) (domain.Progress, error)
	ListProgress(ctx context.Context) ([]domain.Progress, error)
	// UpsertProgress runs fn and writes its result as one atomic
	// read-modify-write keyed by studentID.
	UpsertProgress(ctx context.Context, studentID string, fn ProgressMutator) (domain.Progress, error)
	DeleteProgress(ctx context.Context, studentID string) error
}

// ContentStore is the persisted record store behind every component.
type ContentStore interface {
	ModuleStore
	LessonStore
	AttemptStore
	ProgressStore
}

// LessonRepository is the read path used while students take lessons.
type LessonRepository interface {
	GetLesson(ctx context.Context, id string) (domain.Lesson, error)
}

// LessonCache is a LessonRepository that can drop stale entries after edits.
type LessonCache interface {
	LessonRepository
	Invalidate(ctx context.Context, id string) error
}

// SessionRepository abstracts how quiz sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	Get(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, session Session) error
	Delete(ctx context.Context, id string) error
}

// BlobStore keeps uploaded question images.
type BlobStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	// URL returns false when the blob does not exist.
	URL(ctx context.Context, ref string) (string, bool, error)
	Delete(ctx context.Context, ref string) error
}
