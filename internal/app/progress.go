package app

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"polymer-learn-service/internal/domain"
)

// EarnedXP is round(finalScore / questionCount * xpReward).
func EarnedXP(finalScore, questionCount, xpReward int) (int, error) {
	if questionCount <= 0 {
		return 0, domain.ErrInvalidLessonState
	}
	return int(math.Round(float64(finalScore) / float64(questionCount) * float64(xpReward))), nil
}

// ApplyCompletion folds one finished lesson into a progress record. The streak
// grows on every completion, retries of the same lesson included.
func ApplyCompletion(p domain.Progress, lessonID string, earnedXP int, at string) domain.Progress {
	p.XP += earnedXP
	p.Streak++
	p = p.WithCompleted(lessonID)
	p.LastUpdated = at
	return p
}

// Completion is what a finished session produced.
type Completion struct {
	EarnedXP  int             `json:"earnedXP"`
	NewXP     int             `json:"newXp"`
	NewStreak int             `json:"newStreak"`
	Progress  domain.Progress `json:"progress"`
}

// ProgressAggregator converts finished sessions into durable progress.
type ProgressAggregator struct {
	store ProgressStore
	locks *keyedMutex
	opts  options
}

func NewProgressAggregator(store ProgressStore, opts ...Option) *ProgressAggregator {
	return &ProgressAggregator{store: store, locks: newKeyedMutex(), opts: buildOptions(opts)}
}

// Record persists the outcome for studentID. A non-empty userName refreshes
// the display name on the record. Store errors are returned as-is.
func (a *ProgressAggregator) Record(ctx context.Context, studentID, userName string, outcome Outcome) (Completion, error) {
	earned, err := EarnedXP(outcome.FinalScore, outcome.QuestionCount, outcome.Lesson.XPReward)
	if err != nil {
		return Completion{}, err
	}

	unlock := a.locks.Lock(studentID)
	defer unlock()

	at := domain.Timestamp(a.opts.now())
	progress, err := a.store.UpsertProgress(ctx, studentID, func(current domain.Progress, _ bool) (domain.Progress, error) {
		current.StudentID = studentID
		if userName != "" {
			current.UserName = userName
		}
		return ApplyCompletion(current, outcome.Lesson.ID, earned, at), nil
	})
	if err != nil {
		return Completion{}, err
	}

	a.opts.metrics.LessonCompleted(earned)
	a.opts.log.Info("lesson completed",
		zap.String("student", studentID),
		zap.String("lesson", outcome.Lesson.ID),
		zap.Int("score", outcome.FinalScore),
		zap.Int("earnedXP", earned),
		zap.Int("xp", progress.XP),
	)
	return Completion{
		EarnedXP:  earned,
		NewXP:     progress.XP,
		NewStreak: progress.Streak,
		Progress:  progress,
	}, nil
}

// Get returns the stored progress of studentID.
func (a *ProgressAggregator) Get(ctx context.Context, studentID string) (domain.Progress, error) {
	return a.store.GetProgress(ctx, studentID)
}

// Reset zeroes xp, streak and the completed set. Students without a record
// are left without one.
func (a *ProgressAggregator) Reset(ctx context.Context, studentID string) error {
	unlock := a.locks.Lock(studentID)
	defer unlock()

	if _, err := a.store.GetProgress(ctx, studentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	at := domain.Timestamp(a.opts.now())
	_, err := a.store.UpsertProgress(ctx, studentID, func(current domain.Progress, _ bool) (domain.Progress, error) {
		current.StudentID = studentID
		current.XP = 0
		current.Streak = 0
		current.CompletedLessonIDs = []string{}
		current.LastUpdated = at
		return current, nil
	})
	if err == nil {
		a.opts.log.Warn("progress reset", zap.String("student", studentID))
	}
	return err
}
